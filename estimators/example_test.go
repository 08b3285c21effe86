package estimators_test

import (
	"context"
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/estimators"
	"github.com/Oisin-M/cellrank/kernels"
)

// A six-cell chain with two absorbing blocks and two undecided cells:
// identify the macrostates, mark them terminal and solve for the fate
// probabilities of the undecided cells.
func ExampleGPCCA() {
	p := mat.NewDense(6, 6, []float64{
		0.5, 0.5, 0, 0, 0, 0,
		0.5, 0.5, 0, 0, 0, 0,
		0, 0, 0.5, 0.5, 0, 0,
		0, 0, 0.5, 0.5, 0, 0,
		0.3, 0.3, 0.1, 0.1, 0.1, 0.1,
		0.05, 0.05, 0.35, 0.35, 0.1, 0.1,
	})
	tm, err := kernels.NewTransitionFromDense(p, 1e-9, 0)
	if err != nil {
		log.Fatal(err)
	}

	g, err := estimators.NewGPCCA(tm,
		estimators.WithNumStates(2),
		estimators.WithStateLabels([]string{"A", "A", "B", "B", "T", "T"}),
		estimators.WithCellsPerState(2),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := g.ComputeMacrostates(ctx); err != nil {
		log.Fatal(err)
	}
	if err := g.ComputeTerminalStates(); err != nil {
		log.Fatal(err)
	}
	fates, err := g.AbsorptionProbabilities(ctx)
	if err != nil {
		log.Fatal(err)
	}

	a, _ := fates.Col("A")
	b, _ := fates.Col("B")
	fmt.Printf("cell 4: A=%.4f B=%.4f\n", a[4], b[4])
	fmt.Printf("cell 5: A=%.4f B=%.4f\n", a[5], b[5])
	// Output:
	// cell 4: A=0.6875 B=0.3125
	// cell 5: A=0.1875 B=0.8125
}
