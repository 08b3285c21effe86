package estimators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
)

var (
	_ Estimator = (*GPCCA)(nil)
	_ Estimator = (*CFLARE)(nil)
)

// twoBlockChain builds a six-cell chain with two absorbing blocks
// ({0,1} and {2,3}) and two transient cells (4, 5). The exact fate
// probabilities of the transient cells are 0.6875/0.3125 for cell 4
// and 0.1875/0.8125 for cell 5.
func twoBlockChain(t *testing.T) *kernels.TransitionMatrix {
	t.Helper()
	p := mat.NewDense(6, 6, []float64{
		0.5, 0.5, 0, 0, 0, 0,
		0.5, 0.5, 0, 0, 0, 0,
		0, 0, 0.5, 0.5, 0, 0,
		0, 0, 0.5, 0.5, 0, 0,
		0.3, 0.3, 0.1, 0.1, 0.1, 0.1,
		0.05, 0.05, 0.35, 0.35, 0.1, 0.1,
	})
	tm, err := kernels.NewTransitionFromDense(p, 1e-9, 0)
	require.NoError(t, err)

	return tm
}

var chainLabels = []string{"A", "A", "B", "B", "T", "T"}

func TestAbsorb_TwoBlocks(t *testing.T) {
	tm := twoBlockChain(t)
	assign := []int{0, 0, 1, 1, Unassigned, Unassigned}

	lin, err := absorb(context.Background(), tm, assign, []string{"A", "B"}, DefaultEps)
	require.NoError(t, err)

	a, err := lin.Col("A")
	require.NoError(t, err)
	b, err := lin.Col("B")
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 0.6875, 0.1875}, a, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 1, 1, 0.3125, 0.8125}, b, 1e-9)
}

func TestAbsorb_NoTransientCells(t *testing.T) {
	tm := twoBlockChain(t)
	assign := []int{0, 0, 1, 1, 0, 1}

	lin, err := absorb(context.Background(), tm, assign, []string{"A", "B"}, DefaultEps)
	require.NoError(t, err)

	a, err := lin.Col("A")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 1, 0}, a, 0)
}

func TestAbsorb_Cancelled(t *testing.T) {
	tm := twoBlockChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := absorb(ctx, tm, []int{0, 0, 1, 1, Unassigned, Unassigned},
		[]string{"A", "B"}, DefaultEps)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGPCCA_EndToEnd(t *testing.T) {
	tm := twoBlockChain(t)
	g, err := NewGPCCA(tm,
		WithNumStates(2),
		WithStateLabels(chainLabels),
		WithCellsPerState(2),
	)
	require.NoError(t, err)

	_, err = g.MacrostateAssignment()
	assert.ErrorIs(t, err, ErrNotComputed)

	require.NoError(t, g.ComputeMacrostates(context.Background()))

	assign, err := g.MacrostateAssignment()
	require.NoError(t, err)
	assert.Equal(t, assign[0], assign[1])
	assert.Equal(t, assign[2], assign[3])
	assert.NotEqual(t, assign[0], assign[2])
	assert.Equal(t, assign[0], assign[4], "cell 4 leans toward the first block")
	assert.Equal(t, assign[2], assign[5], "cell 5 leans toward the second block")

	names, err := g.MacrostateNames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, names)

	chi, err := g.Memberships()
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		sum := 0.0
		for j := 0; j < 2; j++ {
			sum += chi.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	// Both blocks are absorbing, so the coarse-grained matrix is the
	// identity and both macrostates pass the stability threshold.
	coarse, err := g.CoarseTransition()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, coarse.At(0, 0), 1e-6)
	assert.InDelta(t, 1.0, coarse.At(1, 1), 1e-6)

	require.NoError(t, g.ComputeTerminalStates())
	terminal, err := g.TerminalStates()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, terminal)

	lin, err := g.AbsorptionProbabilities(context.Background())
	require.NoError(t, err)

	a, err := lin.Col("A")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 0.6875, 0.1875}, a, 1e-6)
}

func TestGPCCA_SetTerminalStates(t *testing.T) {
	tm := twoBlockChain(t)
	g, err := NewGPCCA(tm, WithNumStates(2), WithStateLabels(chainLabels))
	require.NoError(t, err)

	assert.ErrorIs(t, g.SetTerminalStates("A"), ErrNotComputed)

	require.NoError(t, g.ComputeMacrostates(context.Background()))
	assert.ErrorIs(t, g.SetTerminalStates("Gamma"), ErrUnknownState)

	require.NoError(t, g.SetTerminalStates("A"))
	terminal, err := g.TerminalStates()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, terminal)
}

func TestGPCCA_Errors(t *testing.T) {
	_, err := NewGPCCA(nil)
	assert.ErrorIs(t, err, ErrNilTransition)

	tm := twoBlockChain(t)
	_, err = NewGPCCA(tm, WithStateLabels([]string{"A"}))
	assert.ErrorIs(t, err, ErrBadLabels)

	g, err := NewGPCCA(tm, WithNumStates(10))
	require.NoError(t, err)
	assert.ErrorIs(t, g.ComputeMacrostates(context.Background()), ErrBadNumStates)

	assert.Panics(t, func() { WithNumStates(0) })
	assert.Panics(t, func() { WithStabilityThreshold(1.5) })
}

func TestCFLARE_EndToEnd(t *testing.T) {
	tm := twoBlockChain(t)
	c, err := NewCFLARE(tm, WithNumStates(2), WithStateLabels(chainLabels))
	require.NoError(t, err)

	require.NoError(t, c.ComputeMacrostates(context.Background()))

	assign, err := c.MacrostateAssignment()
	require.NoError(t, err)

	// Left-eigenvector mass lives on the absorbing blocks only, so the
	// transient cells never pass the recurrent filter.
	assert.Equal(t, Unassigned, assign[4])
	assert.Equal(t, Unassigned, assign[5])
	assert.Equal(t, assign[0], assign[1])
	assert.Equal(t, assign[2], assign[3])
	assert.NotEqual(t, assign[0], assign[2])

	_, err = c.TerminalStates()
	assert.ErrorIs(t, err, ErrNotComputed)

	require.NoError(t, c.ComputeTerminalStates())
	terminal, err := c.TerminalStates()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, terminal)

	lin, err := c.AbsorptionProbabilities(context.Background())
	require.NoError(t, err)

	a, err := lin.Col("A")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 0.6875, 0.1875}, a, 1e-6)
}

func TestCFLARE_Errors(t *testing.T) {
	_, err := NewCFLARE(nil)
	assert.ErrorIs(t, err, ErrNilTransition)

	tm := twoBlockChain(t)
	c, err := NewCFLARE(tm, WithNumStates(2))
	require.NoError(t, err)

	_, err = c.AbsorptionProbabilities(context.Background())
	assert.ErrorIs(t, err, ErrNotComputed)
}

func TestQuantile(t *testing.T) {
	xs := []float64{5, 1, 4, 2, 3}

	assert.Equal(t, 1.0, quantile(xs, 0))
	assert.Equal(t, 5.0, quantile(xs, 0.99))
	assert.Equal(t, 3.0, quantile(xs, 0.5))
}

func TestStateNames(t *testing.T) {
	assign := []int{0, 0, 1, 1}

	assert.Equal(t, []string{"1", "2"}, stateNames(assign, 2, nil))
	assert.Equal(t, []string{"X", "Y"},
		stateNames(assign, 2, []string{"X", "X", "Y", "Y"}))
	assert.Equal(t, []string{"X", "X_2"},
		stateNames(assign, 2, []string{"X", "X", "X", "X"}))
}
