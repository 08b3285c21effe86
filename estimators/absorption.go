package estimators

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
	"github.com/Oisin-M/cellrank/lineage"
)

// absorb computes fate probabilities for an absorbing Markov chain.
// assign maps each cell to a terminal-state index (Unassigned for
// transient cells); names holds one name per terminal state.
//
// Transient rows solve (I - Q) F = R B where Q is the
// transient-to-transient block, R the transient-to-anchor block and B
// the anchor-to-state indicator. Anchor cells get an exact unit vector
// at their own state.
func absorb(ctx context.Context, tm *kernels.TransitionMatrix, assign []int, names []string, eps float64) (*lineage.Lineage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoTerminalStates
	}

	n, k := tm.N(), len(names)
	var transient []int
	tPos := make([]int, n) // cell -> position within the transient block
	for i := 0; i < n; i++ {
		if assign[i] == Unassigned {
			tPos[i] = len(transient)
			transient = append(transient, i)
		} else {
			tPos[i] = -1
		}
	}

	probs := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		if s := assign[i]; s != Unassigned {
			probs.Set(i, s, 1)
		}
	}
	if len(transient) == 0 {
		return lineage.New(probs, names, nil)
	}

	// 1) Assemble A = I - Q and the state-summed boundary RB.
	nt := len(transient)
	a := mat.NewDense(nt, nt, nil)
	rb := mat.NewDense(nt, k, nil)
	for ti, i := range transient {
		a.Set(ti, ti, 1)
		cols, vals := tm.Row(i)
		for e, j := range cols {
			if s := assign[j]; s != Unassigned {
				rb.Set(ti, s, rb.At(ti, s)+vals[e])
			} else {
				a.Set(ti, tPos[j], a.At(ti, tPos[j])-vals[e])
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2) Solve for the transient fate probabilities.
	var lu mat.LU
	lu.Factorize(a)
	f := mat.NewDense(nt, k, nil)
	if err := lu.SolveTo(f, false, rb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	// 3) Clip solver noise and renormalize each transient row.
	for ti, i := range transient {
		row := f.RawRowView(ti)
		sum := 0.0
		for s := range row {
			v := row[s]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite probability for cell %d",
					ErrSingularSystem, i)
			}
			if v < 0 {
				v = 0
			}
			sum += v
			row[s] = v
		}
		if sum <= eps {
			return nil, fmt.Errorf("%w: cell %d reaches no terminal state",
				ErrSingularSystem, i)
		}
		for s := range row {
			probs.Set(i, s, row[s]/sum)
		}
	}

	return lineage.New(probs, names, nil)
}
