package kernels

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TransitionMatrix is a row-stochastic n×n matrix over cells in
// compressed sparse row form. Column indices within a row are strictly
// ascending; every row sums to one within the construction epsilon.
type TransitionMatrix struct {
	n       int
	indptr  []int
	indices []int
	data    []float64
}

// RowEntries is one sparse row handed to NewTransition: parallel slices
// of column indices and probabilities. Cols need not be sorted.
type RowEntries struct {
	Cols  []int
	Probs []float64
}

// NewTransition assembles and validates a transition matrix from
// per-row sparse entries.
//
// Validation per row (first failure wins): index bounds (ErrBadShape),
// finiteness (ErrNaNInf), non-negativity (ErrNegativeEntry), row sum
// within eps of one (ErrNotStochastic). An empty row is invalid; callers
// that can produce dangling cells must emit an explicit self-loop.
func NewTransition(rows []RowEntries, eps float64) (*TransitionMatrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: zero rows", ErrBadShape)
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	tm := &TransitionMatrix{
		n:      n,
		indptr: make([]int, n+1),
	}
	type pair struct {
		col int
		p   float64
	}
	scratch := make([]pair, 0, 16)
	for i, row := range rows {
		if len(row.Cols) != len(row.Probs) {
			return nil, fmt.Errorf("%w: row %d has %d cols and %d probs", ErrBadShape, i, len(row.Cols), len(row.Probs))
		}
		if len(row.Cols) == 0 {
			return nil, fmt.Errorf("%w: row %d is empty", ErrNotStochastic, i)
		}

		scratch = scratch[:0]
		sum := 0.0
		for t, j := range row.Cols {
			p := row.Probs[t]
			if j < 0 || j >= n {
				return nil, fmt.Errorf("%w: row %d references column %d of %d", ErrBadShape, i, j, n)
			}
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, fmt.Errorf("%w: at (%d,%d)", ErrNaNInf, i, j)
			}
			if p < 0 {
				return nil, fmt.Errorf("%w: %g at (%d,%d)", ErrNegativeEntry, p, i, j)
			}
			sum += p
			if p > 0 {
				scratch = append(scratch, pair{col: j, p: p})
			}
		}
		if math.Abs(sum-1) > eps {
			return nil, fmt.Errorf("%w: row %d sums to %g", ErrNotStochastic, i, sum)
		}

		sort.Slice(scratch, func(a, b int) bool { return scratch[a].col < scratch[b].col })
		for _, e := range scratch {
			tm.indices = append(tm.indices, e.col)
			tm.data = append(tm.data, e.p)
		}
		tm.indptr[i+1] = len(tm.indices)
	}

	return tm, nil
}

// NewTransitionFromDense validates a dense row-stochastic matrix and
// compresses it. Entries at or below dropTol are dropped before
// validation, so each row must still sum to one within eps after the
// drop; a row whose mass sits in dropped entries is rejected with
// ErrNotStochastic (pass 0 to keep everything non-zero).
func NewTransitionFromDense(m mat.Matrix, eps, dropTol float64) (*TransitionMatrix, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: %d×%d is not square", ErrBadShape, r, c)
	}
	rows := make([]RowEntries, r)
	for i := 0; i < r; i++ {
		var cols []int
		var probs []float64
		for j := 0; j < c; j++ {
			if p := m.At(i, j); p > dropTol || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				cols = append(cols, j)
				probs = append(probs, p)
			}
		}
		rows[i] = RowEntries{Cols: cols, Probs: probs}
	}

	return NewTransition(rows, eps)
}

// N returns the number of cells.
func (t *TransitionMatrix) N() int { return t.n }

// NNZ returns the number of stored entries.
func (t *TransitionMatrix) NNZ() int { return len(t.data) }

// At returns P(i→j), 0 when the entry is not stored.
func (t *TransitionMatrix) At(i, j int) float64 {
	if i < 0 || i >= t.n || j < 0 || j >= t.n {
		return 0
	}
	lo, hi := t.indptr[i], t.indptr[i+1]
	p := sort.SearchInts(t.indices[lo:hi], j) + lo
	if p < hi && t.indices[p] == j {
		return t.data[p]
	}

	return 0
}

// Row returns the stored columns and probabilities of row i. The slices
// alias internal storage; callers must not modify them.
func (t *TransitionMatrix) Row(i int) (cols []int, probs []float64) {
	lo, hi := t.indptr[i], t.indptr[i+1]

	return t.indices[lo:hi], t.data[lo:hi]
}

// RowSum returns the sum of row i (≈1 by construction; exposed for tests
// and for estimators that renormalize submatrices).
func (t *TransitionMatrix) RowSum(i int) float64 {
	s := 0.0
	for p := t.indptr[i]; p < t.indptr[i+1]; p++ {
		s += t.data[p]
	}

	return s
}

// Dense expands to a gonum dense matrix.
func (t *TransitionMatrix) Dense() *mat.Dense {
	out := mat.NewDense(t.n, t.n, nil)
	for i := 0; i < t.n; i++ {
		for p := t.indptr[i]; p < t.indptr[i+1]; p++ {
			out.Set(i, t.indices[p], t.data[p])
		}
	}

	return out
}

// Propagate applies one forward step to a distribution: y = Pᵀx.
// x and the result are length-n vectors.
func (t *TransitionMatrix) Propagate(x []float64) ([]float64, error) {
	if len(x) != t.n {
		return nil, fmt.Errorf("%w: vector length %d for %d cells", ErrBadShape, len(x), t.n)
	}
	y := make([]float64, t.n)
	for i := 0; i < t.n; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		for p := t.indptr[i]; p < t.indptr[i+1]; p++ {
			y[t.indices[p]] += xi * t.data[p]
		}
	}

	return y, nil
}

// Expectation applies one step to a per-cell statistic: y = Px,
// i.e. y[i] is the expected value of x after one transition from i.
func (t *TransitionMatrix) Expectation(x []float64) ([]float64, error) {
	if len(x) != t.n {
		return nil, fmt.Errorf("%w: vector length %d for %d cells", ErrBadShape, len(x), t.n)
	}
	y := make([]float64, t.n)
	for i := 0; i < t.n; i++ {
		s := 0.0
		for p := t.indptr[i]; p < t.indptr[i+1]; p++ {
			s += t.data[p] * x[t.indices[p]]
		}
		y[i] = s
	}

	return y, nil
}

// normalizeRow scales probs in place to sum to one. Returns false when
// the row mass is zero or non-finite, leaving probs untouched.
func normalizeRow(probs []float64) bool {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return false
	}
	for t := range probs {
		probs[t] /= sum
	}

	return true
}

// selfLoopRow is the canonical row for a dangling cell: stay in place.
func selfLoopRow(i int) RowEntries {
	return RowEntries{Cols: []int{i}, Probs: []float64{1}}
}
