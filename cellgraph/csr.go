package cellgraph

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Connectivities is the symmetric cell-cell neighbor graph in compressed
// sparse row form. Within each row, column indices are strictly
// ascending, so iteration order is deterministic.
//
// Invariants (enforced by the constructors):
//   - all stored weights finite and non-negative;
//   - zero diagonal (no self-edges);
//   - symmetric within the given epsilon.
type Connectivities struct {
	n       int
	indptr  []int // len n+1; row i spans [indptr[i], indptr[i+1])
	indices []int // column index per stored entry
	data    []float64
}

// coo is a single triplet used during construction.
type coo struct {
	row, col int
	w        float64
}

// NewConnectivities builds a CSR graph from triplets. Triplets may
// arrive in any order; duplicates within a row are summed. Symmetry is
// checked after assembly.
func NewConnectivities(n int, rows, cols []int, weights []float64, eps float64) (*Connectivities, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrDimMismatch, n)
	}
	if len(rows) != len(cols) || len(rows) != len(weights) {
		return nil, fmt.Errorf("%w: triplet slices differ in length", ErrDimMismatch)
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	entries := make([]coo, 0, len(rows))
	for t := range rows {
		i, j, w := rows[t], cols[t], weights[t]
		if i < 0 || i >= n || j < 0 || j >= n {
			return nil, fmt.Errorf("%w: triplet (%d,%d) outside %d×%d", ErrDimMismatch, i, j, n, n)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight at (%d,%d)", ErrNaNInf, i, j)
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: %g at (%d,%d)", ErrNegativeWeight, w, i, j)
		}
		if i == j || w == 0 {
			continue // drop diagonal and explicit zeros
		}
		entries = append(entries, coo{row: i, col: j, w: w})
	}

	c := assemble(n, entries)
	if err := c.checkSymmetric(eps); err != nil {
		return nil, err
	}

	return c, nil
}

// NewConnectivitiesFromDense ingests a dense symmetric matrix, dropping
// the diagonal and entries below eps.
func NewConnectivitiesFromDense(m *mat.Dense, eps float64) (*Connectivities, error) {
	r, cDim := m.Dims()
	if r != cDim {
		return nil, fmt.Errorf("%w: %d×%d matrix is not square", ErrDimMismatch, r, cDim)
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	var rows, cols []int
	var weights []float64
	for i := 0; i < r; i++ {
		for j := 0; j < cDim; j++ {
			if w := m.At(i, j); i != j && w > eps {
				rows = append(rows, i)
				cols = append(cols, j)
				weights = append(weights, w)
			}
		}
	}

	return NewConnectivities(r, rows, cols, weights, eps)
}

// assemble sorts triplets into row-major, column-ascending order, sums
// duplicates and packs the CSR arrays.
func assemble(n int, entries []coo) *Connectivities {
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].row != entries[b].row {
			return entries[a].row < entries[b].row
		}

		return entries[a].col < entries[b].col
	})

	c := &Connectivities{
		n:       n,
		indptr:  make([]int, n+1),
		indices: make([]int, 0, len(entries)),
		data:    make([]float64, 0, len(entries)),
	}
	lastRow, lastCol := -1, -1
	for _, e := range entries {
		if e.row == lastRow && e.col == lastCol {
			c.data[len(c.data)-1] += e.w // duplicate triplet, sum

			continue
		}
		c.indices = append(c.indices, e.col)
		c.data = append(c.data, e.w)
		c.indptr[e.row+1]++
		lastRow, lastCol = e.row, e.col
	}
	for i := 0; i < n; i++ {
		c.indptr[i+1] += c.indptr[i]
	}

	return c
}

// checkSymmetric verifies |w(i,j) − w(j,i)| ≤ eps for every stored entry.
func (c *Connectivities) checkSymmetric(eps float64) error {
	for i := 0; i < c.n; i++ {
		for p := c.indptr[i]; p < c.indptr[i+1]; p++ {
			j := c.indices[p]
			if math.Abs(c.data[p]-c.At(j, i)) > eps {
				return fmt.Errorf("%w: (%d,%d)=%g vs (%d,%d)=%g",
					ErrAsymmetry, i, j, c.data[p], j, i, c.At(j, i))
			}
		}
	}

	return nil
}

// N returns the number of cells.
func (c *Connectivities) N() int { return c.n }

// NNZ returns the number of stored (non-zero) entries.
func (c *Connectivities) NNZ() int { return len(c.data) }

// At returns the weight between cells i and j (0 if absent). Binary
// search over the row keeps it O(log deg).
func (c *Connectivities) At(i, j int) float64 {
	if i < 0 || i >= c.n || j < 0 || j >= c.n {
		return 0
	}
	lo, hi := c.indptr[i], c.indptr[i+1]
	p := sort.SearchInts(c.indices[lo:hi], j) + lo
	if p < hi && c.indices[p] == j {
		return c.data[p]
	}

	return 0
}

// Row returns the neighbor column indices and weights of cell i.
// The returned slices alias internal storage; callers must not modify them.
func (c *Connectivities) Row(i int) (cols []int, weights []float64) {
	lo, hi := c.indptr[i], c.indptr[i+1]

	return c.indices[lo:hi], c.data[lo:hi]
}

// Degree returns the number of neighbors of cell i.
func (c *Connectivities) Degree(i int) int { return c.indptr[i+1] - c.indptr[i] }

// Dense expands the graph into a gonum dense matrix.
func (c *Connectivities) Dense() *mat.Dense {
	out := mat.NewDense(c.n, c.n, nil)
	for i := 0; i < c.n; i++ {
		for p := c.indptr[i]; p < c.indptr[i+1]; p++ {
			out.Set(i, c.indices[p], c.data[p])
		}
	}

	return out
}
