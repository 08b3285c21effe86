package cellgraph

import (
	"fmt"
	"math"
	"sort"
)

// NeighborOptions configures ComputeNeighbors.
//
// K     – neighbors per cell (1 ≤ K < n_cells).
// Eps   – numeric tolerance carried into the Connectivities invariants.
type NeighborOptions struct {
	K   int
	Eps float64
}

// NeighborOption is a functional option for ComputeNeighbors.
type NeighborOption func(*NeighborOptions)

// WithK sets the neighbor count. Validation happens in ComputeNeighbors
// because the bound depends on the dataset size.
func WithK(k int) NeighborOption {
	return func(o *NeighborOptions) { o.K = k }
}

// WithNeighborEps overrides the numeric tolerance.
func WithNeighborEps(eps float64) NeighborOption {
	if math.IsNaN(eps) || math.IsInf(eps, 0) || eps < 0 {
		panic("cellgraph: WithNeighborEps: eps must be finite, non-negative")
	}

	return func(o *NeighborOptions) { o.Eps = eps }
}

// DefaultNeighborOptions returns the documented defaults: K=15,
// Eps=DefaultEpsilon.
func DefaultNeighborOptions() NeighborOptions {
	return NeighborOptions{K: 15, Eps: DefaultEpsilon}
}

// ComputeNeighbors builds a symmetric k-NN connectivity graph from a
// named embedding and attaches it to the dataset.
//
// Construction:
//  1. Euclidean distances in embedding space (brute force, O(n²·d));
//  2. per cell, keep the K nearest neighbors;
//  3. Gaussian edge weights w(i,j) = exp(−dist²/σ_i²) with σ_i the
//     distance to cell i's K-th neighbor (local scaling);
//  4. symmetrize by averaging: w ← (w + wᵀ)/2.
//
// Errors: ErrEmbeddingNotFound, ErrBadK.
func (d *Dataset) ComputeNeighbors(embeddingKey string, opts ...NeighborOption) error {
	cfg := DefaultNeighborOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	emb, err := d.Embedding(embeddingKey)
	if err != nil {
		return err
	}
	n := d.NumCells()
	if cfg.K < 1 || cfg.K >= n {
		return fmt.Errorf("%w: k=%d with %d cells", ErrBadK, cfg.K, n)
	}

	_, dim := emb.Dims()

	// Per-cell nearest-neighbor search. The half-matrix of distances is
	// recomputed per row to keep memory at O(n) for large n.
	type nb struct {
		j    int
		dist float64
	}
	weightAt := make([]map[int]float64, n)
	for i := range weightAt {
		weightAt[i] = make(map[int]float64, cfg.K)
	}

	rowDist := make([]nb, 0, n-1)
	for i := 0; i < n; i++ {
		rowDist = rowDist[:0]
		xi := emb.RawRowView(i)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			xj := emb.RawRowView(j)
			var s float64
			for t := 0; t < dim; t++ {
				diff := xi[t] - xj[t]
				s += diff * diff
			}
			rowDist = append(rowDist, nb{j: j, dist: math.Sqrt(s)})
		}
		sort.Slice(rowDist, func(a, b int) bool {
			if rowDist[a].dist != rowDist[b].dist {
				return rowDist[a].dist < rowDist[b].dist
			}

			return rowDist[a].j < rowDist[b].j // stable tie-break
		})

		sigma := rowDist[cfg.K-1].dist
		if sigma <= 0 {
			sigma = 1 // duplicate points collapse to unit weight
		}
		for _, nn := range rowDist[:cfg.K] {
			weightAt[i][nn.j] = math.Exp(-(nn.dist * nn.dist) / (sigma * sigma))
		}
	}

	// Symmetrize by averaging and emit triplets for both orientations.
	var rows, cols []int
	var weights []float64
	for i := 0; i < n; i++ {
		for j, w := range weightAt[i] {
			if j < i {
				if _, mutual := weightAt[j][i]; mutual {
					continue // already emitted when visiting (j,i)
				}
			}
			avg := (w + weightAt[j][i]) / 2
			if avg <= cfg.Eps {
				continue
			}
			rows = append(rows, i, j)
			cols = append(cols, j, i)
			weights = append(weights, avg, avg)
		}
	}

	conn, err := NewConnectivities(n, rows, cols, weights, cfg.Eps)
	if err != nil {
		return err
	}
	d.conn = conn

	return nil
}
