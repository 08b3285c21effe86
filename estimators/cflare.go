package estimators

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
	"github.com/Oisin-M/cellrank/lineage"
)

// CFLARE (Clustering and Filtering of Left And Right Eigenvectors)
// finds recurrent macrostates without a fuzzy rotation: cells carrying
// high left-eigenvector mass are kept as recurrent, then k-means++ on
// their scaled right-eigenvector coordinates splits them into states.
// Every CFLARE macrostate is terminal.
type CFLARE struct {
	tm   *kernels.TransitionMatrix
	opts Options

	assign   []int
	names    []string
	terminal bool
}

// NewCFLARE builds a CFLARE estimator over a computed transition
// matrix.
func NewCFLARE(tm *kernels.TransitionMatrix, opts ...Option) (*CFLARE, error) {
	if tm == nil {
		return nil, ErrNilTransition
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.StateLabels != nil && len(cfg.StateLabels) != tm.N() {
		return nil, fmt.Errorf("%w: %d labels for %d cells",
			ErrBadLabels, len(cfg.StateLabels), tm.N())
	}

	return &CFLARE{tm: tm, opts: cfg}, nil
}

// ComputeMacrostates filters recurrent cells and clusters them.
//
// Steps:
//  1. eigendecompose, keeping left and right vectors of the top-k pairs;
//  2. recurrent filter: a cell stays if its |left-eigenvector| entry
//     reaches the mass quantile in any of the k components;
//  3. features: right-eigenvector rows of recurrent cells, each column
//     scaled by its eigenvalue modulus;
//  4. k-means++ seeding plus Lloyd refinement into k clusters.
func (c *CFLARE) ComputeMacrostates(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, k := c.tm.N(), c.opts.NumStates
	if k > n {
		return fmt.Errorf("%w: %d states for %d cells", ErrBadNumStates, k, n)
	}

	// 1) Spectrum with left vectors.
	sp, err := decompose(c.tm, k, true)
	if err != nil {
		return err
	}

	// 2) Recurrent-cell filter on left-eigenvector mass.
	recurrent := make([]bool, n)
	absCol := make([]float64, n)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			absCol[i] = math.Abs(sp.left.At(i, j))
		}
		cut := quantile(absCol, c.opts.MassQuantile)
		for i := 0; i < n; i++ {
			if absCol[i] >= cut && absCol[i] > c.opts.Eps {
				recurrent[i] = true
			}
		}
	}
	var cells []int
	for i, ok := range recurrent {
		if ok {
			cells = append(cells, i)
		}
	}
	if len(cells) < k {
		return fmt.Errorf("%w: %d recurrent cells for %d states",
			ErrNoRecurrentCells, len(cells), k)
	}

	// 3) Scaled right-eigenvector features of the recurrent cells.
	features := mat.NewDense(len(cells), k, nil)
	for t, i := range cells {
		for j := 0; j < k; j++ {
			scale := math.Hypot(real(sp.values[j]), imag(sp.values[j]))
			features.Set(t, j, sp.right.At(i, j)*scale)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// 4) Cluster.
	clusters := kMeans(features, k, c.opts.KMeansIterations, c.opts.Seed)

	assign := make([]int, n)
	for i := range assign {
		assign[i] = Unassigned
	}
	for t, i := range cells {
		assign[i] = clusters[t]
	}

	c.assign = assign
	c.names = stateNames(assign, k, c.opts.StateLabels)
	c.terminal = false

	return nil
}

// MacrostateAssignment returns the per-cell macrostate index
// (Unassigned for non-recurrent cells).
func (c *CFLARE) MacrostateAssignment() ([]int, error) {
	if c.assign == nil {
		return nil, ErrNotComputed
	}

	return append([]int(nil), c.assign...), nil
}

// MacrostateNames returns the macrostate names in index order.
func (c *CFLARE) MacrostateNames() ([]string, error) {
	if c.names == nil {
		return nil, ErrNotComputed
	}

	return append([]string(nil), c.names...), nil
}

// ComputeTerminalStates marks every macrostate terminal; CFLARE only
// discovers recurrent structure.
func (c *CFLARE) ComputeTerminalStates() error {
	if c.assign == nil {
		return ErrNotComputed
	}
	c.terminal = true

	return nil
}

// TerminalStates returns the terminal-state names.
func (c *CFLARE) TerminalStates() ([]string, error) {
	if !c.terminal {
		return nil, ErrNotComputed
	}

	return append([]string(nil), c.names...), nil
}

// AbsorptionProbabilities solves the absorbing chain with the
// recurrent cells as anchors.
func (c *CFLARE) AbsorptionProbabilities(ctx context.Context) (*lineage.Lineage, error) {
	if !c.terminal {
		return nil, ErrNotComputed
	}

	return absorb(ctx, c.tm, c.assign, c.names, c.opts.Eps)
}

// kMeans clusters the rows of features into k groups with k-means++
// seeding and at most iters Lloyd sweeps.
func kMeans(features *mat.Dense, k, iters int, seed int64) []int {
	n, d := features.Dims()
	rng := rand.New(rand.NewSource(seed))

	// k-means++ seeding: first center uniform, the rest proportional to
	// squared distance from the nearest chosen center.
	centers := mat.NewDense(k, d, nil)
	centers.SetRow(0, features.RawRowView(rng.Intn(n)))
	dist := make([]float64, n)
	for c := 1; c < k; c++ {
		total := 0.0
		for i := 0; i < n; i++ {
			best := math.Inf(1)
			for p := 0; p < c; p++ {
				if d2 := sqDist(features.RawRowView(i), centers.RawRowView(p)); d2 < best {
					best = d2
				}
			}
			dist[i] = best
			total += best
		}
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			for i := 0; i < n; i++ {
				r -= dist[i]
				if r <= 0 {
					pick = i

					break
				}
			}
		} else {
			pick = rng.Intn(n)
		}
		centers.SetRow(c, features.RawRowView(pick))
	}

	assign := make([]int, n)
	counts := make([]int, k)
	for it := 0; it < iters; it++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for p := 0; p < k; p++ {
				if d2 := sqDist(features.RawRowView(i), centers.RawRowView(p)); d2 < bestDist {
					best, bestDist = p, d2
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && it > 0 {
			break
		}

		centers.Zero()
		for p := range counts {
			counts[p] = 0
		}
		for i := 0; i < n; i++ {
			p := assign[i]
			counts[p]++
			row := features.RawRowView(i)
			for j := 0; j < d; j++ {
				centers.Set(p, j, centers.At(p, j)+row[j])
			}
		}
		for p := 0; p < k; p++ {
			if counts[p] == 0 {
				// Reseed an empty cluster on a random point.
				centers.SetRow(p, features.RawRowView(rng.Intn(n)))

				continue
			}
			for j := 0; j < d; j++ {
				centers.Set(p, j, centers.At(p, j)/float64(counts[p]))
			}
		}
	}

	return assign
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for t := range a {
		diff := a[t] - b[t]
		sum += diff * diff
	}

	return sum
}
