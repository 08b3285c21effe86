package external

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/kernels"
)

// WOTKernel builds a transition matrix from an experimental time
// course: cells of each time point are coupled to cells of the next
// one by an entropic transport solve over embedding distances, with
// source marginals optionally weighted by per-cell growth rates. Cells
// of the final time point self-loop.
type WOTKernel struct {
	ds   *cellgraph.Dataset
	opts Options
	tm   *kernels.TransitionMatrix
}

// NewWOT builds the kernel over ds.
func NewWOT(ds *cellgraph.Dataset, opts ...Option) (*WOTKernel, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &WOTKernel{ds: ds, opts: cfg}, nil
}

// Compute couples consecutive time points pairwise.
//
// Steps:
//  1. group cells by their time-point annotation, sorted ascending;
//  2. for each consecutive pair, solve the transport problem between
//     the groups (growth-weighted source, uniform target);
//  3. scatter each row-normalized coupling row into the full matrix;
//  4. last-day cells get a self-loop.
func (k *WOTKernel) Compute(ctx context.Context) error {
	times, err := k.ds.NumericObs(k.opts.TimeKey)
	if err != nil {
		return err
	}
	emb, err := k.ds.Embedding(k.opts.EmbeddingKey)
	if err != nil {
		return err
	}

	var growth []float64
	if k.opts.GrowthKey != "" {
		if growth, err = k.ds.NumericObs(k.opts.GrowthKey); err != nil {
			return err
		}
	}

	// 1) Cells per time point, ascending; non-finite times excluded.
	groups := make(map[float64][]int)
	for i, tp := range times {
		if math.IsNaN(tp) || math.IsInf(tp, 0) {
			continue
		}
		groups[tp] = append(groups[tp], i)
	}
	points := make([]float64, 0, len(groups))
	for tp := range groups {
		points = append(points, tp)
	}
	sort.Float64s(points)
	if len(points) < 2 {
		return ErrSingleTimePoint
	}

	n := k.ds.NumCells()
	rows := make([]kernels.RowEntries, n)

	for p := 0; p+1 < len(points); p++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst := groups[points[p]], groups[points[p+1]]

		source := uniform(len(src))
		if growth != nil {
			weights := make([]float64, len(src))
			for t, i := range src {
				weights[t] = growth[i]
			}
			if source, err = normalized(weights); err != nil {
				return err
			}
		}

		cost := pairwiseSqDist(pickEmbRows(emb, src), pickEmbRows(emb, dst))
		coupling, err := sinkhorn(ctx, source, uniform(len(dst)), cost, k.opts)
		if err != nil {
			return err
		}
		rowNormalize(coupling)

		// 3) Scatter into full-matrix coordinates.
		for t, i := range src {
			var cols []int
			var probs []float64
			for u, j := range dst {
				if p := coupling.At(t, u); p > k.opts.DropTolerance {
					cols = append(cols, j)
					probs = append(probs, p)
				}
			}
			rows[i] = kernels.RowEntries{Cols: cols, Probs: probs}
		}
	}

	// 4) Self-loops: the last time point and any cell without a finite
	// time annotation.
	for i := 0; i < n; i++ {
		if rows[i].Cols == nil {
			rows[i] = kernels.RowEntries{Cols: []int{i}, Probs: []float64{1}}
		}
	}

	tm, err := kernels.NewTransition(rows, kernels.DefaultEpsilon)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the computed matrix (nil before Compute).
func (k *WOTKernel) Transition() *kernels.TransitionMatrix { return k.tm }

func pickEmbRows(m *mat.Dense, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for t, i := range rows {
		out.SetRow(t, m.RawRowView(i))
	}

	return out
}
