package external

import (
	"context"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/kernels"
)

// StationaryOTKernel couples every cell to a stationary target
// distribution over the whole population: the coupling of an entropic
// transport problem between the uniform source and a (possibly
// growth-weighted) target, under squared embedding distances. Row
// normalization of the coupling yields the transition matrix.
type StationaryOTKernel struct {
	ds   *cellgraph.Dataset
	opts Options
	tm   *kernels.TransitionMatrix
}

// NewStationaryOT builds the kernel over ds.
func NewStationaryOT(ds *cellgraph.Dataset, opts ...Option) (*StationaryOTKernel, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &StationaryOTKernel{ds: ds, opts: cfg}, nil
}

// Compute solves the transport problem and row-normalizes the
// coupling.
func (k *StationaryOTKernel) Compute(ctx context.Context) error {
	emb, err := k.ds.Embedding(k.opts.EmbeddingKey)
	if err != nil {
		return err
	}
	n := k.ds.NumCells()

	source := uniform(n)
	target := source
	if k.opts.GrowthKey != "" {
		growth, err := k.ds.NumericObs(k.opts.GrowthKey)
		if err != nil {
			return err
		}
		if target, err = normalized(growth); err != nil {
			return err
		}
	}

	cost := pairwiseSqDist(emb, emb)
	coupling, err := sinkhorn(ctx, source, target, cost, k.opts)
	if err != nil {
		return err
	}

	rowNormalize(coupling)
	tm, err := kernels.NewTransitionFromDense(coupling, kernels.DefaultEpsilon, k.opts.DropTolerance)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the computed matrix (nil before Compute).
func (k *StationaryOTKernel) Transition() *kernels.TransitionMatrix { return k.tm }
