package kernels

import (
	"context"
	"fmt"
	"math"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// PseudotimeKernel directs the random walk along a pseudotemporal
// ordering: connectivity edges i→j with pseudotime(j) < pseudotime(i)
// are removed (Frac=0, hard threshold) or damped by Frac, then each row
// is renormalized. Backward mode penalizes edges that *increase*
// pseudotime instead.
type PseudotimeKernel struct {
	ds *cellgraph.Dataset
	tm *TransitionMatrix

	timeKey  string
	frac     float64
	backward bool
	eps      float64

	// pseudotime may be injected by CytoTRACEKernel instead of being
	// read from the dataset.
	injected []float64
}

// PseudotimeOption configures a PseudotimeKernel.
type PseudotimeOption func(*PseudotimeKernel)

// WithTimeKey overrides the annotation key holding pseudotime.
func WithTimeKey(key string) PseudotimeOption {
	return func(k *PseudotimeKernel) { k.timeKey = key }
}

// WithFrac sets the damping factor for against-time edges; must be in
// [0,1), panics otherwise (programmer error).
func WithFrac(frac float64) PseudotimeOption {
	if frac < 0 || frac >= 1 || math.IsNaN(frac) {
		panic("kernels: WithFrac: frac must be in [0,1)")
	}

	return func(k *PseudotimeKernel) { k.frac = frac }
}

// WithPseudotimeBackward penalizes forward-in-time edges instead.
func WithPseudotimeBackward() PseudotimeOption {
	return func(k *PseudotimeKernel) { k.backward = true }
}

// NewPseudotimeKernel constructs the kernel with defaults: annotation
// "pseudotime", hard threshold, forward direction.
func NewPseudotimeKernel(ds *cellgraph.Dataset, opts ...PseudotimeOption) *PseudotimeKernel {
	k := &PseudotimeKernel{
		ds:      ds,
		timeKey: cellgraph.PseudotimeKey,
		frac:    DefaultPseudotimeFrac,
		eps:     DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Compute biases the connectivity rows against the pseudotime ordering.
// A cell all of whose edges are removed becomes a self-loop (a local
// pseudotime maximum; for forward chains these are candidate terminal
// cells).
func (k *PseudotimeKernel) Compute(ctx context.Context) error {
	if k.ds == nil {
		return ErrNilDataset
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := k.ds.Conn()
	if err != nil {
		return ErrNoConnectivities
	}

	pt := k.injected
	if pt == nil {
		pt, err = k.ds.NumericObs(k.timeKey)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrNoPseudotime, k.timeKey)
		}
	}

	n := conn.N()
	rows := make([]RowEntries, n)
	for i := 0; i < n; i++ {
		cols, weights := conn.Row(i)
		var keptCols []int
		var keptProbs []float64
		for t, j := range cols {
			against := pt[j] < pt[i]
			if k.backward {
				against = pt[j] > pt[i]
			}
			w := weights[t]
			if against {
				w *= k.frac
			}
			if w > 0 {
				keptCols = append(keptCols, j)
				keptProbs = append(keptProbs, w)
			}
		}
		if len(keptCols) == 0 || !normalizeRow(keptProbs) {
			rows[i] = selfLoopRow(i)

			continue
		}
		rows[i] = RowEntries{Cols: keptCols, Probs: keptProbs}
	}

	tm, err := NewTransition(rows, k.eps)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the computed matrix, nil before Compute.
func (k *PseudotimeKernel) Transition() *TransitionMatrix { return k.tm }
