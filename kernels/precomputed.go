package kernels

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// PrecomputedKernel wraps a transition matrix computed elsewhere. It
// validates row-stochasticity on Compute; WithRenormalize relaxes the
// check by rescaling rows with positive mass first.
type PrecomputedKernel struct {
	src         mat.Matrix
	ready       *TransitionMatrix // set when constructed from a TransitionMatrix
	tm          *TransitionMatrix
	renormalize bool
	eps         float64
	dropTol     float64
}

// PrecomputedOption configures a PrecomputedKernel.
type PrecomputedOption func(*PrecomputedKernel)

// WithRenormalize rescales rows to sum to one before validation.
func WithRenormalize() PrecomputedOption {
	return func(k *PrecomputedKernel) { k.renormalize = true }
}

// WithDropTolerance drops entries at or below tol during compression.
func WithDropTolerance(tol float64) PrecomputedOption {
	return func(k *PrecomputedKernel) { k.dropTol = tol }
}

// NewPrecomputedKernel wraps a dense (or any gonum) matrix.
func NewPrecomputedKernel(m mat.Matrix, opts ...PrecomputedOption) *PrecomputedKernel {
	k := &PrecomputedKernel{src: m, eps: DefaultEpsilon}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// NewPrecomputedFromTransition wraps an already validated matrix, e.g.
// one produced by another kernel in a previous session.
func NewPrecomputedFromTransition(tm *TransitionMatrix) *PrecomputedKernel {
	return &PrecomputedKernel{ready: tm, eps: DefaultEpsilon}
}

// Compute validates (and optionally renormalizes) the wrapped matrix.
func (k *PrecomputedKernel) Compute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.ready != nil {
		k.tm = k.ready

		return nil
	}
	if k.src == nil {
		return ErrBadShape
	}

	src := k.src
	if k.renormalize {
		r, c := src.Dims()
		scaled := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			row := make([]float64, c)
			for j := 0; j < c; j++ {
				row[j] = src.At(i, j)
			}
			if !normalizeRow(row) {
				row = make([]float64, c)
				if i < c {
					row[i] = 1 // zero-mass row becomes a self-loop
				}
			}
			scaled.SetRow(i, row)
		}
		src = scaled
	}

	tm, err := NewTransitionFromDense(src, k.eps, k.dropTol)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the wrapped matrix, nil before Compute.
func (k *PrecomputedKernel) Transition() *TransitionMatrix { return k.tm }
