// Package kernels: Kernel contract, sentinel errors, shared numeric
// defaults. Individual kernels live in their own files; the transition
// matrix in transition.go.
package kernels

import (
	"context"
	"errors"
)

// Numeric defaults shared by all kernels.
const (
	// DefaultEpsilon is the tolerance for row-stochasticity checks.
	DefaultEpsilon = 1e-9

	// DefaultSoftmaxScale is the inverse temperature applied to cosine
	// similarities in the velocity kernel.
	DefaultSoftmaxScale = 4.0

	// DefaultPseudotimeFrac is the damping factor applied to edges that
	// run against pseudotime. 0 removes them (hard threshold).
	DefaultPseudotimeFrac = 0.0

	// DefaultNumCorrelatedGenes is how many top-correlated genes the
	// CytoTRACE score averages over.
	DefaultNumCorrelatedGenes = 200
)

// Sentinel errors for kernel computation.
var (
	// ErrNilDataset indicates a kernel constructed over a nil dataset.
	ErrNilDataset = errors.New("kernels: dataset is nil")

	// ErrNotComputed indicates Transition() was called before Compute.
	ErrNotComputed = errors.New("kernels: transition matrix not computed yet")

	// ErrNoConnectivities indicates the dataset carries no neighbor graph.
	ErrNoConnectivities = errors.New("kernels: dataset has no connectivity graph")

	// ErrNoVelocity indicates the dataset lacks the velocity layer.
	ErrNoVelocity = errors.New("kernels: velocity layer not found")

	// ErrNoPseudotime indicates the pseudotime annotation is missing.
	ErrNoPseudotime = errors.New("kernels: pseudotime annotation not found")

	// ErrBadShape indicates a matrix whose shape does not fit the dataset.
	ErrBadShape = errors.New("kernels: invalid shape")

	// ErrNotStochastic indicates a row that does not sum to one within eps.
	ErrNotStochastic = errors.New("kernels: matrix is not row-stochastic")

	// ErrNegativeEntry indicates a negative transition probability.
	ErrNegativeEntry = errors.New("kernels: negative entry")

	// ErrNaNInf indicates a NaN or ±Inf transition probability.
	ErrNaNInf = errors.New("kernels: NaN or Inf encountered")

	// ErrConstantScore indicates a CytoTRACE score with zero dynamic
	// range, from which no ordering can be derived.
	ErrConstantScore = errors.New("kernels: CytoTRACE score is constant")

	// ErrEmptyCombination indicates Combine was called with no kernels.
	ErrEmptyCombination = errors.New("kernels: empty kernel combination")

	// ErrShapeMismatch indicates combined kernels over different cell sets.
	ErrShapeMismatch = errors.New("kernels: combined kernels differ in size")

	// ErrBadCoefficient indicates a non-finite or negative combination
	// coefficient, or coefficients summing to zero.
	ErrBadCoefficient = errors.New("kernels: invalid combination coefficient")
)

// Kernel is the capability interface shared by every transition-matrix
// estimator in this package and in external/.
//
// Compute is idempotent: a second call recomputes from scratch.
// Transition returns nil until Compute has succeeded.
type Kernel interface {
	// Compute estimates the transition matrix. It must be called before
	// Transition and honors ctx cancellation.
	Compute(ctx context.Context) error

	// Transition returns the computed row-stochastic matrix, or nil if
	// Compute has not run successfully.
	Transition() *TransitionMatrix
}
