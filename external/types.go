// Package external: sentinel errors and Sinkhorn options.
package external

import "errors"

// Tunable defaults for the entropic solvers.
const (
	// DefaultEpsilon is the entropic regularization strength.
	DefaultEpsilon = 0.05

	// DefaultMaxIter bounds the Sinkhorn scaling loop.
	DefaultMaxIter = 1000

	// DefaultTolerance is the marginal-error convergence threshold.
	DefaultTolerance = 1e-8

	// DefaultEmbeddingKey is the embedding used for transport costs.
	DefaultEmbeddingKey = "X_pca"

	// DefaultTimeKey is the numeric annotation holding experimental
	// time points (WOT).
	DefaultTimeKey = "day"

	// DefaultDropTolerance prunes coupling entries below it before
	// row normalization.
	DefaultDropTolerance = 1e-12
)

// Sentinel errors.
var (
	// ErrNilDataset indicates construction without a dataset.
	ErrNilDataset = errors.New("external: nil dataset")

	// ErrNotComputed indicates Transition before a successful Compute.
	ErrNotComputed = errors.New("external: transition matrix not computed")

	// ErrNotConverged indicates a Sinkhorn solve that missed the
	// marginal tolerance within the iteration budget.
	ErrNotConverged = errors.New("external: sinkhorn did not converge")

	// ErrBadMarginal indicates a non-positive or non-finite marginal.
	ErrBadMarginal = errors.New("external: invalid marginal distribution")

	// ErrSingleTimePoint indicates a time course with fewer than two
	// distinct time points.
	ErrSingleTimePoint = errors.New("external: need at least two time points")

	// ErrBadGrowthRates indicates growth rates with non-positive
	// entries.
	ErrBadGrowthRates = errors.New("external: invalid growth rates")
)

// Options configures the OT kernels.
type Options struct {
	// Epsilon is the entropic regularization strength.
	Epsilon float64

	// MaxIter bounds the Sinkhorn loop.
	MaxIter int

	// Tolerance is the marginal-error threshold.
	Tolerance float64

	// EmbeddingKey selects the embedding for transport costs.
	EmbeddingKey string

	// TimeKey is the time-point annotation (WOT only).
	TimeKey string

	// GrowthKey optionally names a numeric annotation with per-cell
	// growth rates; empty means uniform.
	GrowthKey string

	// DropTolerance prunes tiny coupling entries.
	DropTolerance float64
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Epsilon:       DefaultEpsilon,
		MaxIter:       DefaultMaxIter,
		Tolerance:     DefaultTolerance,
		EmbeddingKey:  DefaultEmbeddingKey,
		TimeKey:       DefaultTimeKey,
		DropTolerance: DefaultDropTolerance,
	}
}

// WithEpsilon sets the entropic regularization (must be > 0; panics
// otherwise, programmer error).
func WithEpsilon(eps float64) Option {
	if eps <= 0 {
		panic("external: WithEpsilon: eps must be positive")
	}

	return func(o *Options) { o.Epsilon = eps }
}

// WithMaxIter bounds the Sinkhorn loop (must be >= 1; panics
// otherwise).
func WithMaxIter(n int) Option {
	if n < 1 {
		panic("external: WithMaxIter: n must be >= 1")
	}

	return func(o *Options) { o.MaxIter = n }
}

// WithTolerance sets the convergence threshold (must be > 0; panics
// otherwise).
func WithTolerance(tol float64) Option {
	if tol <= 0 {
		panic("external: WithTolerance: tol must be positive")
	}

	return func(o *Options) { o.Tolerance = tol }
}

// WithEmbeddingKey selects the cost embedding.
func WithEmbeddingKey(key string) Option {
	return func(o *Options) { o.EmbeddingKey = key }
}

// WithTimeKey sets the time-point annotation.
func WithTimeKey(key string) Option {
	return func(o *Options) { o.TimeKey = key }
}

// WithGrowthKey weights marginals by per-cell growth rates.
func WithGrowthKey(key string) Option {
	return func(o *Options) { o.GrowthKey = key }
}
