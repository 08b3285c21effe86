// Package models: shared types, sentinel errors and options.
package models

import (
	"errors"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
)

// Tunable defaults.
const (
	// DefaultTestPoints is the size of the prediction grid.
	DefaultTestPoints = 200

	// DefaultWeightThreshold zeroes fate weights below it before
	// preparation.
	DefaultWeightThreshold = 0.01

	// DefaultNumSplines is the GAM basis size.
	DefaultNumSplines = 10

	// DefaultSplineOrder is the GAM spline degree (cubic).
	DefaultSplineOrder = 3

	// DefaultLambda is the GAM smoothing penalty.
	DefaultLambda = 0.5

	// DefaultMaxIter bounds the expectile reweighting loop.
	DefaultMaxIter = 1000

	// DefaultEps is the numeric tolerance.
	DefaultEps = 1e-12

	// smoothWindow is the moving-average window used when locating the
	// trend endpoint from the fate weights.
	smoothWindow = 10
)

// Sentinel errors.
var (
	// ErrNilDataset indicates preparation without a dataset.
	ErrNilDataset = errors.New("models: nil dataset")

	// ErrNilLineage indicates preparation without fate probabilities.
	ErrNilLineage = errors.New("models: nil lineage")

	// ErrNotPrepared indicates Fit before Prepare.
	ErrNotPrepared = errors.New("models: model not prepared")

	// ErrNotFitted indicates Predict before Fit.
	ErrNotFitted = errors.New("models: model not fitted")

	// ErrTooFewPoints indicates not enough cells survived filtering.
	ErrTooFewPoints = errors.New("models: too few data points")

	// ErrShapeMismatch indicates inconsistent input lengths.
	ErrShapeMismatch = errors.New("models: shape mismatch")

	// ErrSingularFit indicates an unsolvable normal system.
	ErrSingularFit = errors.New("models: singular fit")

	// ErrNoWeights indicates every fate weight is zero after
	// thresholding.
	ErrNoWeights = errors.New("models: all weights zero")
)

// Model is the trend-fitting contract: prepare training data from a
// dataset and fate probabilities, fit, then predict on a grid.
type Model interface {
	Prepare(ds *cellgraph.Dataset, fates *lineage.Lineage, gene, fate string, opts ...PrepareOption) error
	Fit() error
	Predict(xTest []float64) ([]float64, error)
	ConfidenceInterval(xTest []float64) (lower, upper []float64, err error)
	XTest() []float64
}

// Regressor is the minimal weighted-fit surface Wrap adapts.
type Regressor interface {
	FitWeighted(x, y, w []float64) error
	Predict(x []float64) ([]float64, error)
}

// ConfidenceRegressor is a Regressor with its own interval method;
// Wrap prefers it over the default band.
type ConfidenceRegressor interface {
	Regressor
	ConfidenceInterval(x []float64) (lower, upper []float64, err error)
}

// PrepareOptions configures data extraction.
type PrepareOptions struct {
	// DataKey selects the expression source: empty for X, otherwise a
	// layer name.
	DataKey string

	// TimeKey is the numeric annotation holding the pseudotime.
	TimeKey string

	// WeightThreshold zeroes (or replaces) fate weights below it.
	WeightThreshold float64

	// WeightReplacement substitutes thresholded weights.
	WeightReplacement float64

	// EndpointThreshold selects cells for the endpoint estimate; when
	// NaN the median weight is used.
	EndpointThreshold float64

	// TestPoints is the prediction-grid size.
	TestPoints int

	// FilterData restricts training points to the grid span.
	FilterData bool

	// FilterDropouts drops cells whose expression is below the cutoff;
	// NaN disables the filter.
	FilterDropouts float64

	// StartFate / EndFate anchor the grid on the pseudotime range of
	// cells assigned to another fate; empty uses the data-driven
	// endpoints.
	StartFate string
	EndFate   string
}

// PrepareOption mutates PrepareOptions.
type PrepareOption func(*PrepareOptions)

// DefaultPrepareOptions returns the documented defaults.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		TimeKey:           cellgraph.PseudotimeKey,
		WeightThreshold:   DefaultWeightThreshold,
		EndpointThreshold: nan(),
		TestPoints:        DefaultTestPoints,
		FilterDropouts:    nan(),
	}
}

// WithDataKey selects a layer as the expression source.
func WithDataKey(layer string) PrepareOption {
	return func(o *PrepareOptions) { o.DataKey = layer }
}

// WithTimeKey sets the pseudotime annotation key.
func WithTimeKey(key string) PrepareOption {
	return func(o *PrepareOptions) { o.TimeKey = key }
}

// WithWeightThreshold zeroes fate weights below t, substituting repl.
func WithWeightThreshold(t, repl float64) PrepareOption {
	return func(o *PrepareOptions) {
		o.WeightThreshold = t
		o.WeightReplacement = repl
	}
}

// WithEndpointThreshold overrides the median rule for the endpoint
// estimate.
func WithEndpointThreshold(t float64) PrepareOption {
	return func(o *PrepareOptions) { o.EndpointThreshold = t }
}

// WithTestPoints sets the grid size (must be >= 2; panics otherwise,
// programmer error).
func WithTestPoints(n int) PrepareOption {
	if n < 2 {
		panic("models: WithTestPoints: n must be >= 2")
	}

	return func(o *PrepareOptions) { o.TestPoints = n }
}

// WithFilterData restricts training points to the grid span.
func WithFilterData() PrepareOption {
	return func(o *PrepareOptions) { o.FilterData = true }
}

// WithFilterDropouts drops cells expressing below the cutoff.
func WithFilterDropouts(cutoff float64) PrepareOption {
	return func(o *PrepareOptions) { o.FilterDropouts = cutoff }
}

// WithStartFate anchors the grid start on another fate's earliest
// pseudotime.
func WithStartFate(name string) PrepareOption {
	return func(o *PrepareOptions) { o.StartFate = name }
}

// WithEndFate anchors the grid end on another fate's latest
// pseudotime.
func WithEndFate(name string) PrepareOption {
	return func(o *PrepareOptions) { o.EndFate = name }
}
