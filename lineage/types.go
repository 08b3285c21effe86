// Package lineage: Lineage type, sentinel errors and reduction options.
package lineage

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon is the tolerance for row-sum checks.
const DefaultEpsilon = 1e-6

// Rest is the pseudo-fate name that collects all fates not named
// explicitly in a selection.
const Rest = "rest"

// Sentinel errors for lineage construction, selection and reduction.
var (
	// ErrEmpty indicates a lineage with zero cells or zero fates.
	ErrEmpty = errors.New("lineage: empty probability matrix")

	// ErrDimMismatch indicates names/colors whose length differs from the
	// number of fate columns.
	ErrDimMismatch = errors.New("lineage: dimension mismatch")

	// ErrDuplicateName indicates duplicate fate names.
	ErrDuplicateName = errors.New("lineage: duplicate fate name")

	// ErrUnknownName indicates selection of a fate that does not exist.
	ErrUnknownName = errors.New("lineage: unknown fate name")

	// ErrOverlap indicates selection keys naming the same fate twice.
	ErrOverlap = errors.New("lineage: overlapping selection keys")

	// ErrBadColor indicates a color that is not "#RRGGBB".
	ErrBadColor = errors.New("lineage: invalid color")

	// ErrNotNormalized indicates rows that do not sum to one within eps.
	ErrNotNormalized = errors.New("lineage: rows do not sum to one")

	// ErrNoKeys indicates Reduce called without reference fates.
	ErrNoKeys = errors.New("lineage: no reference fates specified")

	// ErrAllKeys indicates Reduce called with every fate as reference,
	// leaving nothing to project.
	ErrAllKeys = errors.New("lineage: all fates specified as reference")

	// ErrBadMode indicates an unknown reduction mode.
	ErrBadMode = errors.New("lineage: unknown reduction mode")

	// ErrBadMeasure indicates an unknown distance measure.
	ErrBadMeasure = errors.New("lineage: unknown distance measure")

	// ErrBadNormalization indicates an unknown weight normalization.
	ErrBadNormalization = errors.New("lineage: unknown weight normalization")

	// ErrBadWeights indicates non-finite or negative projection weights.
	ErrBadWeights = errors.New("lineage: invalid projection weights")
)

// Lineage is an n_cells × n_fates fate-probability matrix with unique
// fate names and hex colors. Values are read through the accessors; the
// struct is immutable after construction.
type Lineage struct {
	probs  *mat.Dense
	names  []string
	colors []string
	idx    map[string]int
}

// ReduceMode selects how Reduce redistributes the query mass.
type ReduceMode string

// Reduction modes accepted by Reduce.
const (
	// ModeDist projects query mass onto the references weighted by a
	// distance measure.
	ModeDist ReduceMode = "dist"

	// ModeScale discards the query fates and row-normalizes the
	// reference columns (baseline for benchmarking). No weights are
	// computed in this mode.
	ModeScale ReduceMode = "scale"
)

// DistanceMeasure selects how Reduce scores the similarity between a
// query fate and each reference fate.
type DistanceMeasure string

// Distance measures accepted by Reduce.
const (
	// MeasureCosine scores by cosine similarity of the 2-normalized
	// probability columns.
	MeasureCosine DistanceMeasure = "cosine_sim"

	// MeasureWasserstein scores by inverse 1-d Wasserstein distance of
	// the 1-normalized columns (rows containing zeros are dropped
	// first).
	MeasureWasserstein DistanceMeasure = "wasserstein_dist"

	// MeasureKL scores by inverse Kullback-Leibler divergence of the
	// 1-normalized columns (rows containing zeros are dropped first).
	MeasureKL DistanceMeasure = "kl_div"

	// MeasureJS scores by inverse Jensen-Shannon divergence.
	MeasureJS DistanceMeasure = "js_div"

	// MeasureMutualInfo scores by the mutual information between the
	// raw probability columns, estimated on a discretized joint
	// histogram. Invariant under column scaling.
	MeasureMutualInfo DistanceMeasure = "mutual_info"

	// MeasureEqual assigns uniform weights (baseline).
	MeasureEqual DistanceMeasure = "equal"
)

// WeightNormalization selects how Reduce normalizes projection weights.
type WeightNormalization string

// Weight normalizations accepted by Reduce.
const (
	// NormalizeScale divides each weight row by its sum.
	NormalizeScale WeightNormalization = "scale"

	// NormalizeSoftmax applies a softmax with inverse temperature beta
	// after scaling.
	NormalizeSoftmax WeightNormalization = "softmax"
)

// ReduceOptions configures Reduce.
type ReduceOptions struct {
	Mode          ReduceMode
	Measure       DistanceMeasure
	Normalization WeightNormalization
	SoftmaxBeta   float64
	Eps           float64
}

// ReduceOption is a functional option for Reduce.
type ReduceOption func(*ReduceOptions)

// WithMode sets the reduction mode.
func WithMode(m ReduceMode) ReduceOption {
	return func(o *ReduceOptions) { o.Mode = m }
}

// WithMeasure sets the distance measure.
func WithMeasure(m DistanceMeasure) ReduceOption {
	return func(o *ReduceOptions) { o.Measure = m }
}

// WithNormalization sets the weight normalization.
func WithNormalization(n WeightNormalization) ReduceOption {
	return func(o *ReduceOptions) { o.Normalization = n }
}

// WithSoftmaxBeta sets the softmax inverse temperature (must be > 0;
// panics otherwise, programmer error).
func WithSoftmaxBeta(beta float64) ReduceOption {
	if beta <= 0 {
		panic("lineage: WithSoftmaxBeta: beta must be positive")
	}

	return func(o *ReduceOptions) { o.SoftmaxBeta = beta }
}

// DefaultReduceOptions returns the documented defaults: dist mode with
// the mutual-information measure, softmax normalization with beta 1.
func DefaultReduceOptions() ReduceOptions {
	return ReduceOptions{
		Mode:          ModeDist,
		Measure:       MeasureMutualInfo,
		Normalization: NormalizeSoftmax,
		SoftmaxBeta:   1,
		Eps:           DefaultEpsilon,
	}
}
