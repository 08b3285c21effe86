// Package estimators: shared types, sentinel errors and options.
package estimators

import (
	"context"
	"errors"

	"github.com/Oisin-M/cellrank/lineage"
)

// Tunable defaults shared by both estimators.
const (
	// DefaultNumStates is the number of macrostates computed when the
	// caller does not override it.
	DefaultNumStates = 3

	// DefaultStabilityThreshold is the minimum coarse-grained
	// self-transition probability for a macrostate to count as terminal.
	DefaultStabilityThreshold = 0.96

	// DefaultMassQuantile is the left-eigenvector mass quantile above
	// which a cell counts as recurrent (CFLARE).
	DefaultMassQuantile = 0.8

	// DefaultCellsPerState is how many top-membership cells anchor each
	// terminal state in the absorption solve.
	DefaultCellsPerState = 30

	// DefaultKMeansIterations bounds the Lloyd refinement loop.
	DefaultKMeansIterations = 100

	// DefaultSeed makes k-means++ center picks reproducible.
	DefaultSeed = 42

	// DefaultEps is the numeric tolerance for singularity and
	// normalization checks.
	DefaultEps = 1e-12
)

// Unassigned marks cells that belong to no macrostate.
const Unassigned = -1

// Sentinel errors returned by the estimators.
var (
	// ErrNilTransition indicates construction without a transition matrix.
	ErrNilTransition = errors.New("estimators: nil transition matrix")

	// ErrNotComputed indicates access to results before the corresponding
	// Compute step ran.
	ErrNotComputed = errors.New("estimators: results not computed yet")

	// ErrBadNumStates indicates a macrostate count outside [1, n_cells].
	ErrBadNumStates = errors.New("estimators: invalid number of macrostates")

	// ErrDegenerateSpectrum indicates eigenvectors too collinear to span
	// the requested simplex.
	ErrDegenerateSpectrum = errors.New("estimators: degenerate spectral basis")

	// ErrEigenFailed indicates the eigendecomposition did not converge.
	ErrEigenFailed = errors.New("estimators: eigendecomposition failed")

	// ErrNoTerminalStates indicates no macrostate passed the stability
	// threshold.
	ErrNoTerminalStates = errors.New("estimators: no terminal states found")

	// ErrUnknownState indicates a user-supplied state name that does not
	// match any macrostate.
	ErrUnknownState = errors.New("estimators: unknown macrostate name")

	// ErrNoRecurrentCells indicates the left-eigenvector filter kept no
	// cells.
	ErrNoRecurrentCells = errors.New("estimators: no recurrent cells")

	// ErrSingularSystem indicates the absorption system (I - Q) could not
	// be solved.
	ErrSingularSystem = errors.New("estimators: singular absorption system")

	// ErrBadLabels indicates per-cell labels whose length differs from the
	// number of cells.
	ErrBadLabels = errors.New("estimators: label length mismatch")
)

// Estimator is the common surface of GPCCA and CFLARE: macrostate
// discovery, terminal-state selection and fate probabilities.
type Estimator interface {
	// ComputeMacrostates partitions cells into metastable macrostates.
	ComputeMacrostates(ctx context.Context) error

	// MacrostateAssignment returns the per-cell macrostate index
	// (Unassigned for cells outside every state).
	MacrostateAssignment() ([]int, error)

	// MacrostateNames returns the macrostate names in index order.
	MacrostateNames() ([]string, error)

	// ComputeTerminalStates selects the terminal subset of macrostates.
	ComputeTerminalStates() error

	// TerminalStates returns the terminal-state names.
	TerminalStates() ([]string, error)

	// AbsorptionProbabilities computes per-cell fate probabilities
	// toward the terminal states.
	AbsorptionProbabilities(ctx context.Context) (*lineage.Lineage, error)
}

// Options configures an estimator run.
type Options struct {
	// NumStates is the number of macrostates to compute.
	NumStates int

	// StabilityThreshold selects terminal macrostates by coarse-grained
	// self-transition probability (GPCCA).
	StabilityThreshold float64

	// MassQuantile is the recurrent-cell filter quantile (CFLARE).
	MassQuantile float64

	// CellsPerState is the number of top-membership cells anchoring each
	// terminal state during absorption.
	CellsPerState int

	// KMeansIterations bounds Lloyd refinement (CFLARE).
	KMeansIterations int

	// Seed drives the k-means++ center picks.
	Seed int64

	// Eps is the numeric tolerance.
	Eps float64

	// StateLabels optionally carries a categorical annotation per cell;
	// macrostates are then named after their majority label.
	StateLabels []string
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		NumStates:          DefaultNumStates,
		StabilityThreshold: DefaultStabilityThreshold,
		MassQuantile:       DefaultMassQuantile,
		CellsPerState:      DefaultCellsPerState,
		KMeansIterations:   DefaultKMeansIterations,
		Seed:               DefaultSeed,
		Eps:                DefaultEps,
	}
}

// WithNumStates sets the macrostate count (must be >= 1; panics
// otherwise, programmer error).
func WithNumStates(n int) Option {
	if n < 1 {
		panic("estimators: WithNumStates: n must be >= 1")
	}

	return func(o *Options) { o.NumStates = n }
}

// WithStabilityThreshold sets the terminal-state cutoff (must be in
// (0, 1]; panics otherwise).
func WithStabilityThreshold(t float64) Option {
	if t <= 0 || t > 1 {
		panic("estimators: WithStabilityThreshold: t must be in (0, 1]")
	}

	return func(o *Options) { o.StabilityThreshold = t }
}

// WithMassQuantile sets the recurrent-cell quantile (must be in
// [0, 1); panics otherwise).
func WithMassQuantile(q float64) Option {
	if q < 0 || q >= 1 {
		panic("estimators: WithMassQuantile: q must be in [0, 1)")
	}

	return func(o *Options) { o.MassQuantile = q }
}

// WithCellsPerState sets the per-state anchor size (must be >= 1;
// panics otherwise).
func WithCellsPerState(n int) Option {
	if n < 1 {
		panic("estimators: WithCellsPerState: n must be >= 1")
	}

	return func(o *Options) { o.CellsPerState = n }
}

// WithKMeansIterations bounds Lloyd refinement (must be >= 1; panics
// otherwise).
func WithKMeansIterations(n int) Option {
	if n < 1 {
		panic("estimators: WithKMeansIterations: n must be >= 1")
	}

	return func(o *Options) { o.KMeansIterations = n }
}

// WithSeed sets the random seed for k-means++.
func WithSeed(seed int64) Option {
	return func(o *Options) { o.Seed = seed }
}

// WithStateLabels supplies one categorical label per cell for
// macrostate naming.
func WithStateLabels(labels []string) Option {
	return func(o *Options) { o.StateLabels = labels }
}
