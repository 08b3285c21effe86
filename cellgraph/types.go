// Package cellgraph: central Dataset type, sentinel errors and
// functional options. Validation happens once, in NewDataset; accessors
// afterwards only look indexes up and copy slices out.
package cellgraph

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon is the tolerance used by symmetry and stochasticity
// checks throughout the package.
const DefaultEpsilon = 1e-9

// Sentinel errors for dataset construction and access.
var (
	// ErrEmptyDataset indicates a dataset with zero cells or zero genes.
	ErrEmptyDataset = errors.New("cellgraph: dataset has no cells or no genes")

	// ErrDimMismatch indicates an annotation, layer or embedding whose
	// size disagrees with the expression matrix.
	ErrDimMismatch = errors.New("cellgraph: dimension mismatch")

	// ErrDuplicateName indicates duplicate cell IDs or gene names.
	ErrDuplicateName = errors.New("cellgraph: duplicate name")

	// ErrNaNInf indicates a NaN or ±Inf where finite data is required.
	ErrNaNInf = errors.New("cellgraph: NaN or Inf encountered")

	// ErrGeneNotFound indicates an unknown gene name.
	ErrGeneNotFound = errors.New("cellgraph: gene not found")

	// ErrObsNotFound indicates an unknown per-cell annotation key.
	ErrObsNotFound = errors.New("cellgraph: annotation not found")

	// ErrLayerNotFound indicates an unknown layer key.
	ErrLayerNotFound = errors.New("cellgraph: layer not found")

	// ErrEmbeddingNotFound indicates an unknown embedding key.
	ErrEmbeddingNotFound = errors.New("cellgraph: embedding not found")

	// ErrNoConnectivities indicates that the neighbor graph was requested
	// before one was attached or computed.
	ErrNoConnectivities = errors.New("cellgraph: no connectivity graph attached")

	// ErrAsymmetry indicates a connectivity matrix that is not symmetric
	// within the configured epsilon.
	ErrAsymmetry = errors.New("cellgraph: connectivities not symmetric within eps")

	// ErrNegativeWeight indicates a negative connectivity entry.
	ErrNegativeWeight = errors.New("cellgraph: negative connectivity weight")

	// ErrBadK indicates a neighbor count k < 1 or k >= n for ComputeNeighbors.
	ErrBadK = errors.New("cellgraph: neighbor count out of range")
)

// Dataset is the annotated n_cells × n_genes expression container.
//
// All fields are unexported; construction goes through NewDataset and
// access through the read-only methods in dataset.go.
type Dataset struct {
	x *mat.Dense // n_cells × n_genes expression

	cellIDs   []string
	geneNames []string
	cellIdx   map[string]int
	geneIdx   map[string]int

	numericObs     map[string][]float64
	categoricalObs map[string][]string
	layers         map[string]*mat.Dense // same shape as x
	embeddings     map[string]*mat.Dense // n_cells × d

	conn *Connectivities
}

// Option attaches optional content to a Dataset under construction.
// Size and value validation is deferred to NewDataset so options stay
// cheap and order-independent.
type Option func(*Dataset)

// WithNumericObs attaches a per-cell numeric annotation (e.g. pseudotime).
func WithNumericObs(key string, values []float64) Option {
	return func(d *Dataset) { d.numericObs[key] = values }
}

// WithCategoricalObs attaches a per-cell categorical annotation
// (e.g. cluster labels).
func WithCategoricalObs(key string, values []string) Option {
	return func(d *Dataset) { d.categoricalObs[key] = values }
}

// WithLayer attaches a named matrix of the same shape as the expression
// matrix (e.g. "velocity", "spliced").
func WithLayer(key string, m *mat.Dense) Option {
	return func(d *Dataset) { d.layers[key] = m }
}

// WithEmbedding attaches a named n_cells × d embedding (e.g. "X_pca").
func WithEmbedding(key string, m *mat.Dense) Option {
	return func(d *Dataset) { d.embeddings[key] = m }
}

// WithConnectivities attaches a precomputed symmetric k-NN graph.
func WithConnectivities(c *Connectivities) Option {
	return func(d *Dataset) { d.conn = c }
}

// Common annotation and layer keys shared across packages.
const (
	// PseudotimeKey is the default numeric annotation holding pseudotime.
	PseudotimeKey = "pseudotime"

	// ClusterKey is the default categorical annotation holding cluster labels.
	ClusterKey = "clusters"

	// VelocityLayer is the default layer holding per-cell RNA velocity
	// vectors in gene space.
	VelocityLayer = "velocity"
)
