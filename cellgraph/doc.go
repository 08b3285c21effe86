// Package cellgraph defines the annotated cell dataset that every other
// package in the module consumes: an expression matrix with named cells
// and genes, per-cell annotations, optional layers (e.g. spliced counts
// or velocity vectors), low-dimensional embeddings, and the symmetric
// k-NN connectivity graph over cells.
//
// A Dataset is validated once at construction and treated as read-only
// afterwards; the only post-construction mutation is attaching a
// connectivity graph, either precomputed (WithConnectivities) or built
// locally from an embedding (ComputeNeighbors).
//
// The connectivity graph is stored in compressed sparse row form
// (Connectivities) with a strict numeric policy: entries must be finite
// and non-negative, the matrix symmetric within epsilon, and the
// diagonal zero. Row iteration is always in ascending column order, so
// every downstream computation is deterministic.
//
// Errors:
//
//	ErrEmptyDataset    - zero cells or zero genes.
//	ErrDimMismatch     - annotation/layer/embedding size disagrees with the matrix.
//	ErrDuplicateName   - cell IDs or gene names are not unique.
//	ErrNaNInf          - non-finite value where finite data is required.
//	ErrGeneNotFound    - unknown gene name.
//	ErrObsNotFound     - unknown annotation key.
//	ErrLayerNotFound   - unknown layer key.
//	ErrEmbeddingNotFound - unknown embedding key.
//	ErrNoConnectivities  - graph requested before one was attached.
//	ErrAsymmetry       - connectivity matrix not symmetric within eps.
//	ErrNegativeWeight  - negative connectivity entry.
//	ErrBadK            - neighbor count out of range for ComputeNeighbors.
package cellgraph
