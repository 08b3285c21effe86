// Package estimators turns a row-stochastic transition matrix into
// biological structure: metastable macrostates, terminal states and
// per-cell fate probabilities.
//
// Two estimators are provided. GPCCA projects the matrix onto its top
// eigenvectors, rotates the spectral basis into a fuzzy membership
// simplex and reads macrostates off the memberships; its coarse-grained
// transition matrix identifies terminal states by self-transition
// stability. CFLARE filters recurrent cells through left-eigenvector
// mass and clusters them with k-means++ on scaled right eigenvectors.
//
// Both share the absorption solver: fate probabilities of transient
// cells are the solution of (I - Q) F = R B over the transient block,
// returned as a lineage.Lineage with rows summing to one.
package estimators
