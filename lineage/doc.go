// Package lineage provides the named, colored fate-probability matrix
// produced by estimators: one row per cell, one column per fate, rows
// summing to one.
//
// Beyond plain storage, the type supports name-based selection with
// mixing ("Alpha, Beta" selects the summed column of both fates under a
// merged name and averaged color), a Rest pseudo-fate collecting
// whatever the selection left out, and Reduce, the projection of all
// fates onto a chosen subset of terminal fates using a similarity
// measure (cosine, Wasserstein, Kullback-Leibler, Jensen-Shannon,
// mutual information or equal weights) with scale or softmax weight
// normalization, or a plain rescaling baseline.
//
// Colors are hex strings; when none are supplied a categorical palette
// is assigned automatically.
package lineage
