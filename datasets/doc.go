// Package datasets downloads and caches the published single-cell
// datasets used throughout the toolkit.
//
// Each dataset is a gzipped tar bundle holding a YAML manifest plus
// CSV tables: the expression matrix, per-cell annotations and optional
// layers and embeddings. Load fetches the bundle on first use (the
// download is context-aware and resumes into a temp file), verifies
// the advertised cell/gene shape against the registry, deduplicates
// gene names and assembles a cellgraph.Dataset.
//
// Named wrappers exist for every registry entry; the Morris
// reprogramming dataset additionally supports the 48k and 85k subsets
// selected by annotation presence.
package datasets
