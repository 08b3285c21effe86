// Package pl renders estimator and model outputs to image files.
//
// Every function consumes computed objects (fate probabilities, fitted
// trends, annotations), draws through gonum/plot and writes to the
// given path, with the format chosen by the file extension (png, svg,
// pdf, ...). Functions return errors instead of panicking and are
// deterministic for fixed inputs.
//
// Trend-based plots (GeneTrends, Heatmap, ClusterTrends) fit one model
// per gene and fate; the fits run concurrently.
package pl
