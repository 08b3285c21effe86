// Package external hosts contributed kernels built on entropic optimal
// transport rather than the cell-cell graph.
//
// StationaryOTKernel couples every cell to a stationary target
// distribution (optionally growth-weighted) through a Sinkhorn solve
// over embedding distances. WOTKernel handles experimental time
// courses: consecutive time points are coupled pairwise, so cells of
// one day transition into cells of the next; the last day self-loops.
//
// Both satisfy the kernels.Kernel contract and produce row-stochastic
// transition matrices interchangeable with the graph kernels.
package external
