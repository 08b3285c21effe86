// Package cellrank is a toolkit for single-cell trajectory inference
// built around Markov chains on cell-cell graphs.
//
// The pipeline is linear with swappable strategies at each stage:
//
//	dataset → kernel → transition matrix → estimator → fate probabilities → plots / trend models
//
// Subpackages:
//
//	cellgraph/  - annotated cell dataset: expression matrix, per-cell
//	              annotations, layers, embeddings and the k-NN
//	              connectivity graph.
//	kernels/    - transition-matrix estimators (Velocity, Connectivity,
//	              Pseudotime, CytoTRACE, Precomputed) plus kernel
//	              algebra for convex combinations.
//	estimators/ - macrostate and fate-probability solvers (GPCCA, CFLARE).
//	lineage/    - named, colored fate-probability matrix with reduction
//	              onto terminal states.
//	models/     - continuous expression-vs-pseudotime regressors
//	              (penalized-spline GAM and pluggable wrappers).
//	pl/         - plotting: gene trends, heatmaps, cluster trends,
//	              circular projection, log-odds, aggregated fates.
//	datasets/   - named dataset loaders with download-and-cache.
//	external/   - contributed optimal-transport kernels
//	              (StationaryOT, WOT).
//
// Quick sketch:
//
//	ds, _ := datasets.PancreasPreprocessedDataset(ctx)
//	vk := kernels.NewVelocityKernel(ds)
//	if err := vk.Compute(ctx); err != nil { ... }
//	g, _ := estimators.NewGPCCA(vk.Transition(), estimators.WithNumStates(3))
//	if err := g.ComputeMacrostates(ctx); err != nil { ... }
//	if err := g.ComputeTerminalStates(); err != nil { ... }
//	fates, _ := g.AbsorptionProbabilities(ctx)
//	_ = pl.GeneTrends(ctx, ds, fates, []string{"Ins1"},
//		func() models.Model { return models.NewGAM() }, "trends.png")
//
// All heavy numerics run on gonum; every blocking operation takes a
// context.Context and long fan-outs are bounded errgroups.
package cellrank
