// Package kernels turns a cell dataset into a row-stochastic transition
// matrix over cells. Each kernel is one estimation strategy:
//
//	ConnectivityKernel - undirected similarity: row-normalized k-NN
//	                     connectivities.
//	VelocityKernel     - directed by RNA velocity: cosine similarity
//	                     between a cell's velocity vector and the
//	                     displacement to each neighbor, pushed through a
//	                     softmax.
//	PseudotimeKernel   - directed by a pseudotime ordering: edges that
//	                     run against increasing pseudotime are removed or
//	                     damped.
//	CytoTRACEKernel    - derives a differentiation-potential pseudotime
//	                     from the expression matrix itself, then biases
//	                     edges like the pseudotime kernel.
//	PrecomputedKernel  - wraps and validates a user-supplied matrix.
//
// Kernels compose: Scale and Combine build convex combinations, e.g.
//
//	k := kernels.Combine(
//	    kernels.Scale(vk, 0.8),
//	    kernels.Scale(ck, 0.2),
//	)
//	err := k.Compute(ctx)
//
// Every kernel follows the same contract: construct, Compute(ctx) once,
// then read Transition(). Compute validates its inputs up front and
// returns sentinel errors; long per-cell loops run on a bounded errgroup
// and honor context cancellation.
//
// The TransitionMatrix itself is compressed sparse row with a strict
// numeric policy: entries finite and non-negative, each row summing to
// one within epsilon, column indices ascending within a row.
package kernels
