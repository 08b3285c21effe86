package kernels

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// VelocityKernel estimates directed transitions from RNA velocity.
//
// For cell i with velocity vector v_i (a row of the velocity layer) and
// graph neighbor j, the displacement δ_ij = x_j − x_i in expression
// space is scored by cosine similarity with v_i; the scores of all
// neighbors of i are pushed through a softmax with inverse temperature
// SoftmaxScale. Cells whose velocity vector is (numerically) zero fall
// back to their normalized connectivity row.
//
// Backward mode negates the similarities, modeling the time-reversed
// process.
type VelocityKernel struct {
	ds *cellgraph.Dataset
	tm *TransitionMatrix

	layer        string
	softmaxScale float64
	backward     bool
	eps          float64
}

// VelocityOption configures a VelocityKernel.
type VelocityOption func(*VelocityKernel)

// WithSoftmaxScale sets the softmax inverse temperature (must be > 0;
// panics otherwise, programmer error).
func WithSoftmaxScale(scale float64) VelocityOption {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		panic("kernels: WithSoftmaxScale: scale must be positive and finite")
	}

	return func(k *VelocityKernel) { k.softmaxScale = scale }
}

// WithVelocityLayer overrides the layer name holding velocity vectors.
func WithVelocityLayer(name string) VelocityOption {
	return func(k *VelocityKernel) { k.layer = name }
}

// WithBackward computes the time-reversed chain.
func WithBackward() VelocityOption {
	return func(k *VelocityKernel) { k.backward = true }
}

// NewVelocityKernel constructs the kernel with defaults: layer
// "velocity", softmax scale 4, forward direction.
func NewVelocityKernel(ds *cellgraph.Dataset, opts ...VelocityOption) *VelocityKernel {
	k := &VelocityKernel{
		ds:           ds,
		layer:        cellgraph.VelocityLayer,
		softmaxScale: DefaultSoftmaxScale,
		eps:          DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Compute builds the transition matrix. Rows are independent, so they
// are computed on a bounded errgroup; ctx cancellation aborts the whole
// computation.
func (k *VelocityKernel) Compute(ctx context.Context) error {
	if k.ds == nil {
		return ErrNilDataset
	}
	conn, err := k.ds.Conn()
	if err != nil {
		return ErrNoConnectivities
	}
	vel, err := k.ds.Layer(k.layer)
	if err != nil {
		return ErrNoVelocity
	}

	n := k.ds.NumCells()
	g := k.ds.NumGenes()
	x := k.ds.X()
	rows := make([]RowEntries, n)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cols, weights := conn.Row(i)
			if len(cols) == 0 {
				rows[i] = selfLoopRow(i)

				return nil
			}

			vi := vel.RawRowView(i)
			vNorm := 0.0
			for t := 0; t < g; t++ {
				vNorm += vi[t] * vi[t]
			}
			vNorm = math.Sqrt(vNorm)

			// Zero velocity carries no direction: use the similarity row.
			if vNorm <= k.eps {
				probs := append([]float64(nil), weights...)
				if !normalizeRow(probs) {
					rows[i] = selfLoopRow(i)

					return nil
				}
				rows[i] = RowEntries{Cols: append([]int(nil), cols...), Probs: probs}

				return nil
			}

			xi := x.RawRowView(i)
			sims := make([]float64, len(cols))
			for t, j := range cols {
				xj := x.RawRowView(j)
				var dot, dNorm float64
				for tt := 0; tt < g; tt++ {
					delta := xj[tt] - xi[tt]
					dot += delta * vi[tt]
					dNorm += delta * delta
				}
				dNorm = math.Sqrt(dNorm)
				if dNorm <= k.eps {
					sims[t] = 0 // coincident expression profiles

					continue
				}
				cos := dot / (dNorm * vNorm)
				if k.backward {
					cos = -cos
				}
				sims[t] = cos
			}

			rows[i] = RowEntries{
				Cols:  append([]int(nil), cols...),
				Probs: softmax(sims, k.softmaxScale),
			}

			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	tm, err := NewTransition(rows, k.eps)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the computed matrix, nil before Compute.
func (k *VelocityKernel) Transition() *TransitionMatrix { return k.tm }

// softmax maps scores to a probability vector with inverse temperature
// scale, using the max-shift trick for numeric stability.
func softmax(scores []float64, scale float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for t, s := range scores {
		e := math.Exp(scale * (s - maxScore))
		out[t] = e
		sum += e
	}
	for t := range out {
		out[t] /= sum
	}

	return out
}
