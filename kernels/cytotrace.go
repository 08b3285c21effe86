package kernels

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// CytoTRACEKernel derives a differentiation-potential pseudotime from
// the expression matrix itself and then directs the walk along it like
// the pseudotime kernel. No external ordering is required.
//
// Score construction:
//  1. gene counts per cell: number of genes with expression > 0;
//  2. Pearson correlation of every gene's expression with the gene
//     counts across cells;
//  3. raw score = mean expression of the NumGenes top-correlated genes;
//  4. min-max normalize to [0,1]; pseudotime = 1 − score, so that
//     differentiated cells sit late in pseudotime.
type CytoTRACEKernel struct {
	ds *cellgraph.Dataset
	tm *TransitionMatrix

	numGenes int
	frac     float64
	backward bool
	eps      float64

	pseudotime []float64 // cached score, exposed via Pseudotime()
}

// CytoTRACEOption configures a CytoTRACEKernel.
type CytoTRACEOption func(*CytoTRACEKernel)

// WithNumCorrelatedGenes sets how many top-correlated genes the score
// averages over; must be ≥ 1, panics otherwise (programmer error).
func WithNumCorrelatedGenes(n int) CytoTRACEOption {
	if n < 1 {
		panic("kernels: WithNumCorrelatedGenes: n must be >= 1")
	}

	return func(k *CytoTRACEKernel) { k.numGenes = n }
}

// WithCytoTRACEFrac sets the against-time damping factor, as WithFrac.
func WithCytoTRACEFrac(frac float64) CytoTRACEOption {
	if frac < 0 || frac >= 1 || math.IsNaN(frac) {
		panic("kernels: WithCytoTRACEFrac: frac must be in [0,1)")
	}

	return func(k *CytoTRACEKernel) { k.frac = frac }
}

// WithCytoTRACEBackward reverses the inferred direction.
func WithCytoTRACEBackward() CytoTRACEOption {
	return func(k *CytoTRACEKernel) { k.backward = true }
}

// NewCytoTRACEKernel constructs the kernel with defaults: 200 correlated
// genes, hard threshold, forward direction.
func NewCytoTRACEKernel(ds *cellgraph.Dataset, opts ...CytoTRACEOption) *CytoTRACEKernel {
	k := &CytoTRACEKernel{
		ds:       ds,
		numGenes: DefaultNumCorrelatedGenes,
		frac:     DefaultPseudotimeFrac,
		eps:      DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Compute derives the score and delegates row construction to an
// internal pseudotime kernel fed with the inferred ordering.
func (k *CytoTRACEKernel) Compute(ctx context.Context) error {
	if k.ds == nil {
		return ErrNilDataset
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := k.ds.Conn(); err != nil {
		return ErrNoConnectivities
	}

	pt, err := cytotracePseudotime(k.ds.X(), k.numGenes)
	if err != nil {
		return err
	}
	k.pseudotime = pt

	inner := NewPseudotimeKernel(k.ds)
	inner.injected = pt
	inner.frac = k.frac
	inner.backward = k.backward
	inner.eps = k.eps
	if err := inner.Compute(ctx); err != nil {
		return err
	}
	k.tm = inner.tm

	return nil
}

// Transition returns the computed matrix, nil before Compute.
func (k *CytoTRACEKernel) Transition() *TransitionMatrix { return k.tm }

// Pseudotime returns a copy of the inferred ordering (nil before
// Compute). Useful as a time key for trend models.
func (k *CytoTRACEKernel) Pseudotime() []float64 {
	if k.pseudotime == nil {
		return nil
	}

	return append([]float64(nil), k.pseudotime...)
}

// cytotracePseudotime computes 1 − minmax(score) as described on the
// kernel type.
func cytotracePseudotime(x *mat.Dense, numGenes int) ([]float64, error) {
	n, g := x.Dims()
	if numGenes > g {
		numGenes = g
	}

	// 1) Gene counts per cell.
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		c := 0
		for j := 0; j < g; j++ {
			if row[j] > 0 {
				c++
			}
		}
		counts[i] = float64(c)
	}

	// 2) Correlation of every gene with the counts.
	type genCorr struct {
		j int
		r float64
	}
	corrs := make([]genCorr, g)
	col := make([]float64, n)
	for j := 0; j < g; j++ {
		mat.Col(col, j, x)
		r := stat.Correlation(col, counts, nil)
		if math.IsNaN(r) {
			r = math.Inf(-1) // constant gene: never selected
		}
		corrs[j] = genCorr{j: j, r: r}
	}
	sort.Slice(corrs, func(a, b int) bool {
		if corrs[a].r != corrs[b].r {
			return corrs[a].r > corrs[b].r
		}

		return corrs[a].j < corrs[b].j // stable tie-break
	})

	// 3) Mean expression over the selected genes.
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		s := 0.0
		for t := 0; t < numGenes; t++ {
			s += row[corrs[t].j]
		}
		score[i] = s / float64(numGenes)
	}

	// 4) Min-max normalize and invert.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range score {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if hi-lo <= 0 {
		return nil, ErrConstantScore
	}
	pt := make([]float64, n)
	for i, s := range score {
		pt[i] = 1 - (s-lo)/(hi-lo)
	}

	return pt, nil
}
