package estimators

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
)

// spectrum holds the leading part of an eigendecomposition: eigenvalues
// sorted by descending modulus (ties broken by descending real part)
// with the real parts of the matching right and, optionally, left
// eigenvectors as columns.
type spectrum struct {
	values []complex128
	right  *mat.Dense
	left   *mat.Dense
}

// decompose eigendecomposes the dense form of tm and keeps the top k
// pairs. For a row-stochastic matrix the leading eigenvalue is 1 and
// its right eigenvector is constant.
func decompose(tm *kernels.TransitionMatrix, k int, needLeft bool) (*spectrum, error) {
	n := tm.N()

	kind := mat.EigenRight
	if needLeft {
		kind = mat.EigenBoth
	}
	var eig mat.Eigen
	if ok := eig.Factorize(tm.Dense(), kind); !ok {
		return nil, ErrEigenFailed
	}

	values := eig.Values(nil)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := cmplx.Abs(values[order[a]]), cmplx.Abs(values[order[b]])
		if ma != mb {
			return ma > mb
		}

		return real(values[order[a]]) > real(values[order[b]])
	})

	var rightC mat.CDense
	eig.VectorsTo(&rightC)
	var leftC mat.CDense
	if needLeft {
		eig.LeftVectorsTo(&leftC)
	}

	sp := &spectrum{
		values: make([]complex128, k),
		right:  mat.NewDense(n, k, nil),
	}
	if needLeft {
		sp.left = mat.NewDense(n, k, nil)
	}
	for j := 0; j < k; j++ {
		src := order[j]
		sp.values[j] = values[src]
		for i := 0; i < n; i++ {
			sp.right.Set(i, j, real(rightC.At(i, src)))
			if needLeft {
				sp.left.Set(i, j, real(leftC.At(i, src)))
			}
		}
	}

	fixSigns(sp.right)
	if sp.left != nil {
		fixSigns(sp.left)
	}

	return sp, nil
}

// fixSigns flips each column so its largest-magnitude entry is
// positive, making the decomposition deterministic across runs.
func fixSigns(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		best, bestAbs := 0.0, 0.0
		for i := 0; i < r; i++ {
			if a := math.Abs(m.At(i, j)); a > bestAbs {
				best, bestAbs = m.At(i, j), a
			}
		}
		if best < 0 {
			for i := 0; i < r; i++ {
				m.Set(i, j, -m.At(i, j))
			}
		}
	}
}

// quantile returns the q-quantile of xs by nearest-rank on a sorted
// copy.
func quantile(xs []float64, q float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(q * float64(len(sorted)-1)))

	return sorted[idx]
}
