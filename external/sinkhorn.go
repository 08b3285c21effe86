package external

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// sinkhorn solves the entropic transport problem between marginals a
// (length n) and b (length m) under the n×m cost matrix, returning the
// coupling diag(u) K diag(v) with K = exp(-C/eps). Both marginals must
// be strictly positive and sum to one.
func sinkhorn(ctx context.Context, a, b []float64, cost *mat.Dense, opts Options) (*mat.Dense, error) {
	n, m := cost.Dims()
	if len(a) != n || len(b) != m {
		return nil, fmt.Errorf("%w: %d/%d marginals for %dx%d cost",
			ErrBadMarginal, len(a), len(b), n, m)
	}
	for _, v := range a {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrBadMarginal
		}
	}
	for _, v := range b {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrBadMarginal
		}
	}

	// Gibbs kernel; shifting by the row minimum keeps exponentials in
	// range for large costs.
	k := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		row := cost.RawRowView(i)
		lo := row[0]
		for _, c := range row {
			if c < lo {
				lo = c
			}
		}
		for j := 0; j < m; j++ {
			k.Set(i, j, math.Exp(-(row[j]-lo)/opts.Epsilon))
		}
	}

	u := make([]float64, n)
	v := make([]float64, m)
	for i := range u {
		u[i] = 1
	}
	for j := range v {
		v[j] = 1
	}

	kv := make([]float64, n)
	ktu := make([]float64, m)
	for it := 0; it < opts.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// u = a / (K v), v = b / (K' u)
		for i := 0; i < n; i++ {
			row := k.RawRowView(i)
			sum := 0.0
			for j := 0; j < m; j++ {
				sum += row[j] * v[j]
			}
			kv[i] = sum
			if sum <= 0 {
				return nil, ErrNotConverged
			}
			u[i] = a[i] / sum
		}
		for j := range ktu {
			ktu[j] = 0
		}
		for i := 0; i < n; i++ {
			row := k.RawRowView(i)
			for j := 0; j < m; j++ {
				ktu[j] += row[j] * u[i]
			}
		}
		for j := 0; j < m; j++ {
			if ktu[j] <= 0 {
				return nil, ErrNotConverged
			}
			v[j] = b[j] / ktu[j]
		}

		// Column-marginal error; rows are exact after the u update.
		worst := 0.0
		for j := 0; j < m; j++ {
			colSum := 0.0
			for i := 0; i < n; i++ {
				colSum += u[i] * k.At(i, j) * v[j]
			}
			if diff := math.Abs(colSum - b[j]); diff > worst {
				worst = diff
			}
		}
		if worst < opts.Tolerance {
			coupling := mat.NewDense(n, m, nil)
			for i := 0; i < n; i++ {
				row := k.RawRowView(i)
				for j := 0; j < m; j++ {
					coupling.Set(i, j, u[i]*row[j]*v[j])
				}
			}

			return coupling, nil
		}
	}

	return nil, fmt.Errorf("%w: after %d iterations", ErrNotConverged, opts.MaxIter)
}

// pairwiseSqDist builds the squared-Euclidean cost between the rows of
// two coordinate matrices.
func pairwiseSqDist(src, dst *mat.Dense) *mat.Dense {
	n, d := src.Dims()
	m, _ := dst.Dims()
	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		si := src.RawRowView(i)
		for j := 0; j < m; j++ {
			dj := dst.RawRowView(j)
			sum := 0.0
			for t := 0; t < d; t++ {
				diff := si[t] - dj[t]
				sum += diff * diff
			}
			out.Set(i, j, sum)
		}
	}

	return out
}

// normalized copies xs scaled to sum to one.
func normalized(xs []float64) ([]float64, error) {
	sum := 0.0
	for _, v := range xs {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrBadGrowthRates
		}
		sum += v
	}
	if sum <= 0 {
		return nil, ErrBadGrowthRates
	}
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = v / sum
	}

	return out, nil
}

// rowNormalize scales each row of m to sum to one in place.
func rowNormalize(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += row[j]
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < c; j++ {
			row[j] /= sum
		}
	}
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}

	return out
}
