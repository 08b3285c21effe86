package lineage

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Reduce projects all fates onto the named reference fates. In dist
// mode each query fate's probability mass is redistributed across the
// references according to a similarity weight; in scale mode the query
// columns are discarded and the reference columns row-normalized. The
// result is again row-stochastic. The returned weights matrix is
// n_query × n_reference in the order the queries/references appear in
// the lineage; it is nil in scale mode.
//
// Errors (in validation order): ErrNoKeys, ErrAllKeys, ErrUnknownName,
// ErrNotNormalized (rows must sum to one before reduction), ErrBadMode,
// ErrBadMeasure, ErrBadNormalization, ErrBadWeights.
func (l *Lineage) Reduce(keys []string, opts ...ReduceOption) (*Lineage, *mat.Dense, error) {
	cfg := DefaultReduceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(keys) == 0 {
		return nil, nil, ErrNoKeys
	}
	isRef := make(map[int]bool, len(keys))
	for _, key := range keys {
		j, ok := l.idx[key]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownName, key)
		}
		isRef[j] = true
	}
	if len(isRef) == l.NumFates() {
		return nil, nil, ErrAllKeys
	}
	if err := l.checkRowsNormalized(cfg.Eps); err != nil {
		return nil, nil, err
	}

	n := l.NumCells()
	var refIdx, qryIdx []int
	for j := range l.names {
		if isRef[j] {
			refIdx = append(refIdx, j)
		} else {
			qryIdx = append(qryIdx, j)
		}
	}

	reference := pickCols(l.probs, refIdx)
	query := pickCols(l.probs, qryIdx)

	var weights *mat.Dense
	switch cfg.Mode {
	case ModeDist:
		var err error
		weights, err = similarityWeights(reference, query, cfg.Measure)
		if err != nil {
			return nil, nil, err
		}
		if err := validateWeights(weights); err != nil {
			return nil, nil, err
		}
		if err := normalizeWeights(weights, cfg); err != nil {
			return nil, nil, err
		}

		// Redistribute query mass onto the references.
		nq, nr := weights.Dims()
		for qi := 0; qi < nq; qi++ {
			for i := 0; i < n; i++ {
				q := query.At(i, qi)
				if q == 0 {
					continue
				}
				for ri := 0; ri < nr; ri++ {
					reference.Set(i, ri, reference.At(i, ri)+q*weights.At(qi, ri))
				}
			}
		}

	case ModeScale:
		for i := 0; i < n; i++ {
			row := reference.RawRowView(i)
			sum := 0.0
			for _, v := range row {
				sum += v
			}
			if sum == 0 {
				continue
			}
			for j := range row {
				row[j] /= sum
			}
		}

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrBadMode, cfg.Mode)
	}

	names := make([]string, len(refIdx))
	colors := make([]string, len(refIdx))
	for t, j := range refIdx {
		names[t] = l.names[j]
		colors[t] = l.colors[j]
	}
	out, err := New(reference, names, colors)
	if err != nil {
		return nil, nil, err
	}
	if err := out.checkRowsNormalized(cfg.Eps); err != nil {
		return nil, nil, err
	}

	return out, weights, nil
}

// pickCols copies the selected columns into a fresh dense matrix.
func pickCols(m *mat.Dense, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, len(cols), nil)
	buf := make([]float64, r)
	for t, j := range cols {
		mat.Col(buf, j, m)
		out.SetCol(t, buf)
	}

	return out
}

// similarityWeights scores every (query, reference) fate pair. Shape of
// the result: n_query × n_reference.
func similarityWeights(reference, query *mat.Dense, measure DistanceMeasure) (*mat.Dense, error) {
	_, nr := reference.Dims()
	_, nq := query.Dims()

	switch measure {
	case MeasureEqual:
		w := mat.NewDense(nq, nr, nil)
		for qi := 0; qi < nq; qi++ {
			for ri := 0; ri < nr; ri++ {
				w.Set(qi, ri, 1/float64(nr))
			}
		}

		return w, nil

	case MeasureCosine:
		w := mat.NewDense(nq, nr, nil)
		for qi := 0; qi < nq; qi++ {
			q := mat.Col(nil, qi, query)
			for ri := 0; ri < nr; ri++ {
				r := mat.Col(nil, ri, reference)
				w.Set(qi, ri, cosineSim(q, r))
			}
		}

		return w, nil

	case MeasureWasserstein, MeasureKL, MeasureJS:
		// Point-wise distances need valid distributions: drop rows that
		// contain zeros in any column, then 1-normalize column-wise.
		refClean, qryClean := dropZeroRows(reference, query)
		refDist := colNormalized(refClean)
		qryDist := colNormalized(qryClean)

		w := mat.NewDense(nq, nr, nil)
		for qi := 0; qi < nq; qi++ {
			q := mat.Col(nil, qi, qryDist)
			for ri := 0; ri < nr; ri++ {
				r := mat.Col(nil, ri, refDist)
				var dist float64
				switch measure {
				case MeasureWasserstein:
					dist = wassersteinDist(q, r)
				case MeasureKL:
					dist = klDivergence(q, r)
				case MeasureJS:
					dist = jsDivergence(q, r)
				}
				w.Set(qi, ri, 1/dist)
			}
		}

		return w, nil

	case MeasureMutualInfo:
		// Mutual information is a similarity, not a distance: no
		// inversion, and the raw columns are used since the estimate is
		// invariant under scaling.
		w := mat.NewDense(nq, nr, nil)
		for qi := 0; qi < nq; qi++ {
			q := mat.Col(nil, qi, query)
			for ri := 0; ri < nr; ri++ {
				r := mat.Col(nil, ri, reference)
				w.Set(qi, ri, mutualInfo(q, r))
			}
		}

		return w, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrBadMeasure, measure)
	}
}

// validateWeights rejects non-finite or negative weights.
func validateWeights(w *mat.Dense) error {
	r, c := w.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := w.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite weight at (%d,%d)", ErrBadWeights, i, j)
			}
			if v < 0 {
				return fmt.Errorf("%w: negative weight at (%d,%d)", ErrBadWeights, i, j)
			}
		}
	}

	return nil
}

// normalizeWeights makes every weight row sum to one, by scaling or by
// scaled softmax.
func normalizeWeights(w *mat.Dense, cfg ReduceOptions) error {
	r, c := w.Dims()
	for i := 0; i < r; i++ {
		row := w.RawRowView(i)
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += row[j]
		}
		if sum <= 0 {
			return fmt.Errorf("%w: weight row %d has zero mass", ErrBadWeights, i)
		}
		for j := 0; j < c; j++ {
			row[j] /= sum
		}

		switch cfg.Normalization {
		case NormalizeScale:
			// already scaled
		case NormalizeSoftmax:
			expSum := 0.0
			for j := 0; j < c; j++ {
				row[j] = math.Exp(cfg.SoftmaxBeta * row[j])
				expSum += row[j]
			}
			for j := 0; j < c; j++ {
				row[j] /= expSum
			}
		default:
			return fmt.Errorf("%w: %q", ErrBadNormalization, cfg.Normalization)
		}
	}

	return nil
}

// cosineSim is the cosine similarity of two vectors (0 when either has
// zero norm).
func cosineSim(a, b []float64) float64 {
	var dot, na, nb float64
	for t := range a {
		dot += a[t] * b[t]
		na += a[t] * a[t]
		nb += b[t] * b[t]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// wassersteinDist computes the 1-d Wasserstein distance between the
// empirical distributions of two equal-length samples: the mean
// absolute difference of the sorted values.
func wassersteinDist(q, r []float64) float64 {
	qs := append([]float64(nil), q...)
	rs := append([]float64(nil), r...)
	sort.Float64s(qs)
	sort.Float64s(rs)
	d := 0.0
	for t := range qs {
		d += math.Abs(qs[t] - rs[t])
	}

	return d / float64(len(qs))
}

// miBins is the per-variable histogram resolution of mutualInfo.
const miBins = 8

// mutualInfo estimates the mutual information of two samples on a
// discretized joint histogram with equal-width bins. A constant sample
// carries no information and scores zero.
func mutualInfo(a, b []float64) float64 {
	n := len(a)
	ba := binned(a)
	bb := binned(b)

	joint := make(map[[2]int]int, n)
	margA := make([]int, miBins)
	margB := make([]int, miBins)
	for t := 0; t < n; t++ {
		joint[[2]int{ba[t], bb[t]}]++
		margA[ba[t]]++
		margB[bb[t]]++
	}

	mi := 0.0
	for cell, c := range joint {
		p := float64(c) / float64(n)
		pa := float64(margA[cell[0]]) / float64(n)
		pb := float64(margB[cell[1]]) / float64(n)
		mi += p * math.Log(p/(pa*pb))
	}
	if mi < 0 {
		mi = 0
	}

	return mi
}

// binned assigns each value to an equal-width bin over the sample range.
func binned(xs []float64) []int {
	lo, hi := xs[0], xs[0]
	for _, v := range xs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]int, len(xs))
	if hi <= lo {
		return out
	}
	width := (hi - lo) / miBins
	for t, v := range xs {
		j := int((v - lo) / width)
		if j >= miBins {
			j = miBins - 1
		}
		out[t] = j
	}

	return out
}

// klDivergence computes D(q‖r) for strictly positive distributions.
func klDivergence(q, r []float64) float64 {
	d := 0.0
	for t := range q {
		d += q[t] * math.Log(q[t]/r[t])
	}

	return d
}

// jsDivergence computes the symmetric Jensen-Shannon divergence.
func jsDivergence(q, r []float64) float64 {
	d := 0.0
	for t := range q {
		m := (q[t] + r[t]) / 2
		d += q[t]*math.Log(q[t]/m)/2 + r[t]*math.Log(r[t]/m)/2
	}

	return d
}

// dropZeroRows removes every row that contains a zero in either matrix,
// so point-wise divergences stay finite.
func dropZeroRows(a, b *mat.Dense) (*mat.Dense, *mat.Dense) {
	n, ca := a.Dims()
	_, cb := b.Dims()
	var keep []int
	for i := 0; i < n; i++ {
		ok := true
		for j := 0; j < ca && ok; j++ {
			ok = a.At(i, j) != 0
		}
		for j := 0; j < cb && ok; j++ {
			ok = b.At(i, j) != 0
		}
		if ok {
			keep = append(keep, i)
		}
	}

	outA := mat.NewDense(max(len(keep), 1), ca, nil)
	outB := mat.NewDense(max(len(keep), 1), cb, nil)
	for t, i := range keep {
		for j := 0; j < ca; j++ {
			outA.Set(t, j, a.At(i, j))
		}
		for j := 0; j < cb; j++ {
			outB.Set(t, j, b.At(i, j))
		}
	}

	return outA, outB
}

// colNormalized scales each column to sum to one.
func colNormalized(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
		}
		if sum == 0 {
			sum = 1
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)/sum)
		}
	}

	return out
}
