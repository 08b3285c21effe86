package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
)

func nan() float64 { return math.NaN() }

// base carries the prepared training data shared by the concrete
// models: deduped, pseudotime-sorted (x, y, w) triples plus the
// prediction grid.
type base struct {
	x, y, w  []float64
	xTest    []float64
	gene     string
	fate     string
	prepared bool
}

// Prepare extracts the training data for one gene and one fate.
//
// Steps:
//  1. x = pseudotime, y = expression (X or a layer), w = fate weights
//     with sub-threshold entries replaced;
//  2. drop cells with non-finite pseudotime;
//  3. dedupe pseudotime (first occurrence wins) and sort ascending;
//  4. locate the grid span: start at the minimum pseudotime (or the
//     earliest cell of StartFate), end at the weight-mass peak among
//     cells above the endpoint threshold (or the latest cell of
//     EndFate);
//  5. build the linspace grid, optionally restrict training points to
//     it and drop dropout cells.
func (b *base) Prepare(ds *cellgraph.Dataset, fates *lineage.Lineage, gene, fate string, opts ...PrepareOption) error {
	if ds == nil {
		return ErrNilDataset
	}
	if fates == nil {
		return ErrNilLineage
	}
	cfg := DefaultPrepareOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	// 1) Raw columns.
	x, err := ds.NumericObs(cfg.TimeKey)
	if err != nil {
		return err
	}
	var y []float64
	if cfg.DataKey == "" {
		y, err = ds.Gene(gene)
	} else {
		y, err = ds.LayerGene(cfg.DataKey, gene)
	}
	if err != nil {
		return err
	}
	w, err := fates.Col(fate)
	if err != nil {
		return err
	}
	if len(x) != len(y) || len(x) != len(w) {
		return fmt.Errorf("%w: %d times, %d expressions, %d weights",
			ErrShapeMismatch, len(x), len(y), len(w))
	}
	for i := range w {
		if w[i] < cfg.WeightThreshold {
			w[i] = cfg.WeightReplacement
		}
	}

	// 2-3) Finite, unique, sorted by pseudotime.
	x, y, w = dedupeSort(x, y, w)
	if len(x) < 2 {
		return fmt.Errorf("%w: %d usable cells", ErrTooFewPoints, len(x))
	}

	// 4) Grid span.
	start := x[0]
	if cfg.StartFate != "" && cfg.StartFate != fate {
		if start, err = fateExtreme(ds, fates, cfg, cfg.StartFate, false); err != nil {
			return err
		}
	}
	var end float64
	if cfg.EndFate != "" && cfg.EndFate != fate {
		if end, err = fateExtreme(ds, fates, cfg, cfg.EndFate, true); err != nil {
			return err
		}
	} else {
		if end, err = weightPeak(x, w, cfg.EndpointThreshold); err != nil {
			return err
		}
	}
	if start > end {
		start, end = end, start
	}

	// 5) Grid and training filters.
	xTest := linspace(start, end, cfg.TestPoints)
	if cfg.FilterData {
		x, y, w = filterTriples(x, y, w, func(i int) bool {
			return x[i] >= start && x[i] <= end
		})
	}
	if !math.IsNaN(cfg.FilterDropouts) {
		cutoff := cfg.FilterDropouts
		x, y, w = filterTriples(x, y, w, func(i int) bool {
			return y[i] >= cutoff && y[i] != 0
		})
	}
	if len(x) < 2 {
		return fmt.Errorf("%w: %d cells after filtering", ErrTooFewPoints, len(x))
	}

	b.x, b.y, b.w = x, y, w
	b.xTest = xTest
	b.gene, b.fate = gene, fate
	b.prepared = true

	return nil
}

// XTest returns a copy of the prediction grid.
func (b *base) XTest() []float64 { return append([]float64(nil), b.xTest...) }

// Gene returns the prepared gene name.
func (b *base) Gene() string { return b.gene }

// Fate returns the prepared fate name.
func (b *base) Fate() string { return b.fate }

// resolveGrid substitutes the prepared grid when the caller passes nil.
func (b *base) resolveGrid(xTest []float64) []float64 {
	if xTest == nil {
		return b.xTest
	}

	return xTest
}

// defaultConfInt is the fallback confidence band: the prediction error
// of the fitted trend on the positive-weight training points, widened
// by the usual leverage term and halved.
func (b *base) defaultConfInt(predict func([]float64) ([]float64, error), xTest []float64) ([]float64, []float64, error) {
	var xs, ys []float64
	for i := range b.x {
		if b.w[i] > 0 {
			xs = append(xs, b.x[i])
			ys = append(ys, b.y[i])
		}
	}
	n := float64(len(xs))
	if n <= 2 {
		return nil, nil, fmt.Errorf("%w: %d positive-weight cells", ErrTooFewPoints, len(xs))
	}

	yHat, err := predict(xs)
	if err != nil {
		return nil, nil, err
	}
	ssr := 0.0
	for i := range ys {
		diff := yHat[i] - ys[i]
		ssr += diff * diff
	}
	sigma := math.Sqrt(ssr / (n - 2))

	mean := 0.0
	for _, v := range b.x {
		mean += v
	}
	mean /= float64(len(b.x))
	sxx := 0.0
	for _, v := range b.x {
		sxx += (v - mean) * (v - mean)
	}
	if sxx <= DefaultEps {
		return nil, nil, fmt.Errorf("%w: degenerate pseudotime", ErrTooFewPoints)
	}

	yTest, err := predict(xTest)
	if err != nil {
		return nil, nil, err
	}
	lower := make([]float64, len(xTest))
	upper := make([]float64, len(xTest))
	for i, xt := range xTest {
		std := sigma * math.Sqrt(1+1/n+(xt-mean)*(xt-mean)/sxx) / 2
		lower[i] = yTest[i] - std
		upper[i] = yTest[i] + std
	}

	return lower, upper, nil
}

// dedupeSort drops non-finite pseudotimes, keeps the first occurrence
// of each pseudotime and sorts the triples ascending.
func dedupeSort(x, y, w []float64) ([]float64, []float64, []float64) {
	seen := make(map[float64]bool, len(x))
	var xs, ys, ws []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || seen[x[i]] {
			continue
		}
		seen[x[i]] = true
		xs = append(xs, x[i])
		ys = append(ys, y[i])
		ws = append(ws, w[i])
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	outX := make([]float64, len(xs))
	outY := make([]float64, len(xs))
	outW := make([]float64, len(xs))
	for t, i := range order {
		outX[t], outY[t], outW[t] = xs[i], ys[i], ws[i]
	}

	return outX, outY, outW
}

// weightPeak finds the pseudotime where the smoothed fate weight mass
// peaks among cells above the threshold (median weight by default).
func weightPeak(x, w []float64, threshold float64) (float64, error) {
	if math.IsNaN(threshold) {
		threshold = median(w)
	}

	var xs, ws []float64
	for i := range w {
		if w[i] > threshold {
			xs = append(xs, x[i])
			ws = append(ws, w[i])
		}
	}
	if len(xs) == 0 {
		return 0, ErrNoWeights
	}

	smoothed := movingAverage(ws, smoothWindow)
	best := 0
	for i := range smoothed {
		if smoothed[i] > smoothed[best] {
			best = i
		}
	}

	return xs[best], nil
}

// fateExtreme returns the min (or max) pseudotime among cells whose
// strongest fate is the named one.
func fateExtreme(ds *cellgraph.Dataset, fates *lineage.Lineage, cfg PrepareOptions, name string, wantMax bool) (float64, error) {
	x, err := ds.NumericObs(cfg.TimeKey)
	if err != nil {
		return 0, err
	}
	target, err := fates.Col(name)
	if err != nil {
		return 0, err
	}

	names := fates.Names()
	cols := make(map[string][]float64, len(names))
	for _, n := range names {
		col, err := fates.Col(n)
		if err != nil {
			return 0, err
		}
		cols[n] = col
	}

	found := false
	extreme := 0.0
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			continue
		}
		strongest := true
		for _, n := range names {
			if n != name && cols[n][i] > target[i] {
				strongest = false

				break
			}
		}
		if !strongest {
			continue
		}
		if !found || (wantMax && x[i] > extreme) || (!wantMax && x[i] < extreme) {
			extreme = x[i]
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: no cells assigned to fate %q", ErrTooFewPoints, name)
	}

	return extreme, nil
}

func filterTriples(x, y, w []float64, keep func(int) bool) ([]float64, []float64, []float64) {
	var xs, ys, ws []float64
	for i := range x {
		if keep(i) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
			ws = append(ws, w[i])
		}
	}

	return xs, ys, ws
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start

		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end

	return out
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	return (sorted[mid-1] + sorted[mid]) / 2
}

// movingAverage smooths with a centered window, clamping at the edges.
func movingAverage(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	half := window / 2
	for i := range xs {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(xs) {
			hi = len(xs) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += xs[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}

	return out
}
