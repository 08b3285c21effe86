package pl

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
)

// LogOdds draws per-cell log-odds of committing to fateA over fateB,
// stripped out by a categorical annotation. Each annotation group gets
// its own column of jittered points plus a horizontal median tick, so
// shifts in commitment across groups (clusters, time points) read off
// directly.
func LogOdds(fates *lineage.Lineage, fateA, fateB string, ds *cellgraph.Dataset, clusterKey, path string, opts ...Option) error {
	if fates == nil || ds == nil {
		return ErrNilInput
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	pa, err := fates.Col(fateA)
	if err != nil {
		return err
	}
	pb, err := fates.Col(fateB)
	if err != nil {
		return err
	}
	groups, err := ds.CategoricalObs(clusterKey)
	if err != nil {
		return err
	}

	odds := make([]float64, len(pa))
	for i := range pa {
		odds[i] = math.Log((pa[i] + DefaultLogOddsEps) / (pb[i] + DefaultLogOddsEps))
	}

	// Stable group order: first appearance in the annotation.
	order := make([]string, 0)
	byGroup := make(map[string][]float64)
	for i, g := range groups {
		if _, ok := byGroup[g]; !ok {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], odds[i])
	}
	for _, g := range order {
		if len(byGroup[g]) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyGroup, g)
		}
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("log-odds %s / %s", fateA, fateB)
	}
	p.Y.Label.Text = fmt.Sprintf("log((%s+eps)/(%s+eps))", fateA, fateB)

	for gi, g := range order {
		vals := byGroup[g]
		xys := make(plotter.XYs, len(vals))
		for i, v := range vals {
			xys[i] = plotter.XY{X: float64(gi) + jitter(gi, i), Y: v}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = withAlpha(paletteColor(gi), 160)
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(scatter)

		med := medianOf(vals)
		tick, err := plotter.NewLine(plotter.XYs{
			{X: float64(gi) - 0.3, Y: med},
			{X: float64(gi) + 0.3, Y: med},
		})
		if err != nil {
			return err
		}
		tick.LineStyle.Width = vg.Points(2)
		tick.LineStyle.Color = paletteColor(gi)
		p.Add(tick)
	}

	p.NominalX(order...)

	return p.Save(cfg.Width, cfg.Height, path)
}

// jitter spreads strip-plot points horizontally, deterministically.
func jitter(group, i int) float64 {
	h := uint64(group)*0x9e3779b97f4a7c15 + uint64(i)*0xbf58476d1ce4e5b9
	h ^= h >> 31

	return (float64(h%1000)/1000 - 0.5) * 0.5
}

func medianOf(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}

	return (s[n/2-1] + s[n/2]) / 2
}
