package pl

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
)

// AggregateAbsorptionProbabilities draws the mean fate probability of
// every annotation group as a grouped bar chart: one group of bars per
// cluster, one bar per fate in the fate's color.
func AggregateAbsorptionProbabilities(fates *lineage.Lineage, ds *cellgraph.Dataset, clusterKey, path string, opts ...Option) error {
	if fates == nil || ds == nil {
		return ErrNilInput
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	groups, err := ds.CategoricalObs(clusterKey)
	if err != nil {
		return err
	}

	order := make([]string, 0)
	index := make(map[string]int)
	counts := make(map[string]int)
	for _, g := range groups {
		if _, ok := index[g]; !ok {
			index[g] = len(order)
			order = append(order, g)
		}
		counts[g]++
	}
	for _, g := range order {
		if counts[g] == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyGroup, g)
		}
	}

	names := fates.Names()
	hex := fates.Colors()
	k := len(names)

	// means[f][g] is the mean probability of fate f within group g.
	means := make([][]float64, k)
	for f, name := range names {
		col, err := fates.Col(name)
		if err != nil {
			return err
		}
		means[f] = make([]float64, len(order))
		for i, g := range groups {
			means[f][index[g]] += col[i]
		}
		for gi, g := range order {
			means[f][gi] /= float64(counts[g])
		}
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.Y.Label.Text = "mean fate probability"

	barWidth := vg.Points(40 / float64(k))
	for f, name := range names {
		bars, err := plotter.NewBarChart(plotter.Values(means[f]), barWidth)
		if err != nil {
			return err
		}
		c, err := hexColor(hex[f])
		if err != nil {
			return err
		}
		bars.Color = c
		bars.LineStyle.Width = 0
		bars.Offset = barWidth * vg.Length(float64(f)-float64(k-1)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.Legend.Top = true

	p.NominalX(order...)

	return p.Save(cfg.Width, cfg.Height, path)
}
