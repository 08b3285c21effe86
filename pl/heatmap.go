package pl

import (
	"context"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
	"github.com/Oisin-M/cellrank/models"
)

// trendGrid adapts fitted trends to the heat-map grid contract: one
// row per gene over the shared pseudotime grid.
type trendGrid struct {
	x    []float64
	rows [][]float64
}

func (g *trendGrid) Dims() (int, int)   { return len(g.x), len(g.rows) }
func (g *trendGrid) Z(c, r int) float64 { return g.rows[r][c] }
func (g *trendGrid) X(c int) float64    { return g.x[c] }
func (g *trendGrid) Y(r int) float64    { return float64(r) }

// Heatmap draws the min-max scaled expression trend of each gene
// toward one fate as a genes × pseudotime heat map. With the
// sort-by-peak option rows are ordered by the pseudotime of their
// maximum, which exposes expression cascades.
func Heatmap(ctx context.Context, ds *cellgraph.Dataset, fates *lineage.Lineage, genes []string, fate string, newModel func() models.Model, path string, opts ...Option) error {
	if ds == nil || fates == nil {
		return ErrNilInput
	}
	if len(genes) == 0 {
		return ErrNoGenes
	}
	if newModel == nil {
		return ErrNilModel
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	trends, err := fitTrends(ctx, ds, fates, genes, []string{fate}, newModel, cfg)
	if err != nil {
		return err
	}

	rows := make([][]float64, len(trends))
	order := make([]int, len(trends))
	for i, tr := range trends {
		rows[i] = minMaxScale(tr.y)
		order[i] = i
	}
	if cfg.SortByPeak {
		sort.SliceStable(order, func(a, b int) bool {
			return peakIndex(rows[order[a]]) < peakIndex(rows[order[b]])
		})
	}
	sorted := make([][]float64, len(rows))
	labels := make([]string, len(rows))
	for t, i := range order {
		sorted[t] = rows[i]
		labels[t] = trends[i].gene
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	if p.Title.Text == "" {
		p.Title.Text = fate
	}
	p.X.Label.Text = "pseudotime"
	p.Y.Label.Text = "genes"

	hm := plotter.NewHeatMap(
		&trendGrid{x: trends[0].x, rows: sorted},
		moreland.SmoothBlueRed().Palette(255),
	)
	p.Add(hm)

	p.NominalY(labels...)

	return p.Save(cfg.Width, cfg.Height, path)
}

// peakIndex is the grid position of a curve's maximum.
func peakIndex(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}

	return best
}
