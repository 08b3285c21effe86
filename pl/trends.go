package pl

import (
	"context"
	"fmt"
	"image/color"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
	"github.com/Oisin-M/cellrank/models"
)

// trend is one fitted gene/fate curve on its prediction grid.
type trend struct {
	gene, fate   string
	x, y         []float64
	lower, upper []float64
	color        color.NRGBA
}

// fitTrends fits a fresh model per (gene, fate) pair concurrently.
func fitTrends(ctx context.Context, ds *cellgraph.Dataset, fates *lineage.Lineage, genes, fateNames []string, newModel func() models.Model, cfg Options) ([]trend, error) {
	colors := make(map[string]color.NRGBA, len(fateNames))
	names := fates.Names()
	hex := fates.Colors()
	for i, name := range names {
		c, err := hexColor(hex[i])
		if err != nil {
			return nil, err
		}
		colors[name] = c
	}

	out := make([]trend, len(genes)*len(fateNames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for gi, gene := range genes {
		for fi, fate := range fateNames {
			gi, fi, gene, fate := gi, fi, gene, fate
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				m := newModel()
				if m == nil {
					return ErrNilModel
				}
				if err := m.Prepare(ds, fates, gene, fate, cfg.PrepareOptions...); err != nil {
					return fmt.Errorf("prepare %s/%s: %w", gene, fate, err)
				}
				if err := m.Fit(); err != nil {
					return fmt.Errorf("fit %s/%s: %w", gene, fate, err)
				}
				pred, err := m.Predict(nil)
				if err != nil {
					return err
				}
				lower, upper, err := m.ConfidenceInterval(nil)
				if err != nil {
					return err
				}
				out[gi*len(fateNames)+fi] = trend{
					gene: gene, fate: fate,
					x: m.XTest(), y: pred,
					lower: lower, upper: upper,
					color: colors[fate],
				}

				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// GeneTrends draws the fitted expression trend of each gene toward
// each fate: one line per gene/fate pair in the fate's color, with the
// confidence band and the raw cell scatter when a single gene is
// requested.
func GeneTrends(ctx context.Context, ds *cellgraph.Dataset, fates *lineage.Lineage, genes []string, newModel func() models.Model, path string, opts ...Option) error {
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

	trends, err := fitTrends(ctx, ds, fates, genes, fates.Names(), newModel, cfg)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	if p.Title.Text == "" && len(genes) == 1 {
		p.Title.Text = genes[0]
	}
	p.X.Label.Text = "pseudotime"
	p.Y.Label.Text = "expression"

	single := len(genes) == 1
	if single {
		if err := addCellScatter(p, ds, genes[0], cfg); err != nil {
			return err
		}
	}

	for _, tr := range trends {
		if single {
			if err := addBand(p, tr); err != nil {
				return err
			}
		}
		line, err := plotter.NewLine(toXYs(tr.x, tr.y))
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = tr.color
		if !single {
			// Distinguish genes by dash pattern within a fate color.
			line.LineStyle.Dashes = dashPattern(indexOf(genes, tr.gene))
		}
		p.Add(line)
		label := tr.fate
		if !single {
			label = tr.gene + " / " + tr.fate
		}
		p.Legend.Add(label, line)
	}

	return p.Save(cfg.Width, cfg.Height, path)
}

// ClusterTrends groups the per-gene trends toward one fate into k
// clusters of similar shape and draws each cluster's mean curve with a
// min/max band.
func ClusterTrends(ctx context.Context, ds *cellgraph.Dataset, fates *lineage.Lineage, genes []string, fate string, k int, newModel func() models.Model, path string, opts ...Option) error {
	if ds == nil || fates == nil {
		return ErrNilInput
	}
	if len(genes) == 0 {
		return ErrNoGenes
	}
	if newModel == nil {
		return ErrNilModel
	}
	if k < 1 || k > len(genes) {
		return fmt.Errorf("%w: %d clusters for %d genes", ErrBadClusterCount, k, len(genes))
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	trends, err := fitTrends(ctx, ds, fates, genes, []string{fate}, newModel, cfg)
	if err != nil {
		return err
	}

	// Shape-normalize every trend to [0, 1] before clustering.
	curves := make([][]float64, len(trends))
	for i, tr := range trends {
		curves[i] = minMaxScale(tr.y)
	}
	assign := clusterCurves(curves, k)

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "pseudotime"
	p.Y.Label.Text = "scaled expression"

	grid := trends[0].x
	for c := 0; c < k; c++ {
		var members [][]float64
		for i := range curves {
			if assign[i] == c {
				members = append(members, curves[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		mean, lo, hi := curveStats(members)
		clusterColor := paletteColor(c)

		band := trend{x: grid, lower: lo, upper: hi, color: clusterColor}
		if err := addBand(p, band); err != nil {
			return err
		}
		line, err := plotter.NewLine(toXYs(grid, mean))
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = clusterColor
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("cluster %d (%d genes)", c+1, len(members)), line)
	}

	return p.Save(cfg.Width, cfg.Height, path)
}

// addCellScatter draws the raw expression of one gene against
// pseudotime in light gray.
func addCellScatter(p *plot.Plot, ds *cellgraph.Dataset, gene string, cfg Options) error {
	prep := models.DefaultPrepareOptions()
	for _, opt := range cfg.PrepareOptions {
		opt(&prep)
	}
	pt, err := ds.NumericObs(prep.TimeKey)
	if err != nil {
		return err
	}
	var expr []float64
	if prep.DataKey == "" {
		expr, err = ds.Gene(gene)
	} else {
		expr, err = ds.LayerGene(prep.DataKey, gene)
	}
	if err != nil {
		return err
	}

	scatter, err := plotter.NewScatter(toXYs(pt, expr))
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.NRGBA{R: 170, G: 170, B: 170, A: 120}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)

	return nil
}

// addBand fills the area between a trend's lower and upper curves.
func addBand(p *plot.Plot, tr trend) error {
	if tr.lower == nil || tr.upper == nil {
		return nil
	}
	xys := make(plotter.XYs, 0, 2*len(tr.x))
	for i := range tr.x {
		xys = append(xys, plotter.XY{X: tr.x[i], Y: tr.lower[i]})
	}
	for i := len(tr.x) - 1; i >= 0; i-- {
		xys = append(xys, plotter.XY{X: tr.x[i], Y: tr.upper[i]})
	}
	poly, err := plotter.NewPolygon(xys)
	if err != nil {
		return err
	}
	poly.Color = withAlpha(tr.color, bandAlpha)
	poly.LineStyle.Color = color.NRGBA{}
	p.Add(poly)

	return nil
}

// clusterCurves runs Lloyd iterations with evenly spaced initial
// centers; deterministic for fixed inputs.
func clusterCurves(curves [][]float64, k int) []int {
	n := len(curves)
	d := len(curves[0])
	centers := make([][]float64, k)
	for c := 0; c < k; c++ {
		src := curves[c*n/k]
		centers[c] = append([]float64(nil), src...)
	}

	assign := make([]int, n)
	for it := 0; it < 100; it++ {
		changed := false
		for i, curve := range curves {
			best, bestDist := 0, curveSqDist(curve, centers[0])
			for c := 1; c < k; c++ {
				if dist := curveSqDist(curve, centers[c]); dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && it > 0 {
			break
		}

		for c := range centers {
			for j := range centers[c] {
				centers[c][j] = 0
			}
		}
		counts := make([]int, k)
		for i, curve := range curves {
			c := assign[i]
			counts[c]++
			for j := range curve {
				centers[c][j] += curve[j]
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				centers[c][j] /= float64(counts[c])
			}
		}
	}

	return assign
}

func curveSqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return sum
}

// curveStats returns the pointwise mean, min and max across curves.
func curveStats(curves [][]float64) (mean, lo, hi []float64) {
	d := len(curves[0])
	mean = make([]float64, d)
	lo = append([]float64(nil), curves[0]...)
	hi = append([]float64(nil), curves[0]...)
	for _, curve := range curves {
		for j, v := range curve {
			mean[j] += v
			if v < lo[j] {
				lo[j] = v
			}
			if v > hi[j] {
				hi[j] = v
			}
		}
	}
	for j := range mean {
		mean[j] /= float64(len(curves))
	}

	return mean, lo, hi
}

// minMaxScale maps a curve onto [0, 1]; constant curves collapse to 0.
func minMaxScale(xs []float64) []float64 {
	lo, hi := xs[0], xs[0]
	for _, v := range xs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(xs))
	if hi <= lo {
		return out
	}
	for i, v := range xs {
		out[i] = (v - lo) / (hi - lo)
	}

	return out
}

func toXYs(x, y []float64) plotter.XYs {
	xys := make(plotter.XYs, len(x))
	for i := range x {
		xys[i] = plotter.XY{X: x[i], Y: y[i]}
	}

	return xys
}

func dashPattern(i int) []vg.Length {
	patterns := [][]vg.Length{
		nil,
		{vg.Points(4), vg.Points(2)},
		{vg.Points(1), vg.Points(2)},
		{vg.Points(6), vg.Points(2), vg.Points(1), vg.Points(2)},
	}

	return patterns[i%len(patterns)]
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}

	return 0
}

// paletteColor cycles the categorical palette used for cluster and
// group coloring.
func paletteColor(i int) color.NRGBA {
	palette := []color.NRGBA{
		{R: 0x1f, G: 0x77, B: 0xb4, A: 255},
		{R: 0xff, G: 0x7f, B: 0x0e, A: 255},
		{R: 0x2c, G: 0xa0, B: 0x2c, A: 255},
		{R: 0xd6, G: 0x27, B: 0x28, A: 255},
		{R: 0x94, G: 0x67, B: 0xbd, A: 255},
		{R: 0x8c, G: 0x56, B: 0x4b, A: 255},
		{R: 0xe3, G: 0x77, B: 0xc2, A: 255},
		{R: 0x7f, G: 0x7f, B: 0x7f, A: 255},
	}

	return palette[i%len(palette)]
}
