package pl

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Oisin-M/cellrank/lineage"
)

// CircularProjection places every cell inside the unit circle at the
// fate-probability-weighted combination of the fate anchor points: one
// anchor per fate, evenly spaced on the circle. Cells committed to a
// single fate sit at its anchor; undecided cells gravitate toward the
// center. Cells are colored by their strongest fate.
func CircularProjection(fates *lineage.Lineage, path string, opts ...Option) error {
	if fates == nil {
		return ErrNilInput
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	names := fates.Names()
	k := len(names)
	n := fates.NumCells()

	anchorX := make([]float64, k)
	anchorY := make([]float64, k)
	for f := 0; f < k; f++ {
		angle := 2 * math.Pi * float64(f) / float64(k)
		anchorX[f] = math.Cos(angle)
		anchorY[f] = math.Sin(angle)
	}

	cols := make([][]float64, k)
	for f, name := range names {
		col, err := fates.Col(name)
		if err != nil {
			return err
		}
		cols[f] = col
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Min, p.X.Max = -1.2, 1.2
	p.Y.Min, p.Y.Max = -1.2, 1.2
	p.HideAxes()

	// One scatter per fate so each keeps its color and legend entry.
	hex := fates.Colors()
	perFate := make([]plotter.XYs, k)
	for i := 0; i < n; i++ {
		var x, y float64
		best := 0
		for f := 0; f < k; f++ {
			x += cols[f][i] * anchorX[f]
			y += cols[f][i] * anchorY[f]
			if cols[f][i] > cols[best][i] {
				best = f
			}
		}
		perFate[best] = append(perFate[best], plotter.XY{X: x, Y: y})
	}
	for f, name := range names {
		if len(perFate[f]) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(perFate[f])
		if err != nil {
			return err
		}
		c, err := hexColor(hex[f])
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = c
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(scatter)
		p.Legend.Add(name, scatter)
	}

	// Spokes from the center to each fate anchor, plus anchor labels.
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, k),
		Labels: make([]string, k),
	}
	for f, name := range names {
		spoke, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: 0},
			{X: anchorX[f], Y: anchorY[f]},
		})
		if err != nil {
			return err
		}
		spoke.LineStyle.Color = paletteColor(7) // gray
		spoke.LineStyle.Dashes = dashPattern(1)
		p.Add(spoke)

		labels.XYs[f] = plotter.XY{X: 1.05 * anchorX[f], Y: 1.05 * anchorY[f]}
		labels.Labels[f] = name
	}
	anchorLabels, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	p.Add(anchorLabels)

	return p.Save(cfg.Width, cfg.Height, path)
}
