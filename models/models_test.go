package models_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
	"github.com/Oisin-M/cellrank/models"
)

// trendFixture builds a 30-cell dataset whose single gene follows
// y(t) = 2t + 1 along pseudotime t in [0, 1], plus a two-fate lineage
// whose "A" weight grows linearly with pseudotime.
func trendFixture(t *testing.T, y func(float64) float64) (*cellgraph.Dataset, *lineage.Lineage) {
	t.Helper()
	const n = 30

	ids := make([]string, n)
	pt := make([]float64, n)
	expr := make([]float64, n)
	probs := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("cell-%02d", i)
		pt[i] = float64(i) / float64(n-1)
		expr[i] = y(pt[i])
		w := 0.3 + 0.4*pt[i]
		probs.Set(i, 0, w)
		probs.Set(i, 1, 1-w)
	}

	ds, err := cellgraph.NewDataset(
		mat.NewDense(n, 1, expr), ids, []string{"G1"},
		cellgraph.WithNumericObs(cellgraph.PseudotimeKey, pt),
	)
	require.NoError(t, err)

	lin, err := lineage.New(probs, []string{"A", "B"}, nil)
	require.NoError(t, err)

	return ds, lin
}

func linearTrend(x float64) float64 { return 2*x + 1 }

func TestBase_Prepare(t *testing.T) {
	ds, lin := trendFixture(t, linearTrend)

	g := models.NewGAM()
	require.NoError(t, g.Prepare(ds, lin, "G1", "A", models.WithTestPoints(50)))

	grid := g.XTest()
	require.Len(t, grid, 50)
	assert.InDelta(t, 0.0, grid[0], 1e-12)
	assert.InDelta(t, 1.0, grid[len(grid)-1], 1e-12)
	assert.Equal(t, "G1", g.Gene())
	assert.Equal(t, "A", g.Fate())
}

func TestBase_PrepareErrors(t *testing.T) {
	ds, lin := trendFixture(t, linearTrend)
	g := models.NewGAM()

	assert.ErrorIs(t, g.Prepare(nil, lin, "G1", "A"), models.ErrNilDataset)
	assert.ErrorIs(t, g.Prepare(ds, nil, "G1", "A"), models.ErrNilLineage)
	assert.ErrorIs(t, g.Prepare(ds, lin, "nope", "A"), cellgraph.ErrGeneNotFound)
	assert.ErrorIs(t, g.Prepare(ds, lin, "G1", "nope"), lineage.ErrUnknownName)
	assert.ErrorIs(t, g.Prepare(ds, lin, "G1", "A",
		models.WithTimeKey("missing")), cellgraph.ErrObsNotFound)
}

func TestGAM_LinearTrend(t *testing.T) {
	ds, lin := trendFixture(t, linearTrend)

	g := models.NewGAM(models.WithLambda(1e-6))
	require.NoError(t, g.Prepare(ds, lin, "G1", "A", models.WithTestPoints(50)))

	_, err := g.Predict(nil)
	assert.ErrorIs(t, err, models.ErrNotFitted)

	require.NoError(t, g.Fit())

	pred, err := g.Predict(nil)
	require.NoError(t, err)
	for i, x := range g.XTest() {
		assert.InDelta(t, linearTrend(x), pred[i], 1e-3, "grid point %d", i)
	}

	lower, upper, err := g.ConfidenceInterval(nil)
	require.NoError(t, err)
	require.Len(t, lower, 50)
	require.Len(t, upper, 50)
	for i := range lower {
		assert.LessOrEqual(t, lower[i], pred[i]+1e-9)
		assert.GreaterOrEqual(t, upper[i], pred[i]-1e-9)
	}
}

func TestGAM_FitBeforePrepare(t *testing.T) {
	g := models.NewGAM()
	assert.ErrorIs(t, g.Fit(), models.ErrNotPrepared)
}

func TestGAM_Expectile(t *testing.T) {
	// Expression alternates around zero; a high expectile fit must sit
	// clearly above the mean fit.
	alternating := func(x float64) float64 {
		if int(math.Round(x*29))%2 == 0 {
			return 1
		}

		return -1
	}

	fit := func(opts ...models.GAMOption) []float64 {
		ds, lin := trendFixture(t, alternating)
		g := models.NewGAM(append([]models.GAMOption{models.WithLambda(100)}, opts...)...)
		require.NoError(t, g.Prepare(ds, lin, "G1", "A", models.WithTestPoints(20)))
		require.NoError(t, g.Fit())
		pred, err := g.Predict(nil)
		require.NoError(t, err)

		return pred
	}

	meanPred := fit()
	expPred := fit(models.WithExpectile(0.9))

	avg := func(xs []float64) float64 {
		sum := 0.0
		for _, v := range xs {
			sum += v
		}

		return sum / float64(len(xs))
	}
	assert.Greater(t, avg(expPred), avg(meanPred)+0.3)
}

func TestWrap_RidgePoly(t *testing.T) {
	ds, lin := trendFixture(t, linearTrend)

	m := models.Wrap(models.NewRidgePoly(2, 1e-9))
	require.NoError(t, m.Prepare(ds, lin, "G1", "A", models.WithTestPoints(25)))
	require.NoError(t, m.Fit())

	pred, err := m.Predict(nil)
	require.NoError(t, err)
	for i, x := range m.XTest() {
		assert.InDelta(t, linearTrend(x), pred[i], 1e-3, "grid point %d", i)
	}

	lower, upper, err := m.ConfidenceInterval(nil)
	require.NoError(t, err)
	for i := range lower {
		assert.LessOrEqual(t, lower[i], upper[i])
	}
}

// fixedBand is a regressor with its own confidence interval.
type fixedBand struct {
	level float64
}

func (f *fixedBand) FitWeighted(x, y, w []float64) error { return nil }

func (f *fixedBand) Predict(x []float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = f.level
	}

	return out, nil
}

func (f *fixedBand) ConfidenceInterval(x []float64) ([]float64, []float64, error) {
	lo := make([]float64, len(x))
	hi := make([]float64, len(x))
	for i := range x {
		lo[i], hi[i] = f.level-1, f.level+1
	}

	return lo, hi, nil
}

func TestWrap_PrefersOwnConfidenceInterval(t *testing.T) {
	ds, lin := trendFixture(t, linearTrend)

	m := models.Wrap(&fixedBand{level: 3})
	require.NoError(t, m.Prepare(ds, lin, "G1", "A", models.WithTestPoints(10)))
	require.NoError(t, m.Fit())

	lower, upper, err := m.ConfidenceInterval(nil)
	require.NoError(t, err)
	for i := range lower {
		assert.Equal(t, 2.0, lower[i])
		assert.Equal(t, 4.0, upper[i])
	}
}

func TestRidgePoly_Errors(t *testing.T) {
	r := models.NewRidgePoly(2, 0)

	_, err := r.Predict([]float64{1})
	assert.ErrorIs(t, err, models.ErrNotFitted)

	err = r.FitWeighted([]float64{1, 2}, []float64{1}, []float64{1, 1})
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	err = r.FitWeighted([]float64{1, 2}, []float64{1, 2}, []float64{1, 1})
	assert.ErrorIs(t, err, models.ErrTooFewPoints)

	assert.Panics(t, func() { models.NewRidgePoly(0, 0) })
	assert.Panics(t, func() { models.Wrap(nil) })
	assert.Panics(t, func() { models.WithExpectile(1.5) })
}
