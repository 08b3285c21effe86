package pl_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/lineage"
	"github.com/Oisin-M/cellrank/models"
	"github.com/Oisin-M/cellrank/pl"
)

// plotFixture builds a 30-cell, two-gene dataset with pseudotime, a
// two-group cluster annotation and a two-fate lineage.
func plotFixture(t *testing.T) (*cellgraph.Dataset, *lineage.Lineage) {
	t.Helper()
	const n = 30

	ids := make([]string, n)
	pt := make([]float64, n)
	clusters := make([]string, n)
	x := mat.NewDense(n, 2, nil)
	probs := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("cell-%02d", i)
		pt[i] = float64(i) / float64(n-1)
		if i < n/2 {
			clusters[i] = "early"
		} else {
			clusters[i] = "late"
		}
		x.Set(i, 0, 2*pt[i]+1)
		x.Set(i, 1, 3-2*pt[i])
		w := 0.3 + 0.4*pt[i]
		probs.Set(i, 0, w)
		probs.Set(i, 1, 1-w)
	}

	ds, err := cellgraph.NewDataset(x, ids, []string{"G1", "G2"},
		cellgraph.WithNumericObs(cellgraph.PseudotimeKey, pt),
		cellgraph.WithCategoricalObs("clusters", clusters),
	)
	require.NoError(t, err)

	lin, err := lineage.New(probs, []string{"A", "B"}, nil)
	require.NoError(t, err)

	return ds, lin
}

func newModel() models.Model { return models.Wrap(models.NewRidgePoly(2, 1e-6)) }

// requirePlotted asserts the file exists and is non-empty.
func requirePlotted(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestGeneTrends(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "trends.png")

	require.NoError(t, pl.GeneTrends(context.Background(), ds, lin,
		[]string{"G1"}, newModel, path))
	requirePlotted(t, path)
}

func TestGeneTrends_MultiGene(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "trends.svg")

	require.NoError(t, pl.GeneTrends(context.Background(), ds, lin,
		[]string{"G1", "G2"}, newModel, path,
		pl.WithTitle("trends"), pl.WithSize(8, 5)))
	requirePlotted(t, path)
}

func TestGeneTrends_Errors(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "trends.png")
	ctx := context.Background()

	assert.ErrorIs(t, pl.GeneTrends(ctx, nil, lin, []string{"G1"}, newModel, path), pl.ErrNilInput)
	assert.ErrorIs(t, pl.GeneTrends(ctx, ds, nil, []string{"G1"}, newModel, path), pl.ErrNilInput)
	assert.ErrorIs(t, pl.GeneTrends(ctx, ds, lin, nil, newModel, path), pl.ErrNoGenes)
	assert.ErrorIs(t, pl.GeneTrends(ctx, ds, lin, []string{"G1"}, nil, path), pl.ErrNilModel)
	assert.ErrorIs(t, pl.GeneTrends(ctx, ds, lin, []string{"nope"}, newModel, path),
		cellgraph.ErrGeneNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, pl.GeneTrends(cancelled, ds, lin, []string{"G1"}, newModel, path))
}

func TestHeatmap(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "heatmap.png")

	require.NoError(t, pl.Heatmap(context.Background(), ds, lin,
		[]string{"G1", "G2"}, "A", newModel, path, pl.WithSortByPeak()))
	requirePlotted(t, path)
}

func TestClusterTrends(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "clusters.png")

	require.NoError(t, pl.ClusterTrends(context.Background(), ds, lin,
		[]string{"G1", "G2"}, "A", 2, newModel, path))
	requirePlotted(t, path)
}

func TestClusterTrends_BadCount(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "clusters.png")
	ctx := context.Background()

	assert.ErrorIs(t, pl.ClusterTrends(ctx, ds, lin, []string{"G1", "G2"}, "A", 0, newModel, path),
		pl.ErrBadClusterCount)
	assert.ErrorIs(t, pl.ClusterTrends(ctx, ds, lin, []string{"G1", "G2"}, "A", 3, newModel, path),
		pl.ErrBadClusterCount)
}

func TestCircularProjection(t *testing.T) {
	_, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "circle.png")

	require.NoError(t, pl.CircularProjection(lin, path))
	requirePlotted(t, path)

	assert.ErrorIs(t, pl.CircularProjection(nil, path), pl.ErrNilInput)
}

func TestLogOdds(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "logodds.png")

	require.NoError(t, pl.LogOdds(lin, "A", "B", ds, "clusters", path))
	requirePlotted(t, path)
}

func TestLogOdds_Errors(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "logodds.png")

	assert.ErrorIs(t, pl.LogOdds(nil, "A", "B", ds, "clusters", path), pl.ErrNilInput)
	assert.ErrorIs(t, pl.LogOdds(lin, "nope", "B", ds, "clusters", path), lineage.ErrUnknownName)
	assert.ErrorIs(t, pl.LogOdds(lin, "A", "B", ds, "missing", path), cellgraph.ErrObsNotFound)
}

func TestAggregateAbsorptionProbabilities(t *testing.T) {
	ds, lin := plotFixture(t)
	path := filepath.Join(t.TempDir(), "bars.png")

	require.NoError(t, pl.AggregateAbsorptionProbabilities(lin, ds, "clusters", path))
	requirePlotted(t, path)

	assert.ErrorIs(t, pl.AggregateAbsorptionProbabilities(nil, ds, "clusters", path), pl.ErrNilInput)
	assert.ErrorIs(t, pl.AggregateAbsorptionProbabilities(lin, ds, "missing", path),
		cellgraph.ErrObsNotFound)
}

func TestWithSize_Panics(t *testing.T) {
	assert.Panics(t, func() { pl.WithSize(0, 4) })
	assert.Panics(t, func() { pl.WithSize(6, -1) })
}
