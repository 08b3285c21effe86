package external

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/cellgraph"
	"github.com/Oisin-M/cellrank/kernels"
)

var (
	_ kernels.Kernel = (*StationaryOTKernel)(nil)
	_ kernels.Kernel = (*WOTKernel)(nil)
)

// twoClusterDataset places two well-separated triples of cells in a
// 2-d embedding, annotated with time points 0/1 and growth rates.
func twoClusterDataset(t *testing.T) *cellgraph.Dataset {
	t.Helper()
	const n = 6

	coords := mat.NewDense(n, 2, []float64{
		0, 0,
		0.1, 0,
		0, 0.1,
		10, 10,
		10.1, 10,
		10, 10.1,
	})
	expr := mat.NewDense(n, 1, []float64{1, 2, 3, 4, 5, 6})
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}

	ds, err := cellgraph.NewDataset(expr, ids, []string{"G1"},
		cellgraph.WithEmbedding(DefaultEmbeddingKey, coords),
		cellgraph.WithNumericObs(DefaultTimeKey, []float64{0, 0, 0, 1, 1, 1}),
		cellgraph.WithNumericObs("growth", []float64{1, 2, 1, 1, 2, 1}),
	)
	require.NoError(t, err)

	return ds
}

func TestSinkhorn_ZeroCost(t *testing.T) {
	// With a constant cost the optimal coupling is the outer product of
	// the marginals.
	a := []float64{0.5, 0.5}
	b := []float64{0.3, 0.7}
	cost := mat.NewDense(2, 2, nil)

	coupling, err := sinkhorn(context.Background(), a, b, cost, DefaultOptions())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.InDelta(t, a[i]*b[0], coupling.At(i, 0), 1e-6)
		assert.InDelta(t, a[i]*b[1], coupling.At(i, 1), 1e-6)
	}
}

func TestSinkhorn_BadMarginal(t *testing.T) {
	cost := mat.NewDense(2, 2, nil)

	_, err := sinkhorn(context.Background(), []float64{1, 0}, []float64{0.5, 0.5}, cost, DefaultOptions())
	assert.ErrorIs(t, err, ErrBadMarginal)

	_, err = sinkhorn(context.Background(), []float64{1}, []float64{0.5, 0.5}, cost, DefaultOptions())
	assert.ErrorIs(t, err, ErrBadMarginal)
}

func TestStationaryOT_Compute(t *testing.T) {
	ds := twoClusterDataset(t)

	k, err := NewStationaryOT(ds)
	require.NoError(t, err)
	assert.Nil(t, k.Transition())

	require.NoError(t, k.Compute(context.Background()))

	tm := k.Transition()
	require.NotNil(t, tm)
	require.Equal(t, 6, tm.N())

	// Mass stays overwhelmingly within the source cell's own cluster.
	for i := 0; i < 3; i++ {
		within := tm.At(i, 0) + tm.At(i, 1) + tm.At(i, 2)
		assert.Greater(t, within, 0.9, "cell %d", i)
	}
	for i := 3; i < 6; i++ {
		within := tm.At(i, 3) + tm.At(i, 4) + tm.At(i, 5)
		assert.Greater(t, within, 0.9, "cell %d", i)
	}
}

func TestStationaryOT_GrowthWeighted(t *testing.T) {
	ds := twoClusterDataset(t)

	k, err := NewStationaryOT(ds, WithGrowthKey("growth"))
	require.NoError(t, err)
	require.NoError(t, k.Compute(context.Background()))

	// Cell 1 carries twice the growth, so it attracts more incoming
	// mass than its cluster peers.
	tm := k.Transition()
	assert.Greater(t, tm.At(0, 1), tm.At(0, 2))
}

func TestStationaryOT_Errors(t *testing.T) {
	_, err := NewStationaryOT(nil)
	assert.ErrorIs(t, err, ErrNilDataset)

	ds := twoClusterDataset(t)
	k, err := NewStationaryOT(ds, WithEmbeddingKey("missing"))
	require.NoError(t, err)
	assert.ErrorIs(t, k.Compute(context.Background()), cellgraph.ErrEmbeddingNotFound)

	assert.Panics(t, func() { WithEpsilon(0) })
}

func TestWOT_Compute(t *testing.T) {
	ds := twoClusterDataset(t)

	k, err := NewWOT(ds)
	require.NoError(t, err)
	require.NoError(t, k.Compute(context.Background()))

	tm := k.Transition()
	require.NotNil(t, tm)

	// Day-0 cells transition exclusively into day-1 cells.
	for i := 0; i < 3; i++ {
		cols, probs := tm.Row(i)
		sum := 0.0
		for e, j := range cols {
			assert.GreaterOrEqual(t, j, 3, "cell %d targets day 1", i)
			sum += probs[e]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	// Day-1 cells are the last time point: self-loops.
	for i := 3; i < 6; i++ {
		assert.InDelta(t, 1.0, tm.At(i, i), 1e-12)
	}
}

func TestWOT_Errors(t *testing.T) {
	_, err := NewWOT(nil)
	assert.ErrorIs(t, err, ErrNilDataset)

	ds := twoClusterDataset(t)

	k, err := NewWOT(ds, WithTimeKey("missing"))
	require.NoError(t, err)
	assert.ErrorIs(t, k.Compute(context.Background()), cellgraph.ErrObsNotFound)

	k, err = NewWOT(ds, WithGrowthKey("missing"))
	require.NoError(t, err)
	assert.ErrorIs(t, k.Compute(context.Background()), cellgraph.ErrObsNotFound)

	singleDay, err := cellgraph.NewDataset(
		mat.NewDense(2, 1, []float64{1, 2}), []string{"a", "b"}, []string{"G1"},
		cellgraph.WithEmbedding(DefaultEmbeddingKey, mat.NewDense(2, 2, []float64{0, 0, 1, 1})),
		cellgraph.WithNumericObs(DefaultTimeKey, []float64{0, 0}),
	)
	require.NoError(t, err)
	k, err = NewWOT(singleDay)
	require.NoError(t, err)
	assert.ErrorIs(t, k.Compute(context.Background()), ErrSingleTimePoint)
}
