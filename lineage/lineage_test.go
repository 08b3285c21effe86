package lineage_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/lineage"
)

func mustLineage(t *testing.T, data []float64, rows int, names []string) *lineage.Lineage {
	t.Helper()
	l, err := lineage.New(mat.NewDense(rows, len(names), data), names, nil)
	require.NoError(t, err)

	return l
}

func TestNew_Validation(t *testing.T) {
	names := []string{"Alpha", "Beta"}
	probs := mat.NewDense(2, 2, []float64{0.5, 0.5, 0.2, 0.8})

	tests := []struct {
		name    string
		probs   *mat.Dense
		names   []string
		colors  []string
		wantErr error
	}{
		{"nil matrix", nil, names, nil, lineage.ErrEmpty},
		{"name count mismatch", probs, []string{"Alpha"}, nil, lineage.ErrDimMismatch},
		{"color count mismatch", probs, names, []string{"#ff0000"}, lineage.ErrDimMismatch},
		{"bad color", probs, names, []string{"#ff0000", "red"}, lineage.ErrBadColor},
		{"duplicate name", probs, []string{"Alpha", "Alpha"}, nil, lineage.ErrDuplicateName},
		{
			"negative value",
			mat.NewDense(1, 2, []float64{-0.1, 1.1}), names, nil,
			lineage.ErrNotNormalized,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lineage.New(tc.probs, tc.names, tc.colors)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNew_DefaultColorsAndAccessors(t *testing.T) {
	l := mustLineage(t, []float64{0.5, 0.5, 0.2, 0.8}, 2, []string{"Alpha", "Beta"})

	assert.Equal(t, 2, l.NumCells())
	assert.Equal(t, 2, l.NumFates())
	assert.Equal(t, []string{"Alpha", "Beta"}, l.Names())

	colors := l.Colors()
	require.Len(t, colors, 2)
	assert.Equal(t, "#1f77b4", colors[0])
	assert.Equal(t, "#ff7f0e", colors[1])

	col, err := l.Col("Beta")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.8}, col)

	_, err = l.Col("Gamma")
	assert.ErrorIs(t, err, lineage.ErrUnknownName)
}

func TestSelect_SingleAndMixture(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.5, 0.3, 0.2,
			0.1, 0.2, 0.7,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	sel, err := l.Select("Alpha, Beta", "Delta")
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha or Beta", "Delta"}, sel.Names())

	mixed, err := sel.Col("Alpha or Beta")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.3}, mixed, 1e-12)

	// #1f77b4 and #ff7f0e average channel-wise to #8f7b61.
	assert.Equal(t, "#8f7b61", sel.Colors()[0])
}

func TestSelect_Rest(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.5, 0.3, 0.2,
			0.1, 0.2, 0.7,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	sel, err := l.Select("Alpha", lineage.Rest)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", lineage.Rest}, sel.Names())

	rest, err := sel.Col(lineage.Rest)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.9}, rest, 1e-12)
}

func TestSelect_Errors(t *testing.T) {
	l := mustLineage(t, []float64{0.5, 0.5}, 1, []string{"Alpha", "Beta"})

	tests := []struct {
		name    string
		keys    []string
		wantErr error
	}{
		{"no keys", nil, lineage.ErrNoKeys},
		{"unknown", []string{"Gamma"}, lineage.ErrUnknownName},
		{"overlap", []string{"Alpha", "Alpha, Beta"}, lineage.ErrOverlap},
		{"rest twice", []string{lineage.Rest, lineage.Rest}, lineage.ErrOverlap},
		{"rest empty", []string{"Alpha", "Beta", lineage.Rest}, lineage.ErrOverlap},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Select(tc.keys...)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestReduce_EqualScale(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.5, 0.3, 0.2,
			0.1, 0.2, 0.7,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMeasure(lineage.MeasureEqual),
		lineage.WithNormalization(lineage.NormalizeScale),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", "Beta"}, red.Names())

	// Delta's mass splits evenly between Alpha and Beta.
	assert.InDelta(t, 0.5, weights.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, weights.At(0, 1), 1e-12)

	alpha, err := red.Col("Alpha")
	require.NoError(t, err)
	beta, err := red.Col("Beta")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.45}, alpha, 1e-12)
	assert.InDeltaSlice(t, []float64{0.4, 0.55}, beta, 1e-12)
}

func TestReduce_CosineScale(t *testing.T) {
	// Delta is proportional to Alpha, Beta is the zero column: cosine
	// weights become (1, 0) after scaling, so Alpha absorbs all of
	// Delta's mass.
	l := mustLineage(t,
		[]float64{
			0.5, 0, 0.5,
			0.5, 0, 0.5,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMeasure(lineage.MeasureCosine),
		lineage.WithNormalization(lineage.NormalizeScale),
	)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, weights.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, weights.At(0, 1), 1e-12)

	alpha, err := red.Col("Alpha")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, alpha, 1e-12)
}

func TestReduce_WassersteinScale(t *testing.T) {
	// Alpha and Beta mirror each other, so their sorted columns are
	// identical and Delta sits at the same Wasserstein distance from
	// both: its mass splits evenly.
	l := mustLineage(t,
		[]float64{
			0.5, 0.2, 0.3,
			0.2, 0.5, 0.3,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMeasure(lineage.MeasureWasserstein),
		lineage.WithNormalization(lineage.NormalizeScale),
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, weights.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, weights.At(0, 1), 1e-12)

	alpha, err := red.Col("Alpha")
	require.NoError(t, err)
	beta, err := red.Col("Beta")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.65, 0.35}, alpha, 1e-12)
	assert.InDeltaSlice(t, []float64{0.35, 0.65}, beta, 1e-12)
}

func TestReduce_MutualInfo(t *testing.T) {
	// Delta determines Alpha (their sum is constant) while Beta is
	// constant and carries no information, so Alpha absorbs all of
	// Delta's mass.
	l := mustLineage(t,
		[]float64{
			0.7, 0.2, 0.1,
			0.6, 0.2, 0.2,
			0.3, 0.2, 0.5,
			0.2, 0.2, 0.6,
		}, 4, []string{"Alpha", "Beta", "Delta"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMeasure(lineage.MeasureMutualInfo),
		lineage.WithNormalization(lineage.NormalizeScale),
	)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, weights.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, weights.At(0, 1), 1e-12)

	alpha, err := red.Col("Alpha")
	require.NoError(t, err)
	beta, err := red.Col("Beta")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.8, 0.8, 0.8}, alpha, 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2, 0.2}, beta, 1e-12)
}

func TestReduce_DefaultOptions(t *testing.T) {
	cfg := lineage.DefaultReduceOptions()
	assert.Equal(t, lineage.ModeDist, cfg.Mode)
	assert.Equal(t, lineage.MeasureMutualInfo, cfg.Measure)
	assert.Equal(t, lineage.NormalizeSoftmax, cfg.Normalization)
	assert.Equal(t, 1.0, cfg.SoftmaxBeta)
}

func TestReduce_ScaleMode(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.5, 0.2, 0.3,
			0.2, 0.5, 0.3,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMode(lineage.ModeScale),
	)
	require.NoError(t, err)
	assert.Nil(t, weights)

	alpha, err := red.Col("Alpha")
	require.NoError(t, err)
	beta, err := red.Col("Beta")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5.0 / 7, 2.0 / 7}, alpha, 1e-12)
	assert.InDeltaSlice(t, []float64{2.0 / 7, 5.0 / 7}, beta, 1e-12)
}

func TestReduce_SoftmaxRowsNormalized(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.4, 0.3, 0.2, 0.1,
			0.1, 0.4, 0.2, 0.3,
			0.25, 0.25, 0.25, 0.25,
		}, 3, []string{"Alpha", "Beta", "Delta", "Epsilon"})

	red, weights, err := l.Reduce([]string{"Alpha", "Beta"},
		lineage.WithMeasure(lineage.MeasureJS),
		lineage.WithSoftmaxBeta(2),
	)
	require.NoError(t, err)

	// Every weight row and every probability row must sum to one.
	nq, nr := weights.Dims()
	require.Equal(t, 2, nq)
	require.Equal(t, 2, nr)
	for qi := 0; qi < nq; qi++ {
		sum := 0.0
		for ri := 0; ri < nr; ri++ {
			w := weights.At(qi, ri)
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	for i := 0; i < red.NumCells(); i++ {
		sum := 0.0
		for _, name := range red.Names() {
			col, err := red.Col(name)
			require.NoError(t, err)
			sum += col[i]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestReduce_Errors(t *testing.T) {
	l := mustLineage(t,
		[]float64{
			0.5, 0.3, 0.2,
			0.1, 0.2, 0.7,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	unnormalized := mustLineage(t,
		[]float64{
			0.5, 0.3, 0.1,
			0.1, 0.2, 0.7,
		}, 2, []string{"Alpha", "Beta", "Delta"})

	tests := []struct {
		name    string
		lin     *lineage.Lineage
		keys    []string
		opts    []lineage.ReduceOption
		wantErr error
	}{
		{"no keys", l, nil, nil, lineage.ErrNoKeys},
		{"all keys", l, []string{"Alpha", "Beta", "Delta"}, nil, lineage.ErrAllKeys},
		{"unknown key", l, []string{"Gamma"}, nil, lineage.ErrUnknownName},
		{"rows not normalized", unnormalized, []string{"Alpha"}, nil, lineage.ErrNotNormalized},
		{
			"bad mode", l, []string{"Alpha"},
			[]lineage.ReduceOption{lineage.WithMode("fuzzy")},
			lineage.ErrBadMode,
		},
		{
			"bad measure", l, []string{"Alpha"},
			[]lineage.ReduceOption{lineage.WithMeasure("manhattan")},
			lineage.ErrBadMeasure,
		},
		{
			"bad normalization", l, []string{"Alpha"},
			[]lineage.ReduceOption{lineage.WithNormalization("clip")},
			lineage.ErrBadNormalization,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.lin.Reduce(tc.keys, tc.opts...)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
		})
	}
}
