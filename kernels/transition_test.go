package kernels_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
)

func TestNewTransition_Validation(t *testing.T) {
	cases := []struct {
		name string
		rows []kernels.RowEntries
		want error
	}{
		{"ZeroRows", nil, kernels.ErrBadShape},
		{
			"EmptyRow",
			[]kernels.RowEntries{{}},
			kernels.ErrNotStochastic,
		},
		{
			"ColumnOutOfRange",
			[]kernels.RowEntries{{Cols: []int{3}, Probs: []float64{1}}},
			kernels.ErrBadShape,
		},
		{
			"Negative",
			[]kernels.RowEntries{{Cols: []int{0}, Probs: []float64{-1}}},
			kernels.ErrNegativeEntry,
		},
		{
			"NaN",
			[]kernels.RowEntries{{Cols: []int{0}, Probs: []float64{math.NaN()}}},
			kernels.ErrNaNInf,
		},
		{
			"NotStochastic",
			[]kernels.RowEntries{{Cols: []int{0}, Probs: []float64{0.5}}},
			kernels.ErrNotStochastic,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := kernels.NewTransition(tc.rows, 0)
			if !errors.Is(err, tc.want) {
				t.Errorf("NewTransition error = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestTransition_Accessors(t *testing.T) {
	tm, err := kernels.NewTransition([]kernels.RowEntries{
		{Cols: []int{1, 0}, Probs: []float64{0.75, 0.25}}, // unsorted on purpose
		{Cols: []int{1}, Probs: []float64{1}},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, tm.N())
	assert.Equal(t, 0.25, tm.At(0, 0))
	assert.Equal(t, 0.75, tm.At(0, 1))

	cols, probs := tm.Row(0)
	assert.Equal(t, []int{0, 1}, cols, "columns must come back sorted")
	assert.Equal(t, []float64{0.25, 0.75}, probs)

	assert.InDelta(t, 1.0, tm.RowSum(0), 1e-12)
}

func TestTransition_PropagateAndExpectation(t *testing.T) {
	// 0 → 1 → 1 (absorbing).
	tm, err := kernels.NewTransition([]kernels.RowEntries{
		{Cols: []int{1}, Probs: []float64{1}},
		{Cols: []int{1}, Probs: []float64{1}},
	}, 0)
	require.NoError(t, err)

	y, err := tm.Propagate([]float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, y)

	e, err := tm.Expectation([]float64{5, 7})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7}, e)

	_, err = tm.Propagate([]float64{1})
	assert.ErrorIs(t, err, kernels.ErrBadShape)
}

func TestNewTransitionFromDense(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0.5, 0.5, 0, 1})
	tm, err := kernels.NewTransitionFromDense(m, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, tm.NNZ())

	_, err = kernels.NewTransitionFromDense(mat.NewDense(2, 3, nil), 0, 0)
	assert.ErrorIs(t, err, kernels.ErrBadShape)
}

func TestNewTransitionFromDense_DropTolerance(t *testing.T) {
	// Noise below dropTol is removed and the remaining row must still be
	// stochastic within eps; it is stored as-is, not renormalized.
	m := mat.NewDense(2, 2, []float64{
		1 - 1e-13, 1e-13,
		0, 1,
	})
	tm, err := kernels.NewTransitionFromDense(m, 1e-9, 1e-12)
	require.NoError(t, err)
	assert.Equal(t, 2, tm.NNZ())
	assert.Equal(t, 0.0, tm.At(0, 1))
	assert.InDelta(t, 1-1e-13, tm.RowSum(0), 0)

	// A row whose mass lives entirely in dropped entries is rejected.
	bad := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		0, 1,
	})
	_, err = kernels.NewTransitionFromDense(bad, 1e-9, 0.5)
	assert.ErrorIs(t, err, kernels.ErrNotStochastic)
}
