package lineage

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// New validates and assembles a lineage.
//
// probs is n_cells × n_fates; names must be unique and sized to the
// columns; colors may be nil (palette assigned) or sized to the columns
// as "#RRGGBB" strings. Values must be finite and non-negative. Row
// normalization is NOT required here, only Reduce insists on it, so
// intermediate objects (e.g. macrostate memberships cut to a subset)
// remain representable.
func New(probs *mat.Dense, names []string, colors []string) (*Lineage, error) {
	if probs == nil {
		return nil, ErrEmpty
	}
	n, k := probs.Dims()
	if n == 0 || k == 0 {
		return nil, ErrEmpty
	}
	if len(names) != k {
		return nil, fmt.Errorf("%w: %d names for %d fates", ErrDimMismatch, len(names), k)
	}
	if colors == nil {
		colors = defaultColors(k)
	}
	if len(colors) != k {
		return nil, fmt.Errorf("%w: %d colors for %d fates", ErrDimMismatch, len(colors), k)
	}
	for _, c := range colors {
		if _, _, _, err := parseHexColor(c); err != nil {
			return nil, err
		}
	}

	idx := make(map[string]int, k)
	for j, name := range names {
		if _, dup := idx[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		idx[name] = j
	}

	for i := 0; i < n; i++ {
		row := probs.RawRowView(i)
		for j := 0; j < k; j++ {
			v := row[j]
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, fmt.Errorf("%w: value %g at (%d,%d)", ErrNotNormalized, v, i, j)
			}
		}
	}

	return &Lineage{
		probs:  probs,
		names:  append([]string(nil), names...),
		colors: append([]string(nil), colors...),
		idx:    idx,
	}, nil
}

// NumCells returns the number of rows.
func (l *Lineage) NumCells() int { n, _ := l.probs.Dims(); return n }

// NumFates returns the number of fate columns.
func (l *Lineage) NumFates() int { _, k := l.probs.Dims(); return k }

// Names returns a copy of the fate names in column order.
func (l *Lineage) Names() []string { return append([]string(nil), l.names...) }

// Colors returns a copy of the fate colors in column order.
func (l *Lineage) Colors() []string { return append([]string(nil), l.colors...) }

// Probs returns the underlying matrix (shared, read-only).
func (l *Lineage) Probs() *mat.Dense { return l.probs }

// Col returns a copy of one fate's probability column.
func (l *Lineage) Col(name string) ([]float64, error) {
	j, ok := l.idx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}

	return mat.Col(nil, j, l.probs), nil
}

// Select builds a new lineage from selection keys. A key is either a
// fate name, a mixture "A, B" (the probability columns are summed under
// the merged name "A or B" with the channel-averaged color), or Rest,
// which collects every fate not otherwise selected into one column.
// Each underlying fate may appear at most once across all keys.
func (l *Lineage) Select(keys ...string) (*Lineage, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	n := l.NumCells()
	used := make(map[int]bool, l.NumFates())
	var (
		outCols   [][]float64
		outNames  []string
		outColors []string
		restAt    = -1 // output position reserved for Rest
	)

	for _, key := range keys {
		if key == Rest {
			if restAt >= 0 {
				return nil, fmt.Errorf("%w: %q given twice", ErrOverlap, Rest)
			}
			restAt = len(outCols)
			outCols = append(outCols, nil) // filled after the loop
			outNames = append(outNames, Rest)
			outColors = append(outColors, "")

			continue
		}

		parts := splitKey(key)
		cols := make([]int, 0, len(parts))
		for _, name := range parts {
			j, ok := l.idx[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
			}
			if used[j] {
				return nil, fmt.Errorf("%w: fate %q", ErrOverlap, name)
			}
			used[j] = true
			cols = append(cols, j)
		}

		outCols = append(outCols, l.sumCols(cols))
		if len(parts) == 1 {
			outNames = append(outNames, parts[0])
			outColors = append(outColors, l.colors[cols[0]])
		} else {
			outNames = append(outNames, strings.Join(parts, " or "))
			picked := make([]string, len(cols))
			for t, j := range cols {
				picked[t] = l.colors[j]
			}
			mixed, err := meanColor(picked)
			if err != nil {
				return nil, err
			}
			outColors = append(outColors, mixed)
		}
	}

	if restAt >= 0 {
		var restCols []int
		var restColors []string
		for j := range l.names {
			if !used[j] {
				restCols = append(restCols, j)
				restColors = append(restColors, l.colors[j])
			}
		}
		if len(restCols) == 0 {
			return nil, fmt.Errorf("%w: nothing left for %q", ErrOverlap, Rest)
		}
		outCols[restAt] = l.sumCols(restCols)
		mixed, err := meanColor(restColors)
		if err != nil {
			return nil, err
		}
		outColors[restAt] = mixed
	}

	out := mat.NewDense(n, len(outCols), nil)
	for j, col := range outCols {
		out.SetCol(j, col)
	}

	return New(out, outNames, outColors)
}

// sumCols adds the given probability columns element-wise.
func (l *Lineage) sumCols(cols []int) []float64 {
	n := l.NumCells()
	sum := make([]float64, n)
	buf := make([]float64, n)
	for _, j := range cols {
		mat.Col(buf, j, l.probs)
		for i := range sum {
			sum[i] += buf[i]
		}
	}

	return sum
}

// splitKey splits a mixture key "A, B" into trimmed parts.
func splitKey(key string) []string {
	raw := strings.Split(key, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	return parts
}

// checkRowsNormalized verifies every row sums to one within eps.
func (l *Lineage) checkRowsNormalized(eps float64) error {
	n, k := l.probs.Dims()
	for i := 0; i < n; i++ {
		row := l.probs.RawRowView(i)
		s := 0.0
		for j := 0; j < k; j++ {
			s += row[j]
		}
		if math.Abs(s-1) > eps {
			return fmt.Errorf("%w: row %d sums to %g", ErrNotNormalized, i, s)
		}
	}

	return nil
}
