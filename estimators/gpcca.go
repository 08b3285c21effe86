package estimators

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/kernels"
	"github.com/Oisin-M/cellrank/lineage"
)

// GPCCA finds metastable macrostates by rotating the top right
// eigenvectors of the transition matrix into a fuzzy membership
// simplex. Terminal states are the macrostates whose coarse-grained
// self-transition probability exceeds the stability threshold.
type GPCCA struct {
	tm   *kernels.TransitionMatrix
	opts Options

	chi      *mat.Dense // n × k fuzzy memberships, rows sum to 1
	assign   []int
	names    []string
	coarse   *mat.Dense // k × k coarse-grained transition matrix
	terminal []int      // macrostate indices, sorted
}

// NewGPCCA builds a GPCCA estimator over a computed transition matrix.
func NewGPCCA(tm *kernels.TransitionMatrix, opts ...Option) (*GPCCA, error) {
	if tm == nil {
		return nil, ErrNilTransition
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.StateLabels != nil && len(cfg.StateLabels) != tm.N() {
		return nil, fmt.Errorf("%w: %d labels for %d cells",
			ErrBadLabels, len(cfg.StateLabels), tm.N())
	}

	return &GPCCA{tm: tm, opts: cfg}, nil
}

// ComputeMacrostates runs the spectral rotation.
//
// Steps:
//  1. eigendecompose and keep the top-k right eigenvectors;
//  2. pin the leading (constant) eigenvector to exactly one;
//  3. locate k extreme rows spanning the simplex (index search);
//  4. invert the vertex submatrix and rotate: chi = X * A;
//  5. clip negatives, renormalize rows, assign cells by argmax;
//  6. coarse-grain: Pc = (chi' chi)^-1 (chi' P chi).
func (g *GPCCA) ComputeMacrostates(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, k := g.tm.N(), g.opts.NumStates
	if k > n {
		return fmt.Errorf("%w: %d states for %d cells", ErrBadNumStates, k, n)
	}

	// 1-2) Spectral basis with a pinned constant first column.
	sp, err := decompose(g.tm, k, false)
	if err != nil {
		return err
	}
	basis := sp.right
	for i := 0; i < n; i++ {
		basis.Set(i, 0, 1)
	}

	// 3) Index search for the simplex vertices.
	vertices, err := indexSearch(basis, g.opts.Eps)
	if err != nil {
		return err
	}

	// 4) Rotate the basis through the inverted vertex rows.
	sub := mat.NewDense(k, k, nil)
	for t, v := range vertices {
		for j := 0; j < k; j++ {
			sub.Set(t, j, basis.At(v, j))
		}
	}
	var rot mat.Dense
	if err := rot.Inverse(sub); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateSpectrum, err)
	}
	chi := mat.NewDense(n, k, nil)
	chi.Mul(basis, &rot)

	// 5) Clip and renormalize into a proper membership matrix.
	assign := make([]int, n)
	for i := 0; i < n; i++ {
		row := chi.RawRowView(i)
		sum := 0.0
		for j := range row {
			if row[j] < 0 {
				row[j] = 0
			}
			sum += row[j]
		}
		if sum <= g.opts.Eps {
			return fmt.Errorf("%w: empty membership row %d", ErrDegenerateSpectrum, i)
		}
		best := 0
		for j := range row {
			row[j] /= sum
			if row[j] > row[best] {
				best = j
			}
		}
		assign[i] = best
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// 6) Coarse-grained transition matrix among macrostates.
	coarse, err := coarseGrain(chi, g.tm)
	if err != nil {
		return err
	}

	g.chi = chi
	g.assign = assign
	g.names = stateNames(assign, k, g.opts.StateLabels)
	g.coarse = coarse
	g.terminal = nil

	return nil
}

// MacrostateAssignment returns the per-cell macrostate index.
func (g *GPCCA) MacrostateAssignment() ([]int, error) {
	if g.assign == nil {
		return nil, ErrNotComputed
	}

	return append([]int(nil), g.assign...), nil
}

// MacrostateNames returns the macrostate names in index order.
func (g *GPCCA) MacrostateNames() ([]string, error) {
	if g.names == nil {
		return nil, ErrNotComputed
	}

	return append([]string(nil), g.names...), nil
}

// Memberships returns the fuzzy membership matrix chi (n × k, rows
// summing to one).
func (g *GPCCA) Memberships() (*mat.Dense, error) {
	if g.chi == nil {
		return nil, ErrNotComputed
	}

	return g.chi, nil
}

// CoarseTransition returns the k × k coarse-grained transition matrix.
func (g *GPCCA) CoarseTransition() (*mat.Dense, error) {
	if g.coarse == nil {
		return nil, ErrNotComputed
	}

	return g.coarse, nil
}

// ComputeTerminalStates marks every macrostate whose coarse-grained
// self-transition probability reaches the stability threshold.
func (g *GPCCA) ComputeTerminalStates() error {
	if g.coarse == nil {
		return ErrNotComputed
	}

	var terminal []int
	for s := 0; s < g.opts.NumStates; s++ {
		if g.coarse.At(s, s) >= g.opts.StabilityThreshold {
			terminal = append(terminal, s)
		}
	}
	if len(terminal) == 0 {
		return fmt.Errorf("%w: no self-transition above %g",
			ErrNoTerminalStates, g.opts.StabilityThreshold)
	}
	g.terminal = terminal

	return nil
}

// SetTerminalStates overrides the stability rule with explicit
// macrostate names.
func (g *GPCCA) SetTerminalStates(names ...string) error {
	if g.names == nil {
		return ErrNotComputed
	}
	if len(names) == 0 {
		return ErrNoTerminalStates
	}

	var terminal []int
	for _, want := range names {
		found := false
		for s, have := range g.names {
			if have == want {
				terminal = append(terminal, s)
				found = true

				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrUnknownState, want)
		}
	}
	sort.Ints(terminal)
	g.terminal = terminal

	return nil
}

// TerminalStates returns the terminal-state names.
func (g *GPCCA) TerminalStates() ([]string, error) {
	if g.terminal == nil {
		return nil, ErrNotComputed
	}

	names := make([]string, len(g.terminal))
	for t, s := range g.terminal {
		names[t] = g.names[s]
	}

	return names, nil
}

// AbsorptionProbabilities anchors each terminal state on its
// top-membership cells and solves the absorbing chain toward them.
func (g *GPCCA) AbsorptionProbabilities(ctx context.Context) (*lineage.Lineage, error) {
	if g.terminal == nil {
		return nil, ErrNotComputed
	}

	n := g.tm.N()
	anchor := make([]int, n)
	for i := range anchor {
		anchor[i] = Unassigned
	}
	names := make([]string, len(g.terminal))

	for t, s := range g.terminal {
		names[t] = g.names[s]

		// Top CellsPerState cells of state s by membership.
		var members []int
		for i := 0; i < n; i++ {
			if g.assign[i] == s {
				members = append(members, i)
			}
		}
		sort.SliceStable(members, func(a, b int) bool {
			return g.chi.At(members[a], s) > g.chi.At(members[b], s)
		})
		if len(members) > g.opts.CellsPerState {
			members = members[:g.opts.CellsPerState]
		}
		for _, i := range members {
			anchor[i] = t
		}
	}

	return absorb(ctx, g.tm, anchor, names, g.opts.Eps)
}

// indexSearch picks k rows of the basis that span the membership
// simplex: the farthest row first, then repeatedly the row farthest
// from the span of those already picked.
func indexSearch(basis *mat.Dense, eps float64) ([]int, error) {
	n, k := basis.Dims()
	work := mat.DenseCopyOf(basis)
	vertices := make([]int, 0, k)

	// Farthest row from the origin.
	first, bestNorm := 0, -1.0
	for i := 0; i < n; i++ {
		if norm := rowNorm(work, i); norm > bestNorm {
			first, bestNorm = i, norm
		}
	}
	vertices = append(vertices, first)

	// Translate so the first vertex sits at the origin.
	origin := append([]float64(nil), work.RawRowView(first)...)
	for i := 0; i < n; i++ {
		row := work.RawRowView(i)
		for j := range row {
			row[j] -= origin[j]
		}
	}

	for len(vertices) < k {
		// Orthogonalize against the previous direction, then take the
		// longest remaining row.
		prev := work.RawRowView(vertices[len(vertices)-1])
		prevNorm := 0.0
		for _, v := range prev {
			prevNorm += v * v
		}
		if prevNorm > eps {
			dir := append([]float64(nil), prev...)
			scale := 1 / math.Sqrt(prevNorm)
			for j := range dir {
				dir[j] *= scale
			}
			for i := 0; i < n; i++ {
				row := work.RawRowView(i)
				dot := 0.0
				for j := range row {
					dot += row[j] * dir[j]
				}
				for j := range row {
					row[j] -= dot * dir[j]
				}
			}
		}

		next, bestNorm := -1, eps
		for i := 0; i < n; i++ {
			if containsInt(vertices, i) {
				continue
			}
			if norm := rowNorm(work, i); norm > bestNorm {
				next, bestNorm = i, norm
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("%w: only %d simplex vertices found",
				ErrDegenerateSpectrum, len(vertices))
		}
		vertices = append(vertices, next)
	}

	return vertices, nil
}

// coarseGrain computes Pc = (chi' chi)^-1 (chi' P chi).
func coarseGrain(chi *mat.Dense, tm *kernels.TransitionMatrix) (*mat.Dense, error) {
	n, k := chi.Dims()

	// P chi, column by column through the sparse expectation.
	pchi := mat.NewDense(n, k, nil)
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		mat.Col(col, j, chi)
		pcol, err := tm.Expectation(col)
		if err != nil {
			return nil, err
		}
		pchi.SetCol(j, pcol)
	}

	var gram, mixed mat.Dense
	gram.Mul(chi.T(), chi)
	mixed.Mul(chi.T(), pchi)

	var lu mat.LU
	lu.Factorize(&gram)
	coarse := mat.NewDense(k, k, nil)
	if err := lu.SolveTo(coarse, false, &mixed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	return coarse, nil
}

// stateNames names macrostates "1".."k", or by majority label when an
// annotation is supplied (duplicates get a _2, _3 suffix).
func stateNames(assign []int, k int, labels []string) []string {
	names := make([]string, k)
	if labels == nil {
		for s := range names {
			names[s] = fmt.Sprintf("%d", s+1)
		}

		return names
	}

	seen := make(map[string]int, k)
	for s := 0; s < k; s++ {
		counts := make(map[string]int)
		for i, a := range assign {
			if a == s {
				counts[labels[i]]++
			}
		}
		best, bestCount := fmt.Sprintf("%d", s+1), 0
		for label, count := range counts {
			if count > bestCount || (count == bestCount && label < best) {
				best, bestCount = label, count
			}
		}
		seen[best]++
		if seen[best] > 1 {
			best = fmt.Sprintf("%s_%d", best, seen[best])
		}
		names[s] = best
	}

	return names
}

func rowNorm(m *mat.Dense, i int) float64 {
	row := m.RawRowView(i)
	sum := 0.0
	for _, v := range row {
		sum += v * v
	}

	return math.Sqrt(sum)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}

	return false
}
