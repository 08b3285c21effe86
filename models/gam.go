package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GAM is a penalized B-spline smoother: expression is regressed on
// pseudotime through a clamped spline basis with a second-difference
// penalty on the coefficients, fit by weighted least squares. Setting
// an expectile replaces the mean fit by an asymmetric one via
// iterative reweighting.
type GAM struct {
	base

	numSplines int
	order      int
	lambda     float64
	expectile  float64 // 0 disables
	maxIter    int

	knots      []float64
	coef       []float64
	xMin, xMax float64
}

// GAMOption mutates a GAM before fitting.
type GAMOption func(*GAM)

// WithNumSplines sets the basis size (must be > spline order; panics
// otherwise, programmer error).
func WithNumSplines(n int) GAMOption {
	if n < 2 {
		panic("models: WithNumSplines: n must be >= 2")
	}

	return func(g *GAM) { g.numSplines = n }
}

// WithSplineOrder sets the spline degree (must be >= 1; panics
// otherwise).
func WithSplineOrder(d int) GAMOption {
	if d < 1 {
		panic("models: WithSplineOrder: d must be >= 1")
	}

	return func(g *GAM) { g.order = d }
}

// WithLambda sets the smoothing penalty (must be >= 0; panics
// otherwise).
func WithLambda(lambda float64) GAMOption {
	if lambda < 0 {
		panic("models: WithLambda: lambda must be >= 0")
	}

	return func(g *GAM) { g.lambda = lambda }
}

// WithExpectile switches to expectile regression at level tau (must be
// in (0, 1); panics otherwise).
func WithExpectile(tau float64) GAMOption {
	if tau <= 0 || tau >= 1 {
		panic("models: WithExpectile: tau must be in (0, 1)")
	}

	return func(g *GAM) { g.expectile = tau }
}

// WithMaxIter bounds the expectile reweighting loop (must be >= 1;
// panics otherwise).
func WithMaxIter(n int) GAMOption {
	if n < 1 {
		panic("models: WithMaxIter: n must be >= 1")
	}

	return func(g *GAM) { g.maxIter = n }
}

// NewGAM builds a GAM with the documented defaults: 10 cubic splines,
// lambda 0.5, mean regression.
func NewGAM(opts ...GAMOption) *GAM {
	g := &GAM{
		numSplines: DefaultNumSplines,
		order:      DefaultSplineOrder,
		lambda:     DefaultLambda,
		maxIter:    DefaultMaxIter,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.numSplines <= g.order {
		panic("models: NewGAM: numSplines must exceed the spline order")
	}

	return g
}

// Fit solves the penalized weighted least-squares problem on the
// positive-weight training points.
func (g *GAM) Fit() error {
	if !g.prepared {
		return ErrNotPrepared
	}

	xs, ys, ws := filterTriples(g.x, g.y, g.w, func(i int) bool { return g.w[i] > 0 })
	if len(xs) < g.numSplines-g.order {
		return fmt.Errorf("%w: %d positive-weight cells for %d splines",
			ErrTooFewPoints, len(xs), g.numSplines)
	}

	g.xMin, g.xMax = xs[0], xs[len(xs)-1]
	if g.xMax <= g.xMin {
		return fmt.Errorf("%w: degenerate pseudotime span", ErrTooFewPoints)
	}
	g.knots = clampedKnots(g.xMin, g.xMax, g.numSplines, g.order)

	design := mat.NewDense(len(xs), g.numSplines, nil)
	for i, x := range xs {
		design.SetRow(i, bsplineRow(x, g.knots, g.numSplines, g.order))
	}

	coef, err := penalizedSolve(design, ys, ws, g.lambda, g.numSplines)
	if err != nil {
		return err
	}

	if g.expectile > 0 {
		// Asymmetric least squares: residuals above the fit get weight
		// tau, those below 1-tau, until the coefficients settle.
		eff := make([]float64, len(ws))
		for it := 0; it < g.maxIter; it++ {
			pred := matVec(design, coef)
			for i := range eff {
				if ys[i] > pred[i] {
					eff[i] = ws[i] * g.expectile
				} else {
					eff[i] = ws[i] * (1 - g.expectile)
				}
			}
			next, err := penalizedSolve(design, ys, eff, g.lambda, g.numSplines)
			if err != nil {
				return err
			}
			if maxAbsDiff(coef, next) < 1e-10 {
				coef = next

				break
			}
			coef = next
		}
	}

	g.coef = coef

	return nil
}

// Predict evaluates the fitted spline; nil uses the prepared grid.
// Queries outside the training span are clamped to its endpoints.
func (g *GAM) Predict(xTest []float64) ([]float64, error) {
	if g.coef == nil {
		return nil, ErrNotFitted
	}
	xTest = g.resolveGrid(xTest)

	out := make([]float64, len(xTest))
	for i, x := range xTest {
		if x < g.xMin {
			x = g.xMin
		}
		if x > g.xMax {
			x = g.xMax
		}
		row := bsplineRow(x, g.knots, g.numSplines, g.order)
		sum := 0.0
		for j, b := range row {
			sum += b * g.coef[j]
		}
		out[i] = sum
	}

	return out, nil
}

// ConfidenceInterval returns the prediction-error band around the
// fitted trend.
func (g *GAM) ConfidenceInterval(xTest []float64) ([]float64, []float64, error) {
	if g.coef == nil {
		return nil, nil, ErrNotFitted
	}

	return g.defaultConfInt(g.Predict, g.resolveGrid(xTest))
}

// penalizedSolve minimizes |W^(1/2)(y - Bc)|^2 + lambda |Dc|^2 for the
// second-difference penalty D.
func penalizedSolve(design *mat.Dense, y, w []float64, lambda float64, m int) ([]float64, error) {
	n, _ := design.Dims()

	// B' W B and B' W y in one sweep.
	a := mat.NewSymDense(m, nil)
	rhs := make([]float64, m)
	for i := 0; i < n; i++ {
		row := design.RawRowView(i)
		for j := 0; j < m; j++ {
			if row[j] == 0 {
				continue
			}
			rhs[j] += w[i] * row[j] * y[i]
			for k := j; k < m; k++ {
				a.SetSym(j, k, a.At(j, k)+w[i]*row[j]*row[k])
			}
		}
	}

	// lambda D'D for D the (m-2) x m second-difference operator.
	if lambda > 0 {
		for r := 0; r < m-2; r++ {
			stencil := [3]float64{1, -2, 1}
			for p := 0; p < 3; p++ {
				for q := p; q < 3; q++ {
					a.SetSym(r+p, r+q, a.At(r+p, r+q)+lambda*stencil[p]*stencil[q])
				}
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, ErrSingularFit
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(m, rhs)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	out := make([]float64, m)
	copy(out, sol.RawVector().Data)

	return out, nil
}

// clampedKnots builds the knot vector for m basis functions of degree
// d over [lo, hi]: d+1 repeated boundary knots on each side, uniform
// interior breakpoints.
func clampedKnots(lo, hi float64, m, d int) []float64 {
	knots := make([]float64, m+d+1)
	segments := m - d
	for i := range knots {
		switch {
		case i <= d:
			knots[i] = lo
		case i >= m:
			knots[i] = hi
		default:
			knots[i] = lo + float64(i-d)*(hi-lo)/float64(segments)
		}
	}

	return knots
}

// bsplineRow evaluates all m degree-d basis functions at x (clamped
// knot vector assumed, x inside [knots[d], knots[m]]).
func bsplineRow(x float64, knots []float64, m, d int) []float64 {
	out := make([]float64, m)

	// Knot span: largest k in [d, m-1] with knots[k] <= x.
	k := d
	for k < m-1 && x >= knots[k+1] {
		k++
	}

	// Triangular recurrence (only the d+1 non-zero functions).
	vals := make([]float64, d+1)
	left := make([]float64, d+1)
	right := make([]float64, d+1)
	vals[0] = 1
	for j := 1; j <= d; j++ {
		left[j] = x - knots[k+1-j]
		right[j] = knots[k+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			denom := right[r+1] + left[j-r]
			temp := 0.0
			if denom != 0 {
				temp = vals[r] / denom
			}
			vals[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		vals[j] = saved
	}

	for j := 0; j <= d; j++ {
		out[k-d+j] = vals[j]
	}

	return out
}

func matVec(m *mat.Dense, v []float64) []float64 {
	n, c := m.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := m.RawRowView(i)
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += row[j] * v[j]
		}
		out[i] = sum
	}

	return out
}

func maxAbsDiff(a, b []float64) float64 {
	best := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > best {
			best = d
		}
	}

	return best
}
