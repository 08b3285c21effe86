package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Wrapped adapts any weighted Fit/Predict regressor into the Model
// contract. Regressors implementing ConfidenceRegressor keep their own
// interval; the rest fall back to the default band.
type Wrapped struct {
	base
	reg    Regressor
	fitted bool
}

// Wrap builds a Model around reg (panics on nil, programmer error).
func Wrap(reg Regressor) *Wrapped {
	if reg == nil {
		panic("models: Wrap: nil regressor")
	}

	return &Wrapped{reg: reg}
}

// Fit forwards the prepared triples to the regressor.
func (m *Wrapped) Fit() error {
	if !m.prepared {
		return ErrNotPrepared
	}
	if err := m.reg.FitWeighted(m.x, m.y, m.w); err != nil {
		return err
	}
	m.fitted = true

	return nil
}

// Predict forwards to the regressor; nil uses the prepared grid.
func (m *Wrapped) Predict(xTest []float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	return m.reg.Predict(m.resolveGrid(xTest))
}

// ConfidenceInterval uses the regressor's own interval when available.
func (m *Wrapped) ConfidenceInterval(xTest []float64) ([]float64, []float64, error) {
	if !m.fitted {
		return nil, nil, ErrNotFitted
	}
	xTest = m.resolveGrid(xTest)
	if ci, ok := m.reg.(ConfidenceRegressor); ok {
		return ci.ConfidenceInterval(xTest)
	}

	return m.defaultConfInt(m.reg.Predict, xTest)
}

// RidgePoly is the reference regressor for Wrap: a polynomial fit with
// an L2 penalty on the coefficients, solved from the weighted normal
// equations.
type RidgePoly struct {
	degree int
	alpha  float64
	coef   []float64
}

// NewRidgePoly builds a ridge-regularized polynomial regressor (degree
// must be >= 1 and alpha >= 0; panics otherwise, programmer error).
func NewRidgePoly(degree int, alpha float64) *RidgePoly {
	if degree < 1 {
		panic("models: NewRidgePoly: degree must be >= 1")
	}
	if alpha < 0 {
		panic("models: NewRidgePoly: alpha must be >= 0")
	}

	return &RidgePoly{degree: degree, alpha: alpha}
}

// FitWeighted solves (V' W V + alpha I) c = V' W y for the Vandermonde
// matrix V. The intercept is not penalized.
func (r *RidgePoly) FitWeighted(x, y, w []float64) error {
	if len(x) != len(y) || len(x) != len(w) {
		return fmt.Errorf("%w: %d/%d/%d", ErrShapeMismatch, len(x), len(y), len(w))
	}
	m := r.degree + 1
	if len(x) < m {
		return fmt.Errorf("%w: %d points for degree %d", ErrTooFewPoints, len(x), r.degree)
	}

	a := mat.NewSymDense(m, nil)
	rhs := make([]float64, m)
	pow := make([]float64, m)
	for i := range x {
		pow[0] = 1
		for j := 1; j < m; j++ {
			pow[j] = pow[j-1] * x[i]
		}
		for j := 0; j < m; j++ {
			rhs[j] += w[i] * pow[j] * y[i]
			for k := j; k < m; k++ {
				a.SetSym(j, k, a.At(j, k)+w[i]*pow[j]*pow[k])
			}
		}
	}
	for j := 1; j < m; j++ {
		a.SetSym(j, j, a.At(j, j)+r.alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return ErrSingularFit
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(m, rhs)); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	coef := make([]float64, m)
	copy(coef, sol.RawVector().Data)
	r.coef = coef

	return nil
}

// Predict evaluates the polynomial with Horner's rule.
func (r *RidgePoly) Predict(x []float64) ([]float64, error) {
	if r.coef == nil {
		return nil, ErrNotFitted
	}

	out := make([]float64, len(x))
	for i, v := range x {
		sum := 0.0
		for j := len(r.coef) - 1; j >= 0; j-- {
			sum = sum*v + r.coef[j]
		}
		out[i] = sum
	}

	return out, nil
}
