package kernels

import (
	"context"
	"fmt"
	"math"
)

// ScaledKernel is a kernel tagged with a combination coefficient. It is
// only meaningful inside Combine; on its own it behaves exactly like the
// wrapped kernel (coefficients are normalized across the combination).
type ScaledKernel struct {
	Kernel
	coeff float64
}

// Scale tags a kernel with a combination coefficient. The coefficient
// must be finite and non-negative; panics otherwise (programmer error).
func Scale(k Kernel, coeff float64) *ScaledKernel {
	if coeff < 0 || math.IsNaN(coeff) || math.IsInf(coeff, 0) {
		panic("kernels: Scale: coefficient must be finite and non-negative")
	}

	return &ScaledKernel{Kernel: k, coeff: coeff}
}

// CombinedKernel is the convex combination of constituent kernels:
// P = Σ aᵢ·Pᵢ with the aᵢ normalized to sum to one. Untagged kernels
// carry coefficient 1.
type CombinedKernel struct {
	terms  []Kernel
	coeffs []float64
	eps    float64
	tm     *TransitionMatrix
}

// Combine builds a convex combination of kernels. Kernels wrapped by
// Scale contribute with their coefficient, others with 1.
func Combine(ks ...Kernel) *CombinedKernel {
	c := &CombinedKernel{eps: DefaultEpsilon}
	for _, k := range ks {
		if sk, ok := k.(*ScaledKernel); ok {
			c.terms = append(c.terms, sk.Kernel)
			c.coeffs = append(c.coeffs, sk.coeff)

			continue
		}
		c.terms = append(c.terms, k)
		c.coeffs = append(c.coeffs, 1)
	}

	return c
}

// Compute computes every constituent that has not been computed yet,
// then mixes the rows. Errors:
//
//	ErrEmptyCombination - no constituents;
//	ErrBadCoefficient   - coefficients sum to zero;
//	ErrShapeMismatch    - constituents over different cell counts.
func (c *CombinedKernel) Compute(ctx context.Context) error {
	if len(c.terms) == 0 {
		return ErrEmptyCombination
	}

	total := 0.0
	for _, a := range c.coeffs {
		total += a
	}
	if total <= 0 {
		return fmt.Errorf("%w: coefficients sum to %g", ErrBadCoefficient, total)
	}

	mats := make([]*TransitionMatrix, len(c.terms))
	for t, k := range c.terms {
		if k.Transition() == nil {
			if err := k.Compute(ctx); err != nil {
				return fmt.Errorf("kernels: combining term %d: %w", t, err)
			}
		}
		mats[t] = k.Transition()
	}

	n := mats[0].N()
	for t, m := range mats[1:] {
		if m.N() != n {
			return fmt.Errorf("%w: term %d has %d cells, term 0 has %d", ErrShapeMismatch, t+1, m.N(), n)
		}
	}

	// Mix sparse rows through a scratch map; column order is restored by
	// NewTransition.
	rows := make([]RowEntries, n)
	acc := make(map[int]float64, 64)
	for i := 0; i < n; i++ {
		clear(acc)
		for t, m := range mats {
			a := c.coeffs[t] / total
			if a == 0 {
				continue
			}
			cols, probs := m.Row(i)
			for p, j := range cols {
				acc[j] += a * probs[p]
			}
		}
		entry := RowEntries{
			Cols:  make([]int, 0, len(acc)),
			Probs: make([]float64, 0, len(acc)),
		}
		for j, p := range acc {
			entry.Cols = append(entry.Cols, j)
			entry.Probs = append(entry.Probs, p)
		}
		rows[i] = entry
	}

	tm, err := NewTransition(rows, c.eps)
	if err != nil {
		return err
	}
	c.tm = tm

	return nil
}

// Transition returns the mixed matrix, nil before Compute.
func (c *CombinedKernel) Transition() *TransitionMatrix { return c.tm }
