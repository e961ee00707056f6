package qsim

import (
	"fmt"
	"math"
)

/*
Evolve approximates |ψ⟩ ← exp(-iHt)|ψ⟩ with iterations first-order Trotter
steps. Each step applies exp(-i cₖ Pₖ dt) for every term in order, which is
exact per term because Pₖ² = 1. The error shrinks linearly with the step
count; commuting Hamiltonians are exact at any step count.

H must be Hermitian, so every coefficient has to be real.
*/
func (qs *QState) Evolve(obs *Observable, time float64, iterations int) error {
	if err := qs.buf.alive("evolve"); err != nil {
		return err
	}
	if iterations < 1 {
		return fmt.Errorf("evolve: %d iterations: %w", iterations, ErrInvalidArgument)
	}
	if !obs.Hermitian(qs.cfg.Tolerance) {
		return fmt.Errorf("evolve %s: %w", obs, ErrNotHermitian)
	}
	if err := obs.checkWidth("evolve", qs.qubits); err != nil {
		return err
	}

	dt := time / float64(iterations)
	scratch := make([]complex128, len(qs.buf.data))
	for step := 0; step < iterations; step++ {
		for _, t := range obs.terms {
			cisPauli(qs.buf.data, scratch, t.Ops, real(t.Coef)*dt)
		}
	}

	// rounding drift only; each step is unitary
	if n := qs.buf.Norm2(); math.Abs(n-1) > qs.cfg.Tolerance {
		qs.buf.normalize()
	}

	logger.Debug("evolve", "terms", len(obs.terms), "time", time, "iterations", iterations)
	return nil
}
