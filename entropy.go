package qsim

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/theapemachine/qsim/internal/linalg"
)

// entropyCutoff treats smaller eigenvalues as zero; λ log λ vanishes there.
const entropyCutoff = 1e-12

// vonNeumann is -Σ λ log₂ λ over the strictly positive eigenvalues.
func vonNeumann(values []float64, cutoff float64) float64 {
	s := 0.0
	for _, v := range values {
		if v > cutoff {
			s -= v * math.Log2(v)
		}
	}
	return s
}

// reduced returns the operator on ids alone, or the receiver itself when
// ids covers every qubit.
func (d *DensOp) reduced(op string, ids []int) (*DensOp, error) {
	if err := d.buf.alive(op); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return d, nil
	}
	if err := checkQubits(op, ids, d.qubits, -1); err != nil {
		return nil, err
	}
	rest := complement(ids, d.qubits)
	if len(rest) == 0 {
		return d, nil
	}
	return d.Patrace(rest...)
}

/*
Entropy returns the von Neumann entropy S = -Tr ρ log₂ ρ of the subsystem
on ids, or of the whole operator when ids is empty. A pure state has zero
entropy; a maximally mixed k-qubit subsystem has k bits.
*/
func (d *DensOp) Entropy(ids ...int) (float64, error) {
	r, err := d.reduced("entropy", ids)
	if err != nil {
		return 0, err
	}
	e, err := linalg.EigenHermitian(r.matrix(), d.cfg.Tolerance)
	if err != nil {
		return 0, fmt.Errorf("entropy: %w", err)
	}
	return vonNeumann(e.Values, entropyCutoff), nil
}

// subsystemEntropy is Entropy restricted to ids, where an empty
// subsystem has S(∅) = 0 rather than meaning the whole operator.
func (d *DensOp) subsystemEntropy(op string, ids []int) (float64, error) {
	if len(ids) == 0 {
		if err := d.buf.alive(op); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return d.Entropy(ids...)
}

func disjoint(op string, a, b []int) error {
	seen := make(map[int]struct{}, len(a))
	for _, q := range a {
		seen[q] = struct{}{}
	}
	for _, q := range b {
		if _, ok := seen[q]; ok {
			return &QubitError{Op: op, Qubit: q, Err: ErrDuplicateQubit}
		}
	}
	return nil
}

// CondEntropy returns S(A|B) = S(AB) − S(B). An empty B gives S(A).
func (d *DensOp) CondEntropy(a, b []int) (float64, error) {
	if err := disjoint("cond entropy", a, b); err != nil {
		return 0, err
	}
	sab, err := d.subsystemEntropy("cond entropy", append(append([]int(nil), a...), b...))
	if err != nil {
		return 0, err
	}
	sb, err := d.subsystemEntropy("cond entropy", b)
	if err != nil {
		return 0, err
	}
	return sab - sb, nil
}

// MutualInfo returns I(A;B) = S(A) − S(A|B), which is 0 when either side
// is empty.
func (d *DensOp) MutualInfo(a, b []int) (float64, error) {
	sa, err := d.subsystemEntropy("mutual info", a)
	if err != nil {
		return 0, err
	}
	cond, err := d.CondEntropy(a, b)
	if err != nil {
		return 0, err
	}
	return sa - cond, nil
}

/*
RelativeEntropy returns S(ρ‖σ) = Tr ρ log₂ ρ − Tr ρ log₂ σ. With
ρ = Σ pᵢ|vᵢ⟩⟨vᵢ| and σ = Σ qⱼ|wⱼ⟩⟨wⱼ| the second trace is
Σᵢⱼ pᵢ |⟨vᵢ|wⱼ⟩|² log₂ qⱼ. The result is +Inf when ρ has weight where σ
has none.
*/
func (d *DensOp) RelativeEntropy(other *DensOp) (float64, error) {
	if err := d.checkPair("relative entropy", other); err != nil {
		return 0, err
	}
	tol := d.cfg.Tolerance
	ep, err := linalg.EigenHermitian(d.matrix(), tol)
	if err != nil {
		return 0, fmt.Errorf("relative entropy: %w", err)
	}
	eq, err := linalg.EigenHermitian(other.matrix(), tol)
	if err != nil {
		return 0, fmt.Errorf("relative entropy: %w", err)
	}

	cut := entropyCutoff
	s := -vonNeumann(ep.Values, cut)
	for i, p := range ep.Values {
		if p <= cut {
			continue
		}
		for j, q := range eq.Values {
			ov := cmplx.Abs(linalg.Dot(ep.Vectors[i], eq.Vectors[j]))
			w := p * ov * ov
			if w <= cut {
				continue
			}
			if q <= cut {
				return math.Inf(1), nil
			}
			s -= w * math.Log2(q)
		}
	}
	return s, nil
}
