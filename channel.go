package qsim

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/theapemachine/qsim/internal/linalg"
)

// Operator is a square complex matrix over 2^k basis states, used for Kraus
// elements, POVM effects and arbitrary one-sided products.
type Operator struct {
	m *linalg.Matrix
}

// NewOperator wraps a row-major dim×dim matrix. dim must be a power of two.
func NewOperator(dim int, elements []complex128) (*Operator, error) {
	if dim < 1 || dim&(dim-1) != 0 {
		return nil, &ShapeError{Op: "new operator", Expected: 1 << uint(bits.Len(uint(dim))), Actual: dim}
	}
	m, err := linalg.FromData(dim, append([]complex128(nil), elements...))
	if err != nil {
		return nil, &ShapeError{Op: "new operator", Expected: dim * dim, Actual: len(elements), Err: err}
	}
	return &Operator{m: m}, nil
}

// OperatorFromRows builds an operator from its rows.
func OperatorFromRows(rows [][]complex128) (*Operator, error) {
	flat := make([]complex128, 0, len(rows)*len(rows))
	for _, r := range rows {
		if len(r) != len(rows) {
			return nil, &ShapeError{Op: "operator from rows", Expected: len(rows), Actual: len(r)}
		}
		flat = append(flat, r...)
	}
	return NewOperator(len(rows), flat)
}

// GateOperator returns a catalog gate's unitary as an operator.
func GateOperator(kind GateKind, params ...float64) (*Operator, error) {
	m, err := kind.Matrix(params...)
	if err != nil {
		return nil, err
	}
	return NewOperator(int(math.Sqrt(float64(len(m)))), m)
}

func (o *Operator) Dim() int { return o.m.N }

// NumQubits is log2 of the dimension.
func (o *Operator) NumQubits() int { return bits.TrailingZeros(uint(o.m.N)) }

func (o *Operator) At(i, j int) complex128 { return o.m.At(i, j) }

// Elements returns a row-major copy.
func (o *Operator) Elements() []complex128 { return append([]complex128(nil), o.m.Data...) }

// Dagger returns the conjugate transpose.
func (o *Operator) Dagger() *Operator { return &Operator{m: o.m.Dagger()} }

// Scale returns c·O.
func (o *Operator) Scale(c complex128) *Operator { return &Operator{m: o.m.Scale(c)} }

func operatorOf(elems []complex128) *Operator {
	m, _ := linalg.FromData(2, elems)
	return &Operator{m: m}
}

// Completeness reports whether Σ Kᵢ†Kᵢ = I within tol, i.e. whether the
// Kraus set is trace preserving.
func Completeness(kraus []*Operator, tol float64) bool {
	if len(kraus) == 0 {
		return false
	}
	dim := kraus[0].Dim()
	sum := linalg.New(dim)
	for _, k := range kraus {
		if k.Dim() != dim {
			return false
		}
		kk, err := linalg.Mul(k.m.Dagger(), k.m)
		if err != nil {
			return false
		}
		sum, _ = linalg.Add(sum, kk)
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			if d := sum.At(i, j) - want; math.Hypot(real(d), imag(d)) > tol {
				return false
			}
		}
	}
	return true
}

// ChannelKind names a single-qubit noise channel.
type ChannelKind uint8

const (
	ChannelBitFlip ChannelKind = iota
	ChannelPhaseFlip
	ChannelBitPhaseFlip
	ChannelDepolarize
	ChannelAmplitudeDamping
	ChannelPhaseDamping
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelBitFlip:
		return "bit_flip"
	case ChannelPhaseFlip:
		return "phase_flip"
	case ChannelBitPhaseFlip:
		return "bit_phase_flip"
	case ChannelDepolarize:
		return "depolarize"
	case ChannelAmplitudeDamping:
		return "amplitude_damping"
	case ChannelPhaseDamping:
		return "phase_damping"
	}
	return fmt.Sprintf("channel(%d)", uint8(k))
}

/*
Channel is a parameterized single-qubit noise process. The flip channels
take the error probability p; the damping channels take the decay rate γ.
All are expressed as Kraus instruments and act one qubit at a time.
*/
type Channel struct {
	Kind ChannelKind
	P    float64
}

// Single qubit channels by error probability p or damping rate g.
func BitFlip(p float64) Channel          { return Channel{Kind: ChannelBitFlip, P: p} }
func PhaseFlip(p float64) Channel        { return Channel{Kind: ChannelPhaseFlip, P: p} }
func BitPhaseFlip(p float64) Channel     { return Channel{Kind: ChannelBitPhaseFlip, P: p} }
func Depolarize(p float64) Channel       { return Channel{Kind: ChannelDepolarize, P: p} }
func AmplitudeDamping(g float64) Channel { return Channel{Kind: ChannelAmplitudeDamping, P: g} }
func PhaseDamping(g float64) Channel     { return Channel{Kind: ChannelPhaseDamping, P: g} }

func (c Channel) String() string {
	return fmt.Sprintf("%s(%g)", c.Kind, c.P)
}

// Kraus returns the channel's Kraus operators. The flip and damping
// channels have two elements; the depolarizing channel needs the full
// Pauli set, ρ ↦ (1-3p/4)ρ + p/4(XρX + YρY + ZρZ).
func (c Channel) Kraus() ([]*Operator, error) {
	p := c.P
	if p < 0 || p > 1 || math.IsNaN(p) {
		return nil, fmt.Errorf("%s: %w", c, ErrInvalidProbability)
	}

	keep := complex(math.Sqrt(1-p), 0)
	flip := complex(math.Sqrt(p), 0)

	switch c.Kind {
	case ChannelBitFlip:
		return []*Operator{
			operatorOf([]complex128{keep, 0, 0, keep}),
			operatorOf([]complex128{0, flip, flip, 0}),
		}, nil
	case ChannelPhaseFlip:
		return []*Operator{
			operatorOf([]complex128{keep, 0, 0, keep}),
			operatorOf([]complex128{flip, 0, 0, -flip}),
		}, nil
	case ChannelBitPhaseFlip:
		return []*Operator{
			operatorOf([]complex128{keep, 0, 0, keep}),
			operatorOf([]complex128{0, -1i * flip, 1i * flip, 0}),
		}, nil
	case ChannelDepolarize:
		a := complex(math.Sqrt(1-3*p/4), 0)
		b := complex(math.Sqrt(p/4), 0)
		return []*Operator{
			operatorOf([]complex128{a, 0, 0, a}),
			operatorOf([]complex128{0, b, b, 0}),
			operatorOf([]complex128{0, -1i * b, 1i * b, 0}),
			operatorOf([]complex128{b, 0, 0, -b}),
		}, nil
	case ChannelAmplitudeDamping:
		return []*Operator{
			operatorOf([]complex128{1, 0, 0, keep}),
			operatorOf([]complex128{0, flip, 0, 0}),
		}, nil
	case ChannelPhaseDamping:
		return []*Operator{
			operatorOf([]complex128{1, 0, 0, keep}),
			operatorOf([]complex128{0, 0, 0, flip}),
		}, nil
	}
	return nil, fmt.Errorf("%s: %w", c, ErrInvalidArgument)
}

// pauliMix returns the probabilities of applying I, X, Y, Z when the
// channel is a Pauli mixture. Damping channels are not.
func (c Channel) pauliMix() ([4]float64, error) {
	p := c.P
	if p < 0 || p > 1 || math.IsNaN(p) {
		return [4]float64{}, fmt.Errorf("%s: %w", c, ErrInvalidProbability)
	}
	switch c.Kind {
	case ChannelBitFlip:
		return [4]float64{1 - p, p, 0, 0}, nil
	case ChannelPhaseFlip:
		return [4]float64{1 - p, 0, 0, p}, nil
	case ChannelBitPhaseFlip:
		return [4]float64{1 - p, 0, p, 0}, nil
	case ChannelDepolarize:
		return [4]float64{1 - 3*p/4, p / 4, p / 4, p / 4}, nil
	}
	return [4]float64{}, fmt.Errorf("%s is not a pauli channel: %w", c, ErrUnsupportedGate)
}
