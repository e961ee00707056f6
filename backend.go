package qsim

import (
	"fmt"
)

// BackendKind selects the engine a circuit runs on.
type BackendKind uint8

const (
	// BackendDense runs on a QState and accepts every catalog gate.
	BackendDense BackendKind = iota
	// BackendStabilizer runs on a tableau and accepts Clifford gates only.
	BackendStabilizer
)

func (k BackendKind) String() string {
	switch k {
	case BackendDense:
		return "dense"
	case BackendStabilizer:
		return "stabilizer"
	}
	return fmt.Sprintf("backend(%d)", uint8(k))
}

// Backend is the contract the circuit runner drives. QState and Stabilizer
// both satisfy it.
type Backend interface {
	NumQubits() int
	Apply(gates ...Gate) error
	Measure(ids []int, opts ...MeasureOption) (*Outcome, error)
	Reset(ids ...int) error
	ApplyChannel(ch Channel, ids ...int) error
	Release() error
}

var (
	_ Backend = (*QState)(nil)
	_ Backend = (*Stabilizer)(nil)
)

// NewBackend builds a fresh |0…0⟩ register of the given kind.
func NewBackend(kind BackendKind, n int, opts ...Option) (Backend, error) {
	switch kind {
	case BackendDense:
		return NewQState(n, opts...)
	case BackendStabilizer:
		return NewStabilizer(n, opts...)
	}
	return nil, fmt.Errorf("new backend %s: %w", kind, ErrInvalidArgument)
}

// accepts reports whether a backend kind can apply a gate kind.
func (k BackendKind) accepts(g GateKind) bool {
	if k == BackendStabilizer {
		return g.Clifford()
	}
	return true
}

// ApplyChannel samples one trajectory of a noise channel on each listed
// qubit.
func (qs *QState) ApplyChannel(ch Channel, ids ...int) error {
	if err := qs.buf.alive("apply channel"); err != nil {
		return err
	}
	if err := checkQubits("apply channel", ids, qs.qubits, -1); err != nil {
		return err
	}
	kraus, err := ch.Kraus()
	if err != nil {
		return err
	}
	for _, q := range ids {
		if _, err := qs.Instrument(kraus, q); err != nil {
			return err
		}
	}
	return nil
}

// ApplyChannel samples a Pauli error per listed qubit. Only Pauli mixtures
// (flip and depolarizing channels) keep the state a stabilizer state;
// damping channels fail with ErrUnsupportedGate.
func (s *Stabilizer) ApplyChannel(ch Channel, ids ...int) error {
	if err := s.alive("apply channel"); err != nil {
		return err
	}
	if err := checkQubits("apply channel", ids, s.qubits, -1); err != nil {
		return err
	}
	mix, err := ch.pauliMix()
	if err != nil {
		return err
	}
	wf := newWaveFunctionFromProbs(mix[:], nil)
	for _, q := range ids {
		switch Pauli(wf.Collapse(s.rng).Value) {
		case PauliX:
			s.conjugate(X(q))
		case PauliY:
			s.conjugate(Y(q))
		case PauliZ:
			s.conjugate(Z(q))
		}
	}
	return nil
}
