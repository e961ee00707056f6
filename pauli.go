package qsim

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// Pauli is a single-qubit Pauli letter.
type Pauli uint8

const (
	PauliI Pauli = iota
	PauliX
	PauliY
	PauliZ
)

func (p Pauli) String() string {
	return [...]string{"I", "X", "Y", "Z"}[p&3]
}

// Matrix returns the 2×2 Pauli matrix.
func (p Pauli) Matrix() []complex128 {
	switch p {
	case PauliX:
		return []complex128{0, 1, 1, 0}
	case PauliY:
		return []complex128{0, -1i, 1i, 0}
	case PauliZ:
		return []complex128{1, 0, 0, -1}
	default:
		return []complex128{1, 0, 0, 1}
	}
}

// ParsePauli reads one of I, X, Y, Z (either case).
func ParsePauli(s string) (Pauli, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I":
		return PauliI, nil
	case "X":
		return PauliX, nil
	case "Y":
		return PauliY, nil
	case "Z":
		return PauliZ, nil
	}
	return PauliI, fmt.Errorf("parse pauli %q: %w", s, ErrInvalidArgument)
}

// PauliFactor places a Pauli letter on a qubit.
type PauliFactor struct {
	Qubit int
	Op    Pauli
}

// PauliString is a tensor product of Pauli letters on distinct qubits,
// kept sorted by qubit with identities dropped.
type PauliString []PauliFactor

// NewPauliString normalizes factors. Repeated qubits multiply together;
// the phase this produces is returned alongside the string.
func NewPauliString(factors ...PauliFactor) (PauliString, complex128) {
	byQubit := make(map[int]Pauli, len(factors))
	phase := complex128(1)
	for _, f := range factors {
		prev, ok := byQubit[f.Qubit]
		if !ok {
			byQubit[f.Qubit] = f.Op
			continue
		}
		op, ph := mulPauli(prev, f.Op)
		byQubit[f.Qubit] = op
		phase *= ph
	}

	out := make(PauliString, 0, len(byQubit))
	for q, op := range byQubit {
		if op != PauliI {
			out = append(out, PauliFactor{Qubit: q, Op: op})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qubit < out[j].Qubit })
	return out, phase
}

// mulPauli returns a·b as a letter and a phase.
func mulPauli(a, b Pauli) (Pauli, complex128) {
	switch {
	case a == PauliI:
		return b, 1
	case b == PauliI:
		return a, 1
	case a == b:
		return PauliI, 1
	}
	// XY=iZ, YZ=iX, ZX=iY; reversed order gives -i
	c := PauliX ^ PauliY ^ PauliZ ^ a ^ b
	if (a == PauliX && b == PauliY) || (a == PauliY && b == PauliZ) || (a == PauliZ && b == PauliX) {
		return c, 1i
	}
	return c, -1i
}

func (ps PauliString) String() string {
	if len(ps) == 0 {
		return "I"
	}
	parts := make([]string, len(ps))
	for i, f := range ps {
		parts[i] = fmt.Sprintf("%s_%d", f.Op, f.Qubit)
	}
	return strings.Join(parts, "*")
}

// Key is a canonical form used to merge like terms.
func (ps PauliString) Key() string { return ps.String() }

// MaxQubit returns the largest qubit the string touches, or -1.
func (ps PauliString) MaxQubit() int {
	if len(ps) == 0 {
		return -1
	}
	return ps[len(ps)-1].Qubit
}

// masks splits the string into bit masks: qubits flipped by X or Y, and
// qubits whose phase depends on the bit (Y or Z).
func (ps PauliString) masks() (flip, phase uint64, ys int) {
	for _, f := range ps {
		bit := uint64(1) << uint(f.Qubit)
		switch f.Op {
		case PauliX:
			flip |= bit
		case PauliY:
			flip |= bit
			phase |= bit
			ys++
		case PauliZ:
			phase |= bit
		}
	}
	return flip, phase, ys
}

// entry returns the phase c with P|i⟩ = c|i^flip⟩. Y|b⟩ = i(-1)^b|1-b⟩
// supplies the i^#Y factor and the sign.
func entry(i, phase uint64, ys int) complex128 {
	v := [...]complex128{1, 1i, -1, -1i}[ys%4]
	if bits.OnesCount64(i&phase)%2 == 1 {
		return -v
	}
	return v
}

// applyTo writes P·src into dst.
func (ps PauliString) applyTo(dst, src []complex128) {
	flip, phase, ys := ps.masks()
	for i, a := range src {
		j := uint64(i) ^ flip
		if a == 0 {
			dst[j] = 0
			continue
		}
		dst[j] = entry(uint64(i), phase, ys) * a
	}
}
