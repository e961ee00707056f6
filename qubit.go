package qsim

import (
	"fmt"
	"sort"
)

// checkQubits validates qubit ids against a register of n qubits: every id
// in range and no id repeated. want < 0 accepts any non-empty list.
func checkQubits(op string, ids []int, n, want int) error {
	if want >= 0 && len(ids) != want {
		return &QubitError{Op: op, Qubit: -1, NumQubits: n, Err: fmt.Errorf("want %d qubits, got %d: %w", want, len(ids), ErrArityMismatch)}
	}
	if want < 0 && len(ids) == 0 {
		return &QubitError{Op: op, Qubit: -1, NumQubits: n, Err: ErrArityMismatch}
	}

	seen := make(map[int]struct{}, len(ids))
	for _, q := range ids {
		if q < 0 || q >= n {
			return &QubitError{Op: op, Qubit: q, NumQubits: n, Err: ErrOutOfBound}
		}
		if _, dup := seen[q]; dup {
			return &QubitError{Op: op, Qubit: q, NumQubits: n, Err: ErrDuplicateQubit}
		}
		seen[q] = struct{}{}
	}
	return nil
}

// checkGate validates a gate's qubits and phase parameters.
func checkGate(op string, g Gate, n int) error {
	spec, ok := catalog[g.Kind]
	if !ok {
		return &GateError{Op: op, Gate: g.Kind, Err: ErrUnsupportedGate}
	}
	if err := checkQubits(op+" "+spec.name, g.Qubits, n, spec.arity); err != nil {
		return err
	}
	if len(g.Params) != spec.params {
		return &GateError{Op: op, Gate: g.Kind, Err: ErrArityMismatch}
	}
	return nil
}

// allQubits returns 0..n-1.
func allQubits(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// complement returns the qubits of 0..n-1 not in ids, ascending.
func complement(ids []int, n int) []int {
	skip := make(map[int]struct{}, len(ids))
	for _, q := range ids {
		skip[q] = struct{}{}
	}
	out := make([]int, 0, n-len(ids))
	for q := 0; q < n; q++ {
		if _, ok := skip[q]; !ok {
			out = append(out, q)
		}
	}
	return out
}

// deposit scatters the low len(qubits) bits of v onto the given qubit
// positions; bit k of v lands on qubits[k].
func deposit(v int, qubits []int) int {
	out := 0
	for k, q := range qubits {
		if v>>uint(k)&1 == 1 {
			out |= 1 << uint(q)
		}
	}
	return out
}

// gather is the inverse of deposit.
func gather(i int, qubits []int) int {
	out := 0
	for k, q := range qubits {
		if i>>uint(q)&1 == 1 {
			out |= 1 << uint(k)
		}
	}
	return out
}

// localIndex reads the qubits of basis index i as a gate-local index, with
// qubits[0] as the most significant bit.
func localIndex(i int, qubits []int) int {
	out := 0
	for _, q := range qubits {
		out = out<<1 | (i >> uint(q) & 1)
	}
	return out
}

func sortedCopy(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}
