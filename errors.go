package qsim

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBound is returned when a qubit id is outside [0, qubit_num).
	ErrOutOfBound = errors.New("qsim: qubit id out of bound")

	// ErrDuplicateQubit is returned when a gate names the same qubit twice.
	ErrDuplicateQubit = errors.New("qsim: duplicate qubit id")

	// ErrArityMismatch is returned when a gate gets the wrong number of
	// qubits or phase parameters.
	ErrArityMismatch = errors.New("qsim: arity mismatch")

	// ErrSizeExceeded is returned when a register exceeds the engine ceiling.
	ErrSizeExceeded = errors.New("qsim: qubit count exceeds maximum")

	// ErrNumerical is returned when a result that must be real or
	// normalized falls outside tolerance.
	ErrNumerical = errors.New("qsim: numerical consistency failure")

	// ErrUnsupportedGate is returned when a representation cannot encode a
	// gate, such as a rotation on a stabilizer tableau.
	ErrUnsupportedGate = errors.New("qsim: unsupported gate")

	// ErrShapeMismatch is returned when two operands differ in dimension.
	ErrShapeMismatch = errors.New("qsim: shape mismatch")

	// ErrReleased is returned by every method of a released object.
	ErrReleased = errors.New("qsim: object already released")

	// ErrEmptyOperators is returned when an operator list is empty.
	ErrEmptyOperators = errors.New("qsim: empty operator list")

	// ErrNotHermitian is returned when a Hermitian input was required.
	ErrNotHermitian = errors.New("qsim: operator is not hermitian")

	// ErrInvalidProbability is returned for negative or non-finite weights.
	ErrInvalidProbability = errors.New("qsim: invalid probability")

	// ErrInvalidArgument covers malformed inputs not listed above.
	ErrInvalidArgument = errors.New("qsim: invalid argument")
)

// QubitError carries the offending qubit id of a bounds or arity failure.
type QubitError struct {
	Op        string
	Qubit     int
	NumQubits int
	Err       error
}

func (e *QubitError) Error() string {
	return fmt.Sprintf("%s: qubit %d (register of %d): %v", e.Op, e.Qubit, e.NumQubits, e.Err)
}

func (e *QubitError) Unwrap() error { return e.Err }

// ShapeError reports expected versus actual dimensions.
type ShapeError struct {
	Op       string
	Expected int
	Actual   int
	Err      error
}

func (e *ShapeError) Error() string {
	err := e.Err
	if err == nil {
		err = ErrShapeMismatch
	}
	return fmt.Sprintf("%s: expected dimension %d, got %d: %v", e.Op, e.Expected, e.Actual, err)
}

func (e *ShapeError) Unwrap() error {
	if e.Err == nil {
		return ErrShapeMismatch
	}
	return e.Err
}

// GateError reports a gate a representation or validator rejected.
type GateError struct {
	Op   string
	Gate GateKind
	Err  error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: gate %s: %v", e.Op, e.Gate, e.Err)
}

func (e *GateError) Unwrap() error { return e.Err }

// NumericalError reports a value that left its tolerance band.
type NumericalError struct {
	Op        string
	Value     complex128
	Tolerance float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s: value %v outside tolerance %g: %v", e.Op, e.Value, e.Tolerance, ErrNumerical)
}

func (e *NumericalError) Unwrap() error { return ErrNumerical }

// ReleaseError reports a call on a released object.
type ReleaseError struct {
	Op string
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrReleased)
}

func (e *ReleaseError) Unwrap() error { return ErrReleased }
