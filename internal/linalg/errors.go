package linalg

import (
	"errors"
	"fmt"
)

var (
	// ErrBadShape is returned when a requested dimension is not positive or
	// the backing data does not hold n*n elements.
	ErrBadShape = errors.New("linalg: invalid shape")

	// ErrDimensionMismatch is returned when two operands differ in size.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrNotHermitian is returned when a Hermitian input was required.
	ErrNotHermitian = errors.New("linalg: matrix is not hermitian within tolerance")

	// ErrEigenFailed is returned when the symmetric solver does not converge.
	ErrEigenFailed = errors.New("linalg: eigen decomposition failed")
)

const (
	opMul    = "Mul"
	opAdd    = "Add"
	opSub    = "Sub"
	opEigen  = "EigenHermitian"
	opFromFn = "FromData"
)

func opErrorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
