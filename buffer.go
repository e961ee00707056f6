package qsim

import (
	"math"
	"math/cmplx"
)

// Buffer owns the complex coefficients of a register. A released buffer
// has nil data and answers every call with ErrReleased.
type Buffer struct {
	data     []complex128
	released bool
}

func newBuffer(size int) *Buffer {
	return &Buffer{data: make([]complex128, size)}
}

func (b *Buffer) alive(op string) error {
	if b == nil || b.released {
		return &ReleaseError{Op: op}
	}
	return nil
}

// Len is the number of coefficients.
func (b *Buffer) Len() int { return len(b.data) }

// Norm2 returns Σ|a|².
func (b *Buffer) Norm2() float64 {
	var s float64
	for _, a := range b.data {
		s += real(a)*real(a) + imag(a)*imag(a)
	}
	return s
}

// normalize rescales to unit norm; a zero buffer is left as is and false
// is returned.
func (b *Buffer) normalize() bool {
	n := math.Sqrt(b.Norm2())
	if n == 0 {
		return false
	}
	inv := complex(1/n, 0)
	for i := range b.data {
		b.data[i] *= inv
	}
	return true
}

func (b *Buffer) clone() *Buffer {
	return &Buffer{data: append([]complex128(nil), b.data...)}
}

// snapshot returns a copy of the coefficients.
func (b *Buffer) snapshot() []complex128 {
	return append([]complex128(nil), b.data...)
}

// release drops the data and poisons the buffer.
func (b *Buffer) release(op string) error {
	if err := b.alive(op); err != nil {
		return err
	}
	b.data = nil
	b.released = true
	return nil
}

func probability(a complex128) float64 {
	return real(a * cmplx.Conj(a))
}
