package linalg

import (
	"math"
	"math/cmplx"
)

// Matrix is a square complex matrix stored row-major.
type Matrix struct {
	N    int
	Data []complex128
}

// New returns an n×n zero matrix.
func New(n int) *Matrix {
	return &Matrix{N: n, Data: make([]complex128, n*n)}
}

// FromData wraps data as an n×n matrix. The slice is used, not copied.
func FromData(n int, data []complex128) (*Matrix, error) {
	if n <= 0 || len(data) != n*n {
		return nil, opErrorf(opFromFn, ErrBadShape)
	}
	return &Matrix{N: n, Data: data}, nil
}

// FromRows copies a slice of rows into a new matrix.
func FromRows(rows [][]complex128) (*Matrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, opErrorf(opFromFn, ErrBadShape)
	}
	m := New(n)
	for i, row := range rows {
		if len(row) != n {
			return nil, opErrorf(opFromFn, ErrBadShape)
		}
		copy(m.Data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// Identity returns the n×n identity.
func Identity(n int) *Matrix {
	m := New(n)
	for i := 0; i < n; i++ {
		m.Data[i*n+i] = 1
	}
	return m
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) complex128 { return m.Data[i*m.N+j] }

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v complex128) { m.Data[i*m.N+j] = v }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := New(m.N)
	copy(out.Data, m.Data)
	return out
}

// Dagger returns the conjugate transpose.
func (m *Matrix) Dagger() *Matrix {
	out := New(m.N)
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			out.Data[j*m.N+i] = cmplx.Conj(m.Data[i*m.N+j])
		}
	}
	return out
}

// Transpose returns the plain transpose.
func (m *Matrix) Transpose() *Matrix {
	out := New(m.N)
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			out.Data[j*m.N+i] = m.Data[i*m.N+j]
		}
	}
	return out
}

// Conj returns the element-wise complex conjugate.
func (m *Matrix) Conj() *Matrix {
	out := New(m.N)
	for i, v := range m.Data {
		out.Data[i] = cmplx.Conj(v)
	}
	return out
}

// Scale returns c·m.
func (m *Matrix) Scale(c complex128) *Matrix {
	out := New(m.N)
	for i, v := range m.Data {
		out.Data[i] = c * v
	}
	return out
}

// Trace returns the sum of the diagonal.
func (m *Matrix) Trace() complex128 {
	var t complex128
	for i := 0; i < m.N; i++ {
		t += m.Data[i*m.N+i]
	}
	return t
}

// IsHermitian reports whether m equals its conjugate transpose within tol.
func (m *Matrix) IsHermitian(tol float64) bool {
	for i := 0; i < m.N; i++ {
		for j := i; j < m.N; j++ {
			if cmplx.Abs(m.Data[i*m.N+j]-cmplx.Conj(m.Data[j*m.N+i])) > tol {
				return false
			}
		}
	}
	return true
}

// IsUnitary reports whether m·m† is the identity within tol.
func (m *Matrix) IsUnitary(tol float64) bool {
	p, _ := Mul(m, m.Dagger())
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(p.Data[i*m.N+j]-want) > tol {
				return false
			}
		}
	}
	return true
}

// Mul returns a·b.
func Mul(a, b *Matrix) (*Matrix, error) {
	if a.N != b.N {
		return nil, opErrorf(opMul, ErrDimensionMismatch)
	}
	n := a.N
	out := New(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a.Data[i*n+k]
			if aik == 0 {
				continue
			}
			row := b.Data[k*n : (k+1)*n]
			dst := out.Data[i*n : (i+1)*n]
			for j, bkj := range row {
				dst[j] += aik * bkj
			}
		}
	}
	return out, nil
}

// Add returns a+b.
func Add(a, b *Matrix) (*Matrix, error) {
	if a.N != b.N {
		return nil, opErrorf(opAdd, ErrDimensionMismatch)
	}
	out := New(a.N)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

// Sub returns a-b.
func Sub(a, b *Matrix) (*Matrix, error) {
	if a.N != b.N {
		return nil, opErrorf(opSub, ErrDimensionMismatch)
	}
	out := New(a.N)
	for i := range a.Data {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return out, nil
}

// Kron returns the Kronecker product a⊗b. The factor a occupies the most
// significant part of the row and column index.
func Kron(a, b *Matrix) *Matrix {
	n := a.N * b.N
	out := New(n)
	for i := 0; i < a.N; i++ {
		for j := 0; j < a.N; j++ {
			aij := a.Data[i*a.N+j]
			if aij == 0 {
				continue
			}
			for k := 0; k < b.N; k++ {
				for l := 0; l < b.N; l++ {
					out.Data[(i*b.N+k)*n+j*b.N+l] = aij * b.Data[k*b.N+l]
				}
			}
		}
	}
	return out
}

// Outer returns |a⟩⟨b|.
func Outer(a, b []complex128) *Matrix {
	n := len(a)
	out := New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Data[i*n+j] = a[i] * cmplx.Conj(b[j])
		}
	}
	return out
}

// Dot returns ⟨a|b⟩.
func Dot(a, b []complex128) complex128 {
	var s complex128
	for i := range a {
		s += cmplx.Conj(a[i]) * b[i]
	}
	return s
}

// Norm returns the Euclidean norm of v.
func Norm(v []complex128) float64 {
	var s float64
	for _, x := range v {
		s += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(s)
}
