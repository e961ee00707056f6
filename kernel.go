package qsim

// applyMatrix multiplies the 2^k×2^k matrix m into the entries of v
// addressed by qubits, once for every assignment of the other n-k qubits.
// Entry for basis index i lives at v[offset+i*stride], which lets the
// density engine reuse the kernel on the rows and columns of ρ.
//
// This is the hot path: O(2^n · 2^k) multiply-adds, no allocation beyond
// two small scratch slices.
func applyMatrix(v []complex128, n int, qubits []int, m []complex128, offset, stride int) {
	k := len(qubits)
	dim := 1 << uint(k)

	offs := make([]int, dim)
	for l := 0; l < dim; l++ {
		for j, q := range qubits {
			if l>>uint(k-1-j)&1 == 1 {
				offs[l] |= 1 << uint(q)
			}
		}
	}

	free := complement(qubits, n)
	tmp := make([]complex128, dim)

	if k == 1 {
		m00, m01, m10, m11 := m[0], m[1], m[2], m[3]
		bit := offs[1]
		for r := 0; r < 1<<uint(n-1); r++ {
			i0 := offset + deposit(r, free)*stride
			i1 := i0 + bit*stride
			a0, a1 := v[i0], v[i1]
			v[i0] = m00*a0 + m01*a1
			v[i1] = m10*a0 + m11*a1
		}
		return
	}

	for r := 0; r < 1<<uint(n-k); r++ {
		base := deposit(r, free)
		for l := 0; l < dim; l++ {
			tmp[l] = v[offset+(base|offs[l])*stride]
		}
		for row := 0; row < dim; row++ {
			var s complex128
			for col, t := range tmp {
				if e := m[row*dim+col]; e != 0 {
					s += e * t
				}
			}
			v[offset+(base|offs[row])*stride] = s
		}
	}
}

// conjugate returns the element-wise conjugate of a matrix.
func conjugate(m []complex128) []complex128 {
	out := make([]complex128, len(m))
	for i, e := range m {
		out[i] = complex(real(e), -imag(e))
	}
	return out
}

// transpose returns the transpose of a dim×dim row-major matrix.
func transpose(m []complex128, dim int) []complex128 {
	out := make([]complex128, len(m))
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[j*dim+i] = m[i*dim+j]
		}
	}
	return out
}
