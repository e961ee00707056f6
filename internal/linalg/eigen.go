package linalg

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// clusterTol groups eigenvalues of the real embedding that belong to the
// same Hermitian eigenvalue.
const clusterTol = 1e-9

// Eigen is the spectral decomposition H = Σ λᵢ |vᵢ⟩⟨vᵢ| of a Hermitian
// matrix. Values are ascending; Vectors[i] pairs with Values[i] and the
// vectors are orthonormal.
type Eigen struct {
	Values  []float64
	Vectors [][]complex128
}

// EigenHermitian decomposes a Hermitian matrix. tol bounds the allowed
// deviation from Hermiticity.
//
// The 2n×2n real embedding M = [[A, -B], [B, A]] has eigenvector [x; y] for
// λ exactly when x+iy is an eigenvector of H for λ, so each Hermitian
// eigenspace of dimension k shows up as a 2k-dimensional real cluster. A
// pivoted Gram-Schmidt over each cluster, in complex arithmetic, recovers
// k orthonormal complex eigenvectors.
func EigenHermitian(h *Matrix, tol float64) (*Eigen, error) {
	if !h.IsHermitian(tol) {
		return nil, opErrorf(opEigen, ErrNotHermitian)
	}

	n := h.N
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// symmetrize before embedding so round-off asymmetry is dropped
			v := (h.At(i, j) + cmplx.Conj(h.At(j, i))) / 2
			a, b := real(v), imag(v)
			sym.SetSym(i, j, a)
			sym.SetSym(n+i, n+j, a)
			sym.SetSym(i, n+j, -b)
			sym.SetSym(j, n+i, b)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, opErrorf(opEigen, ErrEigenFailed)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	out := &Eigen{
		Values:  make([]float64, 0, n),
		Vectors: make([][]complex128, 0, n),
	}

	scale := 1.0
	for _, v := range vals {
		scale = math.Max(scale, math.Abs(v))
	}

	for start := 0; start < len(vals) && len(out.Values) < n; {
		end := start + 1
		for end < len(vals) && math.Abs(vals[end]-vals[start]) <= clusterTol*scale {
			end++
		}
		// clusters of the embedding come in pairs; an odd size means a
		// pair straddled the boundary, so pull in its partner
		if (end-start)%2 == 1 && end < len(vals) {
			end++
		}

		candidates := make([][]complex128, 0, end-start)
		mean := 0.0
		for c := start; c < end; c++ {
			v := make([]complex128, n)
			for i := 0; i < n; i++ {
				v[i] = complex(vecs.At(i, c), vecs.At(n+i, c))
			}
			candidates = append(candidates, v)
			mean += vals[c]
		}
		mean /= float64(end - start)

		want := (end - start + 1) / 2
		if rest := n - len(out.Values); want > rest {
			want = rest
		}
		for _, v := range pivotedGramSchmidt(candidates, want) {
			out.Values = append(out.Values, mean)
			out.Vectors = append(out.Vectors, v)
		}
		start = end
	}

	return out, nil
}

// pivotedGramSchmidt picks want orthonormal vectors out of the span of
// candidates, each round taking the candidate with the largest residual.
func pivotedGramSchmidt(candidates [][]complex128, want int) [][]complex128 {
	residual := make([][]complex128, len(candidates))
	for i, c := range candidates {
		residual[i] = append([]complex128(nil), c...)
	}
	used := make([]bool, len(candidates))
	basis := make([][]complex128, 0, want)

	for len(basis) < want {
		best, bestNorm := -1, 0.0
		for i, r := range residual {
			if used[i] {
				continue
			}
			if nr := Norm(r); nr > bestNorm {
				best, bestNorm = i, nr
			}
		}
		if best < 0 || bestNorm < 1e-12 {
			break
		}
		used[best] = true
		q := residual[best]
		for k := range q {
			q[k] /= complex(bestNorm, 0)
		}
		basis = append(basis, q)
		for i, r := range residual {
			if used[i] {
				continue
			}
			proj := Dot(q, r)
			for k := range r {
				r[k] -= proj * q[k]
			}
		}
	}
	return basis
}

// Func returns V f(Λ) V† for the decomposition.
func (e *Eigen) Func(f func(float64) float64) *Matrix {
	n := len(e.Values)
	out := New(n)
	for k, lambda := range e.Values {
		fl := complex(f(lambda), 0)
		if fl == 0 {
			continue
		}
		v := e.Vectors[k]
		for i := 0; i < n; i++ {
			vi := fl * v[i]
			for j := 0; j < n; j++ {
				out.Data[i*n+j] += vi * cmplx.Conj(v[j])
			}
		}
	}
	return out
}

// SqrtPSD returns the principal square root of a positive semi-definite
// Hermitian matrix, clamping small negative eigenvalues to zero.
func SqrtPSD(h *Matrix, tol float64) (*Matrix, error) {
	e, err := EigenHermitian(h, tol)
	if err != nil {
		return nil, err
	}
	return e.Func(func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return math.Sqrt(x)
	}), nil
}
