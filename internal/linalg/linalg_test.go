package linalg_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theapemachine/qsim/internal/linalg"
)

const tol = 1e-9

func mustRows(t *testing.T, rows [][]complex128) *linalg.Matrix {
	t.Helper()
	m, err := linalg.FromRows(rows)
	require.NoError(t, err)
	return m
}

func requireMatrixEqual(t *testing.T, want, got *linalg.Matrix) {
	t.Helper()
	require.Equal(t, want.N, got.N)
	for i := range want.Data {
		require.InDelta(t, 0, cmplx.Abs(want.Data[i]-got.Data[i]), tol, "element %d", i)
	}
}

func TestFromDataRejectsBadShape(t *testing.T) {
	_, err := linalg.FromData(2, make([]complex128, 3))
	require.ErrorIs(t, err, linalg.ErrBadShape)

	_, err = linalg.FromData(0, nil)
	require.ErrorIs(t, err, linalg.ErrBadShape)

	_, err = linalg.FromRows([][]complex128{{1, 2}, {3}})
	require.ErrorIs(t, err, linalg.ErrBadShape)
}

func TestMulAndDagger(t *testing.T) {
	a := mustRows(t, [][]complex128{{1, 1i}, {2, 3}})
	b := mustRows(t, [][]complex128{{0, 1}, {1, 0}})

	got, err := linalg.Mul(a, b)
	require.NoError(t, err)
	requireMatrixEqual(t, mustRows(t, [][]complex128{{1i, 1}, {3, 2}}), got)

	requireMatrixEqual(t, mustRows(t, [][]complex128{{1, 2}, {-1i, 3}}), a.Dagger())

	_, err = linalg.Mul(a, linalg.Identity(3))
	require.ErrorIs(t, err, linalg.ErrDimensionMismatch)
}

func TestKronOrdersFactors(t *testing.T) {
	x := mustRows(t, [][]complex128{{0, 1}, {1, 0}})
	z := mustRows(t, [][]complex128{{1, 0}, {0, -1}})

	got := linalg.Kron(x, z)
	want := mustRows(t, [][]complex128{
		{0, 0, 1, 0},
		{0, 0, 0, -1},
		{1, 0, 0, 0},
		{0, -1, 0, 0},
	})
	requireMatrixEqual(t, want, got)
	require.True(t, got.IsUnitary(tol))
	require.True(t, got.IsHermitian(tol))
}

func TestEigenHermitianReconstructs(t *testing.T) {
	cases := map[string]*linalg.Matrix{
		"pauli y": mustRows(t, [][]complex128{{0, -1i}, {1i, 0}}),
		"complex 3x3": mustRows(t, [][]complex128{
			{2, 1 - 1i, 0.5i},
			{1 + 1i, 3, 0},
			{-0.5i, 0, 1},
		}),
		"degenerate identity": linalg.Identity(4),
		"rank one": linalg.Outer(
			[]complex128{0.5, 0.5i, -0.5, 0.5},
			[]complex128{0.5, 0.5i, -0.5, 0.5},
		),
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			e, err := linalg.EigenHermitian(h, tol)
			require.NoError(t, err)
			require.Len(t, e.Values, h.N)
			require.Len(t, e.Vectors, h.N)

			for i := 1; i < len(e.Values); i++ {
				require.LessOrEqual(t, e.Values[i-1], e.Values[i]+tol)
			}
			for i := range e.Vectors {
				for j := range e.Vectors {
					want := 0.0
					if i == j {
						want = 1
					}
					require.InDelta(t, want, cmplx.Abs(linalg.Dot(e.Vectors[i], e.Vectors[j])), 1e-8)
				}
			}

			requireMatrixEqual(t, h, e.Func(func(x float64) float64 { return x }))
		})
	}
}

func TestEigenHermitianRejectsNonHermitian(t *testing.T) {
	_, err := linalg.EigenHermitian(mustRows(t, [][]complex128{{0, 1}, {0, 0}}), tol)
	require.ErrorIs(t, err, linalg.ErrNotHermitian)
}

func TestSqrtPSD(t *testing.T) {
	h := mustRows(t, [][]complex128{{2, 1i}, {-1i, 2}})

	root, err := linalg.SqrtPSD(h, tol)
	require.NoError(t, err)

	sq, err := linalg.Mul(root, root)
	require.NoError(t, err)
	requireMatrixEqual(t, h, sq)

	e, err := linalg.EigenHermitian(h, tol)
	require.NoError(t, err)
	require.InDelta(t, 1, e.Values[0], tol)
	require.InDelta(t, 3, e.Values[1], tol)
	require.InDelta(t, math.Sqrt(1)+math.Sqrt(3), real(root.Trace()), tol)
}
