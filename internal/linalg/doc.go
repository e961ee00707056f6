// Package linalg holds the dense complex linear algebra behind the density
// engine: square row-major matrices, Kronecker products, and the Hermitian
// eigendecomposition that matrix functions (square roots, logarithms,
// spectra) are built on.
//
// Hermitian eigenproblems are solved by embedding H = A + iB into the real
// symmetric matrix
//
//	[ A  -B ]
//	[ B   A ]
//
// whose spectrum is that of H with every eigenvalue doubled, and handing it
// to gonum's LAPACK-backed symmetric solver.
package linalg
