package qsim

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseObservable(t *testing.T) {
	Convey("Given a mixed expression with a complex coefficient", t, func() {
		obs, err := ParseObservable("-2.0 + z_0*z_1 + 0.5*x_0 - (0+1i)*y_2")
		So(err, ShouldBeNil)

		Convey("Every term should be kept with its sign", func() {
			terms := obs.Terms()
			So(len(terms), ShouldEqual, 4)
			So(terms[0].Coef, ShouldEqual, complex(-2, 0))
			So(len(terms[0].Ops), ShouldEqual, 0)
			So(terms[1].Ops.String(), ShouldEqual, "Z_0*Z_1")
			So(terms[2].Coef, ShouldEqual, complex(0.5, 0))
			So(terms[3].Coef, ShouldEqual, complex(0, -1))
			So(terms[3].Ops.String(), ShouldEqual, "Y_2")
		})

		Convey("It should span three qubits and not be Hermitian", func() {
			So(obs.NumQubits(), ShouldEqual, 3)
			So(obs.Hermitian(1e-12), ShouldBeFalse)
		})
	})

	Convey("Given pi expressions and exponents", t, func() {
		obs, err := ParseObservable("pi/4*X3 + 2pi*z_0 + 1e-3*y_1")
		So(err, ShouldBeNil)
		terms := obs.Terms()
		So(len(terms), ShouldEqual, 3)
		So(real(terms[0].Coef), ShouldAlmostEqual, math.Pi/4, 1e-12)
		So(real(terms[1].Coef), ShouldAlmostEqual, 2*math.Pi, 1e-12)
		So(real(terms[2].Coef), ShouldAlmostEqual, 1e-3, 1e-15)
	})

	Convey("Given like terms", t, func() {
		Convey("They should merge and cancel", func() {
			obs, err := ParseObservable("x_0 + x_0 - 2*x_0")
			So(err, ShouldBeNil)
			So(len(obs.Terms()), ShouldEqual, 0)
			So(obs.String(), ShouldEqual, "0")
		})

		Convey("Products on one qubit should pick up the Pauli phase", func() {
			obs, err := ParseObservable("x_0*y_0")
			So(err, ShouldBeNil)
			terms := obs.Terms()
			So(len(terms), ShouldEqual, 1)
			So(terms[0].Coef, ShouldEqual, complex(0, 1))
			So(terms[0].Ops.String(), ShouldEqual, "Z_0")
		})
	})

	Convey("Given malformed input", t, func() {
		for _, s := range []string{"", "x_0 + (1", "q_0", "x_0 * * z_1", "3pi/0"} {
			_, err := ParseObservable(s)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		}
	})
}

func TestObservableMatrix(t *testing.T) {
	Convey("Given single Pauli observables", t, func() {
		for _, p := range []Pauli{PauliX, PauliY, PauliZ} {
			obs := NewObservable(Term{Coef: 1, Ops: PauliString{{Qubit: 0, Op: p}}})
			m, err := obs.Matrix(1)
			So(err, ShouldBeNil)
			So(sameVector(m.Elements(), p.Matrix(), 0), ShouldBeTrue)
		}
	})

	Convey("Given an observable wider than the register", t, func() {
		obs, _ := ParseObservable("z_3")
		_, err := obs.Matrix(2)
		So(errors.Is(err, ErrOutOfBound), ShouldBeTrue)
	})
}

func TestExpect(t *testing.T) {
	Convey("Given a Hamiltonian", t, func() {
		obs, err := ParseObservable("-2.0 + z_0*z_1 + 0.5*x_0")
		So(err, ShouldBeNil)

		Convey("Its value on |00⟩ should be the diagonal entry", func() {
			qs := mustState(t, 2, 1)
			v, err := qs.Expect(obs)
			So(err, ShouldBeNil)
			So(imag(v), ShouldEqual, 0)
			So(real(v), ShouldAlmostEqual, -1, tol)
		})

		Convey("Its value on |+0⟩ should pick up the X term", func() {
			qs := mustState(t, 2, 1)
			So(qs.Apply(H(0)), ShouldBeNil)
			v, err := obs.Expect(qs)
			So(err, ShouldBeNil)
			So(real(v), ShouldAlmostEqual, -1.5, tol)
		})

		Convey("It should agree with the dense matrix on a random state", func() {
			qs := mustState(t, 2, 1)
			So(qs.Apply(U3(0, 0.3, 1.2, 0.1), CX(0, 1), RY(1, 0.8)), ShouldBeNil)

			v, err := qs.Expect(obs)
			So(err, ShouldBeNil)

			m, _ := obs.Matrix(2)
			amps := amplitudesOf(t, qs)
			var want complex128
			for i := range amps {
				for j := range amps {
					want += cmplx.Conj(amps[i]) * m.At(i, j) * amps[j]
				}
			}
			So(cmplx.Abs(v-want), ShouldBeLessThan, 1e-10)
		})
	})

	Convey("Given a Bell pair", t, func() {
		qs := mustState(t, 2, 1)
		So(qs.Apply(H(0), CX(0, 1)), ShouldBeNil)
		obs, _ := ParseObservable("x_0*x_1 + z_0*z_1 - y_0*y_1")

		v, err := qs.Expect(obs)
		So(err, ShouldBeNil)
		So(real(v), ShouldAlmostEqual, 3, tol)
	})
}

func TestEvolve(t *testing.T) {
	Convey("Given H = X on one qubit", t, func() {
		qs := mustState(t, 1, 1)
		obs, _ := ParseObservable("x_0")

		Convey("One step should be exact", func() {
			So(qs.Evolve(obs, 0.3, 1), ShouldBeNil)
			amps := amplitudesOf(t, qs)
			So(cmplx.Abs(amps[0]-complex(math.Cos(0.3), 0)), ShouldBeLessThan, 1e-12)
			So(cmplx.Abs(amps[1]-complex(0, -math.Sin(0.3))), ShouldBeLessThan, 1e-12)

			z, _ := ParseObservable("z_0")
			v, _ := qs.Expect(z)
			So(real(v), ShouldAlmostEqual, math.Cos(0.6), 1e-10)
		})
	})

	Convey("Given the non-commuting H = X + Z", t, func() {
		qs := mustState(t, 1, 1)
		obs, _ := ParseObservable("x_0 + z_0")

		Convey("Many Trotter steps should approach the exact propagator", func() {
			So(qs.Evolve(obs, 1, 4000), ShouldBeNil)

			w := math.Sqrt2
			want0 := complex(math.Cos(w), -math.Sin(w)/w)
			want1 := complex(0, -math.Sin(w)/w)
			amps := amplitudesOf(t, qs)
			So(cmplx.Abs(amps[0]-want0), ShouldBeLessThan, 1e-3)
			So(cmplx.Abs(amps[1]-want1), ShouldBeLessThan, 1e-3)

			n, _ := qs.Norm()
			So(n, ShouldAlmostEqual, 1, 1e-8)
		})
	})

	Convey("Given invalid evolution requests", t, func() {
		qs := mustState(t, 1, 1)

		nonHermitian, _ := ParseObservable("(0+1i)*x_0")
		So(errors.Is(qs.Evolve(nonHermitian, 1, 1), ErrNotHermitian), ShouldBeTrue)

		obs, _ := ParseObservable("x_0")
		So(errors.Is(qs.Evolve(obs, 1, 0), ErrInvalidArgument), ShouldBeTrue)

		wide, _ := ParseObservable("x_4")
		So(errors.Is(qs.Evolve(wide, 1, 1), ErrOutOfBound), ShouldBeTrue)
	})
}
