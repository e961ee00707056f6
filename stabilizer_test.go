package qsim

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func mustStabilizer(t *testing.T, n int, seed uint64) *Stabilizer {
	t.Helper()
	s, err := NewStabilizer(n, WithSeed(seed))
	if err != nil {
		t.Fatalf("new stabilizer: %v", err)
	}
	return s
}

// randomClifford draws a circuit from the Clifford part of the catalog.
func randomClifford(rng *rand.Rand, n, depth int) []Gate {
	single := []func(int) Gate{H, S, Sdg, X, Y, Z}
	double := []func(int, int) Gate{CX, CZ, CY, SW}

	gates := make([]Gate, 0, depth)
	for len(gates) < depth {
		if rng.IntN(2) == 0 {
			gates = append(gates, single[rng.IntN(len(single))](rng.IntN(n)))
			continue
		}
		a, b := rng.IntN(n), rng.IntN(n)
		if a == b {
			continue
		}
		gates = append(gates, double[rng.IntN(len(double))](a, b))
	}
	return gates
}

func TestNewStabilizer(t *testing.T) {
	Convey("Given a fresh three qubit tableau", t, func() {
		s := mustStabilizer(t, 3, 1)

		Convey("Its generators should be the single qubit Zs", func() {
			g, err := s.Generators()
			So(err, ShouldBeNil)
			So(g, ShouldResemble, []string{"+ZII", "+IZI", "+IIZ"})
		})

		Convey("A zero width register should be rejected", func() {
			_, err := NewStabilizer(0)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestStabilizerApply(t *testing.T) {
	Convey("Given a two qubit tableau", t, func() {
		s := mustStabilizer(t, 2, 1)

		Convey("A Bell circuit should produce +XX and +ZZ", func() {
			So(s.Apply(H(0), CX(0, 1)), ShouldBeNil)
			g, _ := s.Generators()
			So(g, ShouldResemble, []string{"+XX", "+ZZ"})
		})

		Convey("Y on qubit 0 should flip the sign of Z", func() {
			So(s.Apply(Y(0)), ShouldBeNil)
			g, _ := s.Generator(0)
			So(g, ShouldEqual, "-ZI")
		})

		Convey("A non-Clifford gate should be refused before anything changes", func() {
			err := s.Apply(H(0), T(1))
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)

			var gerr *GateError
			So(errors.As(err, &gerr), ShouldBeTrue)
			So(gerr.Gate, ShouldEqual, GateT)

			g, _ := s.Generators()
			So(g, ShouldResemble, []string{"+ZI", "+IZ"})
		})

		Convey("Measure and reset pseudo-gates should not pass through Apply", func() {
			err := s.Apply(NewGate(GateMeasure, []int{0}))
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
		})
	})
}

func TestStabilizerAgreesWithDense(t *testing.T) {
	Convey("Given random Clifford circuits on four qubits", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))
		letters := []Pauli{PauliI, PauliX, PauliY, PauliZ}

		for trial := 0; trial < 20; trial++ {
			gates := randomClifford(rng, 4, 40)

			s := mustStabilizer(t, 4, uint64(trial))
			So(s.Apply(gates...), ShouldBeNil)
			qs := mustState(t, 4, uint64(trial))
			So(qs.Apply(gates...), ShouldBeNil)

			exported, err := s.QState()
			So(err, ShouldBeNil)
			f, err := exported.Fidelity(qs)
			So(err, ShouldBeNil)
			So(f, ShouldAlmostEqual, 1, 1e-9)

			for k := 0; k < 10; k++ {
				var ps PauliString
				for q := 0; q < 4; q++ {
					if p := letters[rng.IntN(4)]; p != PauliI {
						ps = append(ps, PauliFactor{Qubit: q, Op: p})
					}
				}
				got, err := s.ExpectPauli(ps)
				So(err, ShouldBeNil)
				want := qs.pauliExpect(ps)
				So(math.Abs(got-real(want)), ShouldBeLessThan, 1e-9)
			}
		}
	})
}

func TestStabilizerMeasure(t *testing.T) {
	Convey("Given a GHZ state", t, func() {
		s := mustStabilizer(t, 3, 5)
		So(s.Apply(H(0), CX(0, 1), CX(1, 2)), ShouldBeNil)

		Convey("Its Pauli expectations should follow the stabilizer group", func() {
			v, _ := s.ExpectPauli(PauliString{{0, PauliZ}, {1, PauliZ}})
			So(v, ShouldEqual, 1)
			v, _ = s.ExpectPauli(PauliString{{0, PauliX}, {1, PauliX}, {2, PauliX}})
			So(v, ShouldEqual, 1)
			v, _ = s.ExpectPauli(PauliString{{0, PauliY}, {1, PauliY}, {2, PauliX}})
			So(v, ShouldEqual, -1)
			v, _ = s.ExpectPauli(PauliString{{0, PauliZ}})
			So(v, ShouldEqual, 0)
		})

		Convey("Repeated shots should only ever see 000 or 111", func() {
			out, err := s.Measure(nil, Shots(1000))
			So(err, ShouldBeNil)
			So(out.Count("000")+out.Count("111"), ShouldEqual, 1000)
			So(out.Count("000"), ShouldBeGreaterThan, 400)
			So(out.Count("111"), ShouldBeGreaterThan, 400)

			Convey("And the tableau should be left collapsed", func() {
				again, err := s.Measure(nil, Shots(10))
				So(err, ShouldBeNil)
				So(again.Count(out.Last()), ShouldEqual, 10)
			})
		})
	})

	Convey("Given |+⟩ and |+i⟩", t, func() {
		plus := mustStabilizer(t, 1, 1)
		So(plus.Apply(H(0)), ShouldBeNil)
		plusI := mustStabilizer(t, 1, 1)
		So(plusI.Apply(H(0), S(0)), ShouldBeNil)

		Convey("Each should read 0 in its own basis", func() {
			out, err := plus.Measure(nil, InBasis(BasisX), Shots(50))
			So(err, ShouldBeNil)
			So(out.Count("0"), ShouldEqual, 50)

			out, err = plusI.Measure(nil, InBasis(BasisY), Shots(50))
			So(err, ShouldBeNil)
			So(out.Count("0"), ShouldEqual, 50)
		})

		Convey("A directional basis should be unsupported", func() {
			_, err := plus.Measure(nil, InDirection(0.3, 0.2))
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
		})
	})

	Convey("Given a 200 qubit GHZ chain", t, func() {
		n := 200
		s := mustStabilizer(t, n, 9)
		gates := []Gate{H(0)}
		for q := 0; q+1 < n; q++ {
			gates = append(gates, CX(q, q+1))
		}
		So(s.Apply(gates...), ShouldBeNil)

		Convey("Every qubit should agree", func() {
			out, err := s.Measure(nil)
			So(err, ShouldBeNil)
			bits := out.Last()
			So(len(bits), ShouldEqual, n)
			So(strings.Count(bits, string(bits[0])), ShouldEqual, n)
		})
	})
}

func TestStabilizerStateOps(t *testing.T) {
	Convey("Given a tableau in |11⟩", t, func() {
		s := mustStabilizer(t, 2, 3)
		So(s.Apply(X(0), X(1)), ShouldBeNil)

		Convey("Reset should restore positive Zs", func() {
			So(s.Reset(), ShouldBeNil)
			g, _ := s.Generators()
			So(g, ShouldResemble, []string{"+ZI", "+IZ"})
		})

		Convey("Clone should not share state", func() {
			c, err := s.Clone()
			So(err, ShouldBeNil)
			So(c.Apply(X(0)), ShouldBeNil)
			g, _ := s.Generator(0)
			So(g, ShouldEqual, "-ZI")
			g, _ = c.Generator(0)
			So(g, ShouldEqual, "+ZI")
		})
	})

	Convey("Given generators written by hand", t, func() {
		s := mustStabilizer(t, 1, 1)
		So(s.SetPauli(0, 0, PauliX), ShouldBeNil)
		So(s.SetSign(0, true), ShouldBeNil)

		Convey("The exported state should be |−⟩", func() {
			qs, err := s.QState()
			So(err, ShouldBeNil)
			amps := amplitudesOf(t, qs)
			So(cmplx.Abs(amps[0]-complex(1/math.Sqrt2, 0)), ShouldBeLessThan, 1e-9)
			So(cmplx.Abs(amps[1]-complex(-1/math.Sqrt2, 0)), ShouldBeLessThan, 1e-9)
		})

		Convey("Out of range rows should be rejected", func() {
			So(errors.Is(s.SetSign(1, false), ErrOutOfBound), ShouldBeTrue)
			_, err := s.Pauli(0, 3)
			So(errors.Is(err, ErrOutOfBound), ShouldBeTrue)
		})
	})

	Convey("Given Pauli noise", t, func() {
		s := mustStabilizer(t, 1, 1)

		Convey("A certain bit flip should flip the qubit", func() {
			So(s.ApplyChannel(BitFlip(1), 0), ShouldBeNil)
			out, _ := s.Measure(nil)
			So(out.Last(), ShouldEqual, "1")
		})

		Convey("Damping should be refused", func() {
			err := s.ApplyChannel(AmplitudeDamping(0.1), 0)
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
		})
	})

	Convey("Given a released tableau", t, func() {
		s := mustStabilizer(t, 1, 1)
		So(s.Release(), ShouldBeNil)
		So(errors.Is(s.Apply(H(0)), ErrReleased), ShouldBeTrue)
		_, err := s.Measure(nil)
		So(errors.Is(err, ErrReleased), ShouldBeTrue)
	})
}
