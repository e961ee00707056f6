package qsim

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/qsim/internal/linalg"
)

func TestGateCatalog(t *testing.T) {
	Convey("Given every matrix gate in the catalog", t, func() {
		params := []float64{0.9, -0.4, 2.2}

		for k := GateI; k <= GateCSW; k++ {
			m, err := k.Matrix(params[:k.Params()]...)
			So(err, ShouldBeNil)

			dim := 1 << uint(k.Arity())
			So(len(m), ShouldEqual, dim*dim)

			mat, err := linalg.FromData(dim, m)
			So(err, ShouldBeNil)
			So(mat.IsUnitary(1e-12), ShouldBeTrue)

			back, err := ParseGateKind(k.String())
			So(err, ShouldBeNil)
			So(back, ShouldEqual, k)
		}
	})

	Convey("Given the Clifford flags", t, func() {
		for _, k := range []GateKind{GateH, GateS, GateSdg, GateX, GateY, GateZ, GateCX, GateCY, GateCZ, GateSW} {
			So(k.Clifford(), ShouldBeTrue)
		}
		for _, k := range []GateKind{GateT, GateXR, GateRX, GateCH, GateCCX, GateRZZ} {
			So(k.Clifford(), ShouldBeFalse)
		}
	})

	Convey("Given bad lookups", t, func() {
		_, err := ParseGateKind("frobnicate")
		So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)

		kind, err := ParseGateKind(" S_DG ")
		So(err, ShouldBeNil)
		So(kind, ShouldEqual, GateSdg)

		_, err = GateRX.Matrix()
		So(errors.Is(err, ErrArityMismatch), ShouldBeTrue)

		_, err = GateMeasure.Matrix()
		So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
	})

	Convey("Given rendered gates", t, func() {
		So(CX(0, 1).String(), ShouldEqual, "cx q0,q1")
		So(RX(2, 0.5).String(), ShouldEqual, "rx(0.5) q2")
	})
}

func TestGateConventions(t *testing.T) {
	Convey("Given a controlled gate", t, func() {
		Convey("The first listed qubit should be the control", func() {
			qs := mustState(t, 2, 1)
			So(qs.Apply(X(0), CX(0, 1)), ShouldBeNil)
			a, _ := qs.Amplitude(3)
			So(a, ShouldEqual, complex(1, 0))

			qs = mustState(t, 2, 1)
			So(qs.Apply(X(0), CX(1, 0)), ShouldBeNil)
			a, _ = qs.Amplitude(1)
			So(a, ShouldEqual, complex(1, 0))
		})
	})

	Convey("Given rotation gates", t, func() {
		Convey("RX(π) should equal X up to a global phase", func() {
			a := mustState(t, 1, 1)
			b := mustState(t, 1, 1)
			So(a.Apply(RX(0, math.Pi)), ShouldBeNil)
			So(b.Apply(X(0)), ShouldBeNil)
			f, _ := a.Fidelity(b)
			So(f, ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("XR twice should equal X", func() {
			a := mustState(t, 1, 1)
			So(a.Apply(XR(0), XR(0)), ShouldBeNil)
			amp, _ := a.Amplitude(1)
			So(real(amp), ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("RZZ should match CX RZ CX", func() {
			a := mustState(t, 2, 1)
			b := mustState(t, 2, 1)
			So(a.Apply(H(0), H(1), RZZ(0, 1, 0.7)), ShouldBeNil)
			So(b.Apply(H(0), H(1), CX(0, 1), RZ(1, 0.7), CX(0, 1)), ShouldBeNil)
			So(sameVector(amplitudesOf(t, a), amplitudesOf(t, b), 1e-12), ShouldBeTrue)
		})
	})
}
