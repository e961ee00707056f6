package qsim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestRunner(seed uint64) *Runner {
	cfg := NewConfig()
	cfg.Workers = 2
	cfg.ShotsPerJob = 64
	return NewRunner(context.Background(), WithConfig(cfg), WithSeed(seed))
}

func valueOf(bits string) int {
	v, _ := parseBitstring(bits)
	return v
}

func TestRunBell(t *testing.T) {
	Convey("Given a Bell circuit", t, func() {
		r := newTestRunner(1)
		Reset(r.Close)

		c := NewCircuit(2, 2).Add(H(0), CX(0, 1)).Measure([]int{0, 1}, []int{0, 1})

		for _, kind := range []BackendKind{BackendDense, BackendStabilizer} {
			Convey("On the "+kind.String()+" backend only correlated outcomes should appear", func() {
				res, err := r.Run(context.Background(), c, 2000, kind)
				So(err, ShouldBeNil)
				So(res.Shots, ShouldEqual, 2000)
				So(res.Backend, ShouldEqual, kind)
				So(res.Counts.Total(), ShouldEqual, 2000)
				So(res.Counts["00"]+res.Counts["11"], ShouldEqual, 2000)
				So(res.Counts["00"], ShouldBeGreaterThan, 850)
				So(res.Counts["11"], ShouldBeGreaterThan, 850)
			})
		}
	})
}

func TestRunReproducible(t *testing.T) {
	Convey("Given two runners with the same seed", t, func() {
		a := newTestRunner(42)
		b := newTestRunner(42)
		Reset(func() {
			a.Close()
			b.Close()
		})

		// the mid-circuit measurement forces shot-by-shot replay
		c := NewCircuit(3, 3).
			Add(H(0), RY(1, 0.8)).
			Measure([]int{0}, []int{0}).
			AddIf(0, CX(1, 2)).
			Add(H(1)).
			Measure([]int{1, 2}, []int{1, 2})

		Convey("They should produce identical histograms", func() {
			ra, err := a.Run(context.Background(), c, 500, BackendDense)
			So(err, ShouldBeNil)
			rb, err := b.Run(context.Background(), c, 500, BackendDense)
			So(err, ShouldBeNil)
			So(ra.Seed, ShouldEqual, rb.Seed)
			So(ra.Counts, ShouldResemble, rb.Counts)
			So(ra.Last, ShouldEqual, rb.Last)
		})

		Convey("Consecutive runs on one runner should use fresh seeds", func() {
			r1, err := a.Run(context.Background(), c, 10, BackendDense)
			So(err, ShouldBeNil)
			r2, err := a.Run(context.Background(), c, 10, BackendDense)
			So(err, ShouldBeNil)
			So(r1.Seed, ShouldNotEqual, r2.Seed)
		})
	})
}

func TestRunTeleportation(t *testing.T) {
	Convey("Given a teleportation circuit with classical corrections", t, func() {
		r := newTestRunner(3)
		Reset(r.Close)

		c := NewCircuit(3, 3).
			Add(X(0), H(1), CX(1, 2)).
			Add(CX(0, 1), H(0)).
			Measure([]int{0, 1}, []int{0, 1}).
			AddIf(1, X(2)).
			AddIf(0, Z(2)).
			Measure([]int{2}, []int{2})

		for _, kind := range []BackendKind{BackendDense, BackendStabilizer} {
			Convey("The target should always read 1 on the "+kind.String()+" backend", func() {
				res, err := r.Run(context.Background(), c, 300, kind)
				So(err, ShouldBeNil)

				branches := make(map[string]bool)
				for bits, n := range res.Counts {
					So(n, ShouldBeGreaterThan, 0)
					So(bits[2], ShouldEqual, byte('1'))
					branches[bits[:2]] = true
				}
				So(len(branches), ShouldEqual, 4)
			})
		}
	})
}

func TestRunPlainAdder(t *testing.T) {
	Convey("Given a ripple-carry adder with b fixed to 12", t, func() {
		r := newTestRunner(5)
		Reset(r.Close)

		// a on qubits 0-3, b on 4-7, carry-in ancilla on 8
		a := func(i int) int { return i }
		b := func(i int) int { return 4 + i }
		const carry = 8

		maj := func(c, y, x int) []Gate { return []Gate{CX(x, y), CX(x, c), CCX(c, y, x)} }
		uma := func(c, y, x int) []Gate { return []Gate{CCX(c, y, x), CX(x, c), CX(c, y)} }

		circuit := NewCircuit(9, 8)
		circuit.Add(X(b(2)), X(b(3)))
		for i := 0; i < 4; i++ {
			circuit.Add(H(a(i)))
		}
		circuit.Add(maj(carry, b(0), a(0))...)
		for i := 1; i < 4; i++ {
			circuit.Add(maj(a(i-1), b(i), a(i))...)
		}
		for i := 3; i >= 1; i-- {
			circuit.Add(uma(a(i-1), b(i), a(i))...)
		}
		circuit.Add(uma(carry, b(0), a(0))...)
		circuit.Measure([]int{0, 1, 2, 3, 4, 5, 6, 7}, []int{0, 1, 2, 3, 4, 5, 6, 7})

		Convey("Every pair (a, a+12 mod 16) should appear equally often", func() {
			res, err := r.Run(context.Background(), circuit, 4096, BackendDense)
			So(err, ShouldBeNil)
			t.Log(spew.Sdump(res.Counts))

			So(len(res.Counts), ShouldEqual, 16)
			for bits, n := range res.Counts {
				v := valueOf(bits)
				av, bv := v&15, v>>4
				So(bv, ShouldEqual, (av+12)%16)
				So(n, ShouldBeBetween, 256-90, 256+90)
			}
		})
	})
}

func TestRunNoiseAndReset(t *testing.T) {
	Convey("Given circuits with noise and resets", t, func() {
		r := newTestRunner(8)
		Reset(r.Close)

		Convey("A certain bit flip should always read 1", func() {
			c := NewCircuit(1, 1).Noise(BitFlip(1), 0).Measure([]int{0}, []int{0})
			for _, kind := range []BackendKind{BackendDense, BackendStabilizer} {
				res, err := r.Run(context.Background(), c, 100, kind)
				So(err, ShouldBeNil)
				So(res.Counts["1"], ShouldEqual, 100)
			}
		})

		Convey("A reset should undo an X", func() {
			c := NewCircuit(2, 2).Add(X(0), X(1)).Reset(0).Measure([]int{0, 1}, []int{0, 1})
			res, err := r.Run(context.Background(), c, 50, BackendStabilizer)
			So(err, ShouldBeNil)
			So(res.Counts["01"], ShouldEqual, 50)
		})

		Convey("Amplitude damping should lower the excited population", func() {
			c := NewCircuit(1, 1).Add(X(0)).Noise(AmplitudeDamping(0.5), 0).Measure([]int{0}, []int{0})
			res, err := r.Run(context.Background(), c, 2000, BackendDense)
			So(err, ShouldBeNil)
			So(res.Counts["0"], ShouldBeBetween, 850, 1150)
		})
	})
}

func TestRunValidation(t *testing.T) {
	Convey("Given a runner", t, func() {
		r := newTestRunner(1)
		Reset(r.Close)

		Convey("A T gate should not run on the stabilizer backend", func() {
			c := NewCircuit(1, 1).Add(T(0)).Measure([]int{0}, []int{0})
			_, err := r.Run(context.Background(), c, 10, BackendStabilizer)
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
		})

		Convey("Damping noise should not run on the stabilizer backend", func() {
			c := NewCircuit(1, 1).Noise(AmplitudeDamping(0.2), 0)
			_, err := r.Run(context.Background(), c, 10, BackendStabilizer)
			So(errors.Is(err, ErrUnsupportedGate), ShouldBeTrue)
		})

		Convey("Every problem should be reported at once", func() {
			c := NewCircuit(2, 1).Add(X(2)).Measure([]int{0}, []int{3})
			err := c.Validate(BackendDense)
			So(errors.Is(err, ErrOutOfBound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "op 0")
			So(err.Error(), ShouldContainSubstring, "op 1")
		})

		Convey("Zero shots should be rejected", func() {
			c := NewCircuit(1, 1).Measure([]int{0}, []int{0})
			_, err := r.Run(context.Background(), c, 0, BackendDense)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("A cancelled context should stop the run", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			c := NewCircuit(1, 1).Add(H(0)).Measure([]int{0}, []int{0}).Add(X(0))
			_, err := r.Run(ctx, c, 1000, BackendDense)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("A circuit without measurements should count the empty register", func() {
			c := NewCircuit(1, 2).Add(H(0))
			res, err := r.Run(context.Background(), c, 7, BackendDense)
			So(err, ShouldBeNil)
			So(res.Counts["00"], ShouldEqual, 7)
		})

		Convey("The pool metrics should count executed shots", func() {
			c := NewCircuit(1, 1).Measure([]int{0}, []int{0})
			_, err := r.Run(context.Background(), c, 20, BackendDense)
			So(err, ShouldBeNil)
			So(r.Metrics()["shots_executed"], ShouldEqual, int64(20))
		})
	})
}

// slowCircuit is an identity of many gates on a wide register with a reset,
// so every shot is replayed and takes a while.
func slowCircuit(n, rounds int) *Circuit {
	c := NewCircuit(n, 2)
	for r := 0; r < rounds; r++ {
		for q := 0; q < n; q++ {
			c.Add(X(q))
		}
	}
	return c.Reset(1).Measure([]int{0, 1}, []int{0, 1})
}

func TestRunUnderLoad(t *testing.T) {
	Convey("Given one worker, one shot per batch and a tiny scheduling timeout", t, func() {
		cfg := NewConfig()
		cfg.Workers = 1
		cfg.ShotsPerJob = 1
		cfg.SchedulingTimeout = time.Millisecond
		r := NewRunner(context.Background(), WithConfig(cfg), WithSeed(4))
		Reset(r.Close)

		Convey("Batches queued behind slow ones should still complete", func() {
			res, err := r.Run(context.Background(), slowCircuit(14, 100), 4, BackendDense)
			So(err, ShouldBeNil)
			So(res.Counts["00"], ShouldEqual, 4)
			So(r.Metrics()["scheduling_delays"], ShouldBeGreaterThan, int64(0))
		})

		Convey("Cancelling the caller should stop the running batch", func() {
			cfg.ShotsPerJob = 1000
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(20*time.Millisecond, cancel)

			_, err := r.Run(ctx, slowCircuit(14, 100), 1000, BackendDense)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)

			deadline := time.Now().Add(2 * time.Second)
			for r.Metrics()["failed_jobs"] != int64(1) && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(r.Metrics()["failed_jobs"], ShouldEqual, int64(1))
		})
	})
}
