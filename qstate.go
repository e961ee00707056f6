package qsim

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"math/rand/v2"

	"github.com/theapemachine/qsim/internal/linalg"
)

/*
QState is a pure n-qubit register held as a dense vector of 2^n amplitudes.
Bit i of a basis index is qubit i. Gates and measurements mutate the vector
in place; Clone, TensorProduct and friends never touch the receiver.

A QState is not safe for concurrent use and must be released with Release
once it is no longer needed; any call after that returns ErrReleased.
*/
type QState struct {
	qubits int
	buf    *Buffer
	rng    *rand.Rand
	seed   uint64
	cfg    *Config
}

// NewQState returns |0…0⟩ on n qubits.
func NewQState(n int, opts ...Option) (*QState, error) {
	o := buildOptions(opts)
	if err := checkSize("new qstate", n, o.cfg.MaxQubits); err != nil {
		return nil, err
	}

	qs := &QState{
		qubits: n,
		buf:    newBuffer(1 << uint(n)),
		rng:    newSource(o.seed),
		seed:   o.seed,
		cfg:    o.cfg,
	}
	qs.buf.data[0] = 1

	logger.Debug("new qstate", "qubits", n, "seed", o.seed)
	return qs, nil
}

// NewQStateFrom builds a state from explicit amplitudes. The length must
// be a power of two; the vector is copied and normalized.
func NewQStateFrom(amplitudes []complex128, opts ...Option) (*QState, error) {
	o := buildOptions(opts)
	size := len(amplitudes)
	if size < 2 || size&(size-1) != 0 {
		return nil, &ShapeError{Op: "new qstate", Expected: 1 << uint(bits.Len(uint(size))), Actual: size}
	}
	n := bits.TrailingZeros(uint(size))
	if err := checkSize("new qstate", n, o.cfg.MaxQubits); err != nil {
		return nil, err
	}

	qs := &QState{
		qubits: n,
		buf:    &Buffer{data: append([]complex128(nil), amplitudes...)},
		rng:    newSource(o.seed),
		seed:   o.seed,
		cfg:    o.cfg,
	}
	if !qs.buf.normalize() {
		return nil, fmt.Errorf("new qstate: zero vector: %w", ErrInvalidArgument)
	}
	return qs, nil
}

func checkSize(op string, n, max int) error {
	if n < 1 {
		return fmt.Errorf("%s: %d qubits: %w", op, n, ErrInvalidArgument)
	}
	if n > max {
		return &ShapeError{Op: op, Expected: max, Actual: n, Err: ErrSizeExceeded}
	}
	return nil
}

// NumQubits is the register width.
func (qs *QState) NumQubits() int { return qs.qubits }

// Seed is the seed of the state's random stream.
func (qs *QState) Seed() uint64 { return qs.seed }

// Amplitudes returns a copy of the state vector.
func (qs *QState) Amplitudes() ([]complex128, error) {
	if err := qs.buf.alive("amplitudes"); err != nil {
		return nil, err
	}
	return qs.buf.snapshot(), nil
}

// Amplitude returns the coefficient of basis index i.
func (qs *QState) Amplitude(i int) (complex128, error) {
	if err := qs.buf.alive("amplitude"); err != nil {
		return 0, err
	}
	if i < 0 || i >= qs.buf.Len() {
		return 0, &QubitError{Op: "amplitude", Qubit: i, NumQubits: qs.qubits, Err: ErrOutOfBound}
	}
	return qs.buf.data[i], nil
}

// Norm returns Σ|a|², which stays 1 within rounding.
func (qs *QState) Norm() (float64, error) {
	if err := qs.buf.alive("norm"); err != nil {
		return 0, err
	}
	return qs.buf.Norm2(), nil
}

/*
Apply runs gates in order. Every gate is validated before the first one
touches the vector, so a bad gate anywhere in the list leaves the state
unchanged.
*/
func (qs *QState) Apply(gates ...Gate) error {
	if err := qs.buf.alive("apply"); err != nil {
		return err
	}

	mats := make([][]complex128, len(gates))
	for i, g := range gates {
		if err := checkGate("apply", g, qs.qubits); err != nil {
			return err
		}
		m, err := g.Kind.Matrix(g.Params...)
		if err != nil {
			return err
		}
		mats[i] = m
	}

	for i, g := range gates {
		applyMatrix(qs.buf.data, qs.qubits, g.Qubits, mats[i], 0, 1)
	}
	return nil
}

// ApplyMatrix applies an arbitrary 2^k×2^k matrix to k qubits. The matrix
// is not checked for unitarity.
func (qs *QState) ApplyMatrix(op *Operator, ids ...int) error {
	if err := qs.buf.alive("apply matrix"); err != nil {
		return err
	}
	if err := checkQubits("apply matrix", ids, qs.qubits, -1); err != nil {
		return err
	}
	if op.Dim() != 1<<uint(len(ids)) {
		return &ShapeError{Op: "apply matrix", Expected: 1 << uint(len(ids)), Actual: op.Dim()}
	}
	applyMatrix(qs.buf.data, qs.qubits, ids, op.m.Data, 0, 1)
	return nil
}

/*
Measure samples the listed qubits (all qubits when ids is empty). The
marginal distribution is computed once; each shot draws from it
independently and the state collapses onto the last draw, renormalized.
For X, Y or directional bases the state is rotated onto Z first and rotated
back after collapse, leaving it in the matching eigenstate.
*/
func (qs *QState) Measure(ids []int, opts ...MeasureOption) (*Outcome, error) {
	if err := qs.buf.alive("measure"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = allQubits(qs.qubits)
	}
	if err := checkQubits("measure", ids, qs.qubits, -1); err != nil {
		return nil, err
	}
	mc := buildMeasureConfig(opts)
	if mc.shots < 1 {
		return nil, fmt.Errorf("measure: %d shots: %w", mc.shots, ErrInvalidArgument)
	}

	var into, back []Gate
	for _, q := range ids {
		in, out := mc.rotation(q)
		into = append(into, in...)
		back = append(out, back...)
	}
	if err := qs.Apply(into...); err != nil {
		return nil, err
	}

	wf := newWaveFunction(qs.buf.data, ids)
	freq := make(Histogram)
	var last Branch
	for shot := 0; shot < mc.shots; shot++ {
		last = wf.Collapse(qs.rng)
		freq[last.Bits]++
	}
	qs.project(ids, last)

	if err := qs.Apply(back...); err != nil {
		return nil, err
	}

	logger.Debug("measure", "qubits", ids, "shots", mc.shots, "last", last.Bits)
	return newOutcome(ids, mc.shots, freq, last.Bits), nil
}

// project keeps the amplitudes consistent with branch b and renormalizes.
func (qs *QState) project(ids []int, b Branch) {
	scale := complex(1/math.Sqrt(b.Probability), 0)
	for i := range qs.buf.data {
		if gather(i, ids) == b.Value {
			qs.buf.data[i] *= scale
		} else {
			qs.buf.data[i] = 0
		}
	}
}

// Probabilities returns the marginal distribution over ids without
// collapsing anything.
func (qs *QState) Probabilities(ids ...int) (*WaveFunction, error) {
	if err := qs.buf.alive("probabilities"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = allQubits(qs.qubits)
	}
	if err := checkQubits("probabilities", ids, qs.qubits, -1); err != nil {
		return nil, err
	}
	return newWaveFunction(qs.buf.data, ids), nil
}

/*
MeasureBell measures q0 and q1 in the Bell basis. Character 0 of the
outcome is the phase bit and character 1 the parity bit:

	"00" Φ+   "01" Ψ+   "10" Φ-   "11" Ψ-

Afterwards the pair is left in the Bell state that was observed.
*/
func (qs *QState) MeasureBell(q0, q1 int, opts ...MeasureOption) (*Outcome, error) {
	if err := qs.buf.alive("measure bell"); err != nil {
		return nil, err
	}
	if err := checkQubits("measure bell", []int{q0, q1}, qs.qubits, 2); err != nil {
		return nil, err
	}

	mc := buildMeasureConfig(opts)
	if err := qs.Apply(CX(q0, q1), H(q0)); err != nil {
		return nil, err
	}
	out, err := qs.Measure([]int{q0, q1}, Shots(mc.shots))
	if err != nil {
		return nil, err
	}
	if err := qs.Apply(H(q0), CX(q0, q1)); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset projects each listed qubit onto |0⟩ (all qubits when ids is
// empty). A qubit found in |1⟩ is flipped back.
func (qs *QState) Reset(ids ...int) error {
	if err := qs.buf.alive("reset"); err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = allQubits(qs.qubits)
	}
	if err := checkQubits("reset", ids, qs.qubits, -1); err != nil {
		return err
	}
	for _, q := range ids {
		out, err := qs.Measure([]int{q})
		if err != nil {
			return err
		}
		if out.LastValue() == 1 {
			applyMatrix(qs.buf.data, qs.qubits, []int{q}, matX(nil), 0, 1)
		}
	}
	return nil
}

// Clone returns an independent deep copy with its own random stream,
// derived from the receiver's.
func (qs *QState) Clone() (*QState, error) {
	if err := qs.buf.alive("clone"); err != nil {
		return nil, err
	}
	seed := qs.rng.Uint64()
	return &QState{
		qubits: qs.qubits,
		buf:    qs.buf.clone(),
		rng:    newSource(seed),
		seed:   seed,
		cfg:    qs.cfg,
	}, nil
}

// InnerProduct returns ⟨qs|other⟩.
func (qs *QState) InnerProduct(other *QState) (complex128, error) {
	if err := qs.checkPair("inner product", other); err != nil {
		return 0, err
	}
	return linalg.Dot(qs.buf.data, other.buf.data), nil
}

// Fidelity returns |⟨qs|other⟩|².
func (qs *QState) Fidelity(other *QState) (float64, error) {
	ip, err := qs.InnerProduct(other)
	if err != nil {
		return 0, err
	}
	return probability(ip), nil
}

func (qs *QState) checkPair(op string, other *QState) error {
	if err := qs.buf.alive(op); err != nil {
		return err
	}
	if err := other.buf.alive(op); err != nil {
		return err
	}
	if qs.qubits != other.qubits {
		return &ShapeError{Op: op, Expected: qs.qubits, Actual: other.qubits}
	}
	return nil
}

// TensorProduct returns qs⊗other. The receiver's qubits keep their ids and
// other's qubits follow, so other's qubit j becomes qubit NumQubits()+j.
func (qs *QState) TensorProduct(other *QState) (*QState, error) {
	if err := qs.buf.alive("tensor product"); err != nil {
		return nil, err
	}
	if err := other.buf.alive("tensor product"); err != nil {
		return nil, err
	}
	n := qs.qubits + other.qubits
	if err := checkSize("tensor product", n, qs.cfg.MaxQubits); err != nil {
		return nil, err
	}

	low := qs.buf.data
	out := newBuffer(1 << uint(n))
	for j, b := range other.buf.data {
		if b == 0 {
			continue
		}
		base := j << uint(qs.qubits)
		for i, a := range low {
			out.data[base|i] = a * b
		}
	}

	seed := qs.rng.Uint64()
	return &QState{qubits: n, buf: out, rng: newSource(seed), seed: seed, cfg: qs.cfg}, nil
}

// Bloch returns the polar and azimuthal angles of qubit q's reduced state
// and the length of its Bloch vector (1 for a product state).
func (qs *QState) Bloch(q int) (theta, phi, r float64, err error) {
	if err = qs.buf.alive("bloch"); err != nil {
		return 0, 0, 0, err
	}
	if err = checkQubits("bloch", []int{q}, qs.qubits, 1); err != nil {
		return 0, 0, 0, err
	}

	var x, y, z float64
	for _, op := range []Pauli{PauliX, PauliY, PauliZ} {
		v := real(qs.pauliExpect(PauliString{{Qubit: q, Op: op}}))
		switch op {
		case PauliX:
			x = v
		case PauliY:
			y = v
		case PauliZ:
			z = v
		}
	}
	r = math.Sqrt(x*x + y*y + z*z)
	if r < qs.cfg.Tolerance {
		return 0, 0, r, nil
	}
	theta = math.Acos(math.Max(-1, math.Min(1, z/r)))
	phi = math.Atan2(y, x)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return theta, phi, r, nil
}

// pauliExpect computes ⟨ψ|P|ψ⟩ by applying P to a scratch copy and taking
// the inner product with the original.
func (qs *QState) pauliExpect(ps PauliString) complex128 {
	scratch := make([]complex128, len(qs.buf.data))
	ps.applyTo(scratch, qs.buf.data)
	return linalg.Dot(qs.buf.data, scratch)
}

/*
Instrument applies a Kraus channel to a pure state as one quantum
trajectory: branch i is chosen with probability ‖Kᵢψ‖², the state becomes
Kᵢψ renormalized, and i is returned. Averaged over trajectories this
reproduces Σ KᵢρKᵢ†.
*/
func (qs *QState) Instrument(kraus []*Operator, ids ...int) (int, error) {
	if err := qs.buf.alive("instrument"); err != nil {
		return 0, err
	}
	if len(kraus) == 0 {
		return 0, fmt.Errorf("instrument: %w", ErrEmptyOperators)
	}
	if err := checkQubits("instrument", ids, qs.qubits, -1); err != nil {
		return 0, err
	}
	for _, k := range kraus {
		if k.Dim() != 1<<uint(len(ids)) {
			return 0, &ShapeError{Op: "instrument", Expected: 1 << uint(len(ids)), Actual: k.Dim()}
		}
	}

	branches := make([][]complex128, len(kraus))
	probs := make([]float64, len(kraus))
	for i, k := range kraus {
		b := qs.buf.snapshot()
		applyMatrix(b, qs.qubits, ids, k.m.Data, 0, 1)
		branches[i] = b
		probs[i] = (&Buffer{data: b}).Norm2()
	}

	wf := newWaveFunctionFromProbs(probs, nil)
	pick := wf.Collapse(qs.rng).Value
	if probs[pick] == 0 {
		return 0, &NumericalError{Op: "instrument", Value: 0, Tolerance: qs.cfg.Tolerance}
	}
	qs.buf.data = branches[pick]
	qs.buf.normalize()
	return pick, nil
}

// Release frees the vector. The state cannot be used afterwards.
func (qs *QState) Release() error {
	return qs.buf.release("release qstate")
}

// String renders the non-zero amplitudes, one basis state per line.
func (qs *QState) String() string {
	if qs.buf.released {
		return "qstate(released)"
	}
	s := ""
	for i, a := range qs.buf.data {
		if cmplx.Abs(a) < 1e-12 {
			continue
		}
		s += fmt.Sprintf("|%s⟩ %+.6f%+.6fi\n", bitstring(i, qs.qubits), real(a), imag(a))
	}
	return s
}
