package qsim

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/theapemachine/qsim/internal/linalg"
)

// Direction selects how DensOp.ApplyMatrix multiplies.
type Direction uint8

const (
	// DirBoth conjugates: ρ ← MρM†.
	DirBoth Direction = iota
	// DirLeft multiplies from the left: ρ ← Mρ.
	DirLeft
	// DirRight multiplies from the right: ρ ← ρM.
	DirRight
)

// OperatorKind tells Probability how to read an operator list.
type OperatorKind uint8

const (
	// KindKraus gives p = Tr(KρK†).
	KindKraus OperatorKind = iota
	// KindPOVM gives p = Tr(Eρ).
	KindPOVM
)

/*
DensOp is a density operator on n qubits, stored as a row-major 2^n×2^n
complex matrix. Basis index bit i is qubit i, as for QState.

A DensOp is not safe for concurrent use and must be released with Release.
*/
type DensOp struct {
	qubits int
	dim    int
	buf    *Buffer
	cfg    *Config
}

func newDensOp(n int, cfg *Config) *DensOp {
	dim := 1 << uint(n)
	return &DensOp{qubits: n, dim: dim, buf: newBuffer(dim * dim), cfg: cfg}
}

/*
NewDensOp builds ρ = Σ pᵢ|ψᵢ⟩⟨ψᵢ| from an ensemble of pure states. A nil
probs means a uniform ensemble; otherwise the weights must be non-negative
and are rescaled to sum to one.
*/
func NewDensOp(states []*QState, probs []float64, opts ...Option) (*DensOp, error) {
	o := buildOptions(opts)
	if len(states) == 0 {
		return nil, fmt.Errorf("new densop: no states: %w", ErrInvalidArgument)
	}
	if probs == nil {
		probs = make([]float64, len(states))
		for i := range probs {
			probs[i] = 1
		}
	}
	if len(probs) != len(states) {
		return nil, &ShapeError{Op: "new densop", Expected: len(states), Actual: len(probs)}
	}
	weights, err := normalizeWeights("new densop", probs)
	if err != nil {
		return nil, err
	}

	n := states[0].qubits
	if err := checkSize("new densop", n, o.cfg.MaxDensityQubits); err != nil {
		return nil, err
	}
	for _, s := range states {
		if err := s.buf.alive("new densop"); err != nil {
			return nil, err
		}
		if s.qubits != n {
			return nil, &ShapeError{Op: "new densop", Expected: n, Actual: s.qubits}
		}
	}

	d := newDensOp(n, o.cfg)
	for k, s := range states {
		p := complex(weights[k], 0)
		if p == 0 {
			continue
		}
		amps := s.buf.data
		for i, a := range amps {
			if a == 0 {
				continue
			}
			row := d.buf.data[i*d.dim : (i+1)*d.dim]
			pa := p * a
			for j, b := range amps {
				row[j] += pa * cmplx.Conj(b)
			}
		}
	}

	logger.Debug("new densop", "qubits", n, "states", len(states))
	return d, nil
}

func normalizeWeights(op string, probs []float64) ([]float64, error) {
	total := 0.0
	for _, p := range probs {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%s: weight %g: %w", op, p, ErrInvalidProbability)
		}
		total += p
	}
	if total == 0 {
		return nil, fmt.Errorf("%s: weights sum to zero: %w", op, ErrInvalidProbability)
	}
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = p / total
	}
	return out, nil
}

// NewDensOpMatrix wraps an explicit row-major matrix. dim must be a power
// of two and the matrix Hermitian within Config.Tolerance.
func NewDensOpMatrix(dim int, elements []complex128, opts ...Option) (*DensOp, error) {
	o := buildOptions(opts)
	if dim < 2 || dim&(dim-1) != 0 {
		return nil, &ShapeError{Op: "new densop", Expected: 1 << uint(bits.Len(uint(dim))), Actual: dim}
	}
	if len(elements) != dim*dim {
		return nil, &ShapeError{Op: "new densop", Expected: dim * dim, Actual: len(elements)}
	}
	n := bits.TrailingZeros(uint(dim))
	if err := checkSize("new densop", n, o.cfg.MaxDensityQubits); err != nil {
		return nil, err
	}

	d := newDensOp(n, o.cfg)
	copy(d.buf.data, elements)
	if !d.matrix().IsHermitian(o.cfg.Tolerance) {
		return nil, fmt.Errorf("new densop: %w", ErrNotHermitian)
	}
	return d, nil
}

// Mix returns the convex combination Σ pᵢρᵢ. A nil probs is uniform.
func Mix(ops []*DensOp, probs []float64) (*DensOp, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("mix: %w", ErrEmptyOperators)
	}
	if probs == nil {
		probs = make([]float64, len(ops))
		for i := range probs {
			probs[i] = 1
		}
	}
	if len(probs) != len(ops) {
		return nil, &ShapeError{Op: "mix", Expected: len(ops), Actual: len(probs)}
	}
	weights, err := normalizeWeights("mix", probs)
	if err != nil {
		return nil, err
	}

	first := ops[0]
	for _, d := range ops {
		if err := d.buf.alive("mix"); err != nil {
			return nil, err
		}
		if d.dim != first.dim {
			return nil, &ShapeError{Op: "mix", Expected: first.dim, Actual: d.dim}
		}
	}

	out := newDensOp(first.qubits, first.cfg)
	for k, d := range ops {
		w := complex(weights[k], 0)
		for i, e := range d.buf.data {
			out.buf.data[i] += w * e
		}
	}
	return out, nil
}

// matrix views the buffer as a linalg matrix without copying.
func (d *DensOp) matrix() *linalg.Matrix {
	return &linalg.Matrix{N: d.dim, Data: d.buf.data}
}

func (d *DensOp) NumQubits() int { return d.qubits }
func (d *DensOp) Dim() int       { return d.dim }

// Element returns ρ[i][j].
func (d *DensOp) Element(i, j int) (complex128, error) {
	if err := d.buf.alive("element"); err != nil {
		return 0, err
	}
	if i < 0 || j < 0 || i >= d.dim || j >= d.dim {
		return 0, &ShapeError{Op: "element", Expected: d.dim, Actual: max(i, j) + 1}
	}
	return d.buf.data[i*d.dim+j], nil
}

// Elements returns a row-major copy of ρ.
func (d *DensOp) Elements() ([]complex128, error) {
	if err := d.buf.alive("elements"); err != nil {
		return nil, err
	}
	return d.buf.snapshot(), nil
}

// Clone returns an independent deep copy.
func (d *DensOp) Clone() (*DensOp, error) {
	if err := d.buf.alive("clone"); err != nil {
		return nil, err
	}
	return &DensOp{qubits: d.qubits, dim: d.dim, buf: d.buf.clone(), cfg: d.cfg}, nil
}

// Release frees the matrix. The operator cannot be used afterwards.
func (d *DensOp) Release() error {
	return d.buf.release("release densop")
}

// realValue checks that a quantity that must be real is, within tolerance.
func (d *DensOp) realValue(op string, v complex128) (float64, error) {
	if math.Abs(imag(v)) > d.cfg.Tolerance {
		return 0, &NumericalError{Op: op, Value: v, Tolerance: d.cfg.Tolerance}
	}
	return real(v), nil
}

// Trace returns Tr ρ.
func (d *DensOp) Trace() (float64, error) {
	if err := d.buf.alive("trace"); err != nil {
		return 0, err
	}
	return d.realValue("trace", d.matrix().Trace())
}

// SqTrace returns Tr ρ², the purity: 1 for a pure state, 1/2^n for the
// maximally mixed one.
func (d *DensOp) SqTrace() (float64, error) {
	if err := d.buf.alive("sqtrace"); err != nil {
		return 0, err
	}
	var s complex128
	for i := 0; i < d.dim; i++ {
		for j := 0; j < d.dim; j++ {
			s += d.buf.data[i*d.dim+j] * d.buf.data[j*d.dim+i]
		}
	}
	return d.realValue("sqtrace", s)
}

// Normalize rescales ρ to unit trace, typically after InstrumentSelect.
func (d *DensOp) Normalize() error {
	tr, err := d.Trace()
	if err != nil {
		return err
	}
	if tr <= d.cfg.Tolerance {
		return &NumericalError{Op: "normalize", Value: complex(tr, 0), Tolerance: d.cfg.Tolerance}
	}
	inv := complex(1/tr, 0)
	for i := range d.buf.data {
		d.buf.data[i] *= inv
	}
	return nil
}

/*
Patrace traces out the listed qubits and returns the reduced operator on
the remaining ones. The kept qubits are renumbered in ascending order, so
the lowest surviving qubit becomes qubit 0.
*/
func (d *DensOp) Patrace(ids ...int) (*DensOp, error) {
	if err := d.buf.alive("patrace"); err != nil {
		return nil, err
	}
	if err := checkQubits("patrace", ids, d.qubits, -1); err != nil {
		return nil, err
	}
	keep := complement(ids, d.qubits)
	if len(keep) == 0 {
		return nil, fmt.Errorf("patrace: cannot trace out every qubit: %w", ErrInvalidArgument)
	}

	out := newDensOp(len(keep), d.cfg)
	traced := 1 << uint(len(ids))
	for r := 0; r < out.dim; r++ {
		rb := deposit(r, keep)
		for c := 0; c < out.dim; c++ {
			cb := deposit(c, keep)
			var s complex128
			for t := 0; t < traced; t++ {
				tb := deposit(t, ids)
				s += d.buf.data[(rb|tb)*d.dim+(cb|tb)]
			}
			out.buf.data[r*out.dim+c] = s
		}
	}
	return out, nil
}

// Tenspro returns ρ⊗σ with the receiver on the low qubits: other's qubit j
// becomes qubit NumQubits()+j, matching QState.TensorProduct.
func (d *DensOp) Tenspro(other *DensOp) (*DensOp, error) {
	if err := d.buf.alive("tenspro"); err != nil {
		return nil, err
	}
	if err := other.buf.alive("tenspro"); err != nil {
		return nil, err
	}
	n := d.qubits + other.qubits
	if err := checkSize("tenspro", n, d.cfg.MaxDensityQubits); err != nil {
		return nil, err
	}
	k := linalg.Kron(other.matrix(), d.matrix())
	return &DensOp{qubits: n, dim: k.N, buf: &Buffer{data: k.Data}, cfg: d.cfg}, nil
}

// Composite returns the n-fold tensor power ρ^⊗n.
func (d *DensOp) Composite(n int) (*DensOp, error) {
	if n < 1 {
		return nil, fmt.Errorf("composite: %d copies: %w", n, ErrInvalidArgument)
	}
	out, err := d.Clone()
	if err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		next, err := out.Tenspro(d)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// leftMul replaces ρ with Mρ, M acting on ids: each column is a vector.
func (d *DensOp) leftMul(m []complex128, ids []int) {
	for c := 0; c < d.dim; c++ {
		applyMatrix(d.buf.data, d.qubits, ids, m, c, d.dim)
	}
}

// rightMul replaces ρ with ρM. Row r of ρM is (Mᵀ rᵀ)ᵀ.
func (d *DensOp) rightMul(m []complex128, ids []int) {
	mt := transpose(m, 1<<uint(len(ids)))
	for r := 0; r < d.dim; r++ {
		applyMatrix(d.buf.data, d.qubits, ids, mt, r*d.dim, 1)
	}
}

// conjugateBy replaces ρ with MρM†; (M†)ᵀ is conj(M).
func (d *DensOp) conjugateBy(m []complex128, ids []int) {
	d.leftMul(m, ids)
	mc := conjugate(m)
	for r := 0; r < d.dim; r++ {
		applyMatrix(d.buf.data, d.qubits, ids, mc, r*d.dim, 1)
	}
}

func (d *DensOp) checkOperator(op string, m *Operator, ids []int) error {
	if err := checkQubits(op, ids, d.qubits, -1); err != nil {
		return err
	}
	if m.Dim() != 1<<uint(len(ids)) {
		return &ShapeError{Op: op, Expected: 1 << uint(len(ids)), Actual: m.Dim()}
	}
	return nil
}

// ApplyMatrix multiplies by an operator on the listed qubits. DirBoth is the
// physical update for a unitary; the one-sided forms build intermediate
// products such as Hρ for expectation values.
func (d *DensOp) ApplyMatrix(m *Operator, ids []int, dir Direction) error {
	if err := d.buf.alive("apply matrix"); err != nil {
		return err
	}
	if err := d.checkOperator("apply matrix", m, ids); err != nil {
		return err
	}
	switch dir {
	case DirBoth:
		d.conjugateBy(m.m.Data, ids)
	case DirLeft:
		d.leftMul(m.m.Data, ids)
	case DirRight:
		d.rightMul(m.m.Data, ids)
	default:
		return fmt.Errorf("apply matrix: direction %d: %w", dir, ErrInvalidArgument)
	}
	return nil
}

// ApplyGates conjugates ρ by each gate in turn. All gates are validated
// before any is applied.
func (d *DensOp) ApplyGates(gates ...Gate) error {
	if err := d.buf.alive("apply gates"); err != nil {
		return err
	}
	mats := make([][]complex128, len(gates))
	for i, g := range gates {
		if err := checkGate("apply gates", g, d.qubits); err != nil {
			return err
		}
		m, err := g.Kind.Matrix(g.Params...)
		if err != nil {
			return err
		}
		mats[i] = m
	}
	for i, g := range gates {
		d.conjugateBy(mats[i], g.Qubits)
	}
	return nil
}

func (d *DensOp) checkOperators(op string, ops []*Operator, ids []int) error {
	if len(ops) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyOperators)
	}
	for _, m := range ops {
		if err := d.checkOperator(op, m, ids); err != nil {
			return err
		}
	}
	return nil
}

// Probability returns one probability per operator: Tr(KρK†) for Kraus
// elements or Tr(Eρ) for POVM effects.
func (d *DensOp) Probability(ops []*Operator, ids []int, kind OperatorKind) ([]float64, error) {
	if err := d.buf.alive("probability"); err != nil {
		return nil, err
	}
	if err := d.checkOperators("probability", ops, ids); err != nil {
		return nil, err
	}

	out := make([]float64, len(ops))
	for i, m := range ops {
		work := d.buf.clone()
		w := &DensOp{qubits: d.qubits, dim: d.dim, buf: work, cfg: d.cfg}
		switch kind {
		case KindKraus:
			w.conjugateBy(m.m.Data, ids)
		case KindPOVM:
			w.leftMul(m.m.Data, ids)
		default:
			return nil, fmt.Errorf("probability: kind %d: %w", kind, ErrInvalidArgument)
		}
		p, err := w.realValue("probability", w.matrix().Trace())
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Instrument applies a Kraus instrument without reading the result:
// ρ ← Σ KᵢρKᵢ†.
func (d *DensOp) Instrument(kraus []*Operator, ids []int) error {
	if err := d.buf.alive("instrument"); err != nil {
		return err
	}
	if err := d.checkOperators("instrument", kraus, ids); err != nil {
		return err
	}

	sum := make([]complex128, len(d.buf.data))
	for _, k := range kraus {
		branch := d.buf.clone()
		w := &DensOp{qubits: d.qubits, dim: d.dim, buf: branch, cfg: d.cfg}
		w.conjugateBy(k.m.Data, ids)
		for i, e := range branch.data {
			sum[i] += e
		}
	}
	d.buf.data = sum
	return nil
}

/*
InstrumentSelect keeps only branch v of a Kraus instrument:
ρ ← K_v ρ K_v†. The result is not renormalized; its trace is the
probability of observing v. Call Normalize for the post-measurement state.
*/
func (d *DensOp) InstrumentSelect(kraus []*Operator, ids []int, v int) error {
	if err := d.buf.alive("instrument select"); err != nil {
		return err
	}
	if err := d.checkOperators("instrument select", kraus, ids); err != nil {
		return err
	}
	if v < 0 || v >= len(kraus) {
		return &ShapeError{Op: "instrument select", Expected: len(kraus), Actual: v, Err: ErrInvalidArgument}
	}
	d.conjugateBy(kraus[v].m.Data, ids)
	return nil
}

// ApplyChannel runs a single-qubit noise channel on each listed qubit.
func (d *DensOp) ApplyChannel(ch Channel, ids ...int) error {
	if err := d.buf.alive("apply channel"); err != nil {
		return err
	}
	if err := checkQubits("apply channel", ids, d.qubits, -1); err != nil {
		return err
	}
	kraus, err := ch.Kraus()
	if err != nil {
		return err
	}
	for _, q := range ids {
		if err := d.Instrument(kraus, []int{q}); err != nil {
			return err
		}
	}
	return nil
}

func (d *DensOp) checkPair(op string, other *DensOp) error {
	if err := d.buf.alive(op); err != nil {
		return err
	}
	if err := other.buf.alive(op); err != nil {
		return err
	}
	if d.dim != other.dim {
		return &ShapeError{Op: op, Expected: d.dim, Actual: other.dim}
	}
	return nil
}

// Fidelity returns F(ρ,σ) = Tr√(√ρ σ √ρ), which is 1 for equal states.
func (d *DensOp) Fidelity(other *DensOp) (float64, error) {
	if err := d.checkPair("fidelity", other); err != nil {
		return 0, err
	}
	tol := d.cfg.Tolerance
	sr, err := linalg.SqrtPSD(d.matrix(), tol)
	if err != nil {
		return 0, fmt.Errorf("fidelity: %w", err)
	}
	left, err := linalg.Mul(sr, other.matrix())
	if err != nil {
		return 0, err
	}
	inner, err := linalg.Mul(left, sr)
	if err != nil {
		return 0, err
	}
	e, err := linalg.EigenHermitian(inner, math.Sqrt(tol))
	if err != nil {
		return 0, fmt.Errorf("fidelity: %w", err)
	}
	f := 0.0
	for _, v := range e.Values {
		if v > 0 {
			f += math.Sqrt(v)
		}
	}
	return f, nil
}

// Distance returns the trace distance ½‖ρ−σ‖₁.
func (d *DensOp) Distance(other *DensOp) (float64, error) {
	if err := d.checkPair("distance", other); err != nil {
		return 0, err
	}
	diff, err := linalg.Sub(d.matrix(), other.matrix())
	if err != nil {
		return 0, err
	}
	e, err := linalg.EigenHermitian(diff, d.cfg.Tolerance)
	if err != nil {
		return 0, fmt.Errorf("distance: %w", err)
	}
	s := 0.0
	for _, v := range e.Values {
		s += math.Abs(v)
	}
	return s / 2, nil
}

/*
Spectrum decomposes ρ into eigenvalues and eigenvectors, dropping pairs
whose eigenvalue is at or below Config.SpectrumCutoff. Feeding the result
back into NewDensOp reproduces ρ up to that cutoff. Largest weight first.
*/
func (d *DensOp) Spectrum() ([]float64, []*QState, error) {
	if err := d.buf.alive("spectrum"); err != nil {
		return nil, nil, err
	}
	e, err := linalg.EigenHermitian(d.matrix(), d.cfg.Tolerance)
	if err != nil {
		return nil, nil, fmt.Errorf("spectrum: %w", err)
	}

	var (
		probs  []float64
		states []*QState
	)
	for k := len(e.Values) - 1; k >= 0; k-- {
		if e.Values[k] <= d.cfg.SpectrumCutoff {
			continue
		}
		qs, err := NewQStateFrom(e.Vectors[k], WithConfig(d.cfg))
		if err != nil {
			return nil, nil, err
		}
		probs = append(probs, e.Values[k])
		states = append(states, qs)
	}
	return probs, states, nil
}

/*
Purify returns a pure state on 2n qubits whose reduced state on the low n
qubits is ρ: |ψ⟩ = Σ √λₖ |vₖ⟩⊗|k⟩, the reference register on the high
qubits. Patrace over the high qubits of its density operator gives back ρ.
*/
func (d *DensOp) Purify(opts ...Option) (*QState, error) {
	if err := d.buf.alive("purify"); err != nil {
		return nil, err
	}
	e, err := linalg.EigenHermitian(d.matrix(), d.cfg.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("purify: %w", err)
	}

	opts = append([]Option{WithConfig(d.cfg)}, opts...)
	qs, err := NewQState(2*d.qubits, opts...)
	if err != nil {
		return nil, err
	}
	qs.buf.data[0] = 0
	for k, lambda := range e.Values {
		if lambda <= 0 {
			continue
		}
		w := complex(math.Sqrt(lambda), 0)
		base := k << uint(d.qubits)
		for i, a := range e.Vectors[k] {
			qs.buf.data[base|i] = w * a
		}
	}
	if !qs.buf.normalize() {
		return nil, &NumericalError{Op: "purify", Value: 0, Tolerance: d.cfg.Tolerance}
	}
	return qs, nil
}

// Expect returns Tr(ρH). For a Pauli product P, Tr(ρP) = Σᵢ ρ[i][i⊕f]·cᵢ
// where P|i⟩ = cᵢ|i⊕f⟩.
func (d *DensOp) Expect(obs *Observable) (complex128, error) {
	if err := d.buf.alive("expect"); err != nil {
		return 0, err
	}
	if err := obs.checkWidth("expect", d.qubits); err != nil {
		return 0, err
	}

	var sum complex128
	for _, t := range obs.terms {
		flip, phase, ys := t.Ops.masks()
		var tr complex128
		for i := 0; i < d.dim; i++ {
			j := int(uint64(i) ^ flip)
			tr += d.buf.data[i*d.dim+j] * entry(uint64(i), phase, ys)
		}
		sum += t.Coef * tr
	}
	if math.Abs(imag(sum)) < d.cfg.Tolerance && obs.Hermitian(d.cfg.Tolerance) {
		sum = complex(real(sum), 0)
	}
	return sum, nil
}

// String renders ρ row by row.
func (d *DensOp) String() string {
	if d.buf.released {
		return "densop(released)"
	}
	s := ""
	for i := 0; i < d.dim; i++ {
		for j := 0; j < d.dim; j++ {
			e := d.buf.data[i*d.dim+j]
			s += fmt.Sprintf(" %+.4f%+.4fi", real(e), imag(e))
		}
		s += "\n"
	}
	return s
}
