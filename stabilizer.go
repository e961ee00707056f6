package qsim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// bitrow is a packed bit vector, one bit per qubit.
type bitrow []uint64

func newBitrow(n int) bitrow { return make(bitrow, (n+63)/64) }

func (b bitrow) get(q int) bool { return b[q>>6]>>(uint(q)&63)&1 == 1 }

func (b bitrow) set(q int, v bool) {
	if v {
		b[q>>6] |= 1 << (uint(q) & 63)
	} else {
		b[q>>6] &^= 1 << (uint(q) & 63)
	}
}

func (b bitrow) xor(o bitrow) {
	for i := range b {
		b[i] ^= o[i]
	}
}

func (b bitrow) zero() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b bitrow) clear() {
	for i := range b {
		b[i] = 0
	}
}

/*
Stabilizer tracks a stabilizer state as n commuting Pauli generators, each
an X bit vector, a Z bit vector and a sign (x=z=1 is Y). Row n is scratch
space for products. Only Clifford gates can be applied; the payoff is that
memory and gate cost grow polynomially in n instead of exponentially.
*/
type Stabilizer struct {
	qubits   int
	x, z     []bitrow
	sign     []bool
	rng      *rand.Rand
	seed     uint64
	cfg      *Config
	released bool
}

// NewStabilizer returns the tableau of |0…0⟩, generators +Z₀ … +Z_{n-1}.
func NewStabilizer(n int, opts ...Option) (*Stabilizer, error) {
	o := buildOptions(opts)
	if err := checkSize("new stabilizer", n, o.cfg.MaxStabilizerQubits); err != nil {
		return nil, err
	}

	s := &Stabilizer{
		qubits: n,
		x:      make([]bitrow, n+1),
		z:      make([]bitrow, n+1),
		sign:   make([]bool, n+1),
		rng:    newSource(o.seed),
		seed:   o.seed,
		cfg:    o.cfg,
	}
	for i := 0; i <= n; i++ {
		s.x[i] = newBitrow(n)
		s.z[i] = newBitrow(n)
		if i < n {
			s.z[i].set(i, true)
		}
	}

	logger.Debug("new stabilizer", "qubits", n, "seed", o.seed)
	return s, nil
}

func (s *Stabilizer) alive(op string) error {
	if s == nil || s.released {
		return &ReleaseError{Op: op}
	}
	return nil
}

func (s *Stabilizer) NumQubits() int { return s.qubits }
func (s *Stabilizer) Seed() uint64   { return s.seed }

func (s *Stabilizer) checkRow(op string, row int) error {
	if row < 0 || row >= s.qubits {
		return &ShapeError{Op: op, Expected: s.qubits, Actual: row, Err: ErrOutOfBound}
	}
	return nil
}

// SetPauli sets the letter of generator row on qubit q. Keeping the
// generators independent and commuting is up to the caller.
func (s *Stabilizer) SetPauli(row, q int, p Pauli) error {
	if err := s.alive("set pauli"); err != nil {
		return err
	}
	if err := s.checkRow("set pauli", row); err != nil {
		return err
	}
	if err := checkQubits("set pauli", []int{q}, s.qubits, 1); err != nil {
		return err
	}
	s.x[row].set(q, p == PauliX || p == PauliY)
	s.z[row].set(q, p == PauliZ || p == PauliY)
	return nil
}

// SetSign makes generator row negative (or positive).
func (s *Stabilizer) SetSign(row int, negative bool) error {
	if err := s.alive("set sign"); err != nil {
		return err
	}
	if err := s.checkRow("set sign", row); err != nil {
		return err
	}
	s.sign[row] = negative
	return nil
}

// Pauli returns the letter of generator row on qubit q.
func (s *Stabilizer) Pauli(row, q int) (Pauli, error) {
	if err := s.alive("pauli"); err != nil {
		return PauliI, err
	}
	if err := s.checkRow("pauli", row); err != nil {
		return PauliI, err
	}
	if err := checkQubits("pauli", []int{q}, s.qubits, 1); err != nil {
		return PauliI, err
	}
	return s.letter(row, q), nil
}

func (s *Stabilizer) letter(row, q int) Pauli {
	switch x, z := s.x[row].get(q), s.z[row].get(q); {
	case x && z:
		return PauliY
	case x:
		return PauliX
	case z:
		return PauliZ
	}
	return PauliI
}

// Generator renders a row as a sign followed by one letter per qubit,
// qubit 0 first: "-XZI".
func (s *Stabilizer) Generator(row int) (string, error) {
	if err := s.alive("generator"); err != nil {
		return "", err
	}
	if err := s.checkRow("generator", row); err != nil {
		return "", err
	}
	var b strings.Builder
	if s.sign[row] {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	for q := 0; q < s.qubits; q++ {
		b.WriteString(s.letter(row, q).String())
	}
	return b.String(), nil
}

// Generators renders every row.
func (s *Stabilizer) Generators() ([]string, error) {
	if err := s.alive("generators"); err != nil {
		return nil, err
	}
	out := make([]string, s.qubits)
	for i := range out {
		out[i], _ = s.Generator(i)
	}
	return out, nil
}

/*
Apply conjugates every generator by each gate in turn. Only the Clifford
subset of the catalog is accepted; any other gate fails with
ErrUnsupportedGate before the tableau changes.
*/
func (s *Stabilizer) Apply(gates ...Gate) error {
	if err := s.alive("apply"); err != nil {
		return err
	}
	for _, g := range gates {
		if err := checkGate("stabilizer apply", g, s.qubits); err != nil {
			return err
		}
		if !g.Kind.Clifford() || g.Kind == GateMeasure || g.Kind == GateReset {
			return &GateError{Op: "stabilizer apply", Gate: g.Kind, Err: ErrUnsupportedGate}
		}
	}
	for _, g := range gates {
		s.conjugate(g)
	}
	return nil
}

func (s *Stabilizer) conjugate(g Gate) {
	q := g.Qubits
	switch g.Kind {
	case GateX:
		s.eachRow(func(i int) { s.sign[i] = s.sign[i] != s.z[i].get(q[0]) })
	case GateZ:
		s.eachRow(func(i int) { s.sign[i] = s.sign[i] != s.x[i].get(q[0]) })
	case GateY:
		s.eachRow(func(i int) { s.sign[i] = s.sign[i] != (s.x[i].get(q[0]) != s.z[i].get(q[0])) })
	case GateH:
		s.hadamard(q[0])
	case GateS:
		s.phase(q[0])
	case GateSdg:
		s.phase(q[0])
		s.phase(q[0])
		s.phase(q[0])
	case GateCX:
		s.cnot(q[0], q[1])
	case GateCZ:
		s.hadamard(q[1])
		s.cnot(q[0], q[1])
		s.hadamard(q[1])
	case GateCY:
		// CY = S·CX·S† on the target
		s.phase(q[1])
		s.phase(q[1])
		s.phase(q[1])
		s.cnot(q[0], q[1])
		s.phase(q[1])
	case GateSW:
		s.cnot(q[0], q[1])
		s.cnot(q[1], q[0])
		s.cnot(q[0], q[1])
	}
}

func (s *Stabilizer) eachRow(f func(i int)) {
	for i := 0; i < s.qubits; i++ {
		f(i)
	}
}

func (s *Stabilizer) hadamard(a int) {
	s.eachRow(func(i int) {
		x, z := s.x[i].get(a), s.z[i].get(a)
		s.sign[i] = s.sign[i] != (x && z)
		s.x[i].set(a, z)
		s.z[i].set(a, x)
	})
}

func (s *Stabilizer) phase(a int) {
	s.eachRow(func(i int) {
		x, z := s.x[i].get(a), s.z[i].get(a)
		s.sign[i] = s.sign[i] != (x && z)
		s.z[i].set(a, z != x)
	})
}

func (s *Stabilizer) cnot(a, b int) {
	s.eachRow(func(i int) {
		xa, za := s.x[i].get(a), s.z[i].get(a)
		xb, zb := s.x[i].get(b), s.z[i].get(b)
		s.sign[i] = s.sign[i] != (xa && zb && (xb == za))
		s.x[i].set(b, xb != xa)
		s.z[i].set(a, za != zb)
	})
}

// pauliExponent is the power of i picked up when multiplying the
// single-qubit Pauli (x1,z1) into (x2,z2).
func pauliExponent(x1, z1, x2, z2 bool) int {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	switch {
	case !x1 && !z1:
		return 0
	case x1 && z1:
		return b(z2) - b(x2)
	case x1:
		return b(z2) * (2*b(x2) - 1)
	}
	return b(x2) * (1 - 2*b(z2))
}

// rowsum replaces row h with the product of rows i and h, tracking the
// sign. The rows must commute.
func (s *Stabilizer) rowsum(h, i int) {
	sum := 0
	if s.sign[h] {
		sum += 2
	}
	if s.sign[i] {
		sum += 2
	}
	for q := 0; q < s.qubits; q++ {
		sum += pauliExponent(s.x[i].get(q), s.z[i].get(q), s.x[h].get(q), s.z[h].get(q))
	}
	s.sign[h] = ((sum%4)+4)%4 == 2
	s.x[h].xor(s.x[i])
	s.z[h].xor(s.z[i])
}

/*
solve expresses the Pauli (tx, tz) as a product of generators by Gaussian
elimination over GF(2), then multiplies that product out in the scratch row
to read its sign. ok is false when the Pauli is not in the stabilizer group
up to sign.
*/
func (s *Stabilizer) solve(tx, tz bitrow) (negative, ok bool) {
	n := s.qubits
	width := 2 * n

	vecs := make([]bitrow, n)
	combs := make([]bitrow, n)
	for i := 0; i < n; i++ {
		vecs[i] = newBitrow(width)
		combs[i] = newBitrow(n)
		combs[i].set(i, true)
		for q := 0; q < n; q++ {
			vecs[i].set(q, s.x[i].get(q))
			vecs[i].set(n+q, s.z[i].get(q))
		}
	}

	type pivot struct{ row, col int }
	var pivots []pivot
	next := 0
	for col := 0; col < width && next < n; col++ {
		p := -1
		for r := next; r < n; r++ {
			if vecs[r].get(col) {
				p = r
				break
			}
		}
		if p < 0 {
			continue
		}
		vecs[next], vecs[p] = vecs[p], vecs[next]
		combs[next], combs[p] = combs[p], combs[next]
		for r := 0; r < n; r++ {
			if r != next && vecs[r].get(col) {
				vecs[r].xor(vecs[next])
				combs[r].xor(combs[next])
			}
		}
		pivots = append(pivots, pivot{next, col})
		next++
	}

	t := newBitrow(width)
	for q := 0; q < n; q++ {
		t.set(q, tx.get(q))
		t.set(n+q, tz.get(q))
	}
	use := newBitrow(n)
	for _, pv := range pivots {
		if t.get(pv.col) {
			t.xor(vecs[pv.row])
			use.xor(combs[pv.row])
		}
	}
	if !t.zero() {
		return false, false
	}

	scratch := n
	s.x[scratch].clear()
	s.z[scratch].clear()
	s.sign[scratch] = false
	for i := 0; i < n; i++ {
		if use.get(i) {
			s.rowsum(scratch, i)
		}
	}
	return s.sign[scratch], true
}

// anticommuting returns the first generator with an X or Y on qubit a,
// or -1 if every generator commutes with Z_a.
func (s *Stabilizer) anticommuting(a int) int {
	for i := 0; i < s.qubits; i++ {
		if s.x[i].get(a) {
			return i
		}
	}
	return -1
}

// measureQubit measures Z on qubit a and returns the bit.
func (s *Stabilizer) measureQubit(a int) int {
	p := s.anticommuting(a)
	if p < 0 {
		tx, tz := newBitrow(s.qubits), newBitrow(s.qubits)
		tz.set(a, true)
		negative, _ := s.solve(tx, tz)
		if negative {
			return 1
		}
		return 0
	}

	for i := 0; i < s.qubits; i++ {
		if i != p && s.x[i].get(a) {
			s.rowsum(i, p)
		}
	}
	bit := s.rng.IntN(2)
	s.x[p].clear()
	s.z[p].clear()
	s.z[p].set(a, true)
	s.sign[p] = bit == 1
	return bit
}

// ExpectPauli returns ⟨P⟩ for a Pauli product, which on a stabilizer state
// is always -1, 0 or +1.
func (s *Stabilizer) ExpectPauli(ps PauliString) (float64, error) {
	if err := s.alive("expect pauli"); err != nil {
		return 0, err
	}
	tx, tz := newBitrow(s.qubits), newBitrow(s.qubits)
	for _, f := range ps {
		if f.Qubit < 0 || f.Qubit >= s.qubits {
			return 0, &QubitError{Op: "expect pauli", Qubit: f.Qubit, NumQubits: s.qubits, Err: ErrOutOfBound}
		}
		tx.set(f.Qubit, f.Op == PauliX || f.Op == PauliY)
		tz.set(f.Qubit, f.Op == PauliZ || f.Op == PauliY)
	}

	for i := 0; i < s.qubits; i++ {
		if !s.commutes(i, tx, tz) {
			return 0, nil
		}
	}
	negative, ok := s.solve(tx, tz)
	if !ok {
		return 0, nil
	}
	if negative {
		return -1, nil
	}
	return 1, nil
}

func (s *Stabilizer) commutes(row int, tx, tz bitrow) bool {
	odd := false
	for q := 0; q < s.qubits; q++ {
		if (s.x[row].get(q) && tz.get(q)) != (s.z[row].get(q) && tx.get(q)) {
			odd = !odd
		}
	}
	return !odd
}

/*
Measure measures the listed qubits (all when ids is empty) in the Z basis,
or in X or Y via InBasis. Every shot but the last runs on a scratch copy of
the tableau; the last runs on the receiver, which is left collapsed.
Directional bases need non-Clifford rotations and fail with
ErrUnsupportedGate.
*/
func (s *Stabilizer) Measure(ids []int, opts ...MeasureOption) (*Outcome, error) {
	if err := s.alive("measure"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = allQubits(s.qubits)
	}
	if err := checkQubits("measure", ids, s.qubits, -1); err != nil {
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
	if err := s.Apply(into...); err != nil {
		return nil, err
	}

	freq := make(Histogram)
	var last string
	for shot := 0; shot < mc.shots; shot++ {
		target := s
		if shot < mc.shots-1 {
			target = s.scratchCopy()
		}
		last = target.measureBits(ids)
		freq[last]++
	}

	if err := s.Apply(back...); err != nil {
		return nil, err
	}
	return newOutcome(ids, mc.shots, freq, last), nil
}

func (s *Stabilizer) measureBits(ids []int) string {
	b := make([]byte, len(ids))
	for k, q := range ids {
		b[k] = '0' + byte(s.measureQubit(q))
	}
	return string(b)
}

// scratchCopy shares the random stream with the receiver.
func (s *Stabilizer) scratchCopy() *Stabilizer {
	c := &Stabilizer{
		qubits: s.qubits,
		x:      make([]bitrow, len(s.x)),
		z:      make([]bitrow, len(s.z)),
		sign:   append([]bool(nil), s.sign...),
		rng:    s.rng,
		seed:   s.seed,
		cfg:    s.cfg,
	}
	for i := range s.x {
		c.x[i] = append(bitrow(nil), s.x[i]...)
		c.z[i] = append(bitrow(nil), s.z[i]...)
	}
	return c
}

// Reset measures each listed qubit (all when empty) and flips it back to
// |0⟩ when it read 1.
func (s *Stabilizer) Reset(ids ...int) error {
	if err := s.alive("reset"); err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = allQubits(s.qubits)
	}
	if err := checkQubits("reset", ids, s.qubits, -1); err != nil {
		return err
	}
	for _, q := range ids {
		if s.measureQubit(q) == 1 {
			s.conjugate(X(q))
		}
	}
	return nil
}

// Clone returns an independent copy with a random stream derived from the
// receiver's.
func (s *Stabilizer) Clone() (*Stabilizer, error) {
	if err := s.alive("clone"); err != nil {
		return nil, err
	}
	c := s.scratchCopy()
	c.seed = s.rng.Uint64()
	c.rng = newSource(c.seed)
	return c, nil
}

/*
QState materializes the stabilized state as a dense vector by projecting a
generic vector with Π (I+gᵢ)/2. The global phase is fixed so that the
largest amplitude is real and positive. Only practical for small n.
*/
func (s *Stabilizer) QState(opts ...Option) (*QState, error) {
	if err := s.alive("qstate"); err != nil {
		return nil, err
	}
	opts = append([]Option{WithConfig(s.cfg)}, opts...)
	qs, err := NewQState(s.qubits, opts...)
	if err != nil {
		return nil, err
	}

	// a fixed source keeps the projection deterministic
	src := newSource(uint64(s.qubits))
	v := qs.buf.data
	for i := range v {
		v[i] = complex(1+src.Float64(), src.Float64())
	}

	before := qs.buf.Norm2()
	scratch := make([]complex128, len(v))
	for row := 0; row < s.qubits; row++ {
		ps := s.pauliString(row)
		ps.applyTo(scratch, v)
		sign := complex128(1)
		if s.sign[row] {
			sign = -1
		}
		for i := range v {
			v[i] = (v[i] + sign*scratch[i]) / 2
		}
	}

	if qs.buf.Norm2() < before*1e-12 || !qs.buf.normalize() {
		return nil, &NumericalError{Op: "stabilizer qstate", Value: 0, Tolerance: s.cfg.Tolerance}
	}

	best := 0
	for i, a := range v {
		if probability(a) > probability(v[best])+s.cfg.Tolerance {
			best = i
		}
	}
	ref := v[best]
	phase := complex(real(ref), -imag(ref)) / complex(math.Sqrt(probability(ref)), 0)
	for i := range v {
		v[i] *= phase
	}
	return qs, nil
}

func (s *Stabilizer) pauliString(row int) PauliString {
	var ps PauliString
	for q := 0; q < s.qubits; q++ {
		if p := s.letter(row, q); p != PauliI {
			ps = append(ps, PauliFactor{Qubit: q, Op: p})
		}
	}
	return ps
}

// Release drops the tableau. The object cannot be used afterwards.
func (s *Stabilizer) Release() error {
	if err := s.alive("release stabilizer"); err != nil {
		return err
	}
	s.x, s.z, s.sign = nil, nil, nil
	s.released = true
	return nil
}
