package qsim

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/theapemachine/qsim/internal/linalg"
)

// Term is one weighted Pauli product of an observable.
type Term struct {
	Coef complex128
	Ops  PauliString
}

func (t Term) String() string {
	return fmt.Sprintf("%s*%s", formatCoef(t.Coef), t.Ops)
}

/*
Observable is a weighted sum of Pauli products, such as a Hamiltonian.
Like terms are merged on construction and the term list never changes
afterwards.
*/
type Observable struct {
	terms []Term
}

// NewObservable merges like terms, keeping first-seen order, and drops
// terms whose coefficient cancels to zero.
func NewObservable(terms ...Term) *Observable {
	index := make(map[string]int, len(terms))
	merged := make([]Term, 0, len(terms))

	for _, t := range terms {
		ops, phase := NewPauliString(t.Ops...)
		coef := t.Coef * phase
		key := ops.Key()
		if at, ok := index[key]; ok {
			merged[at].Coef += coef
			continue
		}
		index[key] = len(merged)
		merged = append(merged, Term{Coef: coef, Ops: ops})
	}

	out := merged[:0]
	for _, t := range merged {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return &Observable{terms: out}
}

var pauliFactor = regexp.MustCompile(`^([ixyz])_?(\d+)$`)

/*
ParseObservable reads expressions like

	-2.0 + z_0*z_1 + 0.5*x_0 - (0+1i)*y_2 + pi/4*x_3

Terms are separated by + or -, factors by *. A factor is a Pauli letter with
a qubit id (case-insensitive, underscore optional), a real number, a pi
expression, or a parenthesised complex number.
*/
func ParseObservable(s string) (*Observable, error) {
	parts, err := splitTerms(s)
	if err != nil {
		return nil, err
	}

	terms := make([]Term, 0, len(parts))
	for _, part := range parts {
		t, err := parseTerm(part.body)
		if err != nil {
			return nil, fmt.Errorf("parse observable %q: %w", s, err)
		}
		t.Coef *= complex(part.sign, 0)
		terms = append(terms, t)
	}
	return NewObservable(terms...), nil
}

type signedTerm struct {
	sign float64
	body string
}

func splitTerms(s string) ([]signedTerm, error) {
	var (
		out   []signedTerm
		cur   strings.Builder
		sign  = 1.0
		depth int
	)

	flush := func() {
		if body := strings.TrimSpace(cur.String()); body != "" {
			out = append(out, signedTerm{sign: sign, body: body})
			sign = 1
		}
		cur.Reset()
	}

	for i, c := range s {
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("parse observable %q: unbalanced ')': %w", s, ErrInvalidArgument)
			}
		case depth == 0 && (c == '+' || c == '-') && !isExponent(s, i):
			if strings.TrimSpace(cur.String()) != "" {
				flush()
			}
			if c == '-' {
				sign = -sign
			}
			continue
		}
		cur.WriteRune(c)
	}
	if depth != 0 {
		return nil, fmt.Errorf("parse observable %q: unbalanced '(': %w", s, ErrInvalidArgument)
	}
	flush()

	if len(out) == 0 {
		return nil, fmt.Errorf("parse observable %q: no terms: %w", s, ErrInvalidArgument)
	}
	return out, nil
}

// isExponent reports whether the sign at s[i] belongs to a float exponent
// such as 1e-3.
func isExponent(s string, i int) bool {
	if i < 2 || (s[i-1] != 'e' && s[i-1] != 'E') {
		return false
	}
	p := s[i-2]
	return (p >= '0' && p <= '9') || p == '.'
}

func parseTerm(body string) (Term, error) {
	t := Term{Coef: 1}
	for _, raw := range strings.Split(body, "*") {
		f := strings.ToLower(strings.TrimSpace(raw))
		if f == "" {
			return t, fmt.Errorf("empty factor in %q: %w", body, ErrInvalidArgument)
		}

		if m := pauliFactor.FindStringSubmatch(f); m != nil {
			q, err := strconv.Atoi(m[2])
			if err != nil {
				return t, fmt.Errorf("qubit id %q: %w", m[2], ErrInvalidArgument)
			}
			op, _ := ParsePauli(m[1])
			t.Ops = append(t.Ops, PauliFactor{Qubit: q, Op: op})
			continue
		}

		c, err := parseCoef(f)
		if err != nil {
			return t, err
		}
		t.Coef *= c
	}
	return t, nil
}

var piExpr = regexp.MustCompile(`^(\d*\.?\d*)pi(?:/(\d+\.?\d*))?$`)

func parseCoef(f string) (complex128, error) {
	if strings.HasPrefix(f, "(") {
		c, err := strconv.ParseComplex(strings.ReplaceAll(f, " ", ""), 128)
		if err != nil {
			return 0, fmt.Errorf("coefficient %q: %w", f, ErrInvalidArgument)
		}
		return c, nil
	}
	if v, err := strconv.ParseFloat(f, 64); err == nil {
		return complex(v, 0), nil
	}

	m := piExpr.FindStringSubmatch(strings.ReplaceAll(f, " ", ""))
	if m == nil {
		return 0, fmt.Errorf("coefficient %q: %w", f, ErrInvalidArgument)
	}
	v := math.Pi
	if m[1] != "" {
		k, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("coefficient %q: %w", f, ErrInvalidArgument)
		}
		v *= k
	}
	if m[2] != "" {
		d, err := strconv.ParseFloat(m[2], 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("coefficient %q: %w", f, ErrInvalidArgument)
		}
		v /= d
	}
	return complex(v, 0), nil
}

func formatCoef(c complex128) string {
	if imag(c) == 0 {
		return strconv.FormatFloat(real(c), 'g', -1, 64)
	}
	return strconv.FormatComplex(c, 'g', -1, 128)
}

// Terms returns a copy of the merged term list.
func (o *Observable) Terms() []Term {
	out := make([]Term, len(o.terms))
	for i, t := range o.terms {
		out[i] = Term{Coef: t.Coef, Ops: append(PauliString(nil), t.Ops...)}
	}
	return out
}

func (o *Observable) String() string {
	if len(o.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(o.terms))
	for i, t := range o.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

// NumQubits is one past the highest qubit any term touches.
func (o *Observable) NumQubits() int {
	n := 0
	for _, t := range o.terms {
		if q := t.Ops.MaxQubit() + 1; q > n {
			n = q
		}
	}
	return n
}

// Hermitian reports whether every coefficient is real within tol.
func (o *Observable) Hermitian(tol float64) bool {
	for _, t := range o.terms {
		if math.Abs(imag(t.Coef)) > tol {
			return false
		}
	}
	return true
}

// Matrix builds the dense 2^n×2^n matrix of the observable.
func (o *Observable) Matrix(n int) (*Operator, error) {
	if o.NumQubits() > n {
		return nil, &QubitError{Op: "observable matrix", Qubit: o.NumQubits() - 1, NumQubits: n, Err: ErrOutOfBound}
	}
	dim := 1 << uint(n)
	m := linalg.New(dim)
	for _, t := range o.terms {
		flip, phase, ys := t.Ops.masks()
		for col := 0; col < dim; col++ {
			row := int(uint64(col) ^ flip)
			m.Data[row*dim+col] += t.Coef * entry(uint64(col), phase, ys)
		}
	}
	return &Operator{m: m}, nil
}

func (o *Observable) checkWidth(op string, n int) error {
	if w := o.NumQubits(); w > n {
		return &QubitError{Op: op, Qubit: w - 1, NumQubits: n, Err: ErrOutOfBound}
	}
	return nil
}

// Expect returns Σ cₖ⟨ψ|Pₖ|ψ⟩. Each Pauli product acts on a scratch copy
// so the state is untouched.
func (o *Observable) Expect(qs *QState) (complex128, error) {
	return qs.Expect(o)
}

// Expect returns ⟨ψ|H|ψ⟩ for the observable H.
func (qs *QState) Expect(obs *Observable) (complex128, error) {
	if err := qs.buf.alive("expect"); err != nil {
		return 0, err
	}
	if err := obs.checkWidth("expect", qs.qubits); err != nil {
		return 0, err
	}

	var sum complex128
	for _, t := range obs.terms {
		sum += t.Coef * qs.pauliExpect(t.Ops)
	}
	if math.Abs(imag(sum)) < qs.cfg.Tolerance && obs.Hermitian(qs.cfg.Tolerance) {
		sum = complex(real(sum), 0)
	}
	return sum, nil
}

// cisPauli is exp(-iθP)ψ = cos θ·ψ − i sin θ·Pψ, applied in place using
// scratch for Pψ.
func cisPauli(v, scratch []complex128, ps PauliString, theta float64) {
	ps.applyTo(scratch, v)
	c := complex(math.Cos(theta), 0)
	s := complex(0, -math.Sin(theta))
	for i := range v {
		v[i] = c*v[i] + s*scratch[i]
	}
}
