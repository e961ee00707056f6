package qsim

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// GateKind tags an entry of the fixed gate catalog.
type GateKind uint8

const (
	GateI GateKind = iota
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateSdg
	GateT
	GateTdg
	GateXR
	GateXRdg
	GateP
	GateRX
	GateRY
	GateRZ
	GateU1
	GateU2
	GateU3
	GateCX
	GateCY
	GateCZ
	GateCH
	GateCS
	GateCSdg
	GateCT
	GateCTdg
	GateCXR
	GateCXRdg
	GateCP
	GateCRX
	GateCRY
	GateCRZ
	GateCU1
	GateCU2
	GateCU3
	GateSW
	GateRXX
	GateRYY
	GateRZZ
	GateCCX
	GateCSW

	// GateMeasure and GateReset are circuit pseudo-gates; they have no
	// matrix and are handled by the backends directly.
	GateMeasure
	GateReset
)

type gateSpec struct {
	name     string
	arity    int
	params   int
	clifford bool
	matrix   func(p []float64) []complex128
}

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)
	tPhase   = cmplx.Exp(complex(0, math.Pi/4))
)

var (
	matI    = fixed(1, 0, 0, 1)
	matX    = fixed(0, 1, 1, 0)
	matY    = fixed(0, -1i, 1i, 0)
	matZ    = fixed(1, 0, 0, -1)
	matH    = fixed(invSqrt2, invSqrt2, invSqrt2, -invSqrt2)
	matS    = fixed(1, 0, 0, 1i)
	matSdg  = fixed(1, 0, 0, -1i)
	matT    = fixed(1, 0, 0, tPhase)
	matTdg  = fixed(1, 0, 0, cmplx.Conj(tPhase))
	matXR   = fixed((1+1i)/2, (1-1i)/2, (1-1i)/2, (1+1i)/2)
	matXRdg = fixed((1-1i)/2, (1+1i)/2, (1+1i)/2, (1-1i)/2)
)

var catalog = map[GateKind]gateSpec{
	GateI:    {"i", 1, 0, true, matI},
	GateX:    {"x", 1, 0, true, matX},
	GateY:    {"y", 1, 0, true, matY},
	GateZ:    {"z", 1, 0, true, matZ},
	GateH:    {"h", 1, 0, true, matH},
	GateS:    {"s", 1, 0, true, matS},
	GateSdg:  {"s_dg", 1, 0, true, matSdg},
	GateT:    {"t", 1, 0, false, matT},
	GateTdg:  {"t_dg", 1, 0, false, matTdg},
	GateXR:   {"xr", 1, 0, false, matXR},
	GateXRdg: {"xr_dg", 1, 0, false, matXRdg},
	GateP:    {"p", 1, 1, false, phaseMatrix},
	GateRX:   {"rx", 1, 1, false, rxMatrix},
	GateRY:   {"ry", 1, 1, false, ryMatrix},
	GateRZ:   {"rz", 1, 1, false, rzMatrix},
	GateU1:   {"u1", 1, 1, false, phaseMatrix},
	GateU2:   {"u2", 1, 2, false, u2Matrix},
	GateU3:   {"u3", 1, 3, false, u3Matrix},

	GateCX:    {"cx", 2, 0, true, controlled(matX)},
	GateCY:    {"cy", 2, 0, true, controlled(matY)},
	GateCZ:    {"cz", 2, 0, true, controlled(matZ)},
	GateCH:    {"ch", 2, 0, false, controlled(matH)},
	GateCS:    {"cs", 2, 0, false, controlled(matS)},
	GateCSdg:  {"cs_dg", 2, 0, false, controlled(matSdg)},
	GateCT:    {"ct", 2, 0, false, controlled(matT)},
	GateCTdg:  {"ct_dg", 2, 0, false, controlled(matTdg)},
	GateCXR:   {"cxr", 2, 0, false, controlled(matXR)},
	GateCXRdg: {"cxr_dg", 2, 0, false, controlled(matXRdg)},
	GateCP:    {"cp", 2, 1, false, controlled(phaseMatrix)},
	GateCRX:   {"crx", 2, 1, false, controlled(rxMatrix)},
	GateCRY:   {"cry", 2, 1, false, controlled(ryMatrix)},
	GateCRZ:   {"crz", 2, 1, false, controlled(rzMatrix)},
	GateCU1:   {"cu1", 2, 1, false, controlled(phaseMatrix)},
	GateCU2:   {"cu2", 2, 2, false, controlled(u2Matrix)},
	GateCU3:   {"cu3", 2, 3, false, controlled(u3Matrix)},
	GateSW:    {"sw", 2, 0, true, swapMatrix},
	GateRXX:   {"rxx", 2, 1, false, pauliRotation(PauliX)},
	GateRYY:   {"ryy", 2, 1, false, pauliRotation(PauliY)},
	GateRZZ:   {"rzz", 2, 1, false, pauliRotation(PauliZ)},

	GateCCX: {"ccx", 3, 0, false, toffoliMatrix},
	GateCSW: {"csw", 3, 0, false, fredkinMatrix},

	GateMeasure: {"measure", -1, 0, true, nil},
	GateReset:   {"reset", -1, 0, true, nil},
}

var kindByName = func() map[string]GateKind {
	m := make(map[string]GateKind, len(catalog))
	for kind, spec := range catalog {
		m[spec.name] = kind
	}
	return m
}()

// ParseGateKind resolves a catalog name such as "cx" or "s_dg".
func ParseGateKind(name string) (GateKind, error) {
	kind, ok := kindByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("parse gate %q: %w", name, ErrUnsupportedGate)
	}
	return kind, nil
}

func (k GateKind) String() string {
	if spec, ok := catalog[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("gate(%d)", uint8(k))
}

// Arity is the exact number of qubits the gate acts on; -1 means any
// non-zero number (measure, reset).
func (k GateKind) Arity() int { return catalog[k].arity }

// Params is the number of phase parameters the gate takes.
func (k GateKind) Params() int { return catalog[k].params }

// Clifford reports whether the stabilizer engine can apply the gate.
func (k GateKind) Clifford() bool { return catalog[k].clifford }

// Matrix returns the gate's unitary, row-major over 2^arity basis states.
// The first qubit of a gate is the most significant bit of the local index,
// so for controlled gates the control comes first.
func (k GateKind) Matrix(params ...float64) ([]complex128, error) {
	spec, ok := catalog[k]
	if !ok || spec.matrix == nil {
		return nil, &GateError{Op: "matrix", Gate: k, Err: ErrUnsupportedGate}
	}
	if len(params) != spec.params {
		return nil, &GateError{Op: "matrix", Gate: k, Err: ErrArityMismatch}
	}
	return spec.matrix(params), nil
}

func fixed(elems ...complex128) func([]float64) []complex128 {
	return func([]float64) []complex128 {
		return append([]complex128(nil), elems...)
	}
}

func phaseMatrix(p []float64) []complex128 {
	return []complex128{1, 0, 0, cmplx.Exp(complex(0, p[0]))}
}

func rxMatrix(p []float64) []complex128 {
	c, s := complex(math.Cos(p[0]/2), 0), complex(0, -math.Sin(p[0]/2))
	return []complex128{c, s, s, c}
}

func ryMatrix(p []float64) []complex128 {
	c, s := complex(math.Cos(p[0]/2), 0), complex(math.Sin(p[0]/2), 0)
	return []complex128{c, -s, s, c}
}

func rzMatrix(p []float64) []complex128 {
	e := cmplx.Exp(complex(0, p[0]/2))
	return []complex128{cmplx.Conj(e), 0, 0, e}
}

func u2Matrix(p []float64) []complex128 {
	return u3Matrix([]float64{math.Pi / 2, p[0], p[1]})
}

// u3Matrix is U3(θ, φ, λ).
func u3Matrix(p []float64) []complex128 {
	theta, phi, lambda := p[0], p[1], p[2]
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return []complex128{
		complex(c, 0),
		-cmplx.Exp(complex(0, lambda)) * complex(s, 0),
		cmplx.Exp(complex(0, phi)) * complex(s, 0),
		cmplx.Exp(complex(0, phi+lambda)) * complex(c, 0),
	}
}

// controlled lifts a one-qubit gate to diag(I, U) with the control first.
func controlled(target func([]float64) []complex128) func([]float64) []complex128 {
	return func(p []float64) []complex128 {
		u := target(p)
		m := make([]complex128, 16)
		m[0], m[5] = 1, 1
		m[10], m[11] = u[0], u[1]
		m[14], m[15] = u[2], u[3]
		return m
	}
}

func swapMatrix([]float64) []complex128 {
	m := make([]complex128, 16)
	m[0*4+0], m[1*4+2], m[2*4+1], m[3*4+3] = 1, 1, 1, 1
	return m
}

// pauliRotation is exp(-iθ/2 P⊗P).
func pauliRotation(p Pauli) func([]float64) []complex128 {
	return func(params []float64) []complex128 {
		pp := kron2(p.Matrix(), p.Matrix())
		c, s := complex(math.Cos(params[0]/2), 0), complex(0, -math.Sin(params[0]/2))
		m := make([]complex128, 16)
		for i := range m {
			m[i] = s * pp[i]
			if i%5 == 0 {
				m[i] += c
			}
		}
		return m
	}
}

func toffoliMatrix([]float64) []complex128 {
	m := make([]complex128, 64)
	for i := 0; i < 6; i++ {
		m[i*8+i] = 1
	}
	m[6*8+7], m[7*8+6] = 1, 1
	return m
}

func fredkinMatrix([]float64) []complex128 {
	m := make([]complex128, 64)
	for i := 0; i < 8; i++ {
		j := i
		if i == 5 || i == 6 {
			j = 11 - i
		}
		m[i*8+j] = 1
	}
	return m
}

func kron2(a, b []complex128) []complex128 {
	m := make([]complex128, 16)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				for l := 0; l < 2; l++ {
					m[(i*2+k)*4+j*2+l] = a[i*2+j] * b[k*2+l]
				}
			}
		}
	}
	return m
}

// Gate is one application of a catalog entry to concrete qubits.
type Gate struct {
	Kind   GateKind
	Qubits []int
	Params []float64
}

// NewGate builds a gate value; use the named constructors where possible.
func NewGate(kind GateKind, qubits []int, params ...float64) Gate {
	return Gate{Kind: kind, Qubits: qubits, Params: params}
}

func (g Gate) String() string {
	var b strings.Builder
	b.WriteString(g.Kind.String())
	if len(g.Params) > 0 {
		fmt.Fprintf(&b, "(%s)", joinFloats(g.Params))
	}
	for i, q := range g.Qubits {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "q%d", q)
	}
	return b.String()
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, ",")
}

// I is the identity on q.
func I(q int) Gate {
	return NewGate(GateI, []int{q})
}

// X is the Pauli X (NOT) gate.
func X(q int) Gate {
	return NewGate(GateX, []int{q})
}

// Y is the Pauli Y gate.
func Y(q int) Gate {
	return NewGate(GateY, []int{q})
}

// Z is the Pauli Z gate.
func Z(q int) Gate {
	return NewGate(GateZ, []int{q})
}

// H is the Hadamard gate.
func H(q int) Gate {
	return NewGate(GateH, []int{q})
}

// S is the phase gate, √Z.
func S(q int) Gate {
	return NewGate(GateS, []int{q})
}

// Sdg is the inverse of S.
func Sdg(q int) Gate {
	return NewGate(GateSdg, []int{q})
}

// T is the π/8 gate, √S.
func T(q int) Gate {
	return NewGate(GateT, []int{q})
}

// Tdg is the inverse of T.
func Tdg(q int) Gate {
	return NewGate(GateTdg, []int{q})
}

// XR is √X.
func XR(q int) Gate {
	return NewGate(GateXR, []int{q})
}

// XRdg is the inverse of XR.
func XRdg(q int) Gate {
	return NewGate(GateXRdg, []int{q})
}

// P applies the phase e^{iφ} to |1⟩.
func P(q int, phi float64) Gate {
	return NewGate(GateP, []int{q}, phi)
}

// RX rotates q by theta about the X axis.
func RX(q int, theta float64) Gate {
	return NewGate(GateRX, []int{q}, theta)
}

// RY rotates q by theta about the Y axis.
func RY(q int, theta float64) Gate {
	return NewGate(GateRY, []int{q}, theta)
}

// RZ rotates q by theta about the Z axis.
func RZ(q int, theta float64) Gate {
	return NewGate(GateRZ, []int{q}, theta)
}

// U1 is P under its OpenQASM name.
func U1(q int, lambda float64) Gate {
	return NewGate(GateU1, []int{q}, lambda)
}

// U2 is U3(π/2, phi, lambda).
func U2(q int, phi, lambda float64) Gate {
	return NewGate(GateU2, []int{q}, phi, lambda)
}

// U3 is the general single qubit rotation.
func U3(q int, theta, phi, lambda float64) Gate {
	return NewGate(GateU3, []int{q}, theta, phi, lambda)
}

// CX flips t when c is 1.
func CX(c, t int) Gate {
	return NewGate(GateCX, []int{c, t})
}

// CY applies Y to t when c is 1.
func CY(c, t int) Gate {
	return NewGate(GateCY, []int{c, t})
}

// CZ applies Z to t when c is 1.
func CZ(c, t int) Gate {
	return NewGate(GateCZ, []int{c, t})
}

// CH applies H to t when c is 1.
func CH(c, t int) Gate {
	return NewGate(GateCH, []int{c, t})
}

// CS applies S to t when c is 1.
func CS(c, t int) Gate {
	return NewGate(GateCS, []int{c, t})
}

// CSdg applies Sdg to t when c is 1.
func CSdg(c, t int) Gate {
	return NewGate(GateCSdg, []int{c, t})
}

// CT applies T to t when c is 1.
func CT(c, t int) Gate {
	return NewGate(GateCT, []int{c, t})
}

// CTdg applies Tdg to t when c is 1.
func CTdg(c, t int) Gate {
	return NewGate(GateCTdg, []int{c, t})
}

// CXR applies √X to t when c is 1.
func CXR(c, t int) Gate {
	return NewGate(GateCXR, []int{c, t})
}

// CXRdg applies the inverse of √X to t when c is 1.
func CXRdg(c, t int) Gate {
	return NewGate(GateCXRdg, []int{c, t})
}

// CP applies P(phi) to t when c is 1.
func CP(c, t int, phi float64) Gate {
	return NewGate(GateCP, []int{c, t}, phi)
}

// CRX applies RX(theta) to t when c is 1.
func CRX(c, t int, theta float64) Gate {
	return NewGate(GateCRX, []int{c, t}, theta)
}

// CRY applies RY(theta) to t when c is 1.
func CRY(c, t int, theta float64) Gate {
	return NewGate(GateCRY, []int{c, t}, theta)
}

// CRZ applies RZ(theta) to t when c is 1.
func CRZ(c, t int, theta float64) Gate {
	return NewGate(GateCRZ, []int{c, t}, theta)
}

// SW swaps a and b.
func SW(a, b int) Gate {
	return NewGate(GateSW, []int{a, b})
}

// RXX is exp(-iθ/2 X⊗X).
func RXX(a, b int, theta float64) Gate {
	return NewGate(GateRXX, []int{a, b}, theta)
}

// RYY is exp(-iθ/2 Y⊗Y).
func RYY(a, b int, theta float64) Gate {
	return NewGate(GateRYY, []int{a, b}, theta)
}

// RZZ is exp(-iθ/2 Z⊗Z).
func RZZ(a, b int, theta float64) Gate {
	return NewGate(GateRZZ, []int{a, b}, theta)
}

// CCX is the Toffoli gate: t flips when c0 and c1 are both 1.
func CCX(c0, c1, t int) Gate {
	return NewGate(GateCCX, []int{c0, c1, t})
}

// CSW is the Fredkin gate: a and b swap when c is 1.
func CSW(c, a, b int) Gate {
	return NewGate(GateCSW, []int{c, a, b})
}

// CU1 applies U1(lambda) to t when c is 1.
func CU1(c, t int, lambda float64) Gate {
	return NewGate(GateCU1, []int{c, t}, lambda)
}

// CU2 applies U2(phi, lambda) to t when c is 1.
func CU2(c, t int, phi, lambda float64) Gate {
	return NewGate(GateCU2, []int{c, t}, phi, lambda)
}

// CU3 applies U3 to t when c is 1.
func CU3(c, t int, theta, phi, lambda float64) Gate {
	return NewGate(GateCU3, []int{c, t}, theta, phi, lambda)
}
