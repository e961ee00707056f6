package qsim

import (
	"errors"
	"fmt"
	"strings"
)

/*
Op is one step of a circuit. Plain gates carry only Gate. A measurement
has Gate.Kind GateMeasure and Cbits naming where each measured qubit's bit
is written. A noise step sets Channel and applies it to Gate.Qubits.
Ctrl >= 0 makes the step conditional on that classical bit being 1.
*/
type Op struct {
	Gate    Gate
	Cbits   []int
	Ctrl    int
	Channel *Channel
}

func (op Op) String() string {
	var b strings.Builder
	if op.Ctrl >= 0 {
		fmt.Fprintf(&b, "if c%d: ", op.Ctrl)
	}
	if op.Channel != nil {
		fmt.Fprintf(&b, "%s %v", op.Channel, op.Gate.Qubits)
		return b.String()
	}
	b.WriteString(op.Gate.String())
	if len(op.Cbits) > 0 {
		fmt.Fprintf(&b, " -> c%v", op.Cbits)
	}
	return b.String()
}

// Circuit is an ordered list of ops over a quantum and a classical
// register. Builder methods return the circuit for chaining; problems are
// reported by Validate, which the runner calls before executing.
type Circuit struct {
	numQubits int
	numCbits  int
	ops       []Op
}

// NewCircuit returns an empty circuit.
func NewCircuit(numQubits, numCbits int) *Circuit {
	return &Circuit{numQubits: numQubits, numCbits: numCbits}
}

func (c *Circuit) NumQubits() int { return c.numQubits }
func (c *Circuit) NumCbits() int  { return c.numCbits }

// Ops returns a copy of the op list.
func (c *Circuit) Ops() []Op { return append([]Op(nil), c.ops...) }

// Add appends unconditional gates.
func (c *Circuit) Add(gates ...Gate) *Circuit {
	for _, g := range gates {
		c.ops = append(c.ops, Op{Gate: g, Ctrl: -1})
	}
	return c
}

// AddIf appends gates that only run when classical bit cbit holds 1.
func (c *Circuit) AddIf(cbit int, gates ...Gate) *Circuit {
	for _, g := range gates {
		c.ops = append(c.ops, Op{Gate: g, Ctrl: cbit})
	}
	return c
}

// Measure measures qubits[k] into cbits[k]. A nil cbits measures without
// recording.
func (c *Circuit) Measure(qubits, cbits []int) *Circuit {
	c.ops = append(c.ops, Op{
		Gate:  NewGate(GateMeasure, append([]int(nil), qubits...)),
		Cbits: append([]int(nil), cbits...),
		Ctrl:  -1,
	})
	return c
}

// Reset returns the listed qubits to |0⟩.
func (c *Circuit) Reset(qubits ...int) *Circuit {
	c.ops = append(c.ops, Op{Gate: NewGate(GateReset, append([]int(nil), qubits...)), Ctrl: -1})
	return c
}

// Noise applies a channel to each listed qubit.
func (c *Circuit) Noise(ch Channel, qubits ...int) *Circuit {
	c.ops = append(c.ops, Op{
		Gate:    NewGate(GateI, append([]int(nil), qubits...)),
		Ctrl:    -1,
		Channel: &ch,
	})
	return c
}

// Validate checks every op against the registers and, for the stabilizer
// backend, the Clifford restriction. All problems are joined.
func (c *Circuit) Validate(kind BackendKind) error {
	var errs []error
	if c.numQubits < 1 {
		errs = append(errs, fmt.Errorf("circuit: %d qubits: %w", c.numQubits, ErrInvalidArgument))
	}
	if c.numCbits < 0 {
		errs = append(errs, fmt.Errorf("circuit: %d cbits: %w", c.numCbits, ErrInvalidArgument))
	}

	for i, op := range c.ops {
		if err := c.validateOp(op, kind); err != nil {
			errs = append(errs, fmt.Errorf("op %d (%s): %w", i, op, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Circuit) validateOp(op Op, kind BackendKind) error {
	if op.Ctrl >= c.numCbits {
		return &ShapeError{Op: "classical control", Expected: c.numCbits, Actual: op.Ctrl, Err: ErrOutOfBound}
	}

	switch {
	case op.Channel != nil:
		if err := checkQubits("noise", op.Gate.Qubits, c.numQubits, -1); err != nil {
			return err
		}
		if kind == BackendStabilizer {
			_, err := op.Channel.pauliMix()
			return err
		}
		_, err := op.Channel.Kraus()
		return err

	case op.Gate.Kind == GateMeasure:
		if err := checkQubits("measure", op.Gate.Qubits, c.numQubits, -1); err != nil {
			return err
		}
		if len(op.Cbits) != 0 && len(op.Cbits) != len(op.Gate.Qubits) {
			return &ShapeError{Op: "measure", Expected: len(op.Gate.Qubits), Actual: len(op.Cbits), Err: ErrArityMismatch}
		}
		for _, cb := range op.Cbits {
			if cb < 0 || cb >= c.numCbits {
				return &ShapeError{Op: "measure", Expected: c.numCbits, Actual: cb, Err: ErrOutOfBound}
			}
		}
		return nil

	case op.Gate.Kind == GateReset:
		return checkQubits("reset", op.Gate.Qubits, c.numQubits, -1)
	}

	if err := checkGate("circuit", op.Gate, c.numQubits); err != nil {
		return err
	}
	if !kind.accepts(op.Gate.Kind) {
		return &GateError{Op: "circuit", Gate: op.Gate.Kind, Err: ErrUnsupportedGate}
	}
	return nil
}

/*
terminal reports whether every measurement can be deferred to the end:
no classical control, reset or noise, each qubit measured at most once,
and no gate touches a qubit after it was measured. It returns the measured
qubits and their cbits in op order.
*/
func (c *Circuit) terminal() (qubits, cbits []int, ok bool) {
	measured := make(map[int]bool)
	for _, op := range c.ops {
		if op.Ctrl >= 0 || op.Channel != nil || op.Gate.Kind == GateReset {
			return nil, nil, false
		}
		if op.Gate.Kind == GateMeasure {
			for k, q := range op.Gate.Qubits {
				if measured[q] {
					return nil, nil, false
				}
				measured[q] = true
				if len(op.Cbits) > 0 {
					qubits = append(qubits, q)
					cbits = append(cbits, op.Cbits[k])
				}
			}
			continue
		}
		for _, q := range op.Gate.Qubits {
			if measured[q] {
				return nil, nil, false
			}
		}
	}
	return qubits, cbits, true
}

func (c *Circuit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "circuit q%d c%d\n", c.numQubits, c.numCbits)
	for _, op := range c.ops {
		b.WriteString("  ")
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}
