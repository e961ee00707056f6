package qsim

import (
	"sort"
)

// Histogram counts occurrences of outcome bitstrings.
type Histogram map[string]int

// Total is the number of recorded shots.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// Keys returns the recorded bitstrings in lexical order.
func (h Histogram) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Probabilities returns relative frequencies.
func (h Histogram) Probabilities() map[string]float64 {
	total := float64(h.Total())
	out := make(map[string]float64, len(h))
	if total == 0 {
		return out
	}
	for k, c := range h {
		out[k] = float64(c) / total
	}
	return out
}

// MostFrequent returns the most common bitstring; ties go to the
// lexically smallest.
func (h Histogram) MostFrequent() string {
	best, bestCount := "", -1
	for _, k := range h.Keys() {
		if h[k] > bestCount {
			best, bestCount = k, h[k]
		}
	}
	return best
}

func (h Histogram) clone() Histogram {
	out := make(Histogram, len(h))
	for k, c := range h {
		out[k] = c
	}
	return out
}

func (h Histogram) merge(other Histogram) {
	for k, c := range other {
		h[k] += c
	}
}

/*
Outcome is the immutable record of one measurement call: which qubits were
measured, how many shots were drawn, how often each bitstring came up, and
the bitstring the state was finally collapsed to. Character k of every
bitstring is the value of QubitIDs()[k].
*/
type Outcome struct {
	qubitIDs  []int
	shots     int
	frequency Histogram
	last      string
}

func newOutcome(ids []int, shots int, freq Histogram, last string) *Outcome {
	return &Outcome{
		qubitIDs:  append([]int(nil), ids...),
		shots:     shots,
		frequency: freq,
		last:      last,
	}
}

// QubitIDs lists the measured qubits; character k of every bitstring is
// the value of QubitIDs()[k].
func (o *Outcome) QubitIDs() []int { return append([]int(nil), o.qubitIDs...) }

// Shots is the number of samples taken.
func (o *Outcome) Shots() int { return o.shots }

// Frequency returns a copy of the bitstring histogram.
func (o *Outcome) Frequency() Histogram { return o.frequency.clone() }

// Count returns how often bits occurred.
func (o *Outcome) Count(bits string) int { return o.frequency[bits] }

// Last is the outcome the measured state collapsed to.
func (o *Outcome) Last() string { return o.last }

// LastValue is Last read as an integer, bit k from character k.
func (o *Outcome) LastValue() int {
	v, _ := parseBitstring(o.last)
	return v
}

// Basis selects the measurement axis.
type Basis uint8

const (
	BasisZ Basis = iota
	BasisX
	BasisY
)

func (b Basis) String() string {
	return [...]string{"Z", "X", "Y"}[b%3]
}

// MeasureOption configures a measurement call.
type MeasureOption func(*measureConfig)

type measureConfig struct {
	shots     int
	basis     Basis
	direction bool
	theta     float64
	phi       float64
}

// Shots sets how many samples to draw; the default is one.
func Shots(n int) MeasureOption {
	return func(c *measureConfig) { c.shots = n }
}

// InBasis measures in the X, Y or Z eigenbasis.
func InBasis(b Basis) MeasureOption {
	return func(c *measureConfig) { c.basis = b }
}

// InDirection measures along the Bloch-sphere axis with polar angle theta
// and azimuth phi. It overrides InBasis.
func InDirection(theta, phi float64) MeasureOption {
	return func(c *measureConfig) {
		c.direction = true
		c.theta, c.phi = theta, phi
	}
}

func buildMeasureConfig(opts []MeasureOption) measureConfig {
	c := measureConfig{shots: 1}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// rotation returns the gates that map the measurement axis onto Z for one
// qubit, and the gates that undo it.
func (c measureConfig) rotation(q int) (into, back []Gate) {
	switch {
	case c.direction:
		// the axis (θ, φ) is rotated onto +Z by RZ(-φ) then RY(-θ)
		return []Gate{RZ(q, -c.phi), RY(q, -c.theta)}, []Gate{RY(q, c.theta), RZ(q, c.phi)}
	case c.basis == BasisX:
		return []Gate{H(q)}, []Gate{H(q)}
	case c.basis == BasisY:
		return []Gate{Sdg(q), H(q)}, []Gate{H(q), S(q)}
	}
	return nil, nil
}
