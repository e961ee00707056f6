package qsim

import (
	"math/rand/v2"
	"sort"
)

/*
WaveFunction is the marginal Born distribution of a measurement on a subset
of qubits. Probabilities are summed over the complementary subspace, so a
WaveFunction over every qubit is just |amplitude|² per basis state.
*/
type WaveFunction struct {
	QubitIDs   []int
	Branches   []Branch
	cumulative []float64
}

// newWaveFunction computes the marginal over ids from a state vector.
func newWaveFunction(amps []complex128, ids []int) *WaveFunction {
	width := len(ids)
	probs := make([]float64, 1<<uint(width))
	for i, a := range amps {
		if a == 0 {
			continue
		}
		probs[gather(i, ids)] += probability(a)
	}
	return newWaveFunctionFromProbs(probs, ids)
}

func newWaveFunctionFromProbs(probs []float64, ids []int) *WaveFunction {
	wf := &WaveFunction{
		QubitIDs:   append([]int(nil), ids...),
		Branches:   make([]Branch, len(probs)),
		cumulative: make([]float64, len(probs)),
	}

	total := 0.0
	for _, p := range probs {
		total += p
	}
	acc := 0.0
	for v, p := range probs {
		if total > 0 {
			p /= total
		}
		acc += p
		wf.Branches[v] = Branch{Value: v, Bits: bitstring(v, len(ids)), Probability: p}
		wf.cumulative[v] = acc
	}
	return wf
}

/*
Collapse draws one branch by inverse-CDF sampling. Zero-probability
branches are never returned.
*/
func (wf *WaveFunction) Collapse(rng *rand.Rand) Branch {
	last := len(wf.cumulative) - 1
	r := rng.Float64() * wf.cumulative[last]
	i := sort.SearchFloat64s(wf.cumulative, r)
	// SearchFloat64s returns the first index with cumulative >= r; step
	// past flat segments so r == 0 cannot land on an empty branch
	for i < last && wf.Branches[i].Probability == 0 {
		i++
	}
	if i > last {
		i = last
	}
	return wf.Branches[i]
}

// Probability returns the probability of an outcome bitstring.
func (wf *WaveFunction) Probability(bits string) float64 {
	v, ok := parseBitstring(bits)
	if !ok || len(bits) != len(wf.QubitIDs) {
		return 0
	}
	return wf.Branches[v].Probability
}

// Map returns bitstring → probability for the non-zero branches.
func (wf *WaveFunction) Map() map[string]float64 {
	out := make(map[string]float64)
	for _, b := range wf.Branches {
		if b.Probability > 0 {
			out[b.Bits] = b.Probability
		}
	}
	return out
}
