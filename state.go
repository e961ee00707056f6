package qsim

/*
Branch is one possible outcome of measuring a set of qubits: the outcome
value (bit k is the value of the k-th measured qubit), its bitstring, and
the Born probability of landing there.
*/
type Branch struct {
	Value       int
	Bits        string
	Probability float64
}

// bitstring renders v over width bits, character k holding bit k of v, so
// the first measured qubit is leftmost.
func bitstring(v, width int) string {
	b := make([]byte, width)
	for k := 0; k < width; k++ {
		if v>>uint(k)&1 == 1 {
			b[k] = '1'
		} else {
			b[k] = '0'
		}
	}
	return string(b)
}

// parseBitstring is the inverse of bitstring.
func parseBitstring(s string) (int, bool) {
	v := 0
	for k := 0; k < len(s); k++ {
		switch s[k] {
		case '1':
			v |= 1 << uint(k)
		case '0':
		default:
			return 0, false
		}
	}
	return v, true
}
