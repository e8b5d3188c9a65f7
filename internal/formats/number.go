package formats

import (
	"math"
	"strconv"
	"strings"
)

// ShortFloat formats v with the fewest digits that round-trip, in fixed
// notation for decimal exponents in [-4, 16) and scientific otherwise.
// Integral values keep a trailing ".0" (1 -> "1.0", 1e-05, 1e+16).
func ShortFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
