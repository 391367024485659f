package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f in the shortest decimal form that still reads as a
// float: integral values keep a trailing ".0" and very small or very large
// magnitudes switch to exponent notation (1e-05, 1e+16). The experiment
// binaries parse these strings back, and artifact names embed them, so the
// output must never change for a given input.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	if exp := decimalExponent(f); exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func decimalExponent(f float64) int {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.LastIndexByte(s, 'e')
	exp, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return 0
	}
	return exp
}

// FormatBool renders b as True or False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Pad3 zero-pads n to three digits.
func Pad3(n int) string {
	return fmt.Sprintf("%03d", n)
}
