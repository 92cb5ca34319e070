package domain

import (
	"math"
	"strconv"
	"strings"
)

// Manual concentration bounds in cells/mL.
const (
	MinManualConcentration = 1
	MaxManualConcentration = 1e10
)

// Upper bounds for parsed integer fields. Sums of every count field and of
// wells plus extra wells stay far below the int range.
const (
	MaxCount = 100_000_000
	MaxWells = 1_000_000
)

// ParseCount reads a raw count field from its leading digits, so "12.7" and
// "12abc" both read as 12. Empty, non-numeric or negative input counts as 0
// and values above MaxCount are capped.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			return 0
		}
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n >= MaxCount {
			return MaxCount
		}
	}
	return n
}

// ParseQuantity reads a raw decimal field such as a well volume. Empty,
// unparsable, non-finite or negative input yields 0.
func ParseQuantity(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(f) || f < 0 {
		return 0
	}
	return f
}

// ParseDilutionFactor reads a dilution factor. Only positive integers are
// accepted; ok is false otherwise and callers keep their current factor.
func ParseDilutionFactor(raw string) (factor int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ParseManualConcentration validates a manually entered stock concentration.
// Scientific notation is accepted ("1.5e6"). The value must be finite and
// lie within [MinManualConcentration, MaxManualConcentration].
func ParseManualConcentration(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	if f < MinManualConcentration || f > MaxManualConcentration {
		return 0, false
	}
	return f, true
}

// ParseWells reads a well count field. Fractions truncate and values are
// capped at MaxWells.
func ParseWells(raw string) int {
	return int(min(ParseQuantity(raw), MaxWells))
}

// ClampGrids limits a declared grid count to [1, MaxGrids].
func ClampGrids(n int) int {
	return min(max(n, 1), MaxGrids)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
