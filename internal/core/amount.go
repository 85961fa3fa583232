package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a user-entered amount into a positive number.
//
// It accepts both dot (12.5) and comma (12,5) decimal separators. Signs,
// grouping separators, zero and non-finite values are rejected with
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("20000") -> 20000, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	if s == "." {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders an amount with dot thousands grouping and up to two
// decimals, e.g. 25000 -> "25.000", 12.5 -> "12,50".
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := math.Floor(v)
	frac := math.Round((v - whole) * 100)
	if frac >= 100 {
		whole++
		frac = 0
	}
	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac > 0 {
		out += "," + strconv.FormatFloat(frac/100, 'f', 2, 64)[2:]
	}
	if neg {
		return "-" + out
	}
	return out
}
