// Package validate holds the pure input checks and display formatters shared
// by the balance and transfer flows. Nothing here performs I/O.
package validate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether s is "0x" followed by exactly 40 hex digits.
// Checksum casing is not enforced.
func IsValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// IsValidAmount reports whether s parses as a finite decimal number strictly
// greater than zero. Trailing garbage ("1abc") is rejected.
func IsValidAmount(s string) bool {
	d, ok := parseDecimal(s)
	if !ok {
		return false
	}
	return d.Sign() > 0
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
