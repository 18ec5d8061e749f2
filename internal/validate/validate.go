// Package validate checks and normalizes client-supplied reservation input
// before any mutation happens.
package validate

import (
	"math"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

// Email reports whether the address is acceptable.
func Email(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// NormalizeEmail trims and lower-cases an address. Emails are compared and
// stored in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Duration reports whether a JSON duration value is a whole number of
// minutes within [min, max]. Fractional values are rejected rather than
// rounded.
func Duration(minutes float64, min, max int) bool {
	if math.IsNaN(minutes) || minutes != math.Trunc(minutes) {
		return false
	}
	n := int(minutes)
	return n >= min && n <= max
}
