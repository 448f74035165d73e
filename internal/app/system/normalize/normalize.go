// internal/app/system/normalize/normalize.go

// Package normalize centralizes input normalization so every boundary
// (HTTP decoding, store writes, index lookups) folds values the same way.
// Email case policy lives here: emails are lowercased everywhere, so two
// spellings of the same address can never coexist.
package normalize

import "strings"

// Email trims whitespace and lowercases the address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Phone strips everything but digits, keeping a leading "+".
// "+54 9 11 2345-6789" becomes "+5491123456789".
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Role trims and lowercases a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Enum trims and lowercases a closed-enumeration value (weekday, gender).
func Enum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a free-text query parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
