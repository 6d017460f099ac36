package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone canonicalizes a dialed number for use as a lookup key:
// separators and formatting characters are stripped, a single leading "+" is
// preserved, and the result must carry at least 10 digits.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty phone number")
	}

	var b strings.Builder
	digits := 0
	for i, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting noise
		default:
			return "", fmt.Errorf("invalid character %q in phone number", r)
		}
	}
	if digits < 10 {
		return "", fmt.Errorf("phone number too short: %d digits", digits)
	}
	return b.String(), nil
}
