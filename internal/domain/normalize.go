package domain

import (
	"errors"
	"strings"
)

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for first/last name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ErrInvalidPhone indicates a phone number with too few digits to be dialable.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone reduces a phone number to digits in the form WhatsApp expects.
// Ten-digit numbers are assumed to be North American and get a leading country code 1.
func NormalizePhone(s string) (string, error) {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	switch {
	case len(digits) < 10:
		return "", ErrInvalidPhone
	case len(digits) == 10:
		return "1" + digits, nil
	default:
		return digits, nil
	}
}
