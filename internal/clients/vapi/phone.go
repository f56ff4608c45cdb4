package vapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhoneNumber is returned when fewer than ten digits remain after
// stripping formatting characters.
var ErrInvalidPhoneNumber = errors.New("vapi: invalid phone number")

// NormalizePhoneNumber renders raw as an E.164-style string. Ten digit numbers
// are treated as US numbers. This is a heuristic and does not validate
// country codes or number plans.
func NormalizePhoneNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10:
		return "+1" + digits, nil
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits, nil
	case len(digits) > 10:
		return "+" + digits, nil
	default:
		return "", fmt.Errorf("%w: %d digits", ErrInvalidPhoneNumber, len(digits))
	}
}
