// Package validate sanitizes inbound text fields from HTTP and webhook payloads.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmpty        = errors.New("value must not be empty")
	ErrTooLong      = errors.New("value is too long")
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrNotNumeric   = errors.New("value must be numeric")
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	phoneSeparator = regexp.MustCompile(`[()\s\-.]`)
)

// Text trims value, strips control characters and enforces 1..max runes.
func Text(value string, max int) (string, error) {
	cleaned := controlChars.ReplaceAllString(strings.TrimSpace(value), "")
	if cleaned == "" {
		return "", ErrEmpty
	}
	if max > 0 && utf8.RuneCountInString(cleaned) > max {
		return "", ErrTooLong
	}
	return cleaned, nil
}

// OptionalText is Text for fields that may be absent; an absent field stays "".
func OptionalText(value string, present bool, max int) (string, error) {
	if !present {
		return "", nil
	}
	return Text(value, max)
}

// Phone normalizes a caller number to "+digits" with 8 to 15 digits.
func Phone(value string) (string, error) {
	cleaned := controlChars.ReplaceAllString(strings.TrimSpace(value), "")
	cleaned = phoneSeparator.ReplaceAllString(cleaned, "")
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < 8 || len(digits) > 15 || !isDigits(digits) {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

// Digits validates a DTMF digit string.
func Digits(value string, max int) (string, error) {
	cleaned, err := Text(value, max)
	if err != nil {
		return "", err
	}
	if !isDigits(cleaned) {
		return "", ErrNotNumeric
	}
	return cleaned, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
