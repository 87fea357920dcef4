package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	phoneRe    = regexp.MustCompile(`^(\+7|8)[0-9]{10}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneStrip = regexp.MustCompile(`[^\d+]`)
)

// ValidateName requires first and last name separated by whitespace,
// each at least two characters.
func ValidateName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", ErrInvalidName
	}
	for _, p := range parts {
		if utf8.RuneCountInString(p) < 2 {
			return "", ErrInvalidName
		}
	}
	return name, nil
}

// NormalizePhone strips everything but digits and '+' and validates the
// Russian mobile format: +7 or 8 followed by ten digits.
func NormalizePhone(raw string) (string, error) {
	phone := phoneStrip.ReplaceAllString(raw, "")
	if !phoneRe.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

func ValidateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if !emailRe.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
