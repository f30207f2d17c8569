package validation

import (
	"strings"
	"unicode"
)

// MinPasswordLen is the floor for user passwords.
const MinPasswordLen = 8

// PasswordViolations checks the password-strength policy and returns one
// message per unmet rule. An empty slice means the password is acceptable.
func PasswordViolations(pw string) []string {
	var out []string
	if len(pw) < MinPasswordLen {
		out = append(out, "must be at least 8 characters long")
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		out = append(out, "must contain an uppercase letter")
	}
	if !lower {
		out = append(out, "must contain a lowercase letter")
	}
	if !digit {
		out = append(out, "must contain a digit")
	}
	if !special {
		out = append(out, "must contain a special character")
	}
	return out
}

// ValidUsername reports whether the username uses the allowed character set:
// letters, digits, underscore, dot and hyphen, 3-30 characters.
func ValidUsername(name string) bool {
	if len(name) < 3 || len(name) > 30 {
		return false
	}
	for _, r := range name {
		ok := unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.-", r)
		if !ok {
			return false
		}
	}
	return true
}
