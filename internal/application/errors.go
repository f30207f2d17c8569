package application

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrChallengeExpired   = errors.New("two-factor challenge expired")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrTwoFactorNotSetup  = errors.New("two-factor authentication is not set up")

	ErrCheckoutNotFound      = errors.New("checkout not found")
	ErrCheckoutExpired       = errors.New("checkout expired")
	ErrCheckoutUnusable      = errors.New("checkout is not in a usable state")
	ErrCheckoutNotPaid       = errors.New("checkout has not been paid")
	ErrCheckoutNotAuthorized = errors.New("trial checkout has not been authorized")
	ErrCheckoutConsumed      = errors.New("checkout was already consumed")
	ErrUnknownPlan           = errors.New("unknown membership plan")
	ErrBadSignature          = errors.New("webhook signature mismatch")

	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")

	ErrQuotaExceeded = errors.New("membership item limit reached")
	ErrForbidden     = errors.New("not allowed")

	ErrInvalidBackup = errors.New("invalid backup file")
)

// ValidationError carries itemized, user-fixable violations per field.
type ValidationError struct {
	Violations map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for field, msgs := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError() *ValidationError {
	return &ValidationError{Violations: map[string][]string{}}
}

func (e *ValidationError) add(field string, msgs ...string) {
	e.Violations[field] = append(e.Violations[field], msgs...)
}

func (e *ValidationError) empty() bool { return len(e.Violations) == 0 }
