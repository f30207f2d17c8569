package entity

import "time"

// Security event names emitted by the audit logger.
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventCSRFRejected        = "csrf_rejected"
	EventTwoFactorSuccess    = "two_factor_success"
	EventTwoFactorFailure    = "two_factor_failure"
	EventRecoveryCodeUsed    = "recovery_code_used"
	EventRegisterSuccess     = "registration_success"
	EventRegisterFailure     = "registration_failure"
	EventCheckoutFinalizeErr = "checkout_finalize_failure"
	EventPasswordReset       = "password_reset"
	EventWebhookRejected     = "webhook_signature_rejected"
)

// SecurityEvent is a structured audit entry for authentication and
// authorization relevant occurrences.
type SecurityEvent struct {
	ID        string
	Event     string
	UserID    *string
	IP        string
	Details   map[string]any
	CreatedAt time.Time
}
