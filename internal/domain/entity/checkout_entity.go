package entity

import "time"

// Checkout statuses. A checkout is created pending, moves to authorized
// (trial card authorization) or paid (charge success), and is consumed into
// completed exactly once by registration. Completed is terminal.
const (
	CheckoutPending    = "pending"
	CheckoutAuthorized = "authorized"
	CheckoutPaid       = "paid"
	CheckoutCompleted  = "completed"
	CheckoutExpired    = "expired"
)

// Billing cycles.
const (
	CycleMonthly = "monthly"
	CycleAnnual  = "annual"
)

// PendingCheckout is a membership purchase keyed by an opaque token.
// The token doubles as the payment-provider transaction reference.
type PendingCheckout struct {
	ID           string
	Token        string
	PlanName     string
	BillingCycle string
	Trial        bool
	Status       string
	AmountCents  int64
	UserID       *string // set when the checkout is completed by registration
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the checkout's expiry timestamp has passed.
// Expiry is evaluated at read time; there is no background sweep.
func (c *PendingCheckout) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ConsumableStatus returns the status a checkout must hold for registration:
// authorized for trials, paid otherwise.
func (c *PendingCheckout) ConsumableStatus() string {
	if c.Trial {
		return CheckoutAuthorized
	}
	return CheckoutPaid
}
