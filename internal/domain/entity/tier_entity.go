package entity

import "time"

// MembershipTier is read-only reference data describing a paid plan.
type MembershipTier struct {
	ID           string
	Name         string
	DisplayName  string
	MonthlyCents int64
	AnnualCents  int64
	ItemLimit    int // max library items per user; 0 means unlimited
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PriceFor returns the price in cents for a billing cycle.
func (t *MembershipTier) PriceFor(cycle string) int64 {
	if cycle == CycleAnnual {
		return t.AnnualCents
	}
	return t.MonthlyCents
}
