package repository

import (
	"context"

	"github.com/promptash/promptash/internal/domain/entity"
)

// CheckoutRepository persists pending checkouts.
type CheckoutRepository interface {
	Create(ctx context.Context, c *entity.PendingCheckout) error
	GetByToken(ctx context.Context, token string) (*entity.PendingCheckout, error)
	// UpdateStatus moves a checkout between non-terminal states.
	UpdateStatus(ctx context.Context, token, status string) error
	// Consume atomically finalizes a checkout: it sets status completed and
	// attaches the user id, but only if the current status matches want and
	// the checkout has not expired. Returns ErrNotFound when no row
	// qualifies, which is how a lost double-registration race surfaces.
	Consume(ctx context.Context, token, want, userID string) error
}

// TierRepository reads membership tier reference data.
type TierRepository interface {
	GetByName(ctx context.Context, name string) (*entity.MembershipTier, error)
	List(ctx context.Context) ([]entity.MembershipTier, error)
}
