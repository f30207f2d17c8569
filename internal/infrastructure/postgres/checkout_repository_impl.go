package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

type CheckoutRepository struct {
	pool *pgxpool.Pool
}

func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

func (r *CheckoutRepository) Create(ctx context.Context, c *entity.PendingCheckout) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pending_checkouts (token, plan_name, billing_cycle, trial, status, amount_cents, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, c.Token, c.PlanName, c.BillingCycle, c.Trial, c.Status, c.AmountCents, c.ExpiresAt)

	return row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CheckoutRepository) GetByToken(ctx context.Context, token string) (*entity.PendingCheckout, error) {
	c := &entity.PendingCheckout{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, token, plan_name, billing_cycle, trial, status, amount_cents, user_id, expires_at, created_at, updated_at
		FROM pending_checkouts
		WHERE token = $1
	`, token)

	if err := row.Scan(&c.ID, &c.Token, &c.PlanName, &c.BillingCycle, &c.Trial, &c.Status,
		&c.AmountCents, &c.UserID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CheckoutRepository) UpdateStatus(ctx context.Context, token, status string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE pending_checkouts SET status = $1, updated_at = now()
		WHERE token = $2 AND status <> $3
	`, status, token, entity.CheckoutCompleted)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Consume is the single write that guards registration against a
// double-submission race: the status and expiry checks ride in the WHERE
// clause, so at most one caller per token ever sees a row update.
func (r *CheckoutRepository) Consume(ctx context.Context, token, want, userID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE pending_checkouts
		SET status = $1, user_id = $2, updated_at = now()
		WHERE token = $3 AND status = $4 AND expires_at > now()
	`, entity.CheckoutCompleted, userID, token, want)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ repository.CheckoutRepository = (*CheckoutRepository)(nil)

type TierRepository struct {
	pool *pgxpool.Pool
}

func NewTierRepository(pool *pgxpool.Pool) *TierRepository {
	return &TierRepository{pool: pool}
}

func (r *TierRepository) GetByName(ctx context.Context, name string) (*entity.MembershipTier, error) {
	t := &entity.MembershipTier{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, display_name, monthly_cents, annual_cents, item_limit, created_at, updated_at
		FROM membership_tiers
		WHERE name = $1
	`, name)

	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.MonthlyCents, &t.AnnualCents,
		&t.ItemLimit, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TierRepository) List(ctx context.Context) ([]entity.MembershipTier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, display_name, monthly_cents, annual_cents, item_limit, created_at, updated_at
		FROM membership_tiers
		ORDER BY monthly_cents
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.MembershipTier
	for rows.Next() {
		var t entity.MembershipTier
		if err := rows.Scan(&t.ID, &t.Name, &t.DisplayName, &t.MonthlyCents, &t.AnnualCents,
			&t.ItemLimit, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ repository.TierRepository = (*TierRepository)(nil)
