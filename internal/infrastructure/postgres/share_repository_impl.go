package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

type ShareRepository struct {
	pool *pgxpool.Pool
}

func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

// Create inserts the relation; re-sharing an already shared item is a no-op.
func (r *ShareRepository) Create(ctx context.Context, s *entity.Share) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shares (item_kind, item_id, owner_id, shared_with)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, s.ItemKind, s.ItemID, s.OwnerID, s.SharedWith)
	return err
}

func (r *ShareRepository) Delete(ctx context.Context, ownerID, itemKind, itemID string, sharedWith *string) error {
	var err error
	if sharedWith == nil {
		_, err = r.pool.Exec(ctx, `
			DELETE FROM shares WHERE owner_id = $1 AND item_kind = $2 AND item_id = $3 AND shared_with IS NULL
		`, ownerID, itemKind, itemID)
	} else {
		_, err = r.pool.Exec(ctx, `
			DELETE FROM shares WHERE owner_id = $1 AND item_kind = $2 AND item_id = $3 AND shared_with = $4
		`, ownerID, itemKind, itemID, *sharedWith)
	}
	return err
}

func (r *ShareRepository) ListForItem(ctx context.Context, itemKind, itemID string) ([]entity.Share, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_kind, item_id, owner_id, shared_with, created_at
		FROM shares WHERE item_kind = $1 AND item_id = $2
	`, itemKind, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShares(rows)
}

func (r *ShareRepository) ListSharedWith(ctx context.Context, userID, itemKind string) ([]entity.Share, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_kind, item_id, owner_id, shared_with, created_at
		FROM shares
		WHERE item_kind = $1 AND (shared_with = $2 OR shared_with IS NULL) AND owner_id <> $2
	`, itemKind, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShares(rows)
}

func scanShares(rows pgx.Rows) ([]entity.Share, error) {
	var out []entity.Share
	for rows.Next() {
		var s entity.Share
		if err := rows.Scan(&s.ID, &s.ItemKind, &s.ItemID, &s.OwnerID, &s.SharedWith, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ repository.ShareRepository = (*ShareRepository)(nil)
