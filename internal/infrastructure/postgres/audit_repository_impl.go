package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, e *entity.SecurityEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO security_events (event, user_id, ip, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.Event, e.UserID, e.IP, details)

	return row.Scan(&e.ID, &e.CreatedAt)
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]entity.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event, user_id, ip, details, created_at
		FROM security_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.SecurityEvent
	for rows.Next() {
		var e entity.SecurityEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.Event, &e.UserID, &e.IP, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
