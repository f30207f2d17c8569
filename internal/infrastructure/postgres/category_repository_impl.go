package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

type CategoryRepository struct {
	pool *pgxpool.Pool
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

func (r *CategoryRepository) Create(ctx context.Context, c *entity.Category) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO categories (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Name, c.Description)

	return row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*entity.Category, error) {
	return r.get(ctx, `SELECT id, user_id, name, description, created_at, updated_at FROM categories WHERE id = $1`, id)
}

func (r *CategoryRepository) GetByName(ctx context.Context, userID, name string) (*entity.Category, error) {
	return r.get(ctx, `SELECT id, user_id, name, description, created_at, updated_at FROM categories WHERE user_id = $1 AND name = $2`, userID, name)
}

func (r *CategoryRepository) get(ctx context.Context, q string, args ...any) (*entity.Category, error) {
	c := &entity.Category{}
	row := r.pool.QueryRow(ctx, q, args...)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CategoryRepository) List(ctx context.Context, userID string) ([]entity.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM categories WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, c *entity.Category) error {
	c.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE categories SET name = $1, description = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`, c.Name, c.Description, c.UpdatedAt, c.ID, c.UserID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete detaches prompts first so a category removal never cascades into
// content loss.
func (r *CategoryRepository) Delete(ctx context.Context, userID, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE prompts SET category_id = NULL WHERE category_id = $1 AND user_id = $2
	`, id, userID); err != nil {
		return err
	}
	res, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)
