package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

const defaultPerPage = 20

type PromptRepository struct {
	pool *pgxpool.Pool
}

func NewPromptRepository(pool *pgxpool.Pool) *PromptRepository {
	return &PromptRepository{pool: pool}
}

func (r *PromptRepository) Create(ctx context.Context, p *entity.Prompt) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO prompts (user_id, category_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.UserID, p.CategoryID, p.Title, p.Content)

	return row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PromptRepository) GetByID(ctx context.Context, id string) (*entity.Prompt, error) {
	p := &entity.Prompt{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, category_id, title, content, created_at, updated_at
		FROM prompts WHERE id = $1
	`, id)

	if err := row.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PromptRepository) List(ctx context.Context, userID string, f repository.ListFilter) ([]entity.Prompt, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	q := `
		SELECT id, user_id, category_id, title, content, created_at, updated_at
		FROM prompts
		WHERE user_id = $1`
	args := []any{userID}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		q += ` AND (title ILIKE $2 OR content ILIKE $2)`
	}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		q += ` AND category_id = $` + itoa(len(args))
	}
	args = append(args, perPage, (page-1)*perPage)
	q += ` ORDER BY updated_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPrompts(rows)
}

func (r *PromptRepository) ListAll(ctx context.Context, userID string) ([]entity.Prompt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, category_id, title, content, created_at, updated_at
		FROM prompts WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPrompts(rows)
}

func (r *PromptRepository) ExistsByTitleContent(ctx context.Context, userID, title, content string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM prompts WHERE user_id = $1 AND title = $2 AND content = $3)
	`, userID, title, content).Scan(&exists)
	return exists, err
}

func (r *PromptRepository) Update(ctx context.Context, p *entity.Prompt) error {
	p.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE prompts SET category_id = $1, title = $2, content = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`, p.CategoryID, p.Title, p.Content, p.UpdatedAt, p.ID, p.UserID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PromptRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM prompts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PromptRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM prompts WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func scanPrompts(rows pgx.Rows) ([]entity.Prompt, error) {
	var out []entity.Prompt
	for rows.Next() {
		var p entity.Prompt
		if err := rows.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }

var _ repository.PromptRepository = (*PromptRepository)(nil)
