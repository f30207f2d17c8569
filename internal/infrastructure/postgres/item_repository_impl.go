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

// ItemRepository backs notes, documents, videos and bookmarks with a single
// table discriminated by kind.
type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) Create(ctx context.Context, it *entity.LibraryItem) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO library_items (user_id, kind, category_id, title, content, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, it.UserID, it.Kind, it.CategoryID, it.Title, it.Content, it.URL)

	return row.Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*entity.LibraryItem, error) {
	it := &entity.LibraryItem{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, kind, category_id, title, content, url, created_at, updated_at
		FROM library_items WHERE id = $1
	`, id)

	if err := row.Scan(&it.ID, &it.UserID, &it.Kind, &it.CategoryID, &it.Title, &it.Content,
		&it.URL, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

func (r *ItemRepository) List(ctx context.Context, userID, kind string, f repository.ListFilter) ([]entity.LibraryItem, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	q := `
		SELECT id, user_id, kind, category_id, title, content, url, created_at, updated_at
		FROM library_items
		WHERE user_id = $1 AND kind = $2`
	args := []any{userID, kind}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		q += ` AND (title ILIKE $3 OR content ILIKE $3)`
	}
	args = append(args, perPage, (page-1)*perPage)
	q += ` ORDER BY updated_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.LibraryItem
	for rows.Next() {
		var it entity.LibraryItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.Kind, &it.CategoryID, &it.Title, &it.Content,
			&it.URL, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ItemRepository) Update(ctx context.Context, it *entity.LibraryItem) error {
	it.UpdatedAt = time.Now()
	res, err := r.pool.Exec(ctx, `
		UPDATE library_items SET category_id = $1, title = $2, content = $3, url = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7
	`, it.CategoryID, it.Title, it.Content, it.URL, it.UpdatedAt, it.ID, it.UserID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM library_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ItemRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM library_items WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

var _ repository.ItemRepository = (*ItemRepository)(nil)
