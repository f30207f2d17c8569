package repository

import (
	"context"

	"github.com/promptash/promptash/internal/domain/entity"
)

// ListFilter narrows listing queries. Zero values mean "no filter".
type ListFilter struct {
	Search     string
	CategoryID string
	Page       int
	PerPage    int
}

// PromptRepository persists prompts.
type PromptRepository interface {
	Create(ctx context.Context, p *entity.Prompt) error
	GetByID(ctx context.Context, id string) (*entity.Prompt, error)
	List(ctx context.Context, userID string, f ListFilter) ([]entity.Prompt, error)
	ListAll(ctx context.Context, userID string) ([]entity.Prompt, error)
	// ExistsByTitleContent reports whether the user already owns a prompt
	// with this exact title+content pair (backup import duplicate check).
	ExistsByTitleContent(ctx context.Context, userID, title, content string) (bool, error)
	Update(ctx context.Context, p *entity.Prompt) error
	Delete(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// CategoryRepository persists prompt categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *entity.Category) error
	GetByID(ctx context.Context, id string) (*entity.Category, error)
	GetByName(ctx context.Context, userID, name string) (*entity.Category, error)
	List(ctx context.Context, userID string) ([]entity.Category, error)
	Update(ctx context.Context, c *entity.Category) error
	Delete(ctx context.Context, userID, id string) error
}

// ItemRepository persists notes, documents, videos and bookmarks.
type ItemRepository interface {
	Create(ctx context.Context, it *entity.LibraryItem) error
	GetByID(ctx context.Context, id string) (*entity.LibraryItem, error)
	List(ctx context.Context, userID, kind string, f ListFilter) ([]entity.LibraryItem, error)
	Update(ctx context.Context, it *entity.LibraryItem) error
	Delete(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// ShareRepository manages the many-to-many sharing relation. Unsharing
// removes the relation without touching the owned item.
type ShareRepository interface {
	Create(ctx context.Context, s *entity.Share) error
	Delete(ctx context.Context, ownerID, itemKind, itemID string, sharedWith *string) error
	ListForItem(ctx context.Context, itemKind, itemID string) ([]entity.Share, error)
	// ListSharedWith returns items of the kind shared with the user,
	// including "all users" shares.
	ListSharedWith(ctx context.Context, userID, itemKind string) ([]entity.Share, error)
}

// AuditRepository stores security events.
type AuditRepository interface {
	Insert(ctx context.Context, e *entity.SecurityEvent) error
	List(ctx context.Context, limit int) ([]entity.SecurityEvent, error)
}
