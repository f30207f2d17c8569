package entity

import "time"

// Library item kinds. Prompts live in their own table (they carry category
// references and are searchable/exportable); the remaining kinds share the
// library_items table with a kind discriminator.
const (
	KindPrompt   = "prompt"
	KindNote     = "note"
	KindDocument = "document"
	KindVideo    = "video"
	KindBookmark = "bookmark"
)

// Category groups prompts. Owned by a user.
type Category struct {
	ID          string
	UserID      string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Prompt is the core content entity: owned by exactly one user, optionally
// categorized, optionally shared.
type Prompt struct {
	ID         string
	UserID     string
	CategoryID *string
	Title      string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LibraryItem covers notes, documents, videos and bookmarks.
// URL holds the stored file location for documents and the target for
// videos/bookmarks; Content holds note/description text.
type LibraryItem struct {
	ID         string
	UserID     string
	Kind       string
	CategoryID *string
	Title      string
	Content    string
	URL        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Share links an owned item to another user, or to all users when
// SharedWith is nil. Removing a share never deletes the item.
type Share struct {
	ID         string
	ItemKind   string
	ItemID     string
	OwnerID    string
	SharedWith *string // nil means shared with all users
	CreatedAt  time.Time
}
