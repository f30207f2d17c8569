package repository

import (
	"context"

	"github.com/promptash/promptash/internal/domain/entity"
)

// UserRepository defines user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	// Delete removes a user row. Used only as the compensating action when
	// checkout finalization fails after account creation.
	Delete(ctx context.Context, id string) error

	ReplaceRecoveryCodes(ctx context.Context, userID string, codeHashes []string) error
	ListUnusedRecoveryCodes(ctx context.Context, userID string) ([]entity.RecoveryCode, error)
	MarkRecoveryCodeUsed(ctx context.Context, id string) error
}
