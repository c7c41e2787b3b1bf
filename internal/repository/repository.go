// Package repository defines the storage interfaces the service layer
// depends on. The sqlite subpackage implements them; tests substitute
// in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/identity-service/internal/model"
)

// UserRepository persists user accounts.
//
// Implementations must enforce uniqueness of email (case-insensitive)
// and of the Google subject atomically — Create under a duplicate must
// fail with apperror.ErrConflict from the store's own constraint, not
// from a racy pre-check. Lookups that find nothing return
// apperror.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// ResetTokenRepository persists password-reset tokens.
//
// Replace atomically deletes any existing tokens for the user and
// inserts the new one, so that after any interleaving of concurrent
// calls at most one live token exists per user and earlier tokens are
// superseded. The token value itself is UNIQUE store-wide.
type ResetTokenRepository interface {
	Replace(ctx context.Context, token *model.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	Delete(ctx context.Context, id string) error
}
