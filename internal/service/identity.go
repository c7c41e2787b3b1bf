package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/identity-service/internal/apperror"
	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/model"
	"github.com/sakif/identity-service/internal/repository"
)

// IdentityResolver guarantees a 1:1 mapping between a human and a User
// record regardless of how they log in.
//
// The hard rule it enforces: a Google login whose email already belongs
// to a local account is a conflict, not a merge. Google asserts "this
// person controls this mailbox right now"; it does not prove they own
// the existing local account. Silently attaching the Google identity
// (or logging them into the local account) would hand the account to
// whoever controls the mailbox at Google — so the user is told to log
// in traditionally instead, and linking stays a deliberate action.
type IdentityResolver struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver.
func NewIdentityResolver(users repository.UserRepository, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, logger: logger}
}

// ResolveExternalLogin maps a verified Google profile to a User record.
//
//  1. A user already linked to this Google subject → return it
//     (repeat logins are idempotent).
//  2. Otherwise, a user with this email exists → apperror.Conflict; the
//     existing account is left untouched.
//  3. Otherwise, create a new passwordless user from the profile.
//
// The create in step 3 can still lose a race against a concurrent
// registration for the same email; the store's UNIQUE constraint
// surfaces that as the same Conflict.
func (r *IdentityResolver) ResolveExternalLogin(ctx context.Context, profile *auth.GoogleUser) (*model.User, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/identity: profile must not be nil")
	}

	email := CanonicalEmail(profile.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "external profile has no email")
	}

	user, err := r.users.GetByGoogleID(ctx, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up google subject: %w", err)
	}

	_, err = r.users.GetByEmail(ctx, email)
	if err == nil {
		r.logger.Warn("google login conflicts with existing account",
			slog.String("email", email),
		)
		return nil, apperror.Conflict(
			"a user with this email already exists; please log in traditionally or link your Google account",
		)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up email: %w", err)
	}

	user = &model.User{
		Email:    email,
		GoogleID: profile.Subject,
		Name:     profile.Name,
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race against a concurrent registration.
			return nil, apperror.Conflict(
				"a user with this email already exists; please log in traditionally or link your Google account",
			)
		}
		return nil, fmt.Errorf("service/identity: creating user from google profile: %w", err)
	}

	r.logger.Info("user created from google profile",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// CanonicalEmail returns the canonical store form of an email address:
// trimmed and lower-cased. Every path that reads or writes the email
// column goes through this, and the column's COLLATE NOCASE backstops
// anything that doesn't.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
