// Package service — authentication business logic.
//
// AuthService is the orchestrator for every auth flow. It sits between
// the HTTP handlers and the repositories/auth utilities:
//
//	handlers (HTTP) → AuthService (flow rules) → repositories (DB)
//	               ↘ TokenService / PasswordService / IdentityResolver
//
// It is stateless between calls: all state lives in the user and
// reset-token rows, so concurrent flows — even for the same user —
// coordinate only through the store's constraints.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/sakif/identity-service/internal/apperror"
	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/model"
	"github.com/sakif/identity-service/internal/notify"
	"github.com/sakif/identity-service/internal/repository"
)

// resetTokenTTL is how long a password reset link stays usable.
const resetTokenTTL = time.Hour

// AuthService handles register, login, OAuth, and password-reset flows.
//
// now is the clock used for reset-token expiry decisions. Production
// wiring passes time.Now; tests pass a fixed or movable clock so the
// "valid at T+59min, dead at T+61min" behavior can be tested without
// sleeping.
type AuthService struct {
	users       repository.UserRepository
	resetTokens repository.ResetTokenRepository
	resolver    *IdentityResolver
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	notifier    notify.ResetNotifier
	frontendURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// frontendURL is the base for the reset links handed to the notifier.
func NewAuthService(
	users repository.UserRepository,
	resetTokens repository.ResetTokenRepository,
	resolver *IdentityResolver,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	notifier notify.ResetNotifier,
	frontendURL string,
	now func() time.Time,
	logger *slog.Logger,
) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:       users,
		resetTokens: resetTokens,
		resolver:    resolver,
		tokens:      tokens,
		passwords:   passwords,
		notifier:    notifier,
		frontendURL: frontendURL,
		now:         now,
		logger:      logger,
	}
}

// AuthResult is returned by every operation that authenticates someone:
// the user record plus the session token the handler hands out.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new password-based account and logs it in.
//
// There is no existence pre-check: the INSERT races against concurrent
// registrations on the store's UNIQUE email constraint, and the loser
// gets apperror.Conflict. A pre-check would only add a window in which
// both callers see "free" and one then fails with something worse.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = CanonicalEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password is not usable")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("email already registered")
		}
		s.logger.Error("register: creating user failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.startSession(user)
}

// Login authenticates an email+password pair and issues a session token.
//
// All failure paths return the identical apperror.Unauthorized value,
// and all of them pay one bcrypt comparison: an unknown email or an
// OAuth-only account burns the dummy hash so response timing doesn't
// reveal which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = CanonicalEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.DummyVerify(password)
			return nil, apperror.Unauthorized()
		}
		s.logger.Error("login: looking up user failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(err)
	}

	if !user.HasPassword() {
		// OAuth-only account. Same answer, same cost.
		_ = s.passwords.DummyVerify(password)
		return nil, apperror.Unauthorized()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized()
	}

	return s.startSession(user)
}

// OAuthLogin authenticates a verified Google profile: resolve it to a
// user (creating one on first login) and issue a session token. An
// identity conflict propagates unchanged so the handler can tell the
// user to log in with their password instead.
func (s *AuthService) OAuthLogin(ctx context.Context, profile *auth.GoogleUser) (*AuthResult, error) {
	user, err := s.resolver.ResolveExternalLogin(ctx, profile)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("oauth login: resolving identity failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(err)
	}

	return s.startSession(user)
}

// ForgotPassword starts the reset flow for the given email.
//
// Whether or not the email is registered, the caller sees nil — a
// distinguishable answer would turn this endpoint into an account
// enumeration oracle. When the user exists, any previous token is
// superseded atomically (Replace), so at most one live token exists per
// user at any time.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = CanonicalEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("forgot password: looking up user failed", slog.String("error", err.Error()))
		return apperror.Unavailable(err)
	}

	value, err := auth.NewResetToken()
	if err != nil {
		return apperror.Unavailable(err)
	}

	token := &model.PasswordResetToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: s.now().Add(resetTokenTTL),
	}
	if err := s.resetTokens.Replace(ctx, token); err != nil {
		s.logger.Error("forgot password: storing reset token failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable(err)
	}

	resetURL := s.frontendURL + "/reset-password?token=" + url.QueryEscape(value)
	if err := s.notifier.SendPasswordReset(ctx, user.Email, resetURL, token.ExpiresAt); err != nil {
		s.logger.Error("forgot password: notifying failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable(err)
	}

	return nil
}

// ResetPassword consumes a reset token and sets a new password.
//
// Single use is enforced by deletion: the token row is deleted on
// success, so replaying the same token — even a concurrent retry that
// raced the first attempt — finds nothing and fails. An expired token
// found during lookup is deleted opportunistically before the failure
// is returned.
func (s *AuthService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if newPassword == "" {
		return apperror.ValidationFailed("newPassword", "new password is required")
	}

	token, err := s.resetTokens.GetByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.InvalidToken()
		}
		s.logger.Error("reset password: token lookup failed", slog.String("error", err.Error()))
		return apperror.Unavailable(err)
	}

	if token.Expired(s.now()) {
		if err := s.resetTokens.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("reset password: deleting expired token failed",
				slog.String("error", err.Error()),
			)
		}
		return apperror.InvalidToken()
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("newPassword", "password is not usable")
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, hash); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// The account vanished between token creation and reset.
			// Don't leave the orphaned token behind.
			if delErr := s.resetTokens.Delete(ctx, token.ID); delErr != nil {
				s.logger.Warn("reset password: deleting orphaned token failed",
					slog.String("error", delErr.Error()),
				)
			}
			return apperror.NotFound("user", token.UserID)
		}
		s.logger.Error("reset password: updating password failed",
			slog.String("userID", token.UserID),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable(err)
	}

	if err := s.resetTokens.Delete(ctx, token.ID); err != nil {
		s.logger.Error("reset password: deleting consumed token failed",
			slog.String("userID", token.UserID),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable(err)
	}

	s.logger.Info("password reset completed", slog.String("userID", token.UserID))
	return nil
}

// VerifySession validates a session token string and returns its claims.
// Any defect — bad signature, expiry, malformed structure — reads as
// Unauthorized; no partial payload is ever returned.
func (s *AuthService) VerifySession(tokenStr string) (auth.SessionClaims, error) {
	claims, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return auth.SessionClaims{}, apperror.Unauthorized()
	}
	return claims, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// profile endpoint after the middleware has validated the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Unavailable(err)
	}

	return user, nil
}

// DeleteAccount removes the user and, via the store's cascade, any of
// their reset tokens. Deleting an already-deleted account returns
// NotFound.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("user", userID)
		}
		s.logger.Error("delete account failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable(err)
	}

	s.logger.Info("account deleted", slog.String("userID", userID))
	return nil
}

// startSession issues a session token for an authenticated user.
func (s *AuthService) startSession(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Email, user.Name)
	if err != nil {
		s.logger.Error("issuing session token failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable(err)
	}

	return &AuthResult{User: user, Token: token}, nil
}
