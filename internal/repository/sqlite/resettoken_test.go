package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/identity-service/internal/apperror"
	"github.com/sakif/identity-service/internal/model"
)

func newResetToken(userID, value string) *model.PasswordResetToken {
	return &model.PasswordResetToken{
		UserID:    userID,
		Token:     value,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// countTokens counts reset-token rows for a user, bypassing the
// repository API.
func countTokens(t *testing.T, db *DB, userID string) int {
	t.Helper()
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM password_reset_tokens WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		t.Fatalf("counting tokens: %v", err)
	}
	return n
}

func TestResetTokenReplace(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "reset@example.com")
	r := db.ResetTokens()

	token := newResetToken(user.ID, "token-value-1")
	if err := r.Replace(context.Background(), token); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if token.ID == "" {
		t.Error("Replace() did not set token.ID")
	}

	got, err := r.GetByToken(context.Background(), "token-value-1")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, user.ID)
	}
}

func TestResetTokenReplace_SupersedesPrevious(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "supersede@example.com")
	r := db.ResetTokens()

	if err := r.Replace(context.Background(), newResetToken(user.ID, "old-token")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := r.Replace(context.Background(), newResetToken(user.ID, "new-token")); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}

	// Exactly one live token per user, and it's the newer one.
	if n := countTokens(t, db, user.ID); n != 1 {
		t.Fatalf("token count = %d, want 1", n)
	}
	if _, err := r.GetByToken(context.Background(), "old-token"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken(old) error = %v, want ErrNotFound — superseded token must be dead", err)
	}
	if _, err := r.GetByToken(context.Background(), "new-token"); err != nil {
		t.Errorf("GetByToken(new) error = %v", err)
	}
}

func TestResetTokenReplace_ValueCollision(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db.Users(), "alice-collide@example.com")
	bob := createTestUser(t, db.Users(), "bob-collide@example.com")
	r := db.ResetTokens()

	if err := r.Replace(context.Background(), newResetToken(alice.ID, "same-value")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	// Same token value for a different user trips the UNIQUE index.
	err := r.Replace(context.Background(), newResetToken(bob.ID, "same-value"))
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Replace() error = %v, want ErrConflict for token collision", err)
	}
}

func TestResetTokenGetByToken_NotFound(t *testing.T) {
	db := newTestDB(t)
	r := db.ResetTokens()

	_, err := r.GetByToken(context.Background(), "never-issued")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken() error = %v, want ErrNotFound", err)
	}
}

func TestResetTokenDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "tokendelete@example.com")
	r := db.ResetTokens()

	token := newResetToken(user.ID, "delete-me")
	if err := r.Replace(context.Background(), token); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if err := r.Delete(context.Background(), token.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := r.GetByToken(context.Background(), "delete-me"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting a token that is already gone is not an error — the reset
	// flow may race its own retry.
	if err := r.Delete(context.Background(), token.ID); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestResetTokens_CascadeOnUserDelete(t *testing.T) {
	db := newTestDB(t)
	users := db.Users()
	user := createTestUser(t, users, "cascade@example.com")
	r := db.ResetTokens()

	if err := r.Replace(context.Background(), newResetToken(user.ID, "cascade-token")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if err := users.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The FK cascade must not leave a live credential for a dead account.
	if _, err := r.GetByToken(context.Background(), "cascade-token"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByToken() after user delete error = %v, want ErrNotFound", err)
	}
}
