package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/identity-service/internal/apperror"
	"github.com/sakif/identity-service/internal/model"
	"github.com/sakif/identity-service/internal/repository"
)

// ResetTokenDB implements repository.ResetTokenRepository on top of the
// shared connection pool. Obtain one via DB.ResetTokens().
type ResetTokenDB struct {
	conn *sql.DB
}

// compile-time check that *ResetTokenDB implements repository.ResetTokenRepository
var _ repository.ResetTokenRepository = (*ResetTokenDB)(nil)

// Replace deletes any existing reset tokens for the token's user and
// inserts the new one, all inside one transaction.
//
// The transaction is the point: two concurrent ForgotPassword calls for
// the same user serialize here, and whichever commits last owns the one
// surviving row. A reset attempted with the superseded token then fails
// its lookup. Without the transaction, an interleaving could leave two
// live tokens — exactly the ambiguity the flow must rule out.
//
// A token-value collision (crypto/rand producing a duplicate, or a bug
// upstream) trips the UNIQUE index and returns apperror.Conflict so the
// caller can retry with a fresh value.
func (db *ResetTokenDB) Replace(ctx context.Context, token *model.PasswordResetToken) error {
	token.ID = xid.New().String()
	token.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning reset token tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = ?`, token.UserID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting old reset tokens for user %s: %w", token.UserID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("reset token value collision")
		}
		return fmt.Errorf("sqlite: inserting reset token for user %s: %w", token.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing reset token tx: %w", err)
	}

	return nil
}

// GetByToken looks up a reset token by its opaque value. Expiry is not
// checked here — the service compares against its own clock so the
// check stays testable.
func (db *ResetTokenDB) GetByToken(ctx context.Context, tokenValue string) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at
		 FROM password_reset_tokens WHERE token = ?`,
		tokenValue,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// The token value is a secret; don't echo it back in the error.
			return nil, apperror.NotFound("reset token", "provided")
		}
		return nil, fmt.Errorf("sqlite: getting reset token: %w", err)
	}

	return &t, nil
}

// Delete removes a reset token by row ID. Deleting an already-deleted
// token is not an error: the reset flow deletes on success and on
// detected expiry, and either may race a concurrent reset.
func (db *ResetTokenDB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("sqlite: deleting reset token %s: %w", id, err)
	}
	return nil
}
