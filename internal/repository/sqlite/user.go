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

// UserDB implements repository.UserRepository on top of the shared
// connection pool. Obtain one via DB.Users().
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user. The ID (xid) and timestamps are generated
// here and written back into the caller's struct.
//
// A duplicate email or google_id trips the UNIQUE index and comes back
// as apperror.Conflict. This is the only uniqueness check there is — no
// SELECT-then-INSERT — so two concurrent registrations for the same
// email resolve to exactly one winner inside SQLite itself.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, google_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		nullable(user.PasswordHash),
		nullable(user.GoogleID),
		user.Name,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("a user with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email. The email column is COLLATE
// NOCASE, so the lookup is case-insensitive regardless of how the
// caller canonicalized its argument.
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

// GetByGoogleID retrieves a user by their Google subject.
func (db *UserDB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, `WHERE google_id = ?`, googleID)
}

func (db *UserDB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u        model.User
		pwHash   sql.NullString
		googleID sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, google_id, name, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&pwHash,
		&googleID,
		&u.Name,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	u.PasswordHash = pwHash.String
	u.GoogleID = googleID.String
	return &u, nil
}

// UpdatePassword sets a new password hash for the user. Used by the
// reset flow; for an OAuth-only account this is what first gives it a
// password. Returns apperror.ErrNotFound if the user no longer exists.
func (db *UserDB) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking password update for user %s: %w", userID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", userID)
	}

	return nil
}

// Delete removes a user. The foreign key cascade removes any reset
// tokens in the same statement, so a deleted account cannot leave a
// live credential behind. Returns apperror.ErrNotFound if the user was
// already gone.
func (db *UserDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete for user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// nullable maps "" to NULL so optional UNIQUE columns (google_id) don't
// collide on the empty string.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
