// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents one account, regardless of how it authenticates.
//
// A user created via email+password has PasswordHash set and GoogleID
// empty. A user created via Google sign-in has GoogleID set (Google's
// stable "sub" claim) and no password until they complete a password
// reset. Both columns are UNIQUE in the database, and email is the
// anchor: no two accounts may share an email, ever — linking a Google
// identity onto an existing password account is an explicit action we
// refuse to perform automatically (see service.IdentityResolver).
//
// PasswordHash and GoogleID are plain strings with "" meaning absent.
// The sqlite repository maps "" to NULL so the UNIQUE index on
// google_id doesn't collide on empty values.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"` // stored lower-cased
	PasswordHash string    `json:"-"`     // bcrypt digest; never serialized
	GoogleID     string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can be logged into with a
// password at all. OAuth-only accounts return false.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// PasswordResetToken is a single-use grant to set a new password.
//
// Single use is enforced by deletion: a successful reset deletes the
// row, so a replayed token simply isn't found. There is no "consumed"
// flag to get out of sync. The row is also deleted when a lookup finds
// it expired, and cascades away when its user is deleted.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string // 32 random bytes, hex-encoded
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given
// instant. Expiry is a pure comparison — nothing schedules deletions.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
