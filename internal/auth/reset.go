package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// resetTokenBytes is the entropy of a password reset token. 32 bytes is
// 256 bits — far past the point where guessing is feasible, and the hex
// encoding (64 chars) still fits comfortably in a URL query parameter.
const resetTokenBytes = 32

// NewResetToken mints an opaque single-use token for the password reset
// flow. Unlike session tokens it carries no structure and proves nothing
// by itself — its only power is matching a stored row that hasn't
// expired.
//
// crypto/rand, not math/rand: this is a credential. xid would not do
// either — its values embed a timestamp and machine ID and carry only
// 80 bits of randomness.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
