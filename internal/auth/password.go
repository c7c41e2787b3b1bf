// Package auth — password hashing.
//
// bcrypt is deliberately slow; that slowness is the defence against
// offline brute force once a hash leaks. It also generates a random salt
// per call and embeds salt + cost in the output string, so two users with
// the same password store different digests and no separate salt column
// is needed.
//
// Hash format (full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used unless the deployment
// overrides it. Cost 12 is roughly 250ms on current server hardware —
// negligible per login, brutal per guess. The configurable floor is 10;
// anything below that is not safe against modern GPUs.
const (
	DefaultCost = 12
	MinCost     = 10
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct rather than free functions so the cost can be injected:
// production uses DefaultCost, tests use bcrypt's minimum (4) to stay
// fast without changing any logic under test.
type PasswordService struct {
	cost int

	// dummy is a valid digest of random bytes, computed once at
	// construction. Login flows compare against it when there is no real
	// hash to check, so the "no such user" path costs one bcrypt
	// comparison just like the "wrong password" path.
	dummy string
}

// NewPasswordService creates a PasswordService with the given cost.
// Costs below MinCost are raised to DefaultCost.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost < MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return newService(cost)
}

// NewPasswordServiceForTest creates a PasswordService with an arbitrary
// cost, including bcrypt's minimum of 4. Tests only — cost 4 is far too
// weak for real credentials.
func NewPasswordServiceForTest(cost int) *PasswordService {
	s, err := newService(cost)
	if err != nil {
		panic(err) // only reachable with a cost outside bcrypt's range
	}
	return s
}

func newService(cost int) (*PasswordService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("identity-service-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: computing dummy hash: %w", err)
	}
	return &PasswordService{cost: cost, dummy: string(dummy)}, nil
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is self-contained (salt and cost included) and goes straight
// into the password_hash column. bcrypt silently truncates inputs past 72
// bytes, so those are rejected explicitly instead.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on match. A malformed digest reads as a mismatch, never a
// panic — the caller treats both identically anyway.
//
// bcrypt.CompareHashAndPassword is constant-time over the digest, so an
// attacker can't learn hash prefixes from response timing.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// DummyVerify burns one bcrypt comparison against the precomputed dummy
// digest and always reports failure.
//
// Login calls this when the email is unknown or the account has no
// password, so that those paths take the same time as a real mismatch.
// Without it, response timing would reveal which emails are registered.
func (p *PasswordService) DummyVerify(plaintext string) error {
	_ = bcrypt.CompareHashAndPassword([]byte(p.dummy), []byte(plaintext))
	return fmt.Errorf("auth: invalid password")
}
