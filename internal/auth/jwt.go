// Package auth provides the credential primitives for the identity service:
// JWT session tokens, bcrypt password hashing, opaque reset tokens, and the
// Google OAuth provider.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A user registers or logs in (password or Google) → the service layer
//     asks TokenService for a signed session token
//  2. The handler returns the token in the response body and/or an
//     HttpOnly cookie
//  3. On subsequent API calls, middleware validates the token and puts the
//     identity in the request context — no DB lookup needed, the signature
//     and the secret are the whole trust chain
//
// TokenService is the only place in the codebase that mints or verifies
// signed session payloads. Keeping that in one type keeps the trust
// boundary in one place.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "identity-service"

// DefaultSessionTTL is how long a session token stays valid unless the
// deployment overrides it (JWT_TTL). One hour matches the cookie expiry
// the frontend expects.
const DefaultSessionTTL = time.Hour

// SessionClaims is what a verified session token proves: who the subject
// is, plus the email and display name snapshot taken at login time.
type SessionClaims struct {
	UserID string
	Email  string
	Name   string
}

// claims is the wire-format JWT payload. Email and name ride alongside
// the registered claims; the user ID goes in "sub".
type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenService creates and validates signed session tokens.
//
// It holds the HMAC secret and the session TTL. Both are fixed at
// construction and read-only afterwards, so the service is safe for
// concurrent use without locking.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime. The secret should be at least 32 bytes of random data in
// production (e.g. JWT_SECRET=$(openssl rand -hex 32)); anything shorter
// than 16 characters is rejected outright. A non-positive ttl falls back
// to DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Generate creates and signs a session token for the given user.
//
// Signing algorithm is HS256 (HMAC-SHA256) — symmetric, same key signs
// and verifies. Fine for a single service owning both ends.
func (s *TokenService) Generate(userID, email, name string) (string, error) {
	now := time.Now()

	c := claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to mint already-short-lived tokens without waiting.
func (s *TokenService) GenerateWithDuration(userID, email, name string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token string.
//
// This fails closed: a bad signature, the wrong algorithm, the wrong
// issuer, a missing or passed expiry, or any structural problem all come
// back as an error, and no part of the payload is trusted in that case.
//
// Pinning the algorithm with jwt.WithValidMethods matters — without it an
// attacker can attempt an algorithm-confusion downgrade (e.g. "none").
func (s *TokenService) Validate(tokenStr string) (SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, fmt.Errorf("auth: token expired")
		}
		return SessionClaims{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return SessionClaims{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return SessionClaims{}, fmt.Errorf("auth: token has no subject")
	}

	return SessionClaims{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   c.Name,
	}, nil
}

// TTL returns the configured session lifetime. Handlers use it to set the
// cookie Max-Age to the same window as the token itself.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
