package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type means no other package can read or shadow
// the identity we store in the request context.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It accepts the session token from either an "Authorization: Bearer"
// header (API clients) or the "token" HttpOnly cookie (browser flows),
// validates it, and stores the SessionClaims in the request context. A
// missing or invalid token ends the request with 401 before the handler
// runs.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated identity from the
// request context. ok is false on anonymous requests.
func IdentityFromContext(ctx context.Context) (SessionClaims, bool) {
	id, ok := ctx.Value(identityKey).(SessionClaims)
	return id, ok && id.UserID != ""
}

// extractIdentity reads the session token from the request and validates
// it. The bearer header wins over the cookie when both are present.
func extractIdentity(r *http.Request, tokens *TokenService) (SessionClaims, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tokens.Validate(tok)
		}
	}

	cookie, err := r.Cookie("token")
	if err != nil {
		return SessionClaims{}, err
	}
	return tokens.Validate(cookie.Value)
}
