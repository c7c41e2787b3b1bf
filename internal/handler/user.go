package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/service"
)

// UserHandler serves the account-management endpoints. Both routes sit
// behind auth.RequireAuth, so the identity in the context is always the
// caller's own — there is no way to read or delete someone else's
// account through these handlers.
type UserHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleProfile returns the authenticated user's profile.
//
// HTTP: GET /user/profile → 200
//
// The token's claims are a login-time snapshot; the profile is read
// from the store so a password reset or deletion since then is
// reflected.
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't trust route wiring.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
}

// HandleDeleteAccount deletes the authenticated user's account.
//
// HTTP: DELETE /user/account → 204
//
// Reset tokens go with it (store cascade). The session token remains
// valid until expiry, but every authenticated endpoint re-reads the
// user and will answer 404 from here on.
func (h *UserHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), id.UserID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("account deleted via API", slog.String("userID", id.UserID))

	// Clear the now-useless session cookie along with the account.
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
