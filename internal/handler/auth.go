package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/identity-service/internal/apperror"
	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/service"
)

// AuthHandler exposes the auth flows over HTTP.
//
//	POST  /auth/register         — create account, returns token + user
//	POST  /auth/login            — password login
//	GET   /auth/google           — redirect to Google consent screen
//	GET   /auth/google/callback  — complete the code flow, set cookie
//	POST  /auth/google/token     — login with a Google-issued ID token
//	POST  /auth/logout           — clear the session cookie
//	POST  /auth/forgot-password  — start the reset flow (always 200)
//	PATCH /auth/reset-password   — consume a reset token
//
// Handlers validate input shape, call AuthService, and map the result;
// no flow rules live here.
type AuthHandler struct {
	svc         *service.AuthService
	google      *auth.GoogleProvider // nil when Google sign-in is not configured
	frontendURL string
	cookieTTL   int // seconds; matches the session token TTL
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil; the server
// only registers the Google routes when the provider is configured.
func NewAuthHandler(svc *service.AuthService, google *auth.GoogleProvider, frontendURL string, cookieTTL int, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		google:      google,
		frontendURL: frontendURL,
		cookieTTL:   cookieTTL,
		logger:      logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type idTokenRequest struct {
	IDToken string `json:"idToken"`
}

// authResponse mirrors the shape the frontend expects from every
// authenticating endpoint.
type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toAuthResponse(result *service.AuthResult) authResponse {
	return authResponse{
		AccessToken: result.Token,
		User: userResponse{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
		},
	}
}

// HandleRegister creates a new account.
//
// HTTP: POST /auth/register → 201
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := validateEmail(req.Email); err != nil {
		writeError(w, err)
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Register(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// HandleLogin authenticates an email+password pair.
//
// HTTP: POST /auth/login → 200
//
// Malformed bodies still get a 400, but any credential problem is the
// same 401 with the same body — the handler must not undo the
// service layer's indistinguishability guarantee.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// HandleGoogleLogin redirects the browser to Google's consent screen.
//
// HTTP: GET /auth/google
//
// The random state value goes into a short-lived HttpOnly cookie; the
// callback checks it to make sure the flow started here (CSRF).
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

// HandleGoogleCallback completes the OAuth code flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// On success the session token is set as an HttpOnly cookie and the
// browser is redirected to the frontend. An identity conflict redirects
// with error=conflict so the frontend can tell the user to log in with
// their password.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// State cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendURL+"/login?error=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.svc.OAuthLogin(r.Context(), profile)
	if err != nil {
		if errorsIsConflict(err) {
			http.Redirect(w, r, h.frontendURL+"/login?error=conflict", http.StatusSeeOther)
			return
		}
		h.logger.Error("google callback: login failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

// HandleGoogleToken authenticates with a Google-issued ID token, for
// clients that ran Google Sign-In themselves (mobile, one-tap).
//
// HTTP: POST /auth/google/token → 200
func (h *AuthHandler) HandleGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, apperror.ValidationFailed("idToken", "idToken is required"))
		return
	}

	profile, err := h.google.VerifyIDToken(r.Context(), req.IDToken)
	if err != nil {
		h.logger.Warn("google token login: invalid ID token", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized())
		return
	}

	result, err := h.svc.OAuthLogin(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout → 204
//
// Session tokens are stateless, so there is nothing server-side to
// revoke; the token stays technically valid until it expires. If real
// revocation is ever needed, TokenService would grow a revocation set
// consulted during validation.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
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

// HandleForgotPassword starts the password reset flow.
//
// HTTP: POST /auth/forgot-password → 200, always
//
// The response is identical whether or not the email is registered.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if err := validateEmail(req.Email); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account with that email exists, a password reset link has been sent.",
	})
}

// HandleResetPassword consumes a reset token and sets the new password.
//
// HTTP: PATCH /auth/reset-password → 200
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Token == "" {
		writeError(w, apperror.ValidationFailed("token", "token is required"))
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password has been successfully reset.",
	})
}

// setSessionCookie stores the session token as an HttpOnly cookie so
// browser clients carry it automatically. API clients can ignore the
// cookie and send the token from the response body as a bearer header.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieTTL,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // behind HTTPS in production
	})
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return apperror.ValidationFailed("email", "email is not valid")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apperror.ValidationFailed("password", "password must be at least 8 characters")
	}
	return nil
}

func errorsIsConflict(err error) bool {
	return errors.Is(err, apperror.ErrConflict)
}
