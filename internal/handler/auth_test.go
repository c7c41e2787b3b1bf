package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/handler"
	"github.com/sakif/identity-service/internal/repository/sqlite"
	"github.com/sakif/identity-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CapturingNotifier records reset emails instead of sending them, so the
// tests can fish the token out of the link like a user would.
type CapturingNotifier struct {
	Email    string
	ResetURL string
	Calls    int
}

func (n *CapturingNotifier) SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error {
	n.Email = email
	n.ResetURL = resetURL
	n.Calls++
	return nil
}

// testApp wires real handlers over an in-memory store, the same shape
// the server composes in production minus Google and the HTTP listener.
type testApp struct {
	auth     *handler.AuthHandler
	user     *handler.UserHandler
	svc      *service.AuthService
	tokens   *auth.TokenService
	notifier *CapturingNotifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-32-bytes!!!!", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)
	notifier := &CapturingNotifier{}

	svc := service.NewAuthService(
		db.Users(),
		db.ResetTokens(),
		service.NewIdentityResolver(db.Users(), logger),
		tokens,
		passwords,
		notifier,
		"http://localhost:3000",
		nil,
		logger,
	)

	return &testApp{
		auth:     handler.NewAuthHandler(svc, nil, "http://localhost:3000", 3600, logger),
		user:     handler.NewUserHandler(svc, logger),
		svc:      svc,
		tokens:   tokens,
		notifier: notifier,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// register creates an account through the handler and returns the response.
func (app *testApp) register(t *testing.T, email, password, name string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `","name":"` + name + `"}`
	return postJSON(t, app.auth.HandleRegister, "/auth/register", body)
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("creates account and issues session", func(t *testing.T) {
		app := newTestApp(t)

		rr := app.register(t, "alice@example.com", "password123", "Alice")
		assert.Equal(t, http.StatusCreated, rr.Code)

		var res struct {
			AccessToken string `json:"accessToken"`
			User        struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"user"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.NotEmpty(t, res.AccessToken)
		assert.NotEmpty(t, res.User.ID)
		assert.Equal(t, "alice@example.com", res.User.Email)
		assert.Equal(t, "Alice", res.User.Name)

		// The token in the body must actually verify.
		claims, err := app.tokens.Validate(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, claims.UserID)

		// And it is also set as an HttpOnly cookie.
		cookie := sessionCookie(rr)
		require.NotNil(t, cookie)
		assert.Equal(t, res.AccessToken, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		app := newTestApp(t)

		rr := app.register(t, "not-an-email", "password123", "X")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("rejects short password", func(t *testing.T) {
		app := newTestApp(t)

		rr := app.register(t, "short@example.com", "tiny", "X")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		app := newTestApp(t)

		rr := postJSON(t, app.auth.HandleRegister, "/auth/register", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		app := newTestApp(t)

		rr := app.register(t, "bob@example.com", "password123", "Bob")
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = app.register(t, "Bob@Example.com", "password456", "Bobby")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		app := newTestApp(t)
		require.Equal(t, http.StatusCreated, app.register(t, "carol@example.com", "password123", "Carol").Code)

		rr := postJSON(t, app.auth.HandleLogin, "/auth/login",
			`{"email":"carol@example.com","password":"password123"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, sessionCookie(rr))
	})

	t.Run("wrong password and unknown email look identical", func(t *testing.T) {
		app := newTestApp(t)
		require.Equal(t, http.StatusCreated, app.register(t, "dave@example.com", "password123", "Dave").Code)

		wrongPW := postJSON(t, app.auth.HandleLogin, "/auth/login",
			`{"email":"dave@example.com","password":"wrongwrong"}`)
		noUser := postJSON(t, app.auth.HandleLogin, "/auth/login",
			`{"email":"nobody@example.com","password":"wrongwrong"}`)

		assert.Equal(t, http.StatusUnauthorized, wrongPW.Code)
		assert.Equal(t, http.StatusUnauthorized, noUser.Code)
		assert.Equal(t, wrongPW.Body.String(), noUser.Body.String())
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	app := newTestApp(t)

	rr := postJSON(t, app.auth.HandleLogout, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	t.Run("known and unknown emails answer identically", func(t *testing.T) {
		app := newTestApp(t)
		require.Equal(t, http.StatusCreated, app.register(t, "eve@example.com", "password123", "Eve").Code)

		known := postJSON(t, app.auth.HandleForgotPassword, "/auth/forgot-password",
			`{"email":"eve@example.com"}`)
		unknown := postJSON(t, app.auth.HandleForgotPassword, "/auth/forgot-password",
			`{"email":"ghost@example.com"}`)

		assert.Equal(t, http.StatusOK, known.Code)
		assert.Equal(t, http.StatusOK, unknown.Code)
		assert.Equal(t, known.Body.String(), unknown.Body.String())

		// But only the real account got an email.
		assert.Equal(t, 1, app.notifier.Calls)
		assert.Equal(t, "eve@example.com", app.notifier.Email)
	})

	t.Run("rejects missing email", func(t *testing.T) {
		app := newTestApp(t)

		rr := postJSON(t, app.auth.HandleForgotPassword, "/auth/forgot-password", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "frank@example.com", "password123", "Frank").Code)

	rr := postJSON(t, app.auth.HandleForgotPassword, "/auth/forgot-password",
		`{"email":"frank@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, app.notifier.Calls)

	_, token, ok := strings.Cut(app.notifier.ResetURL, "token=")
	require.True(t, ok, "reset URL should carry the token")

	t.Run("valid token resets the password", func(t *testing.T) {
		rr := postJSON(t, app.auth.HandleResetPassword, "/auth/reset-password",
			`{"token":"`+token+`","newPassword":"newpass123"}`)
		assert.Equal(t, http.StatusOK, rr.Code)

		// Old password is dead, new one works.
		old := postJSON(t, app.auth.HandleLogin, "/auth/login",
			`{"email":"frank@example.com","password":"password123"}`)
		assert.Equal(t, http.StatusUnauthorized, old.Code)

		fresh := postJSON(t, app.auth.HandleLogin, "/auth/login",
			`{"email":"frank@example.com","password":"newpass123"}`)
		assert.Equal(t, http.StatusOK, fresh.Code)
	})

	t.Run("token replay is rejected", func(t *testing.T) {
		rr := postJSON(t, app.auth.HandleResetPassword, "/auth/reset-password",
			`{"token":"`+token+`","newPassword":"another123"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid_token")
	})

	t.Run("missing token is a validation error", func(t *testing.T) {
		rr := postJSON(t, app.auth.HandleResetPassword, "/auth/reset-password",
			`{"newPassword":"another123"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("short new password is rejected", func(t *testing.T) {
		rr := postJSON(t, app.auth.HandleResetPassword, "/auth/reset-password",
			`{"token":"whatever","newPassword":"ab"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
