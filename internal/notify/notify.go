// Package notify delivers password-reset notifications.
//
// Real email delivery is deliberately out of scope for the core: the
// auth flow's contract ends at "produced a token and a reset URL". This
// package is the collaborator that takes over from there. LogMailer is
// the default implementation; a deployment with an actual mail provider
// swaps in its own ResetNotifier without touching the auth flow.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// ResetNotifier hands a freshly minted reset link to whatever delivers
// it. Implementations must treat resetURL as a credential: it contains
// the token, and anything that prints or stores it has leaked account
// takeover capability.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error
}

// LogMailer "sends" reset emails by logging that one would have been
// sent. It logs the recipient and expiry but never the URL or token —
// logs are not a safe place for credentials, even in development.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer using the given structured logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

var _ ResetNotifier = (*LogMailer)(nil)

// SendPasswordReset logs the simulated delivery.
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error {
	m.logger.Info("password reset email sent (simulated)",
		slog.String("to", email),
		slog.Time("expiresAt", expiresAt),
	)
	return nil
}
