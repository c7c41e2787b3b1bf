// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This is the composition root: every dependency — database, token and
// password services, resolver, orchestrator, handlers — is constructed
// and wired here, in one place, at startup. Handlers never touch the
// database; services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/identity-service/internal/auth"
	"github.com/sakif/identity-service/internal/config"
	"github.com/sakif/identity-service/internal/handler"
	"github.com/sakif/identity-service/internal/middleware"
	"github.com/sakif/identity-service/internal/notify"
	sqliteRepo "github.com/sakif/identity-service/internal/repository/sqlite"
	"github.com/sakif/identity-service/internal/service"
)

// Server owns the router, the database connection, and the wiring
// between them. The database is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph and route table.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires services to handlers and handlers to routes.
//
// Route table:
//
//	POST   /auth/register
//	POST   /auth/login
//	GET    /auth/google            (only when Google is configured)
//	GET    /auth/google/callback
//	POST   /auth/google/token
//	POST   /auth/logout            auth required
//	POST   /auth/forgot-password
//	PATCH  /auth/reset-password
//	GET    /user/profile           auth required
//	DELETE /user/account           auth required
//	GET    /healthz
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret, s.cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	passwords, err := auth.NewPasswordService(s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	users := s.db.Users()
	resetTokens := s.db.ResetTokens()
	resolver := service.NewIdentityResolver(users, s.logger)
	mailer := notify.NewLogMailer(s.logger)

	authService := service.NewAuthService(
		users,
		resetTokens,
		resolver,
		tokens,
		passwords,
		mailer,
		s.cfg.FrontendURL,
		time.Now,
		s.logger,
	)

	var google *auth.GoogleProvider
	if s.cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(
			s.cfg.GoogleClientID,
			s.cfg.GoogleClientSecret,
			s.cfg.GoogleCallbackURL,
		)
	} else {
		s.logger.Warn("Google sign-in not configured — /auth/google routes disabled")
	}

	cookieTTL := int(tokens.TTL().Seconds())
	authHandler := handler.NewAuthHandler(authService, google, s.cfg.FrontendURL, cookieTTL, s.logger)
	userHandler := handler.NewUserHandler(authService, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/forgot-password", authHandler.HandleForgotPassword)
		r.Patch("/reset-password", authHandler.HandleResetPassword)

		if google != nil {
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
			r.Post("/google/token", authHandler.HandleGoogleToken)
		}

		r.With(requireAuth).Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/user", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/profile", userHandler.HandleProfile)
		r.Delete("/account", userHandler.HandleDeleteAccount)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds to finish, close the database (flushes the WAL).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
