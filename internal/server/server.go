// Package server wires handlers, middleware, and routes, and owns the
// HTTP listener lifecycle. It is the composition root: every dependency
// in the app is assembled here, and main.go stays minimal.
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

	"github.com/karim/bloghub/internal/auth"
	"github.com/karim/bloghub/internal/config"
	"github.com/karim/bloghub/internal/handler"
	"github.com/karim/bloghub/internal/middleware"
	sqliteRepo "github.com/karim/bloghub/internal/repository/sqlite"
	"github.com/karim/bloghub/internal/service"
)

// Server holds the router and the resources it owns. The database
// connection belongs to the server and is closed on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: database, auth services,
// domain services, handlers, routes. Each layer receives only the
// interfaces it needs; handlers never see the database.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and mounts every route.
//
// Middleware order matters: RequestID and RealIP first so the logger sees
// them, Recoverer before handlers so a panic becomes a 500, our Logger
// last so it times only the handler itself.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)
	resets := auth.NewResetTokenService(s.config.ResetTokenTTL)

	users := s.db.Users()
	authService := service.NewAuthService(users, passwords, tokens, resets, s.logger)
	postService := service.NewPostService(s.db.Posts(), s.db.Comments(), s.logger)
	commentService := service.NewCommentService(s.db.Comments(), s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.TokenTTL, s.logger)
	postHandler := handler.NewPostHandler(postService, commentService, s.logger)
	adminHandler := handler.NewAdminHandler(authService, s.logger)
	systemHandler := handler.NewSystemHandler(s.db, s.db, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	// Admin status comes from the users table on every privileged request,
	// not from the token, so revoking admin takes effect immediately.
	requireAdmin := auth.RequireAdmin(users)

	s.router.Get("/health", systemHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/reset-password", authHandler.HandleResetPassword)
			r.Post("/change-password", authHandler.HandleChangePassword)
			r.Get("/profile/{username}", authHandler.HandleProfile)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.HandleMe)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.HandleList)
			r.Get("/search", postHandler.HandleSearch)
			r.Get("/slug/{slug}", postHandler.HandleGetBySlug)
			r.Get("/{id}", postHandler.HandleGet)
			r.Get("/{id}/comments", postHandler.HandleListComments)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", postHandler.HandleCreate)
				r.Patch("/{id}", postHandler.HandleUpdate)
				r.Post("/{id}/publish", postHandler.HandlePublish)
				r.Post("/{id}/comments", postHandler.HandleAddComment)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)
			r.Get("/users", adminHandler.HandleListUsers)
			r.Post("/users/{id}/promote", adminHandler.HandlePromote)
			r.Post("/users/{id}/deactivate", adminHandler.HandleDeactivate)
			r.Get("/stats", systemHandler.HandleStats)
		})
	})

	return nil
}

// Start runs the listener and blocks until SIGINT/SIGTERM or a server
// error. Shutdown drains in-flight requests, then closes the database so
// the WAL is flushed and the file lock released.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
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
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
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
