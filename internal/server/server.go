// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go reads config → Server.New() creates:
//
//	sqlite.DB → PuzzleService/LikeService → handlers
//	TokenService + GoogleProvider → auth middleware + AuthHandler
//
// This is the "composition root" pattern — all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/pips-puzzles/internal/auth"
	"github.com/sakif/pips-puzzles/internal/handler"
	"github.com/sakif/pips-puzzles/internal/middleware"
	sqliteRepo "github.com/sakif/pips-puzzles/internal/repository/sqlite"
	"github.com/sakif/pips-puzzles/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to
// add new options without changing function signatures.
type Config struct {
	Port               int
	DBPath             string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. When the server shuts down, we
// must close it to flush the WAL and release the file lock — handled in
// Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// The whole dependency chain is assembled here. Each layer only receives
// what it needs: services get repository interfaces (not the concrete
// sqlite.DB), handlers get services (not repositories or SQL).
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// Sessions are load-bearing: likes, updates, and deletes all hang off
	// the authenticated caller, so a missing secret is a config error, not a
	// degraded mode.
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required (set JWT_SECRET)")
	}

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
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                   → database liveness
//	GET    /auth/google/login         → redirect to Google
//	GET    /auth/google/callback      → complete OAuth, set session cookie
//	POST   /auth/logout               → clear session cookie
//	GET    /api/me                    → current user          [auth required]
//	GET    /api/puzzles               → like-sorted page      [auth optional]
//	POST   /api/puzzles               → create                [auth optional]
//	GET    /api/puzzles/{id}          → single puzzle
//	PUT    /api/puzzles/{id}          → update board          [auth required]
//	DELETE /api/puzzles/{id}          → delete                [auth required]
//	POST   /api/puzzles/{id}/like     → like/unlike/toggle/check [auth optional;
//	                                    mutating actions 401 without a session]
//	GET    /api/users/{id}/puzzles    → one user's puzzles
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Auth plumbing ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	// === Services and handlers ===
	// The handlers never touch the database directly; the services never
	// touch HTTP. s.db satisfies all three repository interfaces.
	puzzleService := service.NewPuzzleService(s.db, s.logger)
	likeService := service.NewLikeService(s.db, s.logger)

	puzzleHandler := handler.NewPuzzleHandler(puzzleService, s.logger)
	likeHandler := handler.NewLikeHandler(likeService, s.logger)
	authHandler := handler.NewAuthHandler(google, tokens, s.db, s.logger)

	// === Health ===
	s.router.Get("/healthz", s.handleHealth)

	// === OAuth flow ===
	s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
	s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		// Public reads + anonymous-capable writes. OptionalAuth decodes the
		// session when present so hasLiked and ownership claims work, but
		// never blocks the request.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/puzzles", puzzleHandler.HandleList)
			r.Post("/puzzles", puzzleHandler.HandleCreate)
			r.Get("/puzzles/{id}", puzzleHandler.HandleGet)
			r.Post("/puzzles/{id}/like", likeHandler.HandleLike)
			r.Get("/users/{id}/puzzles", puzzleHandler.HandleListByUser)
		})

		// Owner-only operations: the middleware 401s before the handler runs.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Put("/puzzles/{id}", puzzleHandler.HandleUpdate)
			r.Delete("/puzzles/{id}", puzzleHandler.HandleDelete)
		})
	})

	return nil
}

// handleHealth pings the database through the pool — the same path every
// repository call takes, so a green health check means queries can run.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, `{"success":false,"message":"database unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"success":true,"message":"ok"}`))
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// The `defer s.db.Close()` ensures step 3 happens even if something panics.
func (s *Server) Start() error {
	defer s.db.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
