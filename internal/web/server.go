// Package web provides the HTTP API: the OAuth connect flow plus the sync
// and insights endpoints.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/nratajik/resonate/internal/auth"
	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/insights"
	"github.com/nratajik/resonate/internal/sync"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	sessions *Sessions
	handlers *Handlers
	logger   *log.Logger
}

// NewServer wires the router, OAuth flow, and API handlers.
func NewServer(
	cfg ServerConfig,
	database *db.DB,
	provider *auth.Provider,
	syncSvc *sync.Service,
	insightsSvc *insights.Service,
	logger *log.Logger,
) *Server {
	oauth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopeUserReadRecentlyPlayed,
			spotifyauth.ScopeUserTopRead,
			spotifyauth.ScopeUserLibraryRead,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopeUserFollowRead,
			spotifyauth.ScopeUserReadPlaybackState,
		),
	)

	sessions := NewSessions(database)
	handlers := NewHandlers(oauth, sessions, provider, database, syncSvc, insightsSvc, logger)

	s := &Server{
		router:   chi.NewRouter(),
		sessions: sessions,
		handlers: handlers,
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/me", s.handlers.Me)
		r.Post("/sync", s.handlers.Sync)
		r.Get("/insights", s.handlers.Insights)
	})
}

type contextKey string

const userIDKey contextKey = "userID"

// requireSession resolves the session cookie to a user id and injects it
// into the request context. Unauthenticated requests get a JSON 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := s.sessions.UserFromRequest(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
