// Package http exposes the transaction store, statistics and
// authentication over a JSON API.
package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

const mutationRateLimit = 60 // requests per minute per client

// Server routes API requests to either a single local store or, in
// cloud mode, a per-user store behind authentication.
type Server struct {
	logger   *log.Logger
	local    *store.LocalStore
	registry *store.Registry
	identity *identity.Service
	stats    *statsCache
	limiter  *rateLimiter
	router   chi.Router
}

// NewLocalServer serves the single-user variant. There is no
// authentication; every request operates on the one local store.
func NewLocalServer(local *store.LocalStore, logger *log.Logger) (*Server, error) {
	s := &Server{
		logger: logger.WithComponent("http"),
		local:  local,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewCloudServer serves the multi-user variant: requests carry a bearer
// token and resolve to that user's store.
func NewCloudServer(registry *store.Registry, svc *identity.Service, logger *log.Logger) (*Server, error) {
	s := &Server{
		logger:   logger.WithComponent("http"),
		registry: registry,
		identity: svc,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	stats, err := newStatsCache()
	if err != nil {
		return fmt.Errorf("create stats cache: %w", err)
	}
	s.stats = stats
	s.limiter = newRateLimiter(mutationRateLimit)
	s.router = s.buildRouter()
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(securityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if s.cloud() {
			r.With(s.limiter.middleware).Post("/auth/signup", s.handleSignUp)
			r.With(s.limiter.middleware).Post("/auth/signin", s.handleSignIn)
		}

		api := func(r chi.Router) {
			r.Get("/transactions", s.handleListTransactions)
			r.With(s.limiter.middleware).Post("/transactions", s.handleAddTransaction)
			r.With(s.limiter.middleware).Delete("/transactions/{id}", s.handleRemoveTransaction)
			r.Get("/stats", s.handleStats)
			r.Get("/categories", s.handleCategories)
		}

		if s.cloud() {
			r.With(s.requireAuth).Group(func(r chi.Router) {
				api(r)
				r.Get("/auth/session", s.handleSession)
				r.Post("/auth/signout", s.handleSignOut)
			})
		} else {
			api(r)
			r.Get("/save-status", s.handleSaveStatus)
		}
	})

	return r
}

func (s *Server) cloud() bool {
	return s.registry != nil
}

// Handler returns the HTTP handler for mounting on a net/http server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the server's background resources. The listener
// itself is owned by the caller.
func (s *Server) Close() {
	s.limiter.stop()
	s.stats.close()
}

// storeFor resolves the transaction store and owner for a request. In
// cloud mode the owner comes from the authenticated session.
func (s *Server) storeFor(r *http.Request) (store.Store, int64, error) {
	if !s.cloud() {
		return s.local, 0, nil
	}
	session, ok := sessionFrom(r.Context())
	if !ok {
		return nil, 0, fmt.Errorf("no session on request")
	}
	st, err := s.registry.For(r.Context(), session.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("load store for user %d: %w", session.UserID, err)
	}
	return st, session.UserID, nil
}
