// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
	"github.com/peergate/peergate/internal/observability"
)

// Config holds listener settings for the API server.
type Config struct {
	Listen      string
	CORSOrigins []string
}

// Server serves the account API.
type Server struct {
	cfg          Config
	router       chi.Router
	accounts     *auth.AccountService
	credentials  *auth.CredentialService
	verification *auth.VerificationService
	logger       *slog.Logger
	metrics      *observability.Metrics

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer wires the API routes. metrics may be nil; logger falls back
// to the default slog logger.
func NewServer(
	cfg Config,
	accounts *auth.AccountService,
	credentials *auth.CredentialService,
	verification *auth.VerificationService,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Server, error) {
	if accounts == nil || credentials == nil || verification == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("account, credential, and verification services are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		accounts:     accounts,
		credentials:  credentials,
		verification: verification,
		logger:       logger,
		metrics:      metrics,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.countRequests)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleRegister)
		r.Get("/users/{id}/public", s.handlePublicProfile)

		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/verify-email", s.handleVerifyEmail)
		r.Post("/auth/verify-email/resend", s.handleResendVerification)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/users/me", s.handleMe)
			r.Patch("/users/me/username", s.handleChangeUsername)
			r.Patch("/users/me/password", s.handleChangePassword)
		})
	})

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API. It returns an error channel that
// receives any serve error; the channel closes when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.cfg.Listen).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
