// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
)

type contextKey struct{ name string }

var accountKey = &contextKey{"account"}

// requireAuth resolves a Bearer session token into the account it
// belongs to and stores the account in the request context. Requests
// without a valid token get 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeError(w, oops.Code("AUTH_INVALID_TOKEN").Errorf("missing bearer token"))
			return
		}

		account, err := s.credentials.ResolveSessionToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountFrom returns the authenticated account stored by requireAuth.
// The second return is false on routes outside the auth group.
func accountFrom(ctx context.Context) (*auth.Account, bool) {
	account, ok := ctx.Value(accountKey).(*auth.Account)
	return account, ok
}

// statusRecorder captures the response status for the metrics
// middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// countRequests records per-route request counters. Route patterns
// (not raw paths) keep the label cardinality bounded.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		s.metrics.HTTPRequestsTotal.
			WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).
			Inc()
	})
}
