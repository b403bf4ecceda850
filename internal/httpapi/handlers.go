// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
	"github.com/peergate/peergate/pkg/errutil"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	accountResponse
	VerificationSent bool `json:"verification_sent"`
}

type accountResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Verified    bool       `json:"verified"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type publicProfileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func toAccountResponse(account *auth.Account) accountResponse {
	return accountResponse{
		ID:          account.ID.String(),
		Email:       account.Email,
		Username:    account.Username,
		Verified:    account.Verified,
		CreatedAt:   account.CreatedAt,
		LastLoginAt: account.LastLoginAt,
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("body", "request body must be valid JSON")
	}
	return nil
}

// handleRegister creates an account and sends the verification message.
// A notifier failure does not fail the registration; the response says
// whether the message went out so the client can offer a resend.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}

	sent := true
	if err := s.verification.SendVerification(r.Context(), account); err != nil {
		sent = false
		errutil.LogError(s.logger, "verification send failed after registration", err)
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		accountResponse:  toAccountResponse(account),
		VerificationSent: sent,
	})
}

// handleLogin exchanges credentials for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.credentials.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.countLogin("failure")
		writeError(w, err)
		return
	}

	if err := s.credentials.RecordLogin(r.Context(), account.ID); err != nil {
		errutil.LogError(s.logger, "record login failed", err)
	}

	token, err := s.credentials.IssueSessionToken(account.ID)
	if err != nil {
		s.countLogin("failure")
		writeError(w, err)
		return
	}

	s.countLogin("success")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.credentials.AccessTokenTTL().Seconds()),
	})
}

func (s *Server) countLogin(status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

// handleVerifyEmail consumes a verification token from the query
// string. Repeated consumption of a valid token stays a success.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, badRequest("token", "token query parameter is required"))
		return
	}

	account, err := s.verification.Consume(r.Context(), token)
	if err != nil {
		s.countVerification("failure")
		writeError(w, err)
		return
	}

	s.countVerification("consumed")
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) countVerification(status string) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(status).Inc()
	}
}

// handleResendVerification re-sends the verification message for an
// unverified account.
func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" {
		writeError(w, badRequest("email", "email is required"))
		return
	}

	account, err := s.accounts.FindByIdentifier(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if account.Verified {
		writeError(w, oops.Code("AUTH_ALREADY_VERIFIED").Errorf("email address is already verified"))
		return
	}

	if err := s.verification.SendVerification(r.Context(), account); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"verification_sent": true})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFrom(r.Context())
	if !ok {
		writeError(w, oops.Code("AUTH_INVALID_TOKEN").Errorf("missing bearer token"))
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// handleChangeUsername renames the authenticated account.
func (s *Server) handleChangeUsername(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFrom(r.Context())
	if !ok {
		writeError(w, oops.Code("AUTH_INVALID_TOKEN").Errorf("missing bearer token"))
		return
	}

	var req changeUsernameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.accounts.ChangeUsername(r.Context(), account.ID, req.Username); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.accounts.Get(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(updated))
}

// handleChangePassword rotates the password after verifying the current
// one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFrom(r.Context())
	if !ok {
		writeError(w, oops.Code("AUTH_INVALID_TOKEN").Errorf("missing bearer token"))
		return
	}

	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.credentials.ChangePassword(r.Context(), account.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handlePublicProfile returns the public fields of any account.
// Unauthenticated; exists for sibling services.
func (s *Server) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound))
		return
	}

	profile, err := s.accounts.PublicProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publicProfileResponse{
		ID:       profile.ID.String(),
		Username: profile.Username,
	})
}
