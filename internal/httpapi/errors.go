// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
)

// errorResponse is the JSON body sent for every failed request.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForError maps service errors to HTTP statuses. Codes the map
// does not know fall through to 500 with a generic body so internals
// never leak to clients.
func statusForError(err error) int {
	if errors.Is(err, auth.ErrNotFound) {
		return http.StatusNotFound
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch oopsErr.Code() {
	case "AUTH_INVALID_CREDENTIALS", "AUTH_INVALID_TOKEN", "AUTH_INCORRECT_PASSWORD":
		return http.StatusUnauthorized
	case "AUTH_UNVERIFIED_ACCOUNT", "AUTH_ACCOUNT_LOCKED":
		return http.StatusForbidden
	case "AUTH_DUPLICATE_IDENTIFIER", "AUTH_ALREADY_VERIFIED":
		return http.StatusConflict
	case "AUTH_WEAK_PASSWORD", "AUTH_INVALID_USERNAME", "AUTH_INVALID_EMAIL",
		"AUTH_EMPTY_PASSWORD", "REQUEST_INVALID":
		return http.StatusUnprocessableEntity
	case "NOTIFY_SEND_FAILED", "NOTIFY_BROKER_UNAVAILABLE":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as JSON. 5xx responses get a generic message;
// everything else exposes the service error text, which is written for
// users.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	body := errorBody{Code: "INTERNAL", Message: "internal server error"}
	if status < http.StatusInternalServerError {
		body.Message = err.Error()
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() != "" {
			body.Code = oopsErr.Code()
		} else if errors.Is(err, auth.ErrNotFound) {
			body.Code = "NOT_FOUND"
		} else {
			body.Code = "ERROR"
		}
	}
	if status == http.StatusNotFound {
		body.Code = "NOT_FOUND"
		body.Message = "not found"
	}

	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

func badRequest(field, msg string) error {
	return oops.Code("REQUEST_INVALID").With("field", field).Errorf("%s", msg)
}
