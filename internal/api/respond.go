// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/catalog"
	"github.com/ManuGH/cinegate/internal/log"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errEmptyBody  = errors.New("request body is empty")
)

// envelope is the {"success": ..., "message": ...} body every route answers with.
type envelope map[string]any

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, code int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, code, body)
}

func writeFail(w http.ResponseWriter, code int, message string, extra envelope) {
	body := envelope{"success": false, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

// problem is the HTTP face of an error.
type problem struct {
	status  int
	code    string
	message string
}

func classify(err error) problem {
	switch {
	case errors.Is(err, errEffectFailed):
		return problem{http.StatusBadGateway, "effect_failed", "Failed to resolve the requested link"}
	case errors.Is(err, errBadRequest), errors.Is(err, catalog.ErrValidation):
		return problem{http.StatusBadRequest, "invalid_input", err.Error()}
	case errors.Is(err, catalog.ErrNotFound):
		return problem{http.StatusNotFound, "not_found", err.Error()}
	case errors.Is(err, catalog.ErrConflict):
		return problem{http.StatusConflict, "conflict", err.Error()}

	case errors.Is(err, auth.ErrMissingCredentials):
		return problem{http.StatusBadRequest, "missing_data", "Missing data"}
	case errors.Is(err, auth.ErrUnknownUser):
		return problem{http.StatusNotFound, "unknown_user", "Incorrect userName"}
	case errors.Is(err, auth.ErrWrongPassword):
		return problem{http.StatusUnauthorized, "wrong_password", "Incorrect password"}
	case errors.Is(err, auth.ErrUsernameTaken):
		return problem{http.StatusConflict, "username_taken", "Username already taken"}
	case errors.Is(err, auth.ErrSignupDisabled):
		return problem{http.StatusForbidden, "signup_disabled", "Signup is disabled"}
	case errors.Is(err, auth.ErrMissingToken):
		return problem{http.StatusUnauthorized, "missing_token", "Authentication required"}
	case errors.Is(err, auth.ErrInvalidToken):
		return problem{http.StatusUnauthorized, "invalid_token", "Invalid or expired token"}

	case errors.Is(err, adgate.ErrSessionNotFound):
		return problem{http.StatusNotFound, "gate_session_not_found", "Gate session not found"}
	case errors.Is(err, adgate.ErrAdActive):
		return problem{http.StatusConflict, "ad_active", "An ad is already showing"}
	case errors.Is(err, adgate.ErrLocked):
		return problem{http.StatusConflict, "locked", "Ad is still locked"}
	case errors.Is(err, adgate.ErrCancelHidden):
		return problem{http.StatusConflict, "cancel_hidden", "Cancel is not offered for this ad"}
	case errors.Is(err, adgate.ErrModalClosed):
		return problem{http.StatusConflict, "already_resolved", "Ad already resolved"}
	case errors.Is(err, adgate.ErrInvalidKind):
		return problem{http.StatusBadRequest, "invalid_kind", err.Error()}
	case errors.Is(err, adgate.ErrRegistryClosed):
		return problem{http.StatusServiceUnavailable, "shutting_down", "Server is shutting down"}
	}
	return problem{http.StatusInternalServerError, "internal", "Internal server error"}
}

// writeError maps err onto a status and writes the failure envelope.
// Server-side failures are logged; their detail never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	p := classify(err)
	if p.status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "request.failed").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
	}
	writeFail(w, p.status, p.message, envelope{"code": p.code})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %w", errBadRequest, errEmptyBody)
		}
		return fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
	}
	return nil
}
