// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/log"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.deps.Config().Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, http.StatusOK, envelope{
		"message":   "Enjoy",
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Auth.Signup(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"message": "User created", "userId": u.ID})
}

// handleVerify answers {status, message} like the login probe of the admin UI expects.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	raw := auth.ExtractToken(r)
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, envelope{"status": false, "message": "missing token"})
		return
	}
	if _, err := s.deps.Auth.Verify(r.Context(), raw); err != nil {
		p := classify(err)
		writeJSON(w, p.status, envelope{"status": false, "message": p.message})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": true, "message": "live"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.Config().Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, http.StatusOK, envelope{"message": "Logged out"})
}

// requireAdmin rejects requests without a valid admin token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := auth.ExtractToken(r)
		if raw == "" {
			writeError(w, r, auth.ErrMissingToken)
			return
		}
		p, err := s.deps.Auth.Verify(r.Context(), raw)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownUser) {
				err = auth.ErrInvalidToken
			}
			writeError(w, r, err)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = log.ContextWithUserID(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
