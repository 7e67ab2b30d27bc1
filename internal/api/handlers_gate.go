// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/telemetry"
)

const (
	// GateCookie carries the gate session id for browser clients.
	GateCookie = "cinegate_gate"
	// HeaderGateSession carries the gate session id for other clients.
	HeaderGateSession = "X-Gate-Session"
)

type gateCtxKey struct{}

func gateSessionFrom(ctx context.Context) *adgate.Session {
	s, _ := ctx.Value(gateCtxKey{}).(*adgate.Session)
	return s
}

func gateSessionID(r *http.Request) string {
	if id := r.Header.Get(HeaderGateSession); id != "" {
		return id
	}
	if c, err := r.Cookie(GateCookie); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) setGateCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := s.deps.Config().Auth.CookieSecure
	sameSite := http.SameSiteLaxMode
	if secure {
		// gated buttons live on third-party movie pages
		sameSite = http.SameSiteNoneMode
	}
	c := &http.Cookie{
		Name:     GateCookie,
		Value:    value,
		Path:     "/api/gate",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	} else if value == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

// requireGate resolves the caller's gate session.
func (s *Server) requireGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := gateSessionID(r)
		if id == "" {
			writeFail(w, http.StatusUnauthorized, "Gate session required", envelope{"code": "gate_session_required"})
			return
		}
		sess, err := s.deps.Gates.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), gateCtxKey{}, sess)
		ctx = log.ContextWithGateSession(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleCreateGateSession starts a fresh gate. A session presented with the
// request is discarded, so this is also how a viewer resets the count.
func (s *Server) handleCreateGateSession(w http.ResponseWriter, r *http.Request) {
	if old := gateSessionID(r); old != "" {
		s.deps.Gates.Delete(old)
	}
	sess, err := s.deps.Gates.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setGateCookie(w, sess.ID, s.deps.Config().Gate.SessionTTL)
	w.Header().Set(HeaderGateSession, sess.ID)
	writeOK(w, http.StatusCreated, envelope{
		"sessionId": sess.ID,
		"gate":      sess.Controller().Snapshot(),
	})
}

func (s *Server) handleGateState(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, envelope{"gate": gateSessionFrom(r.Context()).Controller().Snapshot()})
}

func (s *Server) handleDeleteGateSession(w http.ResponseWriter, r *http.Request) {
	s.deps.Gates.Delete(gateSessionFrom(r.Context()).ID)
	s.setGateCookie(w, "", 0)
	writeOK(w, http.StatusOK, envelope{"message": "Gate session ended"})
}

func (s *Server) handleGateContinue(w http.ResponseWriter, r *http.Request) {
	s.resolveAd(w, r, (*adgate.Modal).Continue)
}

func (s *Server) handleGateCancel(w http.ResponseWriter, r *http.Request) {
	s.resolveAd(w, r, (*adgate.Modal).Cancel)
}

// resolveAd forwards a viewer's click to the modal on screen. Clicks before
// unlock are rejected without touching the countdown.
func (s *Server) resolveAd(w http.ResponseWriter, r *http.Request, click func(*adgate.Modal) error) {
	ctrl := gateSessionFrom(r.Context()).Controller()
	m := ctrl.Modal()
	if m == nil {
		writeFail(w, http.StatusConflict, "No ad is showing", envelope{"code": "no_ad", "gate": ctrl.Snapshot()})
		return
	}
	if err := click(m); err != nil {
		p := classify(err)
		writeFail(w, p.status, p.message, envelope{"code": p.code, "gate": ctrl.Snapshot()})
		return
	}
	writeOK(w, http.StatusOK, envelope{"gate": ctrl.Snapshot()})
}

// handleGateAction long-polls: it returns once the ad on screen is resolved
// (or immediately on the fast path) and then runs the effect.
func (s *Server) handleGateAction(w http.ResponseWriter, r *http.Request) {
	var in actionRequest
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	action, err := s.gatedAction(chi.URLParam(r, "action"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess := gateSessionFrom(r.Context())
	ctx, span := telemetry.StartSpan(r.Context(), "cinegate/api", "gate.action",
		telemetry.GateAttributes(action.Name, string(action.Kind), sess.ID)...)
	defer span.End()
	span.SetAttributes(telemetry.ContentAttributes(contentTypeOf(action.Name), in.ID)...)

	var (
		result any
		snap   adgate.Snapshot
	)
	err = s.deps.Gates.Do(sess.ID, func(sess *adgate.Session) error {
		var err error
		result, err = action.Invoke(ctx, sess.Controller())
		snap = sess.Controller().Snapshot()
		return err
	})

	var more *adgate.MoreAdsError
	switch {
	case err == nil:
		span.SetAttributes(telemetry.OutcomeAttribute("proceeded"))
		body, _ := result.(envelope)
		if body == nil {
			body = envelope{}
		}
		body["action"] = action.Name
		body["gate"] = snap
		writeOK(w, http.StatusOK, body)
	case errors.Is(err, adgate.ErrDeclined):
		span.SetAttributes(telemetry.OutcomeAttribute("declined"))
		writeFail(w, http.StatusOK, "Ad was cancelled", envelope{"declined": true, "action": action.Name, "gate": snap})
	case errors.As(err, &more):
		span.SetAttributes(telemetry.OutcomeAttribute("more_ads"))
		writeFail(w, http.StatusOK, fmt.Sprintf("Watch %d more ads to continue", more.Remaining), envelope{
			"moreAdsRequired": true,
			"remaining":       more.Remaining,
			"action":          action.Name,
			"gate":            snap,
		})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// The viewer left; the ad was torn down by the controller.
		span.SetAttributes(telemetry.OutcomeAttribute("abandoned"))
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().
			Str(log.FieldEvent, "gate.action_abandoned").
			Str(log.FieldAction, action.Name).
			Msg("client went away while the ad was showing")
	default:
		p := classify(err)
		telemetry.RecordError(span, err, p.code)
		writeError(w, r, err)
	}
}
