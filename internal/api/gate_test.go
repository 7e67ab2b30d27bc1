// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/config"
)

const waitFor = 2 * time.Second

// startAction fires a gated action in the background; the request blocks
// while the ad is on screen.
func (f *fixture) startAction(sid, action string, body any, opts ...reqOpt) <-chan *httptest.ResponseRecorder {
	out := make(chan *httptest.ResponseRecorder, 1)
	opts = append([]reqOpt{withGate(sid)}, opts...)
	go func() {
		out <- f.do(http.MethodPost, "/api/gate/actions/"+action, body, opts...)
	}()
	return out
}

func (f *fixture) waitAdShowing(sid string) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		return f.snapshot(sid).IsAdActive && f.clk.Tickers() == 1
	}, waitFor, 5*time.Millisecond)
}

func (f *fixture) unlock(sid string, d time.Duration) {
	f.t.Helper()
	f.clk.Advance(d)
	require.Eventually(f.t, func() bool {
		s := f.snapshot(sid)
		return s.Timer != nil && s.Timer.Unlocked
	}, waitFor, 5*time.Millisecond)
}

func receive(t *testing.T, ch <-chan *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(waitFor):
		t.Fatal("gated action did not return")
		return nil
	}
}

func TestGateSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/gate/state", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(http.MethodGet, "/api/gate/state", nil, withGate("nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/gate/session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sid := rec.Header().Get(HeaderGateSession)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == GateCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, sid, cookie.Value)

	rec = f.do(http.MethodGet, "/api/gate/state", nil, func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rec.Code)
	gate := decode(t, rec)["gate"].(map[string]any)
	assert.Equal(t, float64(0), gate["completedCount"])
	assert.Equal(t, false, gate["isAdActive"])
	assert.Equal(t, "IDLE", gate["phase"])

	// a new session replaces the one presented
	rec = f.do(http.MethodPost, "/api/gate/session", nil, withGate(sid))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/gate/state", nil, withGate(sid)).Code)

	next := rec.Header().Get(HeaderGateSession)
	rec = f.do(http.MethodDelete, "/api/gate/session", nil, withGate(next))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.gates.Len())
}

func TestGateActionContinue(t *testing.T) {
	f := newFixture(t)
	movieID := f.createMovie("Heat", "https://movies.example/heat")
	sid := f.gateSession()

	done := f.startAction(sid, ActionDownload, actionRequest{ID: movieID})
	f.waitAdShowing(sid)
	assert.Equal(t, adgate.KindButton, f.snapshot(sid).ActiveAdKind)

	// premature click is inert
	rec := f.do(http.MethodPost, "/api/gate/continue", nil, withGate(sid))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "locked", decode(t, rec)["code"])

	// one ad at a time
	rec = f.do(http.MethodPost, "/api/gate/actions/stream", actionRequest{ID: movieID}, withGate(sid))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ad_active", decode(t, rec)["code"])

	f.unlock(sid, f.cfg.Gate.ButtonDuration)
	rec = f.do(http.MethodPost, "/api/gate/continue", nil, withGate(sid))
	require.Equal(t, http.StatusOK, rec.Code)

	res := receive(t, done)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	body := decode(t, res)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://cdn.example/Heat.mp4", body["downloadUrl"])
	assert.Equal(t, float64(1), body["gate"].(map[string]any)["completedCount"])
	assert.Equal(t, 1, f.snapshot(sid).CompletedCount)
}

func TestGateActionCancel(t *testing.T) {
	f := newFixture(t)
	movieID := f.createMovie("Heat", "https://movies.example/heat")
	sid := f.gateSession()

	done := f.startAction(sid, ActionStream, actionRequest{ID: movieID})
	f.waitAdShowing(sid)
	assert.Equal(t, adgate.KindVideo, f.snapshot(sid).ActiveAdKind)

	f.unlock(sid, f.cfg.Gate.VideoDuration)
	rec := f.do(http.MethodPost, "/api/gate/cancel", nil, withGate(sid))
	require.Equal(t, http.StatusOK, rec.Code)

	res := receive(t, done)
	require.Equal(t, http.StatusOK, res.Code)
	body := decode(t, res)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["declined"])
	assert.NotContains(t, body, "streamUrl")
	assert.Equal(t, 0, f.snapshot(sid).CompletedCount)

	rec = f.do(http.MethodPost, "/api/gate/cancel", nil, withGate(sid))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_ad", decode(t, rec)["code"])
}

func TestGateActionFastPathAfterThreshold(t *testing.T) {
	f := newFixture(t, func(c *config.AppConfig) { c.Gate.Threshold = 0 })
	movieID := f.createMovie("Heat", "https://movies.example/heat")
	sid := f.gateSession()

	rec := f.do(http.MethodPost, "/api/gate/actions/stream", actionRequest{ID: movieID}, withGate(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://stream.example/Heat", decode(t, rec)["streamUrl"])
	assert.Equal(t, 0, f.clk.Tickers(), "no modal was opened")
	assert.False(t, f.snapshot(sid).IsAdActive)

	rec = f.do(http.MethodPost, "/api/gate/actions/download", actionRequest{ID: "missing"}, withGate(sid))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/gate/actions/assist", nil, withGate(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.cfg.Gate.AssistURL, decode(t, rec)["assistUrl"])
}

func TestGateActionThresholdMode(t *testing.T) {
	f := newFixture(t, func(c *config.AppConfig) {
		c.Gate.Threshold = 2
		c.Gate.UnlockMode = string(adgate.UnlockThreshold)
	})
	movieID := f.createMovie("Heat", "https://movies.example/heat")
	sid := f.gateSession()

	done := f.startAction(sid, ActionDownload, actionRequest{ID: movieID, Kind: "video"})
	f.waitAdShowing(sid)
	f.unlock(sid, f.cfg.Gate.VideoDuration)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/gate/continue", nil, withGate(sid)).Code)

	res := receive(t, done)
	body := decode(t, res)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["moreAdsRequired"])
	assert.Equal(t, float64(1), body["remaining"])
}

func TestGateActionClientGone(t *testing.T) {
	f := newFixture(t)
	movieID := f.createMovie("Heat", "https://movies.example/heat")
	sid := f.gateSession()

	ctx, cancel := context.WithCancel(context.Background())
	done := f.startAction(sid, ActionDownload, actionRequest{ID: movieID}, withContext(ctx))
	f.waitAdShowing(sid)
	cancel()

	res := receive(t, done)
	assert.Empty(t, res.Body.String())
	snap := f.snapshot(sid)
	assert.False(t, snap.IsAdActive)
	assert.Equal(t, 0, snap.CompletedCount)
}

func TestGateActionBadRequests(t *testing.T) {
	f := newFixture(t)
	sid := f.gateSession()

	tests := []struct {
		name   string
		action string
		body   any
		code   int
	}{
		{"unknown action", "teleport", actionRequest{ID: "x"}, http.StatusBadRequest},
		{"missing id", ActionDownload, nil, http.StatusBadRequest},
		{"bad kind", ActionDownload, actionRequest{ID: "x", Kind: "popup"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/gate/actions/"+tt.action, tt.body, withGate(sid))
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, f.snapshot(sid).IsAdActive)
		})
	}
}

func TestGateAssistNotConfigured(t *testing.T) {
	f := newFixture(t, func(c *config.AppConfig) {
		c.Gate.Threshold = 0
		c.Gate.AssistURL = ""
	})
	sid := f.gateSession()
	rec := f.do(http.MethodPost, "/api/gate/actions/assist", nil, withGate(sid))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateEnforceLinksClosesDirectRoutes(t *testing.T) {
	f := newFixture(t, func(c *config.AppConfig) {
		c.Gate.Threshold = 0
		c.Gate.EnforceLinks = true
	})
	movieID := f.createMovie("Heat", "https://movies.example/heat")

	for _, path := range []string{"/api/movie/download/" + movieID, "/api/movie/stream/" + movieID} {
		rec := f.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "missing_token", decode(t, rec)["code"], path)

		assert.Equal(t, http.StatusOK, f.admin(http.MethodGet, path, nil).Code, path)
	}

	sid := f.gateSession()
	rec := f.do(http.MethodPost, "/api/gate/actions/download", actionRequest{ID: movieID}, withGate(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example/Heat.mp4", decode(t, rec)["downloadUrl"])
}
