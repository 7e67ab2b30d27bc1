// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/catalog"
	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/health"
	"github.com/ManuGH/cinegate/internal/ratelimit"
)

type fixture struct {
	t       *testing.T
	cfg     config.AppConfig
	handler http.Handler
	catalog *catalog.Service
	gates   *adgate.Registry
	clk     *adgate.MockClock
	token   string
}

func newFixture(t *testing.T, mutate ...func(*config.AppConfig)) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Server.RateLimitEnabled = false
	cfg.Server.CORSOrigins = []string{"*"}
	for _, m := range mutate {
		m(&cfg)
	}

	store, err := catalog.NewMemoryStore("")
	require.NoError(t, err)
	n := 0
	cat := catalog.NewService(store, catalog.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id%03d", n)
	}))

	issuer, err := auth.NewTokenIssuer([]byte("test-secret-0123456789"), time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(cat, issuer, cfg.Auth.AllowSignup)
	require.NoError(t, authSvc.Bootstrap(ctx, "admin", "hunter22"))

	clk := adgate.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	gates, err := adgate.NewRegistry(cfg.GatePolicy(), adgate.WithRegistryClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gates.Close(ctx)
	})

	srv, err := New(Deps{
		Catalog:      cat,
		Auth:         authSvc,
		Gates:        gates,
		Health:       health.NewManager("test"),
		LoginLimiter: ratelimit.New(ratelimit.DefaultLoginConfig(), ratelimit.WithClock(clk.Now)),
		Config:       func() config.AppConfig { return cfg },
	})
	require.NoError(t, err)

	f := &fixture{t: t, cfg: cfg, handler: srv.Handler(), catalog: cat, gates: gates, clk: clk}
	sess, err := authSvc.Login(ctx, "admin", "hunter22")
	require.NoError(t, err)
	f.token = sess.Token
	return f
}

type reqOpt func(*http.Request)

func bearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withGate(id string) reqOpt {
	return func(r *http.Request) { r.Header.Set(HeaderGateSession, id) }
}

func withContext(ctx context.Context) reqOpt {
	return func(r *http.Request) { *r = *r.WithContext(ctx) }
}

func (f *fixture) do(method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	f.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(raw)
	}
	var req *http.Request
	if rd != nil {
		req = httptest.NewRequest(method, path, rd)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) admin(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(method, path, body, bearer(f.token))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *fixture) createMovie(title, externalURL string) string {
	f.t.Helper()
	rec := f.admin(http.MethodPost, "/api/movie/upload", map[string]string{
		"title":       title,
		"downloadUrl": "https://cdn.example/" + title + ".mp4",
		"streamUrl":   "https://stream.example/" + title,
		"externalUrl": externalURL,
		"fileSize":    "1.2GB",
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(f.t, rec)["movie"].(map[string]any)["_id"].(string)
}

func (f *fixture) gateSession() string {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/gate/session", nil)
	require.Equal(f.t, http.StatusCreated, rec.Code)
	id := rec.Header().Get(HeaderGateSession)
	require.NotEmpty(f.t, id)
	return id
}

func (f *fixture) snapshot(id string) adgate.Snapshot {
	f.t.Helper()
	s, err := f.gates.Get(id)
	require.NoError(f.t, err)
	return s.Controller().Snapshot()
}
