// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CINEGATE_DATA_DIR", dir)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "cinegate.db"), cfg.Store.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, adgate.DefaultPolicy(), cfg.GatePolicy())
	assert.Equal(t, "https://wa.me/+250788484589", cfg.Gate.AssistURL)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", `
dataDir: `+dir+`
logLevel: debug
server:
  listen: "127.0.0.1:9090"
  corsOrigins: ["https://cinegate.example"]
  rateLimit:
    enabled: false
store:
  backend: badger
  path: catalog
cache:
  backend: redis
  ttl: 30s
  redis:
    addr: "localhost:6379"
    db: 2
auth:
  allowSignup: false
  bootstrap:
    username: admin
    password: "correct horse"
gate:
  threshold: 5
  buttonDuration: 20s
  showCancel: false
  unlockMode: threshold
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"https://cinegate.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Server.RateLimitEnabled)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "catalog"), cfg.Store.Path)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2, cfg.Cache.RedisDB)
	assert.False(t, cfg.Auth.AllowSignup)
	assert.Equal(t, "admin", cfg.Auth.BootstrapUsername)

	p := cfg.GatePolicy()
	assert.Equal(t, 5, p.Threshold)
	assert.Equal(t, 20*time.Second, p.ButtonDuration)
	assert.Equal(t, 10*time.Second, p.VideoDuration)
	assert.False(t, p.ShowCancel)
	assert.Equal(t, adgate.UnlockThreshold, p.UnlockMode)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", "dataDir: "+dir+"\ngate:\n  threshold: 5\n")
	t.Setenv("CINEGATE_GATE_THRESHOLD", "1")
	t.Setenv("CINEGATE_GATE_VIDEO_DURATION", "3s")
	t.Setenv("CINEGATE_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CINEGATE_STORE_BACKEND", "MEMORY")
	t.Setenv("CINEGATE_STORE_PATH", "")
	t.Setenv("CINEGATE_GATE_ENFORCE_LINKS", "yes")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Gate.Threshold)
	assert.Equal(t, 3*time.Second, cfg.Gate.VideoDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.True(t, cfg.Gate.EnforceLinks)
	assert.Contains(t, l.ConsumedEnvKeys, "CINEGATE_GATE_THRESHOLD")
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "CINEGATE_GATE_THRESHOLD=7\nCINEGATE_JWT_SECRET=from-dotenv-0123456789\n")
	t.Setenv("CINEGATE_DATA_DIR", dir)
	t.Setenv("CINEGATE_GATE_THRESHOLD", "2")
	t.Setenv("CINEGATE_JWT_SECRET", "")

	cfg, err := NewLoader("", "").WithDotEnv(envFile).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Gate.Threshold)

	_, err = NewLoader("", "").WithDotEnv(filepath.Join(dir, "missing.env")).Load()
	require.NoError(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", "dataDir: "+dir+"\nmongoUri: mongodb://localhost\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cinegate.json", "{}")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", "dataDir: "+dir+"\n---\nlogLevel: info\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Store.Backend = "mongo"
	cfg.Cache.Backend = CacheRedis
	cfg.Gate.Tick = 0
	cfg.Auth.JWTSecret = "short"
	cfg.Auth.BootstrapUsername = "admin"

	err := Validate(cfg)
	require.Error(t, err)

	var ve validate.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Subset(t, ve.Fields(), []string{
		"Store.Backend",
		"Cache.RedisAddr",
		"Auth.JWTSecret",
		"Auth.Bootstrap",
		"Gate",
	})
}

func TestValidateTelemetry(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"
	cfg.Telemetry.SamplingRate = 2

	var ve validate.ValidationError
	require.ErrorAs(t, Validate(cfg), &ve)
	assert.ElementsMatch(t, []string{"Telemetry.Exporter", "Telemetry.SamplingRate"}, ve.Fields())
}

func TestLoadTrustedProxies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", "dataDir: "+dir+"\nstore:\n  backend: memory\nserver:\n  trustedProxies: [\"10.0.0.0/8\", \"192.0.2.1\"]\n")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)

	t.Setenv("CINEGATE_TRUSTED_PROXIES", "0.0.0.0/0")
	_, err = NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestValidateTrustedProxies(t *testing.T) {
	tests := []struct {
		entries []string
		ok      bool
	}{
		{entries: nil, ok: true},
		{entries: []string{"10.0.0.0/8", " 2001:db8::/32 ", "", "127.0.0.1"}, ok: true},
		{entries: []string{"0.0.0.0/0"}, ok: false},
		{entries: []string{"::/0"}, ok: false},
		{entries: []string{"0.0.0.0"}, ok: false},
		{entries: []string{"::/128"}, ok: false},
		{entries: []string{"proxy.local"}, ok: false},
	}
	for _, tt := range tests {
		cfg := Defaults()
		cfg.DataDir = t.TempDir()
		cfg.Server.TrustedProxies = tt.entries

		err := Validate(cfg)
		if tt.ok {
			assert.NoError(t, err, "%v", tt.entries)
			continue
		}
		var ve validate.ValidationError
		require.ErrorAs(t, err, &ve, "%v", tt.entries)
		assert.Equal(t, []string{"Server.TrustedProxies"}, ve.Fields())
	}
}

func TestParseHelpersFallBack(t *testing.T) {
	t.Setenv("CINEGATE_TEST_INT", "many")
	t.Setenv("CINEGATE_TEST_BOOL", "perhaps")
	t.Setenv("CINEGATE_TEST_DURATION", "soon")
	t.Setenv("CINEGATE_TEST_FLOAT", "1,5")

	assert.Equal(t, 3, ParseInt("CINEGATE_TEST_INT", 3))
	assert.True(t, ParseBool("CINEGATE_TEST_BOOL", true))
	assert.Equal(t, time.Second, ParseDuration("CINEGATE_TEST_DURATION", time.Second))
	assert.InDelta(t, 0.5, ParseFloat("CINEGATE_TEST_FLOAT", 0.5), 1e-9)
	assert.Equal(t, "dflt", ParseString("CINEGATE_TEST_UNSET", "dflt"))

	t.Setenv("CINEGATE_TEST_BOOL", "No")
	assert.False(t, ParseBool("CINEGATE_TEST_BOOL", true))
}
