// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	envFile         string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// WithDotEnv makes Load seed the process environment from path first.
// Variables already set in the environment win. A missing file is ignored.
func (l *Loader) WithDotEnv(path string) *Loader {
	l.envFile = path
	return l
}

// ConfigPath returns the YAML path, possibly empty.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates.
func (l *Loader) Load() (AppConfig, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		l.mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path != "" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(cfg.DataDir, cfg.Store.Path)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with strict parsing.
// Unknown fields are rejected.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("CINEGATE_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("CINEGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString("CINEGATE_LOG_FORMAT", cfg.LogFormat)

	cfg.Server.ListenAddr = l.envString("CINEGATE_LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ShutdownTimeout = l.envDuration("CINEGATE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = l.envList("CINEGATE_CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.TrustedProxies = l.envList("CINEGATE_TRUSTED_PROXIES", cfg.Server.TrustedProxies)
	cfg.Server.RateLimitEnabled = l.envBool("CINEGATE_RATE_LIMIT_ENABLED", cfg.Server.RateLimitEnabled)
	cfg.Server.RateLimitRPM = l.envInt("CINEGATE_RATE_LIMIT_RPM", cfg.Server.RateLimitRPM)

	cfg.Store.Backend = l.envString("CINEGATE_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("CINEGATE_STORE_PATH", cfg.Store.Path)

	cfg.Cache.Backend = l.envString("CINEGATE_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration("CINEGATE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = l.envString("CINEGATE_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("CINEGATE_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("CINEGATE_REDIS_DB", cfg.Cache.RedisDB)

	cfg.Auth.JWTSecret = l.envString("CINEGATE_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = l.envDuration("CINEGATE_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.AllowSignup = l.envBool("CINEGATE_ALLOW_SIGNUP", cfg.Auth.AllowSignup)
	cfg.Auth.CookieSecure = l.envBool("CINEGATE_COOKIE_SECURE", cfg.Auth.CookieSecure)
	cfg.Auth.BootstrapUsername = l.envString("CINEGATE_BOOTSTRAP_USER", cfg.Auth.BootstrapUsername)
	cfg.Auth.BootstrapPassword = l.envString("CINEGATE_BOOTSTRAP_PASSWORD", cfg.Auth.BootstrapPassword)
	cfg.Auth.LoginRate = l.envFloat("CINEGATE_LOGIN_RATE", cfg.Auth.LoginRate)
	cfg.Auth.LoginBurst = l.envInt("CINEGATE_LOGIN_BURST", cfg.Auth.LoginBurst)

	cfg.Gate.Threshold = l.envInt("CINEGATE_GATE_THRESHOLD", cfg.Gate.Threshold)
	cfg.Gate.ButtonDuration = l.envDuration("CINEGATE_GATE_BUTTON_DURATION", cfg.Gate.ButtonDuration)
	cfg.Gate.VideoDuration = l.envDuration("CINEGATE_GATE_VIDEO_DURATION", cfg.Gate.VideoDuration)
	cfg.Gate.Tick = l.envDuration("CINEGATE_GATE_TICK", cfg.Gate.Tick)
	cfg.Gate.ShowCancel = l.envBool("CINEGATE_GATE_SHOW_CANCEL", cfg.Gate.ShowCancel)
	cfg.Gate.UnlockMode = l.envString("CINEGATE_GATE_UNLOCK_MODE", cfg.Gate.UnlockMode)
	cfg.Gate.SessionTTL = l.envDuration("CINEGATE_GATE_SESSION_TTL", cfg.Gate.SessionTTL)
	cfg.Gate.SweepInterval = l.envDuration("CINEGATE_GATE_SWEEP_INTERVAL", cfg.Gate.SweepInterval)
	cfg.Gate.AssistURL = l.envString("CINEGATE_ASSIST_URL", cfg.Gate.AssistURL)
	cfg.Gate.EnforceLinks = l.envBool("CINEGATE_GATE_ENFORCE_LINKS", cfg.Gate.EnforceLinks)

	cfg.Telemetry.Enabled = l.envBool("CINEGATE_TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = l.envString("CINEGATE_TRACING_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Exporter = l.envString("CINEGATE_TRACING_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("CINEGATE_TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("CINEGATE_TRACING_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
