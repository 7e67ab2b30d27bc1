// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the cinegate daemon configuration.
//
// Precedence is defaults, then the YAML file, then CINEGATE_* environment
// variables (a .env file may seed the environment). The result is validated
// before use and can be reloaded at runtime by a Holder.
package config

import (
	"time"

	"github.com/ManuGH/cinegate/internal/adgate"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version   string
	DataDir   string
	LogLevel  string
	LogFormat string

	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Gate      GateConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	TrustedProxies    []string // CIDRs or IPs allowed to set X-Forwarded-For
	RateLimitEnabled  bool
	RateLimitRPM      int
}

type StoreConfig struct {
	Backend string
	// Path is the database file (sqlite), directory (badger) or snapshot file
	// (memory, optional). Relative paths resolve against DataDir.
	Path string
}

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AllowSignup       bool
	CookieSecure      bool
	BootstrapUsername string
	BootstrapPassword string
	LoginRate         float64 // attempts per second per client
	LoginBurst        int
}

// GateConfig carries the ad gate tunables.
type GateConfig struct {
	Threshold      int
	ButtonDuration time.Duration
	VideoDuration  time.Duration
	Tick           time.Duration
	ShowCancel     bool
	UnlockMode     string
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	AssistURL      string
	// EnforceLinks makes the direct download and stream routes admin-only,
	// leaving the gate actions as the public way to a link.
	EnforceLinks bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Exporter     string // grpc | http
	Endpoint     string
	SamplingRate float64
}

// GatePolicy converts the gate section into an adgate policy.
func (c AppConfig) GatePolicy() adgate.Policy {
	return adgate.Policy{
		Threshold:      c.Gate.Threshold,
		ButtonDuration: c.Gate.ButtonDuration,
		VideoDuration:  c.Gate.VideoDuration,
		ShowCancel:     c.Gate.ShowCancel,
		Tick:           c.Gate.Tick,
		UnlockMode:     adgate.UnlockMode(c.Gate.UnlockMode),
	}
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	policy := adgate.DefaultPolicy()
	return AppConfig{
		DataDir:   "data",
		LogLevel:  "info",
		LogFormat: "json",
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
			RateLimitEnabled:  true,
			RateLimitRPM:      600,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "cinegate.db",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:    7 * 24 * time.Hour,
			AllowSignup: true,
			LoginRate:   0.2,
			LoginBurst:  5,
		},
		Gate: GateConfig{
			Threshold:      policy.Threshold,
			ButtonDuration: policy.ButtonDuration,
			VideoDuration:  policy.VideoDuration,
			Tick:           policy.Tick,
			ShowCancel:     policy.ShowCancel,
			UnlockMode:     string(policy.UnlockMode),
			SessionTTL:     30 * time.Minute,
			SweepInterval:  time.Minute,
			AssistURL:      "https://wa.me/+250788484589",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "cinegate",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
