// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/validate"
	"github.com/rs/zerolog"
)

// Validate validates an AppConfig using the validate package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("DataDir", cfg.DataDir, false)
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.AddError("LogLevel", "unknown log level", cfg.LogLevel)
	}
	v.OneOf("LogFormat", cfg.LogFormat, []string{"json", "console"})

	v.ListenAddr("Server.ListenAddr", cfg.Server.ListenAddr)
	v.MinDuration("Server.ShutdownTimeout", cfg.Server.ShutdownTimeout, time.Second)
	if err := validateCIDRList("Server.TrustedProxies", cfg.Server.TrustedProxies); err != nil {
		v.AddError("Server.TrustedProxies", err.Error(), cfg.Server.TrustedProxies)
	}
	if cfg.Server.RateLimitEnabled {
		v.Positive("Server.RateLimitRPM", cfg.Server.RateLimitRPM)
	}

	v.OneOf("Store.Backend", cfg.Store.Backend, []string{BackendMemory, BackendSQLite, BackendBadger})
	if cfg.Store.Backend != BackendMemory {
		v.NotEmpty("Store.Path", cfg.Store.Path)
	}

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis, CacheNone})
	if cfg.Cache.Backend == CacheRedis {
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.Backend != CacheNone {
		v.MinDuration("Cache.TTL", cfg.Cache.TTL, time.Second)
	}

	if cfg.Auth.JWTSecret != "" {
		v.MinLength("Auth.JWTSecret", cfg.Auth.JWTSecret, 16)
	}
	v.MinDuration("Auth.TokenTTL", cfg.Auth.TokenTTL, time.Minute)
	if (cfg.Auth.BootstrapUsername == "") != (cfg.Auth.BootstrapPassword == "") {
		v.AddError("Auth.Bootstrap", "username and password must be set together", "")
	}
	if cfg.Auth.BootstrapPassword != "" {
		v.MinLength("Auth.BootstrapPassword", cfg.Auth.BootstrapPassword, 8)
	}
	if cfg.Auth.LoginRate <= 0 {
		v.AddError("Auth.LoginRate", "must be positive", cfg.Auth.LoginRate)
	}
	v.Positive("Auth.LoginBurst", cfg.Auth.LoginBurst)

	v.Custom("Gate", cfg.GatePolicy(), func(p any) error {
		return p.(adgate.Policy).Validate()
	})
	v.Range("Gate.Threshold", cfg.Gate.Threshold, 0, 100)
	if cfg.Gate.SessionTTL > 0 {
		v.MinDuration("Gate.SweepInterval", cfg.Gate.SweepInterval, time.Second)
	}
	if cfg.Gate.AssistURL != "" {
		v.URL("Gate.AssistURL", cfg.Gate.AssistURL, []string{"http", "https"})
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", strings.ToLower(cfg.Telemetry.Exporter), []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("Telemetry.SamplingRate", fmt.Sprintf("must be within [0,1], got %g", cfg.Telemetry.SamplingRate), cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
