// SPDX-License-Identifier: MIT

// Package daemon wires the cinegate services together and runs them.
package daemon

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/api"
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/cache"
	"github.com/ManuGH/cinegate/internal/catalog"
	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/health"
	"github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/ratelimit"
	"github.com/ManuGH/cinegate/internal/telemetry"
)

// Runtime is a fully wired daemon.
type Runtime struct {
	App     *App
	Handler http.Handler
	Catalog *catalog.Service
	Gates   *adgate.Registry
}

// Bootstrap opens the store and cache, builds the services and returns an
// App ready to Run. Resources opened here are released by the manager's
// shutdown hooks, or immediately when Bootstrap fails.
func Bootstrap(ctx context.Context, holder *config.Holder) (_ *Runtime, err error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	var hooks []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].hook(context.Background())
		}
	}()

	store, err := catalog.OpenStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	hooks = append(hooks, namedHook{"store", func(context.Context) error { return store.Close() }})
	logger.Info().
		Str("event", "store.opened").
		Str("backend", cfg.Store.Backend).
		Str("path", cfg.Store.Path).
		Msg("catalog store opened")

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("store", true, store.Ping))

	lookupCache, err := openCache(ctx, cfg.Cache, logger, hm)
	if err != nil {
		return nil, err
	}
	hooks = append(hooks, namedHook{"cache", func(context.Context) error { return lookupCache.Close() }})

	cat := catalog.NewService(store, catalog.WithCache(lookupCache, cfg.Cache.TTL))

	secret, err := tokenSecret(cfg.Auth.JWTSecret, logger)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	authSvc := auth.NewService(cat, issuer, cfg.Auth.AllowSignup)
	if err := authSvc.Bootstrap(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword); err != nil {
		return nil, err
	}

	gates, err := adgate.NewRegistry(cfg.GatePolicy(), adgate.WithSessionTTL(cfg.Gate.SessionTTL))
	if err != nil {
		return nil, fmt.Errorf("gate registry: %w", err)
	}
	hm.RegisterChecker(health.NewGaugeChecker("gate_sessions", "sessions", gates.Len))

	proxies, err := ratelimit.ParseCIDRs(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{
		Scope:          "login",
		Rate:           rate.Limit(cfg.Auth.LoginRate),
		Burst:          cfg.Auth.LoginBurst,
		TrustedProxies: proxies,
	})

	srv, err := api.New(api.Deps{
		Catalog:      cat,
		Auth:         authSvc,
		Gates:        gates,
		Health:       hm,
		LoginLimiter: limiter,
		Config:       holder.Get,
	})
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg.Telemetry, cfg.Version))
	if err != nil {
		logger.Warn().Err(err).Str("event", "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	} else {
		hooks = append(hooks, namedHook{"telemetry", tp.Shutdown})
	}

	sweeper := &adgate.Sweeper{Registry: gates, Conf: adgate.SweeperConfig{Interval: cfg.Gate.SweepInterval}}
	mgr, err := NewManager(cfg.Server, Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
		Workers: []Worker{{
			Name: "gate-sweeper",
			Run: func(ctx context.Context) error {
				sweeper.Run(ctx)
				return nil
			},
		}},
		Drain: gates.Close,
	})
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}

	app := NewApp(logger, mgr, holder, func(next config.AppConfig) {
		applyConfig(logger, gates, next)
	})
	return &Runtime{App: app, Handler: srv.Handler(), Catalog: cat, Gates: gates}, nil
}

// openCache builds the lookup cache. A redis cache also gets a non-critical
// health check.
func openCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger, hm *health.Manager) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log.WithComponent("cache"))
		if err != nil {
			return nil, err
		}
		hm.RegisterChecker(health.NewPingChecker("redis", false, rc.HealthCheck))
		return rc, nil
	case config.CacheNone:
		logger.Info().Str("event", "cache.disabled").Msg("lookup cache disabled")
		return cache.NewNoOpCache(), nil
	default:
		return cache.NewMemoryCache(cfg.TTL), nil
	}
}

// tokenSecret returns the configured secret or, when none is set, a random
// one. Tokens signed with a random secret die with the process.
func tokenSecret(configured string, logger zerolog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	logger.Warn().
		Str("event", "auth.ephemeral_secret").
		Msg("auth.jwtSecret is not configured; using an ephemeral secret, admin tokens will not survive a restart")
	return secret, nil
}

// applyConfig pushes a reloaded configuration into the running services.
// Listener, store and cache settings need a restart.
func applyConfig(logger zerolog.Logger, gates *adgate.Registry, cfg config.AppConfig) {
	if err := gates.SetPolicy(cfg.GatePolicy()); err != nil {
		logger.Warn().Err(err).Str("event", "config.apply_failed").Msg("gate policy rejected")
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn().Err(err).Str("event", "config.apply_failed").Msg("log level rejected")
	}
}
