// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("event", "startup.checks_begin").Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkStore(logger, cfg); err != nil {
		return fmt.Errorf("store check failed: %w", err)
	}
	if err := checkRedis(ctx, logger, cfg); err != nil {
		return fmt.Errorf("cache check failed: %w", err)
	}

	logger.Info().Str("event", "startup.checks_passed").Msg("all startup checks passed")
	return nil
}

// checkDataDir creates the data directory when missing and probes writability.
func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkStore(logger zerolog.Logger, cfg config.AppConfig) error {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		if cfg.Store.Path == "" {
			logger.Warn().
				Str("store_backend", cfg.Store.Backend).
				Msg("catalog uses in-memory store without snapshot; data is lost on restart")
		}
	case config.BackendSQLite, config.BackendBadger:
		if cfg.Store.Path == "" {
			return fmt.Errorf("%s backend requires a store path", cfg.Store.Backend)
		}
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; the catalog may be lost on reboot")
	}
	return nil
}

// checkRedis only dials; authentication problems surface when the cache connects.
func checkRedis(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.Cache.Backend != config.CacheRedis {
		return nil
	}
	dialer := net.Dialer{Timeout: 3 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Cache.RedisAddr)
	if err != nil {
		return fmt.Errorf("redis %s unreachable: %w", cfg.Cache.RedisAddr, err)
	}
	_ = conn.Close()
	logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("redis is reachable")
	return nil
}
