// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/daemon"
	"github.com/ManuGH/cinegate/internal/health"
	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "storage":
			os.Exit(runStorageCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "export":
			os.Exit(runExportCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "import":
			os.Exit(runImportCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	envFile := flag.String("env-file", ".env", "optional dotenv file seeding the environment")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// safe defaults until config is loaded
	xglog.Configure(xglog.Config{Level: "info", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := newLoader(*configPath, *envFile)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", loader.ConfigPath()).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if loader.ConfigPath() != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", loader.ConfigPath()).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.ListenAddr).
		Str("store", cfg.Store.Backend).
		Str("cache", cfg.Cache.Backend).
		Int("gate_threshold", cfg.Gate.Threshold).
		Str("unlock_mode", cfg.Gate.UnlockMode).
		Msg("starting cinegate")

	rt, err := daemon.Bootstrap(ctx, config.NewHolder(cfg, loader))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "bootstrap.failed").
			Msg("failed to build services")
	}

	if err := rt.App.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}
	logger.Info().Msg("server exiting")
}

// newLoader builds the config loader shared by the daemon and the offline
// subcommands.
func newLoader(configPath, envFile string) *config.Loader {
	loader := config.NewLoader(strings.TrimSpace(configPath), version.Version)
	if envFile != "" {
		loader = loader.WithDotEnv(envFile)
	}
	return loader
}

// loadQuiet loads the configuration for a subcommand; logs go to stderr.
func loadQuiet(configPath, envFile string, stderr io.Writer) (config.AppConfig, error) {
	xglog.Configure(xglog.Config{Level: "warn", Format: "console", Output: stderr, Version: version.Version})
	return newLoader(configPath, envFile).Load()
}
