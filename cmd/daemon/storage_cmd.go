// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/persistence/sqlite"
)

func runStorageCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  cinegate storage verify [--path PATH | --config FILE] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string    Path to the SQLite catalog database")
	_, _ = fmt.Fprintln(w, "  --config string  Resolve the database from this config file instead")
	_, _ = fmt.Fprintln(w, "  --mode string    Verification mode: quick (default) or full")
}

func runStorageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cinegate storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	path := fs.String("path", "", "Path to the SQLite catalog database")
	configPath := fs.String("config", "", "path to config file (YAML)")
	mode := fs.String("mode", "quick", "Verification mode: quick or full")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m := strings.ToLower(strings.TrimSpace(*mode))
	if m != "quick" && m != "full" {
		fmt.Fprintf(stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", *mode)
		return 2
	}

	dbPath := *path
	if dbPath == "" {
		cfg, err := loadQuiet(*configPath, "", stderr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if cfg.Store.Backend != config.BackendSQLite {
			fmt.Fprintf(stderr, "Error: store backend is %q, only sqlite can be verified\n", cfg.Store.Backend)
			return 2
		}
		dbPath = cfg.Store.Path
	}

	fmt.Fprintf(stderr, "Verifying integrity of %s (mode: %s)...\n", dbPath, m)
	issues, err := sqlite.VerifyIntegrity(context.Background(), dbPath, m)
	if err != nil {
		fmt.Fprintf(stderr, "Verification failed: %v\n", err)
		return 1
	}
	if issues != nil {
		fmt.Fprintln(stderr, "CORRUPTION DETECTED")
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return 1
	}

	fmt.Fprintln(stdout, "Integrity verified: ok")
	return 0
}
