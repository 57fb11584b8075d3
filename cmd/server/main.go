// Package main is the entry point for the accounts server.
//
// main stays minimal:
//  1. Load configuration (defaults, optional YAML file, ACCOUNTS_* env vars)
//  2. Build the logger
//  3. Create and start the server
//
// Configuration errors, including a missing ACCOUNTS_AUTH_JWT_SECRET, stop
// the process with exit status 1 before anything listens.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/accounts/internal/config"
	"github.com/sakif/accounts/internal/server"
)

func main() {
	// ACCOUNTS_CONFIG_FILE optionally points at a YAML file; env vars still win.
	cfg, err := config.Load(os.Getenv("ACCOUNTS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
