/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package cli holds the gofountain command tree. Every command is a thin cobra
// wrapper around a RunX function that writes to an io.Writer.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gofountain/internal/config"
	"gofountain/internal/library"
	applog "gofountain/internal/log"
	"gofountain/internal/telemetry"
	"gofountain/internal/version"
)

// app is the configuration loaded before any command runs.
var app struct {
	cfg    config.Config
	secret string
}

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:           "gofountain",
	Short:         "gofountain parses, stores and exports Fountain screenplays",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, secret, err := config.Load()
		if err != nil {
			return err
		}
		app.cfg, app.secret = cfg, secret
		initLogging(cfg.Logging, cmd.ErrOrStderr())
		telemetry.Event("command", map[string]any{"cmd": cmd.CommandPath()})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func initLogging(lc config.LoggingConfig, stderr io.Writer) {
	opts := applog.Options{
		Level:     lc.Level,
		Format:    lc.Format,
		AddSource: lc.Source,
		File:      lc.File,
		Color:     lc.Color,
		Output:    stderr,
	}
	if logLevelFlag != "" {
		opts.Level = logLevelFlag
	}
	applog.Init(opts)
}

// LibraryDir is where crash reports go: the sqlite library directory, or ""
// when it cannot be determined.
func LibraryDir() string {
	if app.cfg.Library.Path != "" {
		return app.cfg.Library.Path
	}
	dir, err := config.DefaultLibraryDir()
	if err != nil {
		return ""
	}
	return dir
}

// openLibrary opens the store configured in app.cfg.
func openLibrary(ctx context.Context) (*library.SQLStore, error) {
	st, err := library.Open(ctx, app.cfg.Library, app.secret)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	return st, nil
}

// Execute runs the command tree and returns the process exit status.
func Execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	telemetry.Shutdown()
	defer func() { _ = applog.Close() }()
	if err != nil {
		applog.WithComponent("cli").Debug("command failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
