// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for pbiexport.
// It implements subcommands for exporting rows into Power BI push datasets,
// managing access tokens and inspecting workspaces using the Cobra CLI framework.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pbiexport/cli/internal/config"
	"pbiexport/cli/internal/logging"
)

var (
	showVersion bool
	logLevel    string
	logFormat   string

	// settings and logger are set before any subcommand runs.
	settings = config.Defaults()
	logger   = logging.Discard()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pbiexport",
	Short: "Export tabular data into Power BI push datasets",
	Long: `pbiexport streams rows from a CSV file, a PostgreSQL query or a SQLite query
into a Power BI push dataset. Datasets are created, appended to or overwritten
depending on the export policy, and access tokens can be stored in the OS keychain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("pbiexport %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// setup loads settings, applies the persistent flags and builds the logger.
func setup() error {
	c, err := config.Load()
	if err != nil {
		// A broken config file should not block exports; defaults apply.
		fmt.Fprintln(os.Stderr, logging.PresentError("ignoring config file", err))
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if logFormat != "" {
		c.LogFormat = logFormat
	}

	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return err
	}
	settings = c
	logger = logging.New(os.Stderr, logging.ParseLevel(c.LogLevel), format)
	slog.SetDefault(logger)
	return nil
}

// presentedError marks an error whose explanation was already printed.
type presentedError struct{ error }

func (p presentedError) Unwrap() error { return p.error }

// Execute runs the CLI application and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var shown presentedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
}
