package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"ariadm/internal/aria2"
	"ariadm/internal/config"
	"ariadm/internal/database"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ariadm",
		Short:         "ariadm drives an aria2 engine and keeps a catalog of downloads",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the download supervisor and the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Delete every download and custom category",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *database.DB) error {
					if err := db.ResetAll(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "All downloads and categories were deleted")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Convert size and rate values written by older versions",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *database.DB) error {
					return db.NormalizeLegacyUnits()
				})
			},
		},
		&cobra.Command{
			Use:   "engine-version",
			Short: "Print the version of the running download engine",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				client := aria2.NewClient(cfg.EngineURL(), cfg.Aria2Secret, cfg.EngineCallTimeout)
				defer client.Close()

				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.EngineCallTimeout)
				defer cancel()

				v, err := client.GetVersion(ctx)
				if err != nil {
					slog.Debug("Engine version lookup failed", "error", err)
					fmt.Fprintln(cmd.OutOrStdout(), "did not respond")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
	)

	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// withDatabase opens the catalog for a one-shot command
func withDatabase(fn func(db *database.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	return fn(db)
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
