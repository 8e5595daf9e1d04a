// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the edu-pipeline CLI.
// Each pipeline stage is a subcommand (extract, transform, load); run
// chains them, serve starts the dashboard, and stats/export inspect the
// database.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/edu-pipeline/internal/archive"
	"github.com/pdiddy/edu-pipeline/internal/config"
	"github.com/pdiddy/edu-pipeline/internal/extract"
	"github.com/pdiddy/edu-pipeline/internal/logging"
	"github.com/pdiddy/edu-pipeline/internal/pipeline"
	"github.com/pdiddy/edu-pipeline/internal/secrets"
	"github.com/pdiddy/edu-pipeline/internal/store"
	"github.com/pdiddy/edu-pipeline/internal/telemetry"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 5 * time.Second

// Process-wide state set up by the root command before any subcommand runs.
var (
	cfg             types.PipelineConfig
	logger          = slog.Default()
	logCloser       io.Closer
	shutdownTracing telemetry.ShutdownFunc
)

// rootCmd is the base command for the edu-pipeline CLI.
var rootCmd = &cobra.Command{
	Use:   "edu-pipeline",
	Short: "OECD education statistics pipeline and dashboard",
	Long: `edu-pipeline extracts education statistics (enrollment, graduation,
spending) from the OECD SDMX-JSON API, cleans them into typed tables, loads
them into SQLite or PostgreSQL, and serves a dashboard over the result.

Each stage is a subcommand: extract, transform, and load. run chains the
three; serve starts the dashboard.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./edu-pipeline.yaml or ~/.config/edu-pipeline/edu-pipeline.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of credential files")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level: debug, info, warning, error")
}

func setup(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	c, used, err := config.Load(config.NewViper(cfgFile))
	if err != nil {
		return err
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}

	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	s, err := secrets.Load(secretsDir, os.Stderr)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}
	secrets.Apply(&c, s)

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Logging.Level = lvl
	}
	if err := config.Validate(c); err != nil {
		return err
	}
	cfg = c

	l, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	slog.SetDefault(logger)

	shutdownTracing, err = telemetry.Init(cmd.Context(), cfg.Telemetry, logger)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// openStore opens the configured database.
func openStore() (*store.Store, error) {
	return store.Open(cfg.Database)
}

// newRunner wires the pipeline stages from the loaded config. loader and
// reg may be nil for stages that do not load or report metrics.
func newRunner(ctx context.Context, loader pipeline.Loader, reg prometheus.Registerer) (*pipeline.Runner, error) {
	r := &pipeline.Runner{
		Fetcher: extract.NewClient(cfg.Extraction),
		Loader:  loader,
		Logger:  logger,
		Config:  cfg,
	}
	if cfg.Archive.Enabled() {
		s, err := archive.NewMinIO(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("connecting to archive: %w", err)
		}
		r.Archiver = archive.New(s, cfg.Archive.Prefix)
	}
	if reg != nil {
		m, err := pipeline.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("registering pipeline metrics: %w", err)
		}
		r.Metrics = m
	}
	return r, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
