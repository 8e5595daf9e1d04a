// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/edu-pipeline/internal/dashboard"
	"github.com/pdiddy/edu-pipeline/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the education dashboard",
	Long: `Serve starts the dashboard: an HTML overview at /, a JSON API under /api,
health probes at /health and /healthz, and Prometheus metrics at /metrics.

With --schedule the pipeline also runs in the background at every interval,
and its run metrics are exposed on the same /metrics endpoint.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "override dashboard.addr")
	serveCmd.Flags().Duration("schedule", 0, "also run the pipeline every interval")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Dashboard.Addr = addr
	}
	interval, _ := cmd.Flags().GetDuration("schedule")
	cfg.Dashboard.MinYear = cfg.Transform.MinYear
	cfg.Dashboard.MaxYear = cfg.Transform.MaxYear

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := dashboard.New(st, cfg.Dashboard, reg, logger)
	if err != nil {
		return err
	}

	var runner *pipeline.Runner
	if interval > 0 {
		if runner, err = newRunner(cmd.Context(), st, reg); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return srv.Run(ctx) })
	if runner != nil {
		g.Go(func() error { return runner.Schedule(ctx, interval, os.Stdout) })
	}
	return g.Wait()
}
