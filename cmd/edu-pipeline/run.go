// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extract, transform, and load end to end",
	Long: `Run executes a full pipeline run: extract, save the raw snapshot, clean,
save the processed snapshot, and load the database. Snapshots are copied to
object storage when an archive endpoint is configured.

With --schedule the pipeline runs immediately and then at every interval
until interrupted; failed runs are logged and the schedule continues.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().Duration("schedule", 0, "repeat every interval (default: the schedule config key; 0 runs once)")
	runCmd.Flags().Bool("json", false, "print the run summary as JSON")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	interval := cfg.Schedule
	if cmd.Flags().Changed("schedule") {
		interval, _ = cmd.Flags().GetDuration("schedule")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := newRunner(cmd.Context(), st, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	if interval > 0 {
		return r.Schedule(cmd.Context(), interval, os.Stdout)
	}

	summary, err := r.Run(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Printf("\nrun %s finished in %s\n", summary.RunID, summary.Duration().Round(time.Millisecond))
	return nil
}
