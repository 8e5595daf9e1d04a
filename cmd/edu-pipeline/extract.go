// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch OECD education datasets into a raw snapshot",
	Long: `Extract downloads each configured OECD dataset (enrollment, graduation,
spending) over the SDMX-JSON API and writes one CSV per dataset plus a
metadata file to the raw directory. Requests are spaced by request_delay;
the first failed dataset aborts the run.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("raw-dir", "", "override extraction.raw_dir")
	extractCmd.Flags().Duration("delay", 0, "override extraction.request_delay")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if dir, _ := cmd.Flags().GetString("raw-dir"); dir != "" {
		cfg.Extraction.RawDir = dir
	}
	if cmd.Flags().Changed("delay") {
		cfg.Extraction.RequestDelay, _ = cmd.Flags().GetDuration("delay")
	}

	r, err := newRunner(cmd.Context(), nil, nil)
	if err != nil {
		return err
	}
	_, err = r.Extract(cmd.Context(), os.Stdout)
	return err
}
