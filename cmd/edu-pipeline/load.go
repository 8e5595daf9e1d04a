// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the newest processed snapshot into the database",
	Long: `Load creates the tables if needed, upserts country metadata, and appends
the enrollment, graduation, and spending records of the newest processed
snapshot. Each table is written in one transaction.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().String("processed-dir", "", "override transform.processed_dir")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	if dir, _ := cmd.Flags().GetString("processed-dir"); dir != "" {
		cfg.Transform.ProcessedDir = dir
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := newRunner(cmd.Context(), st, nil)
	if err != nil {
		return err
	}
	_, err = r.Load(cmd.Context(), os.Stdout)
	return err
}
