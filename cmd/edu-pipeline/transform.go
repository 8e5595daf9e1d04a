// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Clean the newest raw snapshot into processed tables",
	Long: `Transform reads the newest raw snapshot, standardizes its columns, drops
observations outside the configured year range or plausible value range,
derives country metadata, and writes one cleaned CSV per table.`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().String("raw-dir", "", "override extraction.raw_dir")
	transformCmd.Flags().String("processed-dir", "", "override transform.processed_dir")

	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	if dir, _ := cmd.Flags().GetString("raw-dir"); dir != "" {
		cfg.Extraction.RawDir = dir
	}
	if dir, _ := cmd.Flags().GetString("processed-dir"); dir != "" {
		cfg.Transform.ProcessedDir = dir
	}

	r, err := newRunner(cmd.Context(), nil, nil)
	if err != nil {
		return err
	}
	_, files, err := r.Transform(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println()
	for _, name := range names {
		fmt.Printf("wrote    %s\n", files[name])
	}
	return nil
}
