// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all tables to YAML and JSON",
	Long: `Export dumps the four pipeline tables from the database into
education.yaml and education.json in the output directory.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("out", "data/export", "output directory")
	exportCmd.Flags().String("format", "both", "yaml, json, or both")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" && format != "both" {
		return fmt.Errorf("unknown format %q: use yaml, json, or both", format)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if format != "json" {
		path := filepath.Join(out, "education.yaml")
		if err := st.ExportYAML(ctx, path); err != nil {
			return err
		}
		fmt.Println("exported", path)
	}
	if format != "yaml" {
		path := filepath.Join(out, "education.json")
		if err := st.ExportJSON(ctx, path); err != nil {
			return err
		}
		fmt.Println("exported", path)
	}
	return nil
}
