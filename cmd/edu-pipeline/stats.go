// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	Long: `Stats prints the number of rows in each pipeline table and the date
country metadata was last refreshed. Missing tables count as zero.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	tables := st.TableStats(ctx)
	last, err := st.LastUpdated(ctx)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		out := struct {
			Tables      any     `json:"tables"`
			LastUpdated *string `json:"last_updated"`
		}{Tables: tables}
		if !last.IsZero() {
			d := last.Format("2006-01-02")
			out.LastUpdated = &d
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("%-12s  %-24s  %s\n", "Dataset", "Table", "Rows")
	fmt.Println(strings.Repeat("-", 46))
	for _, t := range tables {
		fmt.Printf("%-12s  %-24s  %d\n", t.Dataset, t.Table, t.Rows)
	}
	if last.IsZero() {
		fmt.Println("\nlast updated: never")
	} else {
		fmt.Printf("\nlast updated: %s\n", last.Format("2006-01-02"))
	}
	return nil
}
