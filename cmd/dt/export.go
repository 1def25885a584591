package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datatops/datatops/internal/backup"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every project and record as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		out := os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := backup.Export(cmd.Context(), st, out); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}
