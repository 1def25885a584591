// Package main is the datatops operations CLI. It opens the storage backend
// directly, so it works without a running API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datatops/datatops/internal/config"
	"github.com/datatops/datatops/internal/store"
)

var (
	cfg *config.Config
	st  store.Store
)

var rootCmd = &cobra.Command{
	Use:           "dt",
	Short:         "Operations CLI for the Datatops store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err = store.New(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
