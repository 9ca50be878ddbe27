package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/evidencekit/cmd/evidencectl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "evidencectl",
		Short:        "Maintenance tools for the evidence service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.ReclaimCmd())
	rootCmd.AddCommand(cmd.TokenCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
