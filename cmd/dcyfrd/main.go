package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var workspaceRoot string

var rootCmd = &cobra.Command{
	Use:   "dcyfrd",
	Short: "Workspace guardian daemon",
	Long: `dcyfrd continuously evaluates compliance, security, governance, and
quality rules across a multi-package workspace. Scanners run on demand,
on a schedule, or in reaction to file changes, and their results roll up
into a persisted health score with historical trend data.`,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", "", "workspace root (default: current directory)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the workspace root flag or the current directory.
func resolveWorkspace() (string, error) {
	if workspaceRoot != "" {
		return workspaceRoot, nil
	}
	return os.Getwd()
}
