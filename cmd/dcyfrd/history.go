package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history [scanner-id]",
	Short: "Query the scan result archive",
	Long: `Print archived scan results, newest first. The archive holds trend
data beyond the rolling health history window.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := resolveWorkspace()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		archive, err := storage.Open(cfg.StatePath("archive.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer archive.Close()

		scannerID := ""
		if len(args) == 1 {
			scannerID = args[0]
		}

		results, err := archive.RecentResults(context.Background(), scannerID, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("History: no archived results")
			return
		}

		for _, r := range results {
			fmt.Printf("%s  %-18s %-7s score %5.1f  %dv/%dw  %s\n",
				r.RecordedAt.Format("2006-01-02 15:04"),
				r.Scanner, r.Status, r.Score, r.Violations, r.Warnings, r.Summary)
		}
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum rows to print")
}
