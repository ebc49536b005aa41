package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/health"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the latest workspace health snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		root, err := resolveWorkspace()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cfg, err := config.Load(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		snapshot, err := health.LoadSnapshot(cfg.StatePath("health.json"))
		if err != nil {
			fmt.Println("No health snapshot recorded yet; the daemon writes one when it stops.")
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Workspace Health ==="))
		fmt.Printf("  overall: %s %.1f (%s)\n", statusGlyph(snapshot.Overall.Status),
			snapshot.Overall.Score, snapshot.Overall.Status)
		fmt.Printf("  taken:   %s\n", snapshot.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("  packages: %d\n\n", snapshot.Workspace.Packages)

		ids := make([]string, 0, len(snapshot.Scanners))
		for id := range snapshot.Scanners {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			s := snapshot.Scanners[id]
			fmt.Printf("  %-18s %6.1f  %-7s %s\n", id, s.Score, s.Status, s.Summary)
		}
		fmt.Println()
	},
}

func statusGlyph(s types.HealthStatus) string {
	switch s {
	case types.HealthHealthy:
		return color.New(color.FgGreen).Sprint("●")
	case types.HealthDegraded:
		return color.New(color.FgYellow).Sprint("●")
	default:
		return color.New(color.FgRed).Sprint("●")
	}
}
