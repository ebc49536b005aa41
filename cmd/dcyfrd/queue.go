package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the persisted task queue",
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

		data, err := os.ReadFile(cfg.StatePath("queue.json"))
		if err != nil {
			fmt.Println("Queue: empty (no persisted state)")
			return
		}
		var state struct {
			Queue []*types.Task `json:"queue"`
		}
		if err := json.Unmarshal(data, &state); err != nil {
			fmt.Println("Queue: state file unreadable")
			return
		}

		if len(state.Queue) == 0 {
			fmt.Println("Queue: empty")
			return
		}
		fmt.Printf("Queue: %d task(s)\n", len(state.Queue))
		for _, t := range state.Queue {
			scope := "full scan"
			if len(t.Files) > 0 {
				scope = fmt.Sprintf("%d file(s)", len(t.Files))
			}
			fmt.Printf("  %-18s %-8s %-9s %s queued %s\n",
				t.Scanner, t.Priority, t.Source, scope, t.CreatedAt.Format("15:04:05"))
		}
	},
}
