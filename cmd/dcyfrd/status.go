package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/daemon"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon liveness and last heartbeat",
	Run: func(cmd *cobra.Command, args []string) {
		root, err := resolveWorkspace()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== dcyfr Daemon Status ==="))

		stateDir := filepath.Join(root, config.StateDirName)
		pid := daemon.ReadPID(filepath.Join(stateDir, "daemon.pid"))
		if pid == 0 {
			fmt.Printf("  %s\n\n", gray("○ not running"))
			return
		}
		fmt.Printf("  %s pid %d\n", green("●"), pid)

		data, err := os.ReadFile(filepath.Join(stateDir, "daemon-state.json"))
		if err != nil {
			fmt.Printf("  %s\n\n", gray("no heartbeat recorded yet"))
			return
		}
		var state types.DaemonState
		if err := json.Unmarshal(data, &state); err != nil {
			fmt.Printf("  %s\n\n", yellow("heartbeat file unreadable"))
			return
		}

		staleness := time.Since(state.LastHeartbeat)
		beat := green(fmt.Sprintf("%.0fs ago", staleness.Seconds()))
		if staleness > 2*time.Minute {
			beat = yellow(fmt.Sprintf("%.0fs ago (stale)", staleness.Seconds()))
		}

		fmt.Printf("  uptime:          %s\n", (time.Duration(state.UptimeMS) * time.Millisecond).Round(time.Second))
		fmt.Printf("  last heartbeat:  %s\n", beat)
		fmt.Printf("  tasks queued:    %d\n", state.TasksQueued)
		fmt.Printf("  tasks completed: %d\n", state.TasksCompleted)
		fmt.Printf("  memory:          %.1f MB\n", state.MemoryUsageMB)
		fmt.Printf("  scheduler:       %v\n", state.SchedulerActive)
		fmt.Printf("  watcher:         %v\n\n", state.WatcherActive)
	},
}
