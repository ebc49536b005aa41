package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the guardian daemon in the foreground",
	Long: `Start the daemon: restore the task queue, arm schedules, watch the
workspace for changes, and heartbeat until a termination signal arrives.

Only one instance may run per workspace; a second start fails while the
first holds the PID file.`,
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

		d, err := daemon.New(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Daemon: starting in %s\n", root)
		if err := d.Run(context.Background()); err != nil {
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Error: daemon failed: %v\n", err)
			os.Exit(1)
		}
	},
}
