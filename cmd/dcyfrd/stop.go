package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running daemon to drain and exit",
	Run: func(cmd *cobra.Command, args []string) {
		root, err := resolveWorkspace()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pidPath := filepath.Join(root, config.StateDirName, "daemon.pid")
		pid := daemon.ReadPID(pidPath)
		if pid == 0 {
			fmt.Println("Daemon: not running (no PID file)")
			return
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find process %d: %v\n", pid, err)
			os.Exit(1)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot signal pid %d: %v\n", pid, err)
			os.Exit(1)
		}

		fmt.Printf("Daemon: sent SIGTERM to pid %d, waiting for drain\n", pid)
		deadline := time.Now().Add(15 * time.Second)
		for time.Now().Before(deadline) {
			if proc.Signal(syscall.Signal(0)) != nil {
				fmt.Println("Daemon: stopped")
				return
			}
			time.Sleep(200 * time.Millisecond)
		}
		fmt.Println("Daemon: still draining; check daemon.log")
	},
}
