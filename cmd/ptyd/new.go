package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/config"
	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newNewCmd() *cobra.Command {
	var cols, rows uint16

	cmd := &cobra.Command{
		Use:   "new [session-name] [--] <command> [args...]",
		Short: "Create a new session and print its connection info",
		Long: `Create a new session and print its connection info as JSON.

If session-name is omitted, a short name is generated so "ptyd new" on its
own always works.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cmdArgs := "", args
			if len(args) > 0 {
				name, cmdArgs = args[0], args[1:]
			}
			if name == "" {
				name = uuid.New().String()[:8]
			}

			sockPath, pid, err := createSession(name, cols, rows, cmdArgs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(map[string]any{
				"session": name,
				"pid":     pid,
				"socket":  sockPath,
			})
		},
	}

	cmd.Flags().Uint16Var(&cols, "cols", 80, "initial terminal width")
	cmd.Flags().Uint16Var(&rows, "rows", 24, "initial terminal height")
	return cmd
}

// createSession sets up a session's directory, migrates any pre-hierarchy
// stale socket out of the way, and re-execs the current binary in the
// background to run the actual daemon loop. It returns the new session's
// socket path and daemon pid.
func createSession(name string, cols, rows uint16, cmdArgs []string) (string, int, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", 0, fmt.Errorf("load config: %w", err)
	}

	if len(cmdArgs) == 0 {
		cmdArgs = []string{cfg.Shell}
	}

	dir := sessiondir.Dir(name)
	if err := sessiondir.MigrateStaleSocket(dir); err != nil {
		return "", 0, err
	}

	sockPath := filepath.Join(dir, sessiondir.SocketFilename)
	if sessiondir.IsSocket(sockPath) {
		return "", 0, fmt.Errorf("session %q already exists", name)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", 0, fmt.Errorf("create session directory: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return "", 0, fmt.Errorf("find executable: %w", err)
	}

	logFile, err := os.Create(filepath.Join(dir, "daemon.log"))
	if err != nil {
		return "", 0, fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()

	daemonArgs := append([]string{
		"--internal-daemon=" + name,
		fmt.Sprintf("--internal-cols=%d", cols),
		fmt.Sprintf("--internal-rows=%d", rows),
		"--",
	}, cmdArgs...)

	proc := exec.Command(self, daemonArgs...)
	proc.Stdout = logFile
	proc.Stderr = logFile
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := proc.Start(); err != nil {
		return "", 0, fmt.Errorf("start daemon: %w", err)
	}

	if !sessiondir.WaitForSocket(sockPath, 3*time.Second, 50*time.Millisecond) {
		return "", 0, fmt.Errorf("session %q was created but its socket did not appear in time", name)
	}

	return sockPath, proc.Process.Pid, nil
}
