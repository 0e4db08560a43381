package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/bridge"
	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <session-name>",
		Short: "Attach to an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			sockPath := sessiondir.SocketPath(name)
			if !sessiondir.IsSocket(sockPath) {
				return fmt.Errorf("session %q not found", name)
			}
			return runBridgeAndExit(sockPath)
		},
	}
}

// runBridgeAndExit relays stdio to sockPath and terminates the process
// with the daemon's reported exit code, the way the original CLI's
// attach/open commands both do once they reach a live session.
func runBridgeAndExit(sockPath string) error {
	code, err := bridge.Run(sockPath)
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}
