package main

import (
	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newOpenCmd() *cobra.Command {
	var cols, rows uint16

	cmd := &cobra.Command{
		Use:   "open <session-name> [--] <command> [args...]",
		Short: "Attach to a session, creating it first if it doesn't exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cmdArgs := args[1:]

			sockPath := sessiondir.SocketPath(name)
			if !sessiondir.IsSocket(sockPath) {
				var err error
				sockPath, _, err = createSession(name, cols, rows, cmdArgs)
				if err != nil {
					return err
				}
			}
			return runBridgeAndExit(sockPath)
		},
	}

	cmd.Flags().Uint16Var(&cols, "cols", 80, "initial terminal width")
	cmd.Flags().Uint16Var(&rows, "rows", 24, "initial terminal height")
	return cmd
}
