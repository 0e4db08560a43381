package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newSocketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "socket <session-name>",
		Short: "Print a session's socket path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(sessiondir.SocketPath(args[0]))
			return nil
		},
	}
}
