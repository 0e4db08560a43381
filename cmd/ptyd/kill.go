package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <session-name>",
		Short: "Kill a session (and any children of a hierarchical name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := sessiondir.Kill(name); err != nil {
				return err
			}
			fmt.Printf("session %q killed\n", name)
			return nil
		},
	}
}
