package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ptyd",
		Short: "Persistent terminal session daemon",
		Long: `ptyd keeps a shell (or any command) running behind a PTY and a Unix
socket, so you can detach and reattach without losing scrollback or killing
the job underneath.

Session names may contain '/' for hierarchical sessions:
  ptyd new parent
  ptyd new parent/child
  ptyd kill parent   # kills parent and all children`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newNewCmd(),
		newAttachCmd(),
		newOpenCmd(),
		newListCmd(),
		newKillCmd(),
		newSocketCmd(),
	)
	return root
}
