package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

func newListCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				return printSessions()
			}
			return watchSessions()
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing the session list as sessions come and go")
	return cmd
}

func printSessions() error {
	sessions, err := sessiondir.ListAll()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, name := range sessions {
		fmt.Println(name)
	}
	return nil
}

// watchSessions reprints the session list whenever the socket root
// changes, using fsnotify instead of polling ListAll on a timer.
func watchSessions() error {
	root := sessiondir.Root()
	if err := os.MkdirAll(root, 0o700); err != nil {
		return fmt.Errorf("create socket root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, root); err != nil {
		return fmt.Errorf("watch socket root: %w", err)
	}

	if err := printSessions(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watcher.Add(event.Name)
				}
			}
			fmt.Println("---")
			if err := printSessions(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "ptyd: watch error: %v\n", err)
		case <-sigCh:
			return nil
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			addWatchRecursive(watcher, dir+"/"+entry.Name())
		}
	}
	return nil
}
