package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mvdenbrink/ptyd/internal/config"
	"github.com/mvdenbrink/ptyd/internal/daemon"
	"github.com/mvdenbrink/ptyd/internal/logging"
	"github.com/mvdenbrink/ptyd/internal/session"
	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

// runInternalDaemon is the body of the backgrounded process `new` spawns.
// It runs the session's event loop until the session exits and every
// client has detached (or the socket file is removed), then returns so
// main can return. Any startup or loop failure exits the process with
// status 1.
func runInternalDaemon(name string, rawArgs []string) {
	cols, rows, cmdArgs := parseInternalDaemonArgs(rawArgs)

	if len(cmdArgs) == 0 {
		fmt.Fprintln(os.Stderr, "ptyd: internal daemon invoked without a command")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptyd: load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewStderr("daemon", cfg.LogLevel).WithSession(name)

	sess, err := session.New(name, cmdArgs[0], cmdArgs, cols, rows, cfg.ScrollbackCapacity)
	if err != nil {
		log.Error("spawn session: %v", err)
		os.Exit(1)
	}
	defer sess.Close()

	sockPath := sessiondir.SocketPath(name)
	srv, err := daemon.New(sockPath, sess, log, cfg.PollIntervalMillis)
	if err != nil {
		log.Error("start server: %v", err)
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		log.Error("server loop: %v", err)
		os.Exit(1)
	}
}

// parseInternalDaemonArgs pulls cols/rows and the trailing command out of
// the re-exec argument list built by createSession.
func parseInternalDaemonArgs(rawArgs []string) (cols, rows uint16, cmdArgs []string) {
	cols, rows = 80, 24
	for i := 0; i < len(rawArgs); i++ {
		arg := rawArgs[i]
		switch {
		case strings.HasPrefix(arg, "--internal-cols="):
			v, _ := strconv.ParseUint(strings.TrimPrefix(arg, "--internal-cols="), 10, 16)
			cols = uint16(v)
		case strings.HasPrefix(arg, "--internal-rows="):
			v, _ := strconv.ParseUint(strings.TrimPrefix(arg, "--internal-rows="), 10, 16)
			rows = uint16(v)
		case arg == "--":
			cmdArgs = rawArgs[i+1:]
			return cols, rows, cmdArgs
		}
	}
	return cols, rows, cmdArgs
}
