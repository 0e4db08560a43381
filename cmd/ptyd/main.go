// Command ptyd creates and attaches to persistent terminal sessions: a
// small daemon holds a PTY and its scrollback open behind a Unix socket
// so a client can disconnect and reconnect without losing the shell.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mvdenbrink/ptyd/internal/config"
	"github.com/mvdenbrink/ptyd/internal/sessiondir"
)

// internalDaemonPrefix marks the hidden re-exec invocation `new` uses to
// launch the backgrounded per-session daemon process. It's intercepted
// here, ahead of cobra, the same way mhist's main() scans for
// "--session-id=" before dispatching to its command switch.
const internalDaemonPrefix = "--internal-daemon="

func main() {
	if cfg, err := config.Load(); err == nil {
		sessiondir.UseConfiguredRoot(cfg.SocketRoot)
	}

	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, internalDaemonPrefix) {
			runInternalDaemon(strings.TrimPrefix(arg, internalDaemonPrefix), os.Args[1:])
			return
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
