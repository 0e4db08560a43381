// Package sessiondir resolves where a session's socket and log files
// live on disk, and implements the hierarchical naming scheme (session
// names may contain '/' to nest children under a parent).
package sessiondir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SocketFilename is the name of the socket file within a session directory.
const SocketFilename = "socket"

// configuredRoot holds the socket_root value from the loaded config file,
// set once at startup via UseConfiguredRoot.
var configuredRoot string

// UseConfiguredRoot sets the socket root read from configuration. Root
// checks it after $PTERM_SOCKET_DIR but before the XDG/tmp fallback.
// Passing "" clears any previously configured root.
func UseConfiguredRoot(path string) {
	configuredRoot = path
}

// Root resolves the directory under which all session directories live:
// $PTERM_SOCKET_DIR, then the configured socket_root, then
// $XDG_RUNTIME_DIR/ptyd, then /tmp/ptyd-<uid>.
func Root() string {
	if dir := os.Getenv("PTERM_SOCKET_DIR"); dir != "" {
		return dir
	}
	if configuredRoot != "" {
		return configuredRoot
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "ptyd")
	}
	return fmt.Sprintf("/tmp/ptyd-%d", os.Getuid())
}

// Dir returns the session directory for name, which may contain '/' for
// hierarchical names such as "parent/child".
func Dir(name string) string {
	return filepath.Join(Root(), name)
}

// SocketPath returns the socket file path for name.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), SocketFilename)
}

// IsSocket reports whether path exists and is a Unix domain socket.
func IsSocket(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}

// MigrateStaleSocket removes a pre-hierarchy socket file that was created
// directly at the session's directory path (instead of <dir>/socket), so
// the hierarchical directory can be created in its place. It is a no-op
// if dir doesn't exist or is already a directory.
func MigrateStaleSocket(dir string) error {
	info, err := os.Lstat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return os.Remove(dir)
}

// WaitForSocket polls until path becomes a live socket or timeout elapses.
func WaitForSocket(path string, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if IsSocket(path) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// Find recursively discovers session names under base, reporting them
// relative to root with "/"-joined hierarchical names. A directory counts
// as a session if it directly contains a socket file.
func Find(base, root string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(base, entry.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		sock := filepath.Join(path, SocketFilename)
		if IsSocket(sock) {
			sessions = append(sessions, rel)
		}

		children, err := Find(path, root)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, children...)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// ListAll returns every discovered session under root, sorted.
func ListAll() ([]string, error) {
	root := Root()
	return Find(root, root)
}

// Kill removes a session's directory tree (the daemon detects the
// vanished socket and shuts itself down) and prunes now-empty ancestor
// directories up to, but not including, root.
func Kill(name string) error {
	root := Root()
	dir := Dir(name)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("session %q not found", name)
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	parent := filepath.Dir(dir)
	for parent != root && strings.HasPrefix(parent, root) {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(parent); err != nil {
			break
		}
		parent = filepath.Dir(parent)
	}

	return nil
}
