// Package session ties a PTY to its scrollback buffer and tracks child
// exit status, the unit the daemon's event loop multiplexes over.
package session

import (
	"errors"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/mvdenbrink/ptyd/internal/ptyexec"
	"github.com/mvdenbrink/ptyd/internal/scrollback"
)

// DefaultScrollbackSize is the ring capacity used when a session doesn't
// override it: 1MB.
const DefaultScrollbackSize = 1024 * 1024

// Session owns a running PTY, its scrollback, and its last-observed exit
// status.
type Session struct {
	Name       string
	pty        *ptyexec.PTY
	scrollback *scrollback.Ring
	exited     bool
	exitCode   int
}

// New spawns cmd/args behind a PTY of the given size and wraps it with a
// scrollback buffer of capacity bytes. A capacity of 0 selects
// DefaultScrollbackSize.
func New(name, cmd string, args []string, cols, rows uint16, capacity int) (*Session, error) {
	if capacity <= 0 {
		capacity = DefaultScrollbackSize
	}
	p, err := ptyexec.Spawn(cmd, args, cols, rows)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:       name,
		pty:        p,
		scrollback: scrollback.New(capacity),
	}, nil
}

// MasterFd returns the PTY master fd for registration with the poller.
func (s *Session) MasterFd() int {
	return s.pty.MasterFd
}

// ReadPTY reads whatever is available from the PTY master into buf,
// appending what was read to scrollback.
func (s *Session) ReadPTY(buf []byte) (int, error) {
	n, err := unix.Read(s.pty.MasterFd, buf)
	if n > 0 {
		s.scrollback.Append(buf[:n])
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

// WritePTY forwards input to the PTY master, retrying on EINTR and
// yielding the scheduler on EAGAIN, until all of data has been written
// or a non-recoverable error occurs.
func (s *Session) WritePTY(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := unix.Write(s.pty.MasterFd, data[written:])
		switch {
		case err == nil && n == 0:
			return errors.New("pty write returned 0")
		case err == nil:
			written += n
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			runtime.Gosched()
		default:
			return err
		}
	}
	return nil
}

// Resize issues a window-size change on the PTY.
func (s *Session) Resize(cols, rows uint16) error {
	return s.pty.Resize(cols, rows)
}

// Scrollback returns the accumulated scrollback contents.
func (s *Session) Scrollback() []byte {
	return s.scrollback.GetContents()
}

// CheckExit polls the child's status without blocking. It is idempotent:
// once an exit has been observed, subsequent calls keep returning the
// same result without touching waitpid again.
func (s *Session) CheckExit() (code int, exited bool) {
	if s.exited {
		return s.exitCode, true
	}
	code, exited = s.pty.Reap()
	if exited {
		s.exited = true
		s.exitCode = code
	}
	return code, exited
}

// Close releases the PTY master fd.
func (s *Session) Close() error {
	return s.pty.Close()
}
