// Package ptyexec opens a PTY pair and forks/execs a child attached to
// its slave side, the way §4.3 of the session-daemon design describes:
// new session, controlling TTY, stdio redirected to the slave, slave
// fd dropped before exec.
//
// Go programs can't safely call a bare fork() once the runtime has
// started extra OS threads, so the fork+exec dance is delegated to
// os/exec with a SysProcAttr carrying Setsid/Setctty — the same steps
// the spec lists, performed by the runtime's fork/exec helper instead
// of hand-rolled fork(). creack/pty supplies the PTY pair itself.
package ptyexec

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTY is an open pseudo-terminal with its child process.
type PTY struct {
	Master   *os.File
	MasterFd int
	pid      int
	cmd      *exec.Cmd
}

// Spawn opens a PTY pair, applies the initial window size, and execs cmd
// with argv attached to the slave side. On success the slave fd has
// already been closed in the parent and Master is set non-blocking.
func Spawn(command string, argv []string, cols, rows uint16) (*PTY, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := pty.Setsize(master, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set initial winsize: %w", err)
	}

	cmd := exec.Command(command, argv...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("start child: %w", err)
	}

	// The slave must not escape the adapter: the parent's copy is only
	// needed to hand file descriptors to the child at fork time.
	slave.Close()

	fd := int(master.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		master.Close()
		cmd.Process.Kill()
		return nil, fmt.Errorf("set master non-blocking: %w", err)
	}

	return &PTY{
		Master:   master,
		MasterFd: fd,
		pid:      cmd.Process.Pid,
		cmd:      cmd,
	}, nil
}

// Resize issues the window-size ioctl on the master.
func (p *PTY) Resize(cols, rows uint16) error {
	return pty.Setsize(p.Master, &pty.Winsize{Cols: cols, Rows: rows})
}

// Reap performs a non-blocking waitpid. It returns (code, true) if the
// child has exited — normal exits return their status, signal deaths
// return 128+signal — or (0, false) if the child is still running.
func (p *PTY) Reap() (code int, exited bool) {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(p.pid, &status, unix.WNOHANG, nil)
	if err != nil || wpid == 0 {
		return 0, false
	}
	switch {
	case status.Exited():
		return status.ExitStatus(), true
	case status.Signaled():
		return 128 + int(status.Signal()), true
	default:
		return 0, false
	}
}

// Close releases the master fd. It does not signal or wait for the child
// process.
func (p *PTY) Close() error {
	return p.Master.Close()
}
