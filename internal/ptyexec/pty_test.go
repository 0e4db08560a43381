package ptyexec

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func readAllWithin(t *testing.T, fd int, want string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var collected []byte
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			collected = append(collected, buf[:n]...)
			if strings.Contains(string(collected), want) {
				return string(collected)
			}
		}
		if err != nil && err != unix.EAGAIN {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	return string(collected)
}

func TestSpawnEchoesOutput(t *testing.T) {
	p, err := Spawn("/bin/sh", []string{"/bin/sh"}, 80, 24)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer p.Close()

	if _, err := unix.Write(p.MasterFd, []byte("echo hi\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := readAllWithin(t, p.MasterFd, "hi", 2*time.Second)
	if !strings.Contains(out, "hi") {
		t.Fatalf("expected output to contain 'hi', got %q", out)
	}
}

func TestReapNormalExit(t *testing.T) {
	p, err := Spawn("/bin/sh", []string{"/bin/sh", "-c", "exit 7"}, 80, 24)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer p.Close()

	deadline := time.Now().Add(2 * time.Second)
	var code int
	var exited bool
	for time.Now().Before(deadline) {
		code, exited = p.Reap()
		if exited {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !exited {
		t.Fatal("expected child to exit")
	}
	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}

	// Idempotent per Session.CheckExit's contract at the session layer;
	// Reap itself is a raw waitpid and a second call legitimately
	// reports not-exited since the child has already been reaped.
	if _, exitedAgain := p.Reap(); exitedAgain {
		t.Error("expected second Reap to observe no further status change")
	}
}

func TestResizeDoesNotError(t *testing.T) {
	p, err := Spawn("/bin/sh", []string{"/bin/sh"}, 80, 24)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer p.Close()

	if err := p.Resize(132, 50); err != nil {
		t.Errorf("resize: %v", err)
	}
}
