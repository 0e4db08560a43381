package daemon

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvdenbrink/ptyd/internal/logging"
	"github.com/mvdenbrink/ptyd/internal/session"
	"github.com/mvdenbrink/ptyd/internal/wire"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "socket")

	sess, err := session.New("test", "/bin/sh", []string{"/bin/sh"}, 80, 24, 4096)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	log := logging.New(io.Discard, "daemon", "info")
	s, err := New(sockPath, sess, log, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, sockPath
}

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var conn net.Conn
	var err error
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", path)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial: %v", err)
	return nil
}

func readFrame(t *testing.T, conn net.Conn, within time.Duration) wire.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(within))
	f, err := wire.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestAcceptAndEchoRoundTrip(t *testing.T) {
	s, sockPath := newTestServer(t)
	go s.Run()
	defer os.RemoveAll(sockPath)

	conn := dial(t, sockPath)
	defer conn.Close()

	msg := wire.Encode(wire.ClientInput, []byte("echo fromclient\n"))
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	var collected []byte
	for time.Now().Before(deadline) {
		f := readFrame(t, conn, 500*time.Millisecond)
		if f.Type == wire.ServerOutput {
			collected = append(collected, f.Payload...)
			if bytes.Contains(collected, []byte("fromclient")) {
				return
			}
		}
	}
	t.Fatalf("expected output to contain 'fromclient', got %q", collected)
}

func TestClientReceivesScrollbackOnAttach(t *testing.T) {
	s, sockPath := newTestServer(t)
	go s.Run()
	defer os.RemoveAll(sockPath)

	first := dial(t, sockPath)
	msg := wire.Encode(wire.ClientInput, []byte("echo warmup\n"))
	if _, err := first.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, first, 500*time.Millisecond)
		if f.Type == wire.ServerOutput && bytes.Contains(f.Payload, []byte("warmup")) {
			break
		}
	}
	first.Close()

	time.Sleep(100 * time.Millisecond)

	second := dial(t, sockPath)
	defer second.Close()

	f := readFrame(t, second, 2*time.Second)
	if f.Type != wire.ServerScrollback {
		t.Fatalf("expected scrollback frame first, got type 0x%02x", f.Type)
	}
	if !bytes.Contains(f.Payload, []byte("warmup")) {
		t.Errorf("expected scrollback to contain prior output, got %q", f.Payload)
	}
}

func TestLateJoinerAfterExitReceivesExitFrame(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "socket")

	sess, err := session.New("test", "/bin/sh", []string{"/bin/sh", "-c", "exit 0"}, 80, 24, 4096)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	log := logging.New(io.Discard, "daemon", "info")
	s, err := New(sockPath, sess, log, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	// A first client keeps the server in its drain window: with no client
	// attached, the server stops as soon as it sees the child exit.
	holder := dial(t, sockPath)
	defer holder.Close()

	// Give the child time to exit and the server to broadcast once before
	// this client ever connects.
	time.Sleep(150 * time.Millisecond)

	conn := dial(t, sockPath)
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn, 500*time.Millisecond)
		if f.Type == wire.ServerExit {
			return
		}
	}
	t.Fatal("late-joining client never received an EXIT frame")
}

func TestServerBroadcastsExitAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "socket")

	sess, err := session.New("test", "/bin/sh", []string{"/bin/sh", "-c", "exit 5"}, 80, 24, 4096)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	log := logging.New(io.Discard, "daemon", "info")
	s, err := New(sockPath, sess, log, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	conn := dial(t, sockPath)
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn, 500*time.Millisecond)
		if f.Type == wire.ServerExit {
			if len(f.Payload) != 4 {
				t.Fatalf("expected 4-byte exit payload, got %d bytes", len(f.Payload))
			}
			conn.Close()
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("run: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("expected server to shut down after its last client disconnected")
			}
			return
		}
	}
	t.Fatal("expected to observe an EXIT frame")
}
