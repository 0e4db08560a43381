// Package bridge implements the client side of an attached session: raw
// stdin/stdout wired to the daemon's Unix socket, with terminal resizes
// forwarded as they happen.
//
// SIGWINCH arrives asynchronously and can't be read with a syscall, so a
// goroutine fed by signal.Notify only writes a byte to a pipe; the main
// loop waits on that pipe's read end alongside stdin and the socket in a
// single poll call. The pipe is what lets the signal sit in the same poll
// set as file descriptors, which signal.Notify's channel alone cannot.
package bridge

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/mvdenbrink/ptyd/internal/wire"
)

const stdinBufSize = 8192
const sockBufSize = 65536

// Run connects to the daemon listening at socketPath, relays stdin/stdout,
// and returns the exit code reported by the daemon's EXIT frame. It blocks
// until the session exits, the daemon closes the connection, or stdin
// reaches EOF (which sends DETACH and returns 0).
func Run(socketPath string) (int, error) {
	stdinFd := int(os.Stdin.Fd())
	stdoutFd := int(os.Stdout.Fd())

	if term.IsTerminal(stdinFd) {
		state, err := term.MakeRaw(stdinFd)
		if err != nil {
			return 0, fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(stdinFd, state)
	}

	wakeRead, wakeWrite, err := makeSelfPipe()
	if err != nil {
		return 0, fmt.Errorf("self pipe: %w", err)
	}
	defer unix.Close(wakeRead)
	defer unix.Close(wakeWrite)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			unix.Write(wakeWrite, []byte{'W'})
		}
	}()

	sockFd, err := connectUnix(socketPath)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer unix.Close(sockFd)

	if err := unix.SetNonblock(stdinFd, true); err != nil {
		return 0, fmt.Errorf("set stdin non-blocking: %w", err)
	}

	if cols, rows, err := getWinsize(stdoutFd); err == nil {
		resize := wire.EncodeResize(cols, rows)
		if err := writeAllRaw(sockFd, wire.Encode(wire.ClientResize, resize[:])); err != nil {
			return 0, fmt.Errorf("send initial resize: %w", err)
		}
	}

	stdinBuf := make([]byte, stdinBufSize)
	sockBuf := make([]byte, sockBufSize)
	var recvBuf []byte
	exitCode := 0

	fds := []unix.PollFd{
		{Fd: int32(stdinFd), Events: unix.POLLIN},
		{Fd: int32(sockFd), Events: unix.POLLIN},
		{Fd: int32(wakeRead), Events: unix.POLLIN},
	}

mainLoop:
	for {
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return exitCode, fmt.Errorf("poll: %w", err)
		}

		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			done, err := relayStdin(stdinFd, sockFd, stdinBuf)
			if err != nil || done {
				break mainLoop
			}
		}

		if fds[1].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			done, code, err := relaySocket(sockFd, stdoutFd, sockBuf, &recvBuf)
			if err != nil || done {
				exitCode = code
				break mainLoop
			}
		}

		if fds[2].Revents&unix.POLLIN != 0 {
			drainPipe(wakeRead)
			if cols, rows, err := getWinsize(stdoutFd); err == nil {
				resize := wire.EncodeResize(cols, rows)
				writeAllRaw(sockFd, wire.Encode(wire.ClientResize, resize[:]))
			}
		}
	}

	writeAllRaw(sockFd, wire.Encode(wire.ClientDetach, nil))
	return exitCode, nil
}

// relayStdin drains whatever is currently available on stdin, forwarding
// each chunk to the daemon as an INPUT frame. It returns done=true on EOF
// or a fatal write error, at which point the caller should detach and
// stop.
func relayStdin(stdinFd, sockFd int, buf []byte) (done bool, err error) {
	for {
		n, rerr := unix.Read(stdinFd, buf)
		switch {
		case n > 0:
			if werr := writeAllRaw(sockFd, wire.Encode(wire.ClientInput, buf[:n])); werr != nil {
				return true, werr
			}
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
			return false, nil
		case rerr == nil:
			// n == 0: stdin EOF
			return true, nil
		default:
			return true, rerr
		}
	}
}

// relaySocket drains whatever is currently available on the socket,
// parsing complete frames out of recvBuf and writing OUTPUT/SCROLLBACK
// payloads straight to stdout. It returns done=true once an EXIT frame
// arrives or the connection closes, along with the reported exit code.
func relaySocket(sockFd, stdoutFd int, buf []byte, recvBuf *[]byte) (done bool, code int, err error) {
	closed := false
	for readMore := true; readMore; {
		n, rerr := unix.Read(sockFd, buf)
		switch {
		case n > 0:
			*recvBuf = append(*recvBuf, buf[:n]...)
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
			readMore = false
		case rerr == nil:
			// n == 0: the daemon closed the connection; frames that
			// arrived before the close are still parsed below.
			closed = true
			readMore = false
		default:
			return true, code, rerr
		}
	}

	for {
		frame, consumed, ok := wire.ParseFrame(*recvBuf)
		if !ok {
			break
		}
		*recvBuf = (*recvBuf)[consumed:]

		switch frame.Type {
		case wire.ServerOutput, wire.ServerScrollback:
			if err := writeAllRaw(stdoutFd, frame.Payload); err != nil {
				return true, code, err
			}
		case wire.ServerExit:
			if len(frame.Payload) >= 4 {
				var payload [4]byte
				copy(payload[:], frame.Payload[:4])
				code = int(int32(payload[0]) | int32(payload[1])<<8 | int32(payload[2])<<16 | int32(payload[3])<<24)
			}
			return true, code, nil
		}
	}
	return closed, code, nil
}

func drainPipe(fd int) {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(fd, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

func makeSelfPipe() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func connectUnix(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, err
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func getWinsize(fd int) (cols, rows uint16, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return ws.Col, ws.Row, nil
}

// writeAllRaw writes all of data to fd, retrying on EAGAIN/EWOULDBLOCK.
// The bridge's socket and stdout fds are non-blocking, so a short write
// under backpressure is expected rather than exceptional.
func writeAllRaw(fd int, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := unix.Write(fd, data[written:])
		switch {
		case err == nil:
			written += n
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			continue
		default:
			return err
		}
	}
	return nil
}
