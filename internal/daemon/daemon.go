// Package daemon implements the single-threaded event loop that owns one
// session's PTY and Unix socket. Everything here runs on one goroutine: the
// PTY master fd, the listening socket, and every connected client fd are
// multiplexed with a single unix.Poll call per tick.
//
// The listener and client connections are raw fds managed with
// golang.org/x/sys/unix rather than net.Listener/net.Conn: Go's net package
// runs its own internal poller on a separate goroutine, which can't be
// folded into one external poll() alongside the PTY master fd. Driving
// Socket/Bind/Listen/Accept4/Poll directly keeps the whole loop on one
// thread, matching the single-threaded design this daemon requires.
package daemon

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mvdenbrink/ptyd/internal/logging"
	"github.com/mvdenbrink/ptyd/internal/sanitize"
	"github.com/mvdenbrink/ptyd/internal/session"
	"github.com/mvdenbrink/ptyd/internal/wire"
)

// defaultPollTimeoutMillis is used when New is given a poll interval <= 0.
const defaultPollTimeoutMillis = 100

const readChunkSize = 65536

// client tracks one attached connection: its fd and the buffers the loop
// uses for partial reads/writes.
type client struct {
	fd           int
	recvBuf      []byte
	sendBuf      []byte
	wantWritable bool
}

// Server runs the event loop for a single session, listening on
// socketPath and relaying between connected clients and the session's PTY.
type Server struct {
	socketPath        string
	session           *session.Session
	listenFd          int
	clients           map[int]*client
	nextID            int
	pollTimeoutMillis int
	log               *logging.Logger
}

// New binds a Unix socket at socketPath (removing any stale file first)
// and prepares a server that will relay to sess once Run is called. The
// socket's parent directory must already exist. pollIntervalMillis
// configures how often the event loop wakes to check session liveness
// even when no fd is ready; <= 0 uses a 100ms default.
func New(socketPath string, sess *session.Session, log *logging.Logger, pollIntervalMillis int) (*Server, error) {
	if pollIntervalMillis <= 0 {
		pollIntervalMillis = defaultPollTimeoutMillis
	}

	if err := os.RemoveAll(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	addr := &unix.SockaddrUnix{Name: socketPath}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := os.Chmod(socketPath, 0o700); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{
		socketPath:        socketPath,
		session:           sess,
		listenFd:          fd,
		clients:           make(map[int]*client),
		pollTimeoutMillis: pollIntervalMillis,
		log:               log,
	}, nil
}

// Run drives the event loop until the session exits and every client has
// disconnected, or the socket file is removed out from under the daemon
// (the mechanism session kill uses to signal shutdown). It always unlinks
// the socket file before returning.
func (s *Server) Run() error {
	defer unix.Unlink(s.socketPath)
	defer unix.Close(s.listenFd)

	s.log.Info("server running")

	ptyBuf := make([]byte, readChunkSize)
	clientBuf := make([]byte, readChunkSize)

	for {
		meta, err := os.Lstat(s.socketPath)
		if err != nil || meta.Mode()&os.ModeSocket == 0 {
			s.log.Warn("socket path missing, shutting down")
			break
		}

		fds := s.buildPollFds()
		n, err := unix.Poll(fds, s.pollTimeoutMillis)
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("poll: %w", err)
		}
		if n > 0 {
			s.dispatch(fds, ptyBuf, clientBuf)
		}

		// Resend every tick rather than once: a client that attaches
		// during the drain window (after exit, before everyone else
		// has disconnected) must also learn the child died.
		if code, exited := s.session.CheckExit(); exited {
			s.broadcastExit(code)
			if len(s.clients) == 0 {
				break
			}
		}
	}

	return nil
}

func (s *Server) buildPollFds() []unix.PollFd {
	fds := make([]unix.PollFd, 0, len(s.clients)+2)
	fds = append(fds, unix.PollFd{Fd: int32(s.listenFd), Events: unix.POLLIN})
	fds = append(fds, unix.PollFd{Fd: int32(s.session.MasterFd()), Events: unix.POLLIN})
	for _, c := range s.clients {
		events := int16(unix.POLLIN)
		if c.wantWritable {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(c.fd), Events: events})
	}
	return fds
}

func (s *Server) dispatch(fds []unix.PollFd, ptyBuf, clientBuf []byte) {
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		switch {
		case fd == s.listenFd:
			if pfd.Revents&(unix.POLLIN) != 0 {
				s.acceptClients()
			}
		case fd == s.session.MasterFd():
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				s.handlePTYOutput(ptyBuf)
			}
		default:
			c, ok := s.clients[fd]
			if !ok {
				continue
			}
			if pfd.Revents&unix.POLLIN != 0 {
				s.handleClientData(c, clientBuf)
			}
			if _, stillThere := s.clients[fd]; stillThere && pfd.Revents&unix.POLLOUT != 0 {
				s.flushClientSendBuf(c)
			}
		}
	}
}

func (s *Server) acceptClients() {
	for {
		fd, _, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.log.Error("accept: %v", err)
			return
		}

		id := s.nextID
		s.nextID++
		c := &client{fd: fd}
		s.clients[fd] = c

		s.log.Info("client %d connected", id)

		scrollback := sanitize.ScrollbackForReplay(s.session.Scrollback())
		if len(scrollback) > 0 {
			c.sendBuf = append(c.sendBuf, wire.Encode(wire.ServerScrollback, scrollback)...)
			s.flushClientSendBuf(c)
		}
	}
}

func (s *Server) handlePTYOutput(buf []byte) {
	n, err := s.session.ReadPTY(buf)
	if n > 0 {
		msg := wire.Encode(wire.ServerOutput, buf[:n])
		var disconnected []int
		for fd, c := range s.clients {
			c.sendBuf = append(c.sendBuf, msg...)
			if !s.flushClientSendBuf(c) {
				disconnected = append(disconnected, fd)
			}
		}
		for _, fd := range disconnected {
			s.removeClient(fd)
		}
		return
	}
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		s.log.Error("pty read error: %v", err)
	}
}

// flushClientSendBuf writes as much of c's pending output as the socket
// will accept without blocking, leaving the remainder buffered and the
// client registered for writability next tick. It returns false if the
// connection has failed and should be removed.
func (s *Server) flushClientSendBuf(c *client) bool {
	for len(c.sendBuf) > 0 {
		n, err := unix.Write(c.fd, c.sendBuf)
		switch {
		case err == nil && n == 0:
			return false
		case err == nil:
			c.sendBuf = c.sendBuf[n:]
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			c.wantWritable = true
			return true
		default:
			return false
		}
	}
	c.wantWritable = false
	return true
}

func (s *Server) handleClientData(c *client, buf []byte) {
	n, err := unix.Read(c.fd, buf)
	switch {
	case n > 0:
		c.recvBuf = append(c.recvBuf, buf[:n]...)
		s.processClientRecvBuf(c)
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		// nothing ready, try again next tick
	default:
		// n == 0 (EOF) or a hard read error both mean the peer is gone
		s.log.Info("client %d disconnected", c.fd)
		s.removeClient(c.fd)
	}
}

func (s *Server) processClientRecvBuf(c *client) {
	for {
		frame, consumed, ok := wire.ParseFrame(c.recvBuf)
		if !ok {
			break
		}
		c.recvBuf = c.recvBuf[consumed:]

		switch frame.Type {
		case wire.ClientInput:
			if err := s.session.WritePTY(frame.Payload); err != nil {
				s.log.Error("pty write error: %v", err)
			}
		case wire.ClientResize:
			if len(frame.Payload) >= 4 {
				var resize [4]byte
				copy(resize[:], frame.Payload[:4])
				cols, rows := wire.DecodeResize(resize)
				if err := s.session.Resize(cols, rows); err != nil {
					s.log.Error("resize error: %v", err)
				}
			}
		case wire.ClientDetach:
			// no action: the client simply closes its side next.
		default:
			s.log.Warn("unknown message type 0x%02x", frame.Type)
		}
	}
}

func (s *Server) removeClient(fd int) {
	if c, ok := s.clients[fd]; ok {
		unix.Close(c.fd)
		delete(s.clients, fd)
	}
}

func (s *Server) broadcastExit(code int) {
	s.log.Info("child exited with code %d", code)
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(int32(code)))
	msg := wire.Encode(wire.ServerExit, payload)
	var disconnected []int
	for fd, c := range s.clients {
		c.sendBuf = append(c.sendBuf, msg...)
		if !s.flushClientSendBuf(c) {
			disconnected = append(disconnected, fd)
		}
	}
	for _, fd := range disconnected {
		s.removeClient(fd)
	}
}
