// Package control is the privileged administrative transport: JSON datagrams on
// a unixgram socket, with the caller's stdin, stdout and stderr passed as
// SCM_RIGHTS descriptors and a single status byte as the reply.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/haukened/callfwd/internal/callfwd/common/log"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	ctlsvc "github.com/haukened/callfwd/internal/callfwd/services/control"
)

// Reply status bytes.
const (
	StatusSuccess byte = 'S'
	StatusFailure byte = 'F'
)

const (
	maxMessageSize = 4096
	maxPassedFDs   = 16
)

// Server reads control datagrams and runs each one on its own goroutine, so a
// long reload never delays the next message.
type Server struct {
	conn   *net.UnixConn
	codec  *Codec
	logger log.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewServer wraps an already bound unixgram socket.
func NewServer(conn *net.UnixConn, codec *Codec, logger log.Logger) *Server {
	return &Server{
		conn:   conn,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Listen binds a unixgram socket at path, replacing a stale socket file, and
// restricts it to the owner.
func Listen(path string) (*net.UnixConn, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("failed to bind control socket %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to restrict control socket %s: %w", path, err)
	}
	return conn, nil
}

// Start begins reading messages and dispatching them to handler. Commands run
// under ctx.
func (s *Server) Start(ctx context.Context, handler ctlsvc.Dispatcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("control server already running")
	}
	s.running = true

	s.logger.Info(map[string]any{
		"transport": "unixgram",
		"address":   s.Address(),
	}, "Control socket started")

	go s.listenLoop(ctx, handler)
	return nil
}

// Stop closes the socket and waits for in-flight commands to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	err := s.conn.Close()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(map[string]any{"error": err.Error()}, "Error closing control socket")
	}
	s.wg.Wait()
	s.logger.Info(map[string]any{"address": s.Address()}, "Control socket stopped")
	return err
}

// Address returns the bound socket path.
func (s *Server) Address() string {
	if addr := s.conn.LocalAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// message is one received datagram with its passed descriptors.
type message struct {
	data []byte
	fds  []int
	peer *net.UnixAddr
}

func (s *Server) listenLoop(ctx context.Context, handler ctlsvc.Dispatcher) {
	buf := make([]byte, maxMessageSize)
	oob := make([]byte, unix.CmsgSpace(maxPassedFDs*4))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug(nil, "Control socket stopping due to context cancellation")
			return
		case <-s.stopCh:
			return
		default:
		}

		n, oobn, flags, peer, err := s.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn(map[string]any{"error": err.Error()}, "Failed to read control message")
			continue
		}

		fds, err := parseRights(oob[:oobn])
		if err != nil {
			s.logger.Warn(map[string]any{"error": err.Error()}, "Failed to parse passed descriptors")
			closeFDs(fds)
			continue
		}
		if flags&unix.MSG_CTRUNC != 0 {
			s.logger.Warn(map[string]any{"fds": len(fds)}, "Too many descriptors passed, message dropped")
			closeFDs(fds)
			continue
		}
		if peer == nil || peer.Name == "" {
			s.logger.Warn(nil, "No reply address on a control message")
			closeFDs(fds)
			continue
		}

		msg := message{data: make([]byte, n), fds: fds, peer: peer}
		copy(msg.data, buf[:n])
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleMessage(ctx, msg, handler)
		}()
	}
}

// handleMessage decodes one datagram, runs it and replies. Undecodable
// messages get no reply; everything else gets exactly one status byte.
func (s *Server) handleMessage(ctx context.Context, msg message, handler ctlsvc.Dispatcher) {
	files := make([]*os.File, len(msg.fds))
	for i, fd := range msg.fds {
		files[i] = os.NewFile(uintptr(fd), fmt.Sprintf("passed-fd-%d", i))
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	req, err := s.codec.Decode(msg.data)
	if err != nil {
		s.logger.Warn(map[string]any{
			"peer":  msg.peer.Name,
			"size":  len(msg.data),
			"error": err.Error(),
		}, "Bad control message")
		return
	}

	status := StatusFailure
	if err := s.execute(ctx, req, files, handler); err == nil {
		status = StatusSuccess
	}
	if _, err := s.conn.WriteToUnix([]byte{status}, msg.peer); err != nil {
		s.logger.Warn(map[string]any{
			"peer":  msg.peer.Name,
			"cmd":   req.Cmd,
			"error": err.Error(),
		}, "Failed to send control reply")
	}
}

func (s *Server) execute(ctx context.Context, req Request, files []*os.File, handler ctlsvc.Dispatcher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(map[string]any{"cmd": req.Cmd, "panic": fmt.Sprint(r)}, "Control command panicked")
			err = fmt.Errorf("control command %s panicked: %v", req.Cmd, r)
		}
	}()

	var streams [3]*os.File
	for i, idx := range [3]int{req.Stdin, req.Stdout, req.Stderr} {
		f, err := pick(files, idx)
		if err != nil {
			s.logger.Warn(map[string]any{"cmd": req.Cmd, "error": err.Error()}, "Bad descriptor index")
			return err
		}
		streams[i] = f
	}

	cmd := ctlsvc.Command{Name: req.Cmd, Meta: req.Meta}
	// Only assign non-nil files: a typed nil would read as a present stream.
	if streams[0] != nil {
		cmd.Input = streams[0]
	}
	if streams[1] != nil {
		cmd.Output = streams[1]
	}
	if streams[2] != nil {
		cmd.Log = streams[2]
	}

	s.logger.Debug(map[string]any{"cmd": req.Cmd, "fds": len(files)}, "Dispatching control command")
	return handler.Execute(ctx, cmd)
}

func pick(files []*os.File, idx int) (*os.File, error) {
	if idx == NoFD {
		return nil, nil
	}
	if idx < 0 || idx >= len(files) {
		return nil, &domain.ProtocolError{Reason: fmt.Sprintf("descriptor index %d out of range (%d passed)", idx, len(files))}
	}
	return files[idx], nil
}

// parseRights extracts every descriptor from SCM_RIGHTS control messages.
// Descriptors parsed before an error are still returned so they can be closed.
func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			return fds, err
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func closeFDs(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
