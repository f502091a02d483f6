package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// ErrFailed is returned when the daemon answers with a failure status.
var ErrFailed = errors.New("control command failed")

// Streams are the descriptors passed with a command. Nil streams are not sent.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Client sends control commands to a daemon's socket.
type Client struct {
	socket string
	codec  *Codec
}

// NewClient returns a Client for the socket at path.
func NewClient(path string) *Client {
	return &Client{socket: path, codec: NewCodec()}
}

// Send delivers one command and waits for its status byte. It returns nil on
// success, ErrFailed on a failure status, and any transport error otherwise.
// ctx bounds the whole exchange, including the time the daemon spends on the
// command.
func (c *Client) Send(ctx context.Context, cmd string, meta map[string]any, streams Streams) error {
	req := Request{Cmd: cmd, Stdin: NoFD, Stdout: NoFD, Stderr: NoFD, Meta: meta}
	var fds []int
	for _, s := range []struct {
		f   *os.File
		idx *int
	}{{streams.Stdin, &req.Stdin}, {streams.Stdout, &req.Stdout}, {streams.Stderr, &req.Stderr}} {
		if s.f == nil {
			continue
		}
		*s.idx = len(fds)
		fds = append(fds, int(s.f.Fd()))
	}
	data, err := c.codec.Encode(req)
	if err != nil {
		return err
	}

	// The daemon replies to the sender's address, so the client binds one.
	dir, err := os.MkdirTemp("", "callfwdctl-")
	if err != nil {
		return fmt.Errorf("failed to create reply socket dir: %w", err)
	}
	defer os.RemoveAll(dir)
	local := &net.UnixAddr{Name: filepath.Join(dir, "reply.sock"), Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", local)
	if err != nil {
		return fmt.Errorf("failed to bind reply socket: %w", err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	remote := &net.UnixAddr{Name: c.socket, Net: "unixgram"}
	_, _, err = conn.WriteMsgUnix(data, oob, remote)
	runtime.KeepAlive(streams)
	if err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", cmd, c.socket, err)
	}

	reply := make([]byte, 16)
	n, _, err := conn.ReadFromUnix(reply)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to read reply to %s: %w", cmd, err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected %d-byte reply to %s", n, cmd)
	}
	switch reply[0] {
	case StatusSuccess:
		return nil
	case StatusFailure:
		return ErrFailed
	}
	return fmt.Errorf("unexpected reply %q to %s", reply[0], cmd)
}
