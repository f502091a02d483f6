package control

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// listenFDsStart is the first descriptor handed over by socket activation.
const listenFDsStart = 3

// Activated returns the control socket passed by the service manager, or nil
// when the process was not socket activated.
func Activated() (*net.UnixConn, error) {
	pid, err := strconv.Atoi(os.Getenv("LISTEN_PID"))
	if err != nil || pid != os.Getpid() {
		return nil, nil
	}
	n, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil {
		return nil, fmt.Errorf("bad LISTEN_FDS: %w", err)
	}
	if n != 1 {
		return nil, fmt.Errorf("expected one activated socket, got %d", n)
	}
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	unix.CloseOnExec(listenFDsStart)
	f := os.NewFile(listenFDsStart, "control-socket")
	defer f.Close()
	pc, err := net.FilePacketConn(f)
	if err != nil {
		return nil, fmt.Errorf("activated descriptor is not a datagram socket: %w", err)
	}
	conn, ok := pc.(*net.UnixConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("activated socket is %T, want a unix socket", pc)
	}
	return conn, nil
}

// Notify sends state (for example "READY=1") to the service manager. It is a
// no-op when NOTIFY_SOCKET is unset.
func Notify(state string) error {
	path := os.Getenv("NOTIFY_SOCKET")
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "@") {
		path = "\x00" + path[1:]
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("failed to dial notify socket: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("failed to notify service manager: %w", err)
	}
	return nil
}
