// Package transport resolves addresses and produces ready sockets: listening
// and connected TCP endpoints, bound UDP server sockets, and unconnected UDP
// client sockets.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Setup stages reported by SetupError.
const (
	StageResolve    = "resolve"
	StageSocket     = "socket"
	StageSetsockopt = "setsockopt"
	StageBind       = "bind"
	StageListen     = "listen"
	StageConnect    = "connect"
)

// SetupError reports a failure to produce a socket. Setup errors indicate
// misconfiguration or an unreachable peer and are never retried here.
type SetupError struct {
	Stage string
	Addr  string
	Err   error
}

func (e *SetupError) Error() string {
	if code := e.Code(); code != 0 {
		return fmt.Sprintf("%s %s failed (code %d): %v", e.Stage, e.Addr, code, e.Err)
	}

	return fmt.Sprintf("%s %s failed: %v", e.Stage, e.Addr, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Code returns the platform error code, or 0 when the cause carries none.
func (e *SetupError) Code() int {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return int(errno)
	}

	return 0
}

// stageOf picks the failing system call out of err, falling back to def.
func stageOf(err error, def string) string {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		switch sysErr.Syscall {
		case "socket", "bind", "listen", "connect", "setsockopt":
			return sysErr.Syscall
		}
	}

	return def
}

func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{Control: reuseAddrControl}
}

// ListenTCP binds a listening TCP socket to addr ("host:port" or ":port")
// with address reuse enabled. The Go runtime listens with the system's
// maximum backlog.
//
// Parameters:
//   - ctx: Bounds the resolution and listen calls
//   - addr: The local address to listen on
//
// Returns:
//   - The listener, or a *SetupError naming the failing stage
func ListenTCP(ctx context.Context, addr string) (net.Listener, error) {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &SetupError{Stage: StageResolve, Addr: addr, Err: err}
	}

	ln, err := listenConfig().Listen(ctx, "tcp", resolved.String())
	if err != nil {
		return nil, &SetupError{Stage: stageOf(err, StageListen), Addr: addr, Err: err}
	}

	return ln, nil
}

// DialTCP resolves addr and connects to it. Failures are returned to the
// caller, which decides whether to retry.
//
// Parameters:
//   - ctx: Cancels the resolution and connect
//   - addr: The remote "host:port"
//   - timeout: Upper bound for the connect; 0 means no timeout
//
// Returns:
//   - The connection, or a *SetupError with stage resolve or connect
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &SetupError{Stage: StageResolve, Addr: addr, Err: err}
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", resolved.String())
	if err != nil {
		return nil, &SetupError{Stage: stageOf(err, StageConnect), Addr: addr, Err: err}
	}

	return conn, nil
}

// ListenUDP binds a datagram socket to addr for a UDP server.
func ListenUDP(ctx context.Context, addr string) (net.PacketConn, error) {
	resolved, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &SetupError{Stage: StageResolve, Addr: addr, Err: err}
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", resolved.String())
	if err != nil {
		return nil, &SetupError{Stage: stageOf(err, StageBind), Addr: addr, Err: err}
	}

	return conn, nil
}

// OpenUDPClient resolves the remote addr and opens an unconnected datagram
// socket on an ephemeral port. Every send must name the returned destination.
//
// Returns:
//   - The local socket and the resolved destination, or a *SetupError
func OpenUDPClient(ctx context.Context, addr string) (net.PacketConn, *net.UDPAddr, error) {
	dest, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, nil, &SetupError{Stage: StageResolve, Addr: addr, Err: err}
	}

	network, local := "udp", ":0"
	if dest.IP.To4() != nil {
		network, local = "udp4", "0.0.0.0:0"
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, network, local)
	if err != nil {
		return nil, nil, &SetupError{Stage: stageOf(err, StageSocket), Addr: addr, Err: err}
	}

	return conn, dest, nil
}

// Tune applies per-connection TCP options to an accepted connection:
// Nagle's algorithm off and, when keepAlive > 0, keep-alive probes with that
// period. Non-TCP connections are left untouched.
func Tune(conn net.Conn, keepAlive time.Duration) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}

	if keepAlive > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}

		if err := tcpConn.SetKeepAlivePeriod(keepAlive); err != nil {
			return err
		}
	}

	return nil
}
