// Package echo implements the plain TCP echo handlers. Echo traffic is not
// framed: every exchange is one best-effort read of whatever arrived,
// answered with a fixed marker followed by the received bytes. A message
// larger than the read buffer is therefore echoed back in pieces.
package echo

import (
	"context"
	"fmt"
	"net"

	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/sink"
	"github.com/cyberinferno/netlab/tcpserver"
	"github.com/cyberinferno/netlab/transfer"
	"github.com/cyberinferno/netlab/utils"
)

const (
	// Marker prefixes replies of the single-connection server.
	Marker = "Echo: "
	// MarkerMT prefixes replies of the multi-client server.
	MarkerMT = "Echo MT: "

	// SingleReadBufferSize bounds the single read of ServeOnce.
	SingleReadBufferSize = 1024
	// SessionReadBufferSize bounds each read of a multi-client session.
	SessionReadBufferSize = 2048
)

// Session is the echo handler for one connection of the multi-client
// server. It keeps reading, printing and replying until the peer closes
// or a read or send fails, then closes the connection.
type Session struct {
	*tcpserver.Conn

	marker  []byte
	bufSize int
	out     *sink.Sink
	log     logger.Logger
}

// NewSessionFunc returns a factory producing echo sessions that reply with
// marker and print received text to out.
//
// Parameters:
//   - marker: Prefix of every reply
//   - bufSize: Capacity of each read; values <= 0 use SessionReadBufferSize
//   - out: Shared console sink
//   - log: Logger; per-connection fields are added, nil discards
//
// Returns:
//   - A tcpserver.NewSessionFunc
func NewSessionFunc(marker string, bufSize int, out *sink.Sink, log logger.Logger) tcpserver.NewSessionFunc {
	if bufSize <= 0 {
		bufSize = SessionReadBufferSize
	}

	if log == nil {
		log = logger.NewNop()
	}

	return func(id uint32, conn net.Conn) tcpserver.Session {
		return &Session{
			Conn:    tcpserver.NewConn(id, conn),
			marker:  []byte(marker),
			bufSize: bufSize,
			out:     out,
			log:     log.With(logger.F("conn_id", id), logger.F("remote", conn.RemoteAddr().String())),
		}
	}
}

// Handle implements tcpserver.Session.
func (s *Session) Handle() {
	defer s.Close()

	buf := make([]byte, s.bufSize)
	for {
		n, err := s.Read(buf)
		if n <= 0 {
			s.log.Debug("connection closed", logger.F("error", err))
			return
		}

		text := buf[:n]
		_ = s.out.Printf("[Client] %s", text)

		if sendErr := transfer.SendAll(s, utils.JoinBytes(s.marker, text)); sendErr != nil {
			s.log.Warn("reply failed", logger.F("error", sendErr))
			return
		}

		if err != nil {
			s.log.Debug("connection closed after final chunk", logger.F("error", err))
			return
		}
	}
}

// ServeOnce is the single-connection echo server: it accepts one
// connection, performs one read, prints it, replies with Marker plus the
// text, and closes both the connection and ln. A peer that closes without
// sending anything is logged, not treated as a failure.
//
// Parameters:
//   - ctx: Cancelling ctx aborts a pending Accept
//   - ln: Listening socket, owned and closed by ServeOnce
//   - out: Console sink
//   - log: Logger
//
// Returns:
//   - nil after a shutdown requested through ctx
//   - An error if Accept fails
func ServeOnce(ctx context.Context, ln net.Listener, out *sink.Sink, log logger.Logger) error {
	defer ln.Close()

	if log == nil {
		log = logger.NewNop()
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	_ = out.Write("Waiting for a client...")
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown before a client connected")
			return nil
		}

		log.Error("accept failed", logger.F("error", err))
		return fmt.Errorf("accept: %w", err)
	}

	c := tcpserver.NewConn(1, conn)
	defer c.Close()

	buf := make([]byte, SingleReadBufferSize)
	n, err := c.Read(buf)
	if n <= 0 {
		log.Warn("recv failed or closed", logger.F("remote", conn.RemoteAddr().String()), logger.F("error", err))
		return nil
	}

	text := buf[:n]
	_ = out.Printf("Received: %s", text)

	if err := transfer.SendAll(c, utils.JoinBytes([]byte(Marker), text)); err != nil {
		log.Warn("reply failed", logger.F("remote", conn.RemoteAddr().String()), logger.F("error", err))
	}

	return nil
}
