package tcpserver

import (
	"net"
	"sync"
	"time"
)

// Session is implemented by each connection handler. The server creates one
// session per accepted connection and runs Handle in its own goroutine.
type Session interface {
	// ID returns the session's identifier assigned by the server.
	ID() uint32

	// Handle services the connection until it is done and closes it before
	// returning, on every exit path. It runs on the session's own goroutine.
	Handle()

	// Interrupt unblocks any pending read or write so that Handle returns
	// promptly. It may be called from another goroutine and does not close
	// the connection itself.
	Interrupt()
}

// Conn is the exclusively owned side of one accepted connection. Handlers
// embed it to get ID, Interrupt and an idempotent Close.
type Conn struct {
	net.Conn

	id        uint32
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an accepted connection.
func NewConn(id uint32, conn net.Conn) *Conn {
	return &Conn{Conn: conn, id: id}
}

// ID returns the connection ID.
func (c *Conn) ID() uint32 {
	return c.id
}

// Interrupt expires the connection's deadlines so that blocked I/O fails
// with a timeout.
func (c *Conn) Interrupt() {
	_ = c.Conn.SetDeadline(time.Now())
}

// Close closes the underlying connection the first time it is called and
// returns that result on every call.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})

	return c.closeErr
}
