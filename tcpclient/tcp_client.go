// Package tcpclient provides the stream client used by the echo and framed
// exchange commands: it dials with a timeout, sends whole buffers, and reads
// either one best-effort chunk or one length-prefixed frame.
package tcpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cyberinferno/netlab/frame"
	"github.com/cyberinferno/netlab/record"
	"github.com/cyberinferno/netlab/transfer"
	"github.com/cyberinferno/netlab/transport"
)

// ConnectionState represents the current state of the client's connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected yet
	Connected                           // Successfully connected
	Closed                              // Client has been closed
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrNotConnected is returned by I/O calls on a client that is not connected.
var ErrNotConnected = errors.New("not connected")

// Config holds configuration for the TCP client.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string
	// ConnectionTimeout is the max duration for establishing the connection.
	ConnectionTimeout time.Duration
	// ReadBufferSize bounds a single best-effort read.
	ReadBufferSize int
	// WriteTimeout is the max duration for one send; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout is the max duration to wait for reply data; 0 means no timeout.
	ReadTimeout time.Duration
	// MaxFrameSize is the largest reply frame accepted.
	MaxFrameSize uint32
}

// DefaultConfig returns a Config with default values for the given address.
//
// Returns:
//   - A Config with defaults: ConnectionTimeout 10s, ReadBufferSize 1024,
//     WriteTimeout 10s, ReadTimeout 0, MaxFrameSize frame.MaxPayloadSize.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ConnectionTimeout: 10 * time.Second,
		ReadBufferSize:    1024,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       0,
		MaxFrameSize:      frame.MaxPayloadSize,
	}
}

// TCPClient is a single-connection request/reply client. It is meant to be
// used from one goroutine.
type TCPClient struct {
	config Config
	conn   net.Conn
	state  ConnectionState
}

// NewTCPClient creates a client in Disconnected state; call Connect next.
func NewTCPClient(config Config) *TCPClient {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 1024
	}

	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = frame.MaxPayloadSize
	}

	return &TCPClient{config: config, state: Disconnected}
}

// Connect dials the configured address. The dial is not retried.
//
// Returns:
//   - nil on success, or a *transport.SetupError
func (c *TCPClient) Connect(ctx context.Context) error {
	switch c.state {
	case Connected:
		return fmt.Errorf("already connected")
	case Closed:
		return fmt.Errorf("client is closed")
	}

	conn, err := transport.DialTCP(ctx, c.config.Address, c.config.ConnectionTimeout)
	if err != nil {
		return err
	}

	c.conn = conn
	c.state = Connected
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *TCPClient) Close() error {
	if c.state == Closed {
		return nil
	}

	c.state = Closed
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetState returns the current connection state.
func (c *TCPClient) GetState() ConnectionState {
	return c.state
}

// Send writes all of data to the connection, bounded by WriteTimeout.
func (c *TCPClient) Send(data []byte) error {
	if c.state != Connected {
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = c.conn.SetWriteDeadline(time.Time{})
		}()
	}

	return transfer.SendAll(c.conn, data)
}

// ReadOnce performs one read of up to ReadBufferSize bytes and returns what
// arrived. A reply larger than the buffer is returned in pieces by
// successive calls.
//
// Returns:
//   - The received bytes
//   - A *transfer.Error wrapping ErrConnectionClosed or ErrRecvFailed
func (c *TCPClient) ReadOnce() ([]byte, error) {
	if c.state != Connected {
		return nil, ErrNotConnected
	}

	if err := c.setReadDeadline(); err != nil {
		return nil, err
	}

	buf := make([]byte, c.config.ReadBufferSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		return nil, &transfer.Error{Op: "recv", Want: len(buf), Kind: transfer.ErrConnectionClosed}
	}

	return nil, &transfer.Error{Op: "recv", Want: len(buf), Kind: transfer.ErrRecvFailed, Err: err}
}

// Echo sends msg and returns the server's single reply chunk.
func (c *TCPClient) Echo(msg []byte) ([]byte, error) {
	if err := c.Send(msg); err != nil {
		return nil, err
	}

	return c.ReadOnce()
}

// WriteFrame sends payload as one length-prefixed frame.
func (c *TCPClient) WriteFrame(payload []byte) error {
	return c.Send(frame.Encode(payload))
}

// ReadFrame reads one frame, rejecting replies larger than MaxFrameSize.
func (c *TCPClient) ReadFrame() ([]byte, error) {
	if c.state != Connected {
		return nil, ErrNotConnected
	}

	if err := c.setReadDeadline(); err != nil {
		return nil, err
	}

	return frame.ReadFrame(c.conn, c.config.MaxFrameSize)
}

// Exchange sends p as a framed request and decodes the framed reply.
//
// Parameters:
//   - codec: Payload codec for the request and reply
//   - p: The record to send
//
// Returns:
//   - The decoded reply and the raw reply payload
//   - An error from encoding, transfer, framing, or decoding
func (c *TCPClient) Exchange(codec record.Codec, p record.Person) (record.Reply, []byte, error) {
	payload, err := codec.EncodePerson(p)
	if err != nil {
		return record.Reply{}, nil, err
	}

	if err := c.WriteFrame(payload); err != nil {
		return record.Reply{}, nil, err
	}

	raw, err := c.ReadFrame()
	if err != nil {
		return record.Reply{}, nil, err
	}

	reply, err := codec.DecodeReply(raw)
	if err != nil {
		return record.Reply{}, raw, err
	}

	return reply, raw, nil
}

func (c *TCPClient) setReadDeadline() error {
	if c.config.ReadTimeout > 0 {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}

	return c.conn.SetReadDeadline(time.Time{})
}
