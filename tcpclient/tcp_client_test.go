package tcpclient

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/netlab/frame"
	"github.com/cyberinferno/netlab/record"
	"github.com/cyberinferno/netlab/transfer"
	"github.com/cyberinferno/netlab/transport"
)

// serveOne accepts a single connection and runs handle on it.
func serveOne(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return ln.Addr().String()
}

func newClient(t *testing.T, addr string) *TCPClient {
	t.Helper()

	cfg := DefaultConfig(addr)
	cfg.ReadTimeout = 2 * time.Second
	c := NewTCPClient(cfg)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1:9000")
	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 1024, cfg.ReadBufferSize)
	assert.Equal(t, frame.MaxPayloadSize, cfg.MaxFrameSize)
}

func TestTCPClient_Lifecycle(t *testing.T) {
	t.Run("io before connect", func(t *testing.T) {
		c := NewTCPClient(DefaultConfig("127.0.0.1:1"))
		assert.Equal(t, Disconnected, c.GetState())
		assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)

		_, err := c.ReadOnce()
		assert.ErrorIs(t, err, ErrNotConnected)

		_, err = c.ReadFrame()
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("connect refused is a setup error", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		cfg := DefaultConfig(addr)
		cfg.ConnectionTimeout = time.Second
		c := NewTCPClient(cfg)

		err = c.Connect(context.Background())
		require.Error(t, err)

		var setupErr *transport.SetupError
		require.True(t, errors.As(err, &setupErr))
		assert.Equal(t, transport.StageConnect, setupErr.Stage)
		assert.Equal(t, Disconnected, c.GetState())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) { _, _ = io.Copy(io.Discard, conn) })
		c := newClient(t, addr)
		assert.Equal(t, Connected, c.GetState())

		assert.Error(t, c.Connect(context.Background()))
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
		assert.Equal(t, Closed, c.GetState())
		assert.Error(t, c.Connect(context.Background()))
		assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
	})
}

func TestTCPClient_Echo(t *testing.T) {
	t.Run("returns the reply chunk", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {
			buf := make([]byte, 64)
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			_, _ = conn.Write(append([]byte("Echo: "), buf[:n]...))
		})

		c := newClient(t, addr)
		reply, err := c.Echo([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, "Echo: hello", string(reply))
	})

	t.Run("peer close is reported as connection closed", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {})

		c := newClient(t, addr)
		_, err := c.ReadOnce()
		require.Error(t, err)
		assert.ErrorIs(t, err, transfer.ErrConnectionClosed)
	})

	t.Run("read timeout is a recv failure", func(t *testing.T) {
		hold := make(chan struct{})
		t.Cleanup(func() { close(hold) })
		addr := serveOne(t, func(conn net.Conn) { <-hold })

		cfg := DefaultConfig(addr)
		cfg.ReadTimeout = 50 * time.Millisecond
		c := NewTCPClient(cfg)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		_, err := c.ReadOnce()
		require.Error(t, err)
		assert.ErrorIs(t, err, transfer.ErrRecvFailed)
	})
}

func TestTCPClient_Exchange(t *testing.T) {
	codec := record.NewJSONCodec()

	t.Run("round trip", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {
			payload, err := frame.ReadFrame(conn, frame.MaxPayloadSize)
			if err != nil {
				return
			}
			p, err := codec.DecodePerson(payload)
			if err != nil {
				return
			}
			reply, _ := codec.EncodeReply(record.NewReply(p))
			_ = frame.WriteFrame(conn, reply)
		})

		c := newClient(t, addr)
		want := record.Person{Name: "Ann", Age: 30, City: "Riga"}
		reply, raw, err := c.Exchange(codec, want)
		require.NoError(t, err)
		assert.Equal(t, want, reply.Person)
		assert.True(t, reply.OK())
		assert.JSONEq(t, `{"name":"Ann","age":30,"city":"Riga","status":"ok"}`, string(raw))
	})

	t.Run("oversized reply header is rejected", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {
			_, _ = frame.ReadFrame(conn, frame.MaxPayloadSize)
			var hdr [frame.HeaderSize]byte
			binary.BigEndian.PutUint32(hdr[:], 64)
			_, _ = conn.Write(hdr[:])
		})

		cfg := DefaultConfig(addr)
		cfg.ReadTimeout = 2 * time.Second
		cfg.MaxFrameSize = 16
		c := NewTCPClient(cfg)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		_, _, err := c.Exchange(codec, record.Person{Name: "Ann"})
		assert.ErrorIs(t, err, frame.ErrFrameTooLarge)
	})

	t.Run("server closing without reply", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {
			_, _ = frame.ReadFrame(conn, frame.MaxPayloadSize)
		})

		c := newClient(t, addr)
		_, _, err := c.Exchange(codec, record.Person{Name: "Ann"})
		assert.ErrorIs(t, err, transfer.ErrConnectionClosed)
	})

	t.Run("undecodable reply returns raw payload", func(t *testing.T) {
		addr := serveOne(t, func(conn net.Conn) {
			_, _ = frame.ReadFrame(conn, frame.MaxPayloadSize)
			_ = frame.WriteFrame(conn, []byte("nope"))
		})

		c := newClient(t, addr)
		_, raw, err := c.Exchange(codec, record.Person{Name: "Ann"})
		assert.ErrorIs(t, err, record.ErrCodec)
		assert.Equal(t, "nope", string(raw))
	})
}
