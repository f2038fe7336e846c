package udpchat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cyberinferno/netlab/sink"
	"github.com/cyberinferno/netlab/transport"
)

// ExitCommand ends an interactive chat.
const ExitCommand = "exit"

// ClientConfig holds the chat client settings.
type ClientConfig struct {
	// Nick prefixes every message.
	Nick string
	// ReplyTimeout bounds the wait for an echo; 0 waits forever.
	ReplyTimeout time.Duration
}

// Client sends chat lines to one server and waits for their echoes.
type Client struct {
	conn   net.PacketConn
	dest   *net.UDPAddr
	config ClientConfig
}

// FormatMessage builds the datagram payload for text.
func FormatMessage(nick, text string) string {
	return nick + ": " + text
}

// Dial opens an unbound datagram socket for sending to addr. No packet is
// sent until Send.
func Dial(ctx context.Context, addr string, config ClientConfig) (*Client, error) {
	conn, dest, err := transport.OpenUDPClient(ctx, addr)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, dest: dest, config: config}, nil
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send transmits one chat line and returns the first datagram that comes
// back from the server. Datagrams from other sources are ignored.
//
// Parameters:
//   - text: The line typed by the user, without nickname
//
// Returns:
//   - The echoed payload
//   - An error if the send fails or no reply arrives within ReplyTimeout
func (c *Client) Send(text string) ([]byte, error) {
	payload := []byte(FormatMessage(c.config.Nick, text))
	if _, err := c.conn.WriteTo(payload, c.dest); err != nil {
		return nil, fmt.Errorf("sendto %s: %w", c.dest, err)
	}

	deadline := time.Time{}
	if c.config.ReplyTimeout > 0 {
		deadline = time.Now().Add(c.config.ReplyTimeout)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := c.conn.ReadFrom(buf)
		if err != nil {
			return nil, fmt.Errorf("recvfrom %s: %w", c.dest, err)
		}

		if c.fromServer(from) {
			return buf[:n], nil
		}
	}
}

func (c *Client) fromServer(from net.Addr) bool {
	udp, ok := from.(*net.UDPAddr)
	if !ok {
		return false
	}

	if c.dest.IP.IsUnspecified() {
		return udp.Port == c.dest.Port
	}

	return udp.Port == c.dest.Port && udp.IP.Equal(c.dest.IP)
}

// Chat reads lines from in and sends each one until ExitCommand, end of
// input or cancellation. Every echo is printed as "[Echo] <reply>". A reply
// that times out is reported and the chat continues, as datagrams may be
// lost.
//
// Returns:
//   - nil on ExitCommand, end of input or cancellation
//   - An error from reading input or sending
func (c *Client) Chat(ctx context.Context, in io.Reader, out *sink.Sink) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if line == ExitCommand {
			return nil
		}

		reply, err := c.Send(line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if errors.Is(err, os.ErrDeadlineExceeded) {
				_ = out.Write("(no reply)")
				continue
			}

			return err
		}

		_ = out.Printf("[Echo] %s", reply)
	}

	return scanner.Err()
}
