// Package udpchat implements the connectionless chat: clients send
// "<nickname>: <text>" datagrams and the server prints each one and echoes
// it back to the sender.
package udpchat

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/cyberinferno/netlab/cacher"
	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/sink"
)

// MaxDatagramSize is the receive buffer size on both ends. Longer datagrams
// are truncated by the kernel.
const MaxDatagramSize = 2048

var (
	datagramsIn  = metrics.NewCounter(`netlab_datagrams_total{direction="in"}`)
	datagramsOut = metrics.NewCounter(`netlab_datagrams_total{direction="out"}`)
	peersJoined  = metrics.NewCounter(`netlab_udp_peers_joined_total`)
)

// Peer is what the server remembers about a sender.
type Peer struct {
	Addr      string    `json:"addr"`
	Nick      string    `json:"nick"`
	FirstSeen time.Time `json:"first_seen"`
}

// Server reads datagrams from one socket and echoes each back to its sender.
type Server struct {
	conn    net.PacketConn
	out     *sink.Sink
	log     logger.Logger
	peers   cacher.Registry[Peer]
	peerTTL time.Duration
	running atomic.Bool
}

// NewServer creates a chat server on a bound socket.
//
// Parameters:
//   - conn: Bound datagram socket; Serve closes it on return
//   - out: Console sink
//   - log: Logger; nil discards
//   - peers: Registry of recent senders; nil disables join notices
//   - peerTTL: How long a silent sender stays known
//
// Returns:
//   - A server ready for Serve
func NewServer(conn net.PacketConn, out *sink.Sink, log logger.Logger, peers cacher.Registry[Peer], peerTTL time.Duration) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	return &Server{
		conn:    conn,
		out:     out,
		log:     log.With(logger.F("server", "udp-chat")),
		peers:   peers,
		peerTTL: peerTTL,
	}
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Serve receives datagrams until ctx is cancelled or a receive fails.
// Failing to echo one datagram is logged and does not stop the loop.
//
// Returns:
//   - nil after shutdown through ctx
//   - The receive error otherwise
func (s *Server) Serve(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("udp chat: already running")
	}
	defer s.running.Store(false)
	defer s.conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	s.log.Info("server started", logger.F("addr", s.Addr().String()))

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("server stopped")
				return nil
			}

			s.log.Error("recvfrom failed", logger.F("error", err))
			return fmt.Errorf("udp recvfrom: %w", err)
		}

		s.handle(ctx, buf[:n], addr)
	}
}

func (s *Server) handle(ctx context.Context, msg []byte, addr net.Addr) {
	datagramsIn.Inc()
	s.track(ctx, string(msg), addr)

	_ = s.out.Printf("[UDP] %s", msg)

	if _, err := s.conn.WriteTo(msg, addr); err != nil {
		s.log.Warn("echo failed", logger.F("remote", addr.String()), logger.F("error", err))
		return
	}

	datagramsOut.Inc()
}

// track records the sender and announces it the first time it is seen
// within the TTL window.
func (s *Server) track(ctx context.Context, msg string, addr net.Addr) {
	if s.peers == nil {
		return
	}

	nick, _, _ := strings.Cut(msg, ": ")
	peer := Peer{Addr: addr.String(), Nick: nick, FirstSeen: time.Now()}
	if known, found, err := s.peers.Lookup(ctx, peer.Addr); err == nil && found {
		peer.FirstSeen = known.FirstSeen
	}

	added, err := s.peers.Remember(ctx, peer.Addr, peer, s.peerTTL)
	if err != nil {
		s.log.Warn("peer registry failed", logger.F("remote", peer.Addr), logger.F("error", err))
		return
	}

	if added {
		peersJoined.Inc()
		_ = s.out.Printf("[UDP] %s joined", peer.Addr)
		s.log.Debug("peer joined", logger.F("remote", peer.Addr), logger.F("nick", nick))
	}
}
