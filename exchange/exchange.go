// Package exchange implements the framed request/reply handler: one
// length-prefixed record in, one length-prefixed acknowledgement out.
package exchange

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/VictoriaMetrics/metrics"

	"github.com/cyberinferno/netlab/frame"
	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/record"
	"github.com/cyberinferno/netlab/sink"
	"github.com/cyberinferno/netlab/tcpserver"
)

var (
	framesHandled  = metrics.NewCounter(`netlab_frames_total{result="ok"}`)
	framesRejected = metrics.NewCounter(`netlab_frames_total{result="too_large"}`)
	framesInvalid  = metrics.NewCounter(`netlab_frames_total{result="invalid"}`)
	framesAborted  = metrics.NewCounter(`netlab_frames_total{result="aborted"}`)
)

// Options configures framed sessions.
type Options struct {
	// MaxPayload is the largest request accepted; 0 means frame.MaxPayloadSize.
	MaxPayload uint32
	// Codec interprets request and reply payloads; nil means JSON.
	Codec record.Codec
}

// Session serves exactly one framed exchange and then closes its
// connection. Any failure closes the connection without a reply.
type Session struct {
	*tcpserver.Conn

	opts Options
	out  *sink.Sink
	log  logger.Logger
}

// NewSessionFunc returns a factory producing framed sessions.
//
// Parameters:
//   - opts: Payload limit and codec
//   - out: Shared console sink
//   - log: Logger; per-connection fields are added, nil discards
//
// Returns:
//   - A tcpserver.NewSessionFunc
func NewSessionFunc(opts Options, out *sink.Sink, log logger.Logger) tcpserver.NewSessionFunc {
	if opts.MaxPayload == 0 {
		opts.MaxPayload = frame.MaxPayloadSize
	}

	if opts.Codec == nil {
		opts.Codec = record.NewJSONCodec()
	}

	if log == nil {
		log = logger.NewNop()
	}

	return func(id uint32, conn net.Conn) tcpserver.Session {
		return &Session{
			Conn: tcpserver.NewConn(id, conn),
			opts: opts,
			out:  out,
			log:  log.With(logger.F("conn_id", id), logger.F("remote", conn.RemoteAddr().String())),
		}
	}
}

// Handle implements tcpserver.Session.
func (s *Session) Handle() {
	defer s.Close()

	if err := s.exchange(); err != nil {
		switch {
		case errors.Is(err, frame.ErrFrameTooLarge):
			framesRejected.Inc()
		case errors.Is(err, record.ErrCodec):
			framesInvalid.Inc()
		default:
			framesAborted.Inc()
		}

		s.log.Warn("exchange failed", logger.F("error", err))
		return
	}

	framesHandled.Inc()
}

func (s *Session) exchange() error {
	payload, err := frame.ReadFrame(s, s.opts.MaxPayload)
	if err != nil {
		return err
	}

	_ = s.out.Printf("Received JSON: %s", payload)

	p, err := s.opts.Codec.DecodePerson(payload)
	if err != nil {
		return err
	}

	_ = s.out.Write(describe(p))

	reply, err := s.opts.Codec.EncodeReply(record.NewReply(p))
	if err != nil {
		return err
	}

	return frame.WriteFrame(s, reply)
}

// describe renders the parsed fields as one block so concurrent sessions
// cannot split it.
func describe(p record.Person) string {
	var b strings.Builder
	b.WriteString("Parsed fields:\n")
	fmt.Fprintf(&b, "  name: %s\n", p.Name)
	fmt.Fprintf(&b, "  age: %d\n", p.Age)
	fmt.Fprintf(&b, "  city: %s", p.City)
	return b.String()
}
