// Package tcpserver implements the connection acceptor: an accept loop that
// hands every accepted connection to its own session goroutine and never
// touches the connection's bytes itself.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cyberinferno/netlab/idgenerator"
	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/safemap"
	"github.com/cyberinferno/netlab/transport"
)

// ErrAlreadyRunning is returned by Serve when the server is already serving.
var ErrAlreadyRunning = errors.New("server already running")

// NewSessionFunc creates the session for an accepted connection. The
// session takes ownership of conn.
type NewSessionFunc func(id uint32, conn net.Conn) Session

// Config holds the dispatcher's tunables.
type Config struct {
	// Name labels log entries and metrics.
	Name string
	// MaxConns caps concurrently running sessions; further connections are
	// closed right after accept. 0 means unbounded.
	MaxConns int64
	// GracePeriod is how long shutdown waits for running sessions before
	// interrupting them. 0 interrupts immediately.
	GracePeriod time.Duration
	// KeepAlive enables TCP keep-alive with this period on accepted
	// connections; 0 leaves the system default.
	KeepAlive time.Duration
}

// TCPServer accepts connections on Listener and delegates each one to a
// session created by NewSession. Live sessions are tracked by ID.
type TCPServer struct {
	Logger      logger.Logger
	Config      Config
	Listener    net.Listener
	Sessions    *safemap.SafeMap[uint32, Session]
	NewSession  NewSessionFunc
	IdGenerator *idgenerator.IdGenerator
	Running     atomic.Bool

	limiter   *semaphore.Weighted
	metrics   *serverMetrics
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a server around an already listening socket.
//
// Parameters:
//   - ln: The listening socket; the server closes it exactly once on shutdown
//   - newSession: Factory for per-connection sessions
//   - log: Logger for server events; nil discards them
//   - cfg: Dispatcher tunables
//
// Returns:
//   - A server ready for Serve
func New(ln net.Listener, newSession NewSessionFunc, log logger.Logger, cfg Config) *TCPServer {
	if log == nil {
		log = logger.NewNop()
	}

	if cfg.Name == "" {
		cfg.Name = "tcp"
	}

	s := &TCPServer{
		Logger:      log.With(logger.F("server", cfg.Name)),
		Config:      cfg,
		Listener:    ln,
		Sessions:    safemap.NewSafeMap[uint32, Session](),
		NewSession:  newSession,
		IdGenerator: idgenerator.NewIdGenerator(0),
		metrics:     newServerMetrics(cfg.Name),
	}

	if cfg.MaxConns > 0 {
		s.limiter = semaphore.NewWeighted(cfg.MaxConns)
	}

	return s
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr {
	return s.Listener.Addr()
}

// Active returns the number of sessions currently running.
func (s *TCPServer) Active() int {
	return s.Sessions.Len()
}

// Serve runs the accept loop until ctx is cancelled or Accept fails. Each
// accepted connection is handed to a new session goroutine and the loop
// immediately returns to Accept.
//
// On cancellation the listener is closed, running sessions get GracePeriod
// to finish, and the rest are interrupted; Serve returns once every session
// has returned.
//
// Returns:
//   - nil after a shutdown requested through ctx
//   - An error if Accept failed or the server is already running
func (s *TCPServer) Serve(ctx context.Context) error {
	if !s.Running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", s.Config.Name, ErrAlreadyRunning)
	}
	defer s.Running.Store(false)

	stop := context.AfterFunc(ctx, s.closeListener)
	defer stop()

	s.Logger.Info("server started", logger.F("addr", s.Addr().String()), logger.F("max_conns", s.Config.MaxConns))

	err := s.acceptLoop(ctx)
	s.closeListener()
	s.drain()

	if err != nil {
		return err
	}

	s.Logger.Info("server stopped")
	return nil
}

func (s *TCPServer) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			s.Logger.Error("accept failed", logger.F("error", err))
			return fmt.Errorf("%s accept: %w", s.Config.Name, err)
		}

		s.dispatch(conn)
	}
}

// dispatch admits one connection and starts its session.
func (s *TCPServer) dispatch(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	if s.limiter != nil && !s.limiter.TryAcquire(1) {
		s.metrics.rejected.Inc()
		s.Logger.Warn("too many connections, rejecting", logger.F("remote", remote))
		_ = conn.Close()
		return
	}

	if err := transport.Tune(conn, s.Config.KeepAlive); err != nil {
		s.Logger.Warn("failed to tune connection", logger.F("remote", remote), logger.F("error", err))
	}

	id := s.IdGenerator.Id()
	session := s.NewSession(id, conn)
	s.Sessions.Store(id, session)
	s.metrics.accepted.Inc()
	s.metrics.active.Inc()
	s.Logger.Debug("connection accepted", logger.F("conn_id", id), logger.F("remote", remote))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.Sessions.Delete(id)
			s.metrics.active.Dec()
			if s.limiter != nil {
				s.limiter.Release(1)
			}
		}()

		session.Handle()
		s.Logger.Debug("connection finished", logger.F("conn_id", id), logger.F("remote", remote))
	}()
}

// drain waits for running sessions, interrupting them once the grace
// period has passed.
func (s *TCPServer) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.Config.GracePeriod > 0 {
		timer := time.NewTimer(s.Config.GracePeriod)
		defer timer.Stop()

		select {
		case <-done:
			return
		case <-timer.C:
		}
	}

	if n := s.Sessions.Len(); n > 0 {
		s.Logger.Warn("interrupting remaining sessions", logger.F("sessions", n))
	}

	s.Sessions.Range(func(_ uint32, session Session) bool {
		session.Interrupt()
		return true
	})

	<-done
}

func (s *TCPServer) closeListener() {
	s.closeOnce.Do(func() {
		_ = s.Listener.Close()
	})
}
