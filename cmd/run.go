package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/netlab/cacher"
	"github.com/cyberinferno/netlab/config"
	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/udpchat"
)

const (
	peerKeyPrefix          = "netlab:peers:"
	metricsShutdownTimeout = 5 * time.Second
)

// runService runs fn until it returns or the process is interrupted. When
// metrics-addr is set, a Prometheus endpoint is served for the same
// lifetime.
func runService(parent context.Context, cfg config.Config, log logger.Logger, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("metrics endpoint started", logger.F("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// newPeerRegistry returns the UDP chat peer registry: Redis when
// redis-addr is set, process memory otherwise.
func newPeerRegistry(ctx context.Context, cfg config.Config, log logger.Logger) (cacher.Registry[udpchat.Peer], func(), error) {
	if cfg.RedisAddr == "" {
		return cacher.NewMemoryCacher[udpchat.Peer](cfg.PeerTTL, cfg.PeerTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.ConnectTimeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
	}
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}

	log.Info("using redis peer registry", logger.F("addr", cfg.RedisAddr))
	return cacher.NewRedisCacher[udpchat.Peer](client, peerKeyPrefix, cfg.PeerTTL), func() { _ = client.Close() }, nil
}
