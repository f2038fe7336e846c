// Package config holds the runtime settings shared by all commands and
// loads them from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cyberinferno/netlab/frame"
	"github.com/cyberinferno/netlab/logger"
)

// Setting keys. They are shared by the TOML file, the command-line flags and
// the NETLAB_* environment variables (dashes become underscores).
const (
	KeyLogLevel       = "log-level"
	KeyLogDir         = "log-dir"
	KeyLogPretty      = "log-pretty"
	KeyMaxConns       = "max-conns"
	KeyGracePeriod    = "grace-period"
	KeyKeepAlive      = "keepalive"
	KeyReadBuffer     = "read-buffer"
	KeyConnectTimeout = "connect-timeout"
	KeyReplyTimeout   = "reply-timeout"
	KeyMaxFrame       = "max-frame"
	KeyPeerTTL        = "peer-ttl"
	KeyRedisAddr      = "redis-addr"
	KeyMetricsAddr    = "metrics-addr"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel  string
	LogDir    string
	LogPretty bool

	MaxConns    int64
	GracePeriod time.Duration
	KeepAlive   time.Duration

	ReadBuffer     int
	ConnectTimeout time.Duration
	ReplyTimeout   time.Duration
	MaxFrame       uint32

	PeerTTL   time.Duration
	RedisAddr string

	MetricsAddr string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		MaxConns:       0,
		GracePeriod:    5 * time.Second,
		KeepAlive:      0,
		ReadBuffer:     1024,
		ConnectTimeout: 10 * time.Second,
		ReplyTimeout:   5 * time.Second,
		MaxFrame:       frame.MaxPayloadSize,
		PeerTTL:        5 * time.Minute,
	}
}

type fileConfig struct {
	LogLevel       string `toml:"log-level"`
	LogDir         string `toml:"log-dir"`
	LogPretty      bool   `toml:"log-pretty"`
	MaxConns       int64  `toml:"max-conns"`
	GracePeriod    string `toml:"grace-period"`
	KeepAlive      string `toml:"keepalive"`
	ReadBuffer     int    `toml:"read-buffer"`
	ConnectTimeout string `toml:"connect-timeout"`
	ReplyTimeout   string `toml:"reply-timeout"`
	MaxFrame       int64  `toml:"max-frame"`
	PeerTTL        string `toml:"peer-ttl"`
	RedisAddr      string `toml:"redis-addr"`
	MetricsAddr    string `toml:"metrics-addr"`
}

// Load reads the TOML file at path and applies the keys it defines on top
// of Default. Keys absent from the file keep their defaults.
//
// Parameters:
//   - path: Path of the TOML file
//
// Returns:
//   - The merged configuration
//   - An error if the file cannot be read, a value cannot be parsed, or the
//     result fails Validate
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined(KeyLogLevel) {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined(KeyLogDir) {
		cfg.LogDir = strings.TrimSpace(raw.LogDir)
	}

	if meta.IsDefined(KeyLogPretty) {
		cfg.LogPretty = raw.LogPretty
	}

	if meta.IsDefined(KeyMaxConns) {
		cfg.MaxConns = raw.MaxConns
	}

	if meta.IsDefined(KeyReadBuffer) {
		cfg.ReadBuffer = raw.ReadBuffer
	}

	if meta.IsDefined(KeyMaxFrame) {
		if raw.MaxFrame < 0 || raw.MaxFrame > int64(^uint32(0)) {
			return Config{}, fmt.Errorf("parse %s: %d out of range", KeyMaxFrame, raw.MaxFrame)
		}
		cfg.MaxFrame = uint32(raw.MaxFrame)
	}

	if meta.IsDefined(KeyRedisAddr) {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}

	if meta.IsDefined(KeyMetricsAddr) {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{KeyGracePeriod, raw.GracePeriod, &cfg.GracePeriod},
		{KeyKeepAlive, raw.KeepAlive, &cfg.KeepAlive},
		{KeyConnectTimeout, raw.ConnectTimeout, &cfg.ConnectTimeout},
		{KeyReplyTimeout, raw.ReplyTimeout, &cfg.ReplyTimeout},
		{KeyPeerTTL, raw.PeerTTL, &cfg.PeerTTL},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}

		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports every setting that is out of range.
func (c Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxConns))
	}

	if c.ReadBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyReadBuffer))
	}

	if c.MaxFrame == 0 || c.MaxFrame > frame.MaxPayloadSize {
		errs = append(errs, fmt.Errorf("%s must be between 1 and %d", KeyMaxFrame, frame.MaxPayloadSize))
	}

	for key, d := range map[string]time.Duration{
		KeyGracePeriod:    c.GracePeriod,
		KeyKeepAlive:      c.KeepAlive,
		KeyConnectTimeout: c.ConnectTimeout,
		KeyReplyTimeout:   c.ReplyTimeout,
		KeyPeerTTL:        c.PeerTTL,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}

	return errors.Join(errs...)
}
