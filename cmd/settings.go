package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cyberinferno/netlab/config"
	"github.com/cyberinferno/netlab/logger"
)

const (
	envPrefix     = "netlab"
	keyConfigFile = "config"
	serviceName   = "netlab"
)

// settings is the resolved configuration of the running command.
var settings = config.Default()

// initConfig reads in .env files and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadSettings binds the flags of the invoked command and resolves settings.
func loadSettings(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := resolveConfig(viper.GetViper())
	if err != nil {
		return err
	}

	settings = cfg
	return nil
}

// resolveConfig merges, in increasing priority, the defaults, the TOML file
// named by --config, and every flag or environment variable that was set.
func resolveConfig(v *viper.Viper) (config.Config, error) {
	cfg := config.Default()

	if path := v.GetString(keyConfigFile); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if v.IsSet(config.KeyLogLevel) {
		cfg.LogLevel = v.GetString(config.KeyLogLevel)
	}
	if v.IsSet(config.KeyLogDir) {
		cfg.LogDir = v.GetString(config.KeyLogDir)
	}
	if v.IsSet(config.KeyLogPretty) {
		cfg.LogPretty = v.GetBool(config.KeyLogPretty)
	}
	if v.IsSet(config.KeyMaxConns) {
		cfg.MaxConns = v.GetInt64(config.KeyMaxConns)
	}
	if v.IsSet(config.KeyGracePeriod) {
		cfg.GracePeriod = v.GetDuration(config.KeyGracePeriod)
	}
	if v.IsSet(config.KeyKeepAlive) {
		cfg.KeepAlive = v.GetDuration(config.KeyKeepAlive)
	}
	if v.IsSet(config.KeyReadBuffer) {
		cfg.ReadBuffer = v.GetInt(config.KeyReadBuffer)
	}
	if v.IsSet(config.KeyConnectTimeout) {
		cfg.ConnectTimeout = v.GetDuration(config.KeyConnectTimeout)
	}
	if v.IsSet(config.KeyReplyTimeout) {
		cfg.ReplyTimeout = v.GetDuration(config.KeyReplyTimeout)
	}
	if v.IsSet(config.KeyMaxFrame) {
		cfg.MaxFrame = v.GetUint32(config.KeyMaxFrame)
	}
	if v.IsSet(config.KeyPeerTTL) {
		cfg.PeerTTL = v.GetDuration(config.KeyPeerTTL)
	}
	if v.IsSet(config.KeyRedisAddr) {
		cfg.RedisAddr = v.GetString(config.KeyRedisAddr)
	}
	if v.IsSet(config.KeyMetricsAddr) {
		cfg.MetricsAddr = v.GetString(config.KeyMetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger. Logs never go to stdout, which
// belongs to the console sink.
func newLogger(cfg config.Config) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.LogDir != "" {
		return logger.NewFileLogger(serviceName, cfg.LogDir, level)
	}

	return logger.NewConsoleLogger(serviceName, level, os.Stderr, cfg.LogPretty), nil
}
