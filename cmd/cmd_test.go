package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/netlab/config"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
	assert.Empty(t, WrapString(""))
}

func TestAddresses(t *testing.T) {
	addr, err := listenAddr("9000")
	require.NoError(t, err)
	assert.Equal(t, ":9000", addr)

	addr, err = remoteAddr("127.0.0.1", " 9000")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", addr)

	addr, err = remoteAddr("::1", "9000")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:9000", addr)

	for _, bad := range []string{"", "http", "-1", "65536"} {
		_, err := listenAddr(bad)
		assert.Error(t, err, bad)
	}

	_, err = remoteAddr(" ", "9000")
	assert.Error(t, err)
}

func newTestViper(t *testing.T) (*viper.Viper, *pflag.FlagSet) {
	t.Helper()

	defaults := config.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(keyConfigFile, "", "")
	fs.String(config.KeyLogLevel, defaults.LogLevel, "")
	fs.Int64(config.KeyMaxConns, defaults.MaxConns, "")
	fs.Duration(config.KeyGracePeriod, defaults.GracePeriod, "")
	fs.Uint32(config.KeyMaxFrame, defaults.MaxFrame, "")
	fs.String(config.KeyRedisAddr, defaults.RedisAddr, "")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	require.NoError(t, v.BindPFlags(fs))
	return v, fs
}

func TestResolveConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v, _ := newTestViper(t)

		cfg, err := resolveConfig(v)
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
	})

	t.Run("flags override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "netlab.toml")
		require.NoError(t, os.WriteFile(path, []byte("max-conns = 4\ngrace-period = \"1s\"\n"), 0o644))

		v, fs := newTestViper(t)
		require.NoError(t, fs.Set(keyConfigFile, path))
		require.NoError(t, fs.Set(config.KeyMaxConns, "16"))

		cfg, err := resolveConfig(v)
		require.NoError(t, err)
		assert.Equal(t, int64(16), cfg.MaxConns)
		assert.Equal(t, time.Second, cfg.GracePeriod)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("NETLAB_MAX_FRAME", "1024")
		t.Setenv("NETLAB_REDIS_ADDR", "cache:6379")

		v, _ := newTestViper(t)
		cfg, err := resolveConfig(v)
		require.NoError(t, err)
		assert.Equal(t, uint32(1024), cfg.MaxFrame)
		assert.Equal(t, "cache:6379", cfg.RedisAddr)
	})

	t.Run("invalid value", func(t *testing.T) {
		v, fs := newTestViper(t)
		require.NoError(t, fs.Set(config.KeyLogLevel, "chatty"))

		_, err := resolveConfig(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid settings")
	})

	t.Run("missing config file", func(t *testing.T) {
		v, fs := newTestViper(t)
		require.NoError(t, fs.Set(keyConfigFile, filepath.Join(t.TempDir(), "absent.toml")))

		_, err := resolveConfig(v)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()

	log, err := newLogger(cfg)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	cfg.LogLevel = "nope"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetArgs([]string{"version"})
		t.Cleanup(func() {
			RootCmd.SetOut(nil)
			RootCmd.SetArgs(nil)
		})

		require.NoError(t, RootCmd.ExecuteContext(context.Background()))
		assert.Equal(t, "netlab v"+Version+"\n", out.String())
	})

	t.Run("aliases", func(t *testing.T) {
		for alias, want := range map[string]string{
			"tcp_server":      "tcp-server",
			"tcp_server_mt":   "tcp-server-mt",
			"udp_client":      "udp-client",
			"tcp_json_server": "framed-server",
			"tcp_json_client": "framed-client",
		} {
			found, _, err := RootCmd.Find([]string{alias})
			require.NoError(t, err, alias)
			assert.Equal(t, want, found.Name(), alias)
		}
	})

	t.Run("bad arguments", func(t *testing.T) {
		var errOut bytes.Buffer
		RootCmd.SetErr(&errOut)
		t.Cleanup(func() {
			RootCmd.SetErr(nil)
			RootCmd.SetArgs(nil)
		})

		RootCmd.SetArgs([]string{"tcp-client", "127.0.0.1", "port", "hi"})
		err := RootCmd.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid port")

		RootCmd.SetArgs([]string{"framed-client", "127.0.0.1", "9000", "Ann", "thirty", "Riga"})
		err = RootCmd.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid age")

		RootCmd.SetArgs([]string{"udp-server"})
		assert.Error(t, RootCmd.ExecuteContext(context.Background()))
	})
}
