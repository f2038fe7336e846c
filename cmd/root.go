package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/netlab/config"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "netlab",
		Short: "minimal TCP/UDP network playground",
		Long: fmt.Sprintf(`netlab (v%s)

Small TCP and UDP servers and clients: a single-connection echo, a
concurrent multi-client echo, a UDP chat and a length-prefixed JSON
exchange. Settings can be given as flags, as NETLAB_<FLAG> environment
variables (e.g. NETLAB_MAX_CONNS=64), in .env files or in a TOML file
passed with --config.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netlab",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "netlab v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Add Commands
	RootCmd.AddCommand(tcpServerCmd)
	RootCmd.AddCommand(tcpClientCmd)
	RootCmd.AddCommand(tcpServerMTCmd)
	RootCmd.AddCommand(udpServerCmd)
	RootCmd.AddCommand(udpClientCmd)
	RootCmd.AddCommand(framedServerCmd)
	RootCmd.AddCommand(framedClientCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	defaults := config.Default()
	flags := RootCmd.PersistentFlags()

	flags.String(keyConfigFile, "", WrapString("Path of a TOML file with settings; flags and environment variables override it"))
	flags.String(config.KeyLogLevel, defaults.LogLevel, WrapString("Log level (debug, info, warn, error, off)"))
	flags.String(config.KeyLogDir, defaults.LogDir, WrapString("Directory for daily-rotated log files; logs go to stderr only when empty"))
	flags.Bool(config.KeyLogPretty, defaults.LogPretty, WrapString("Human-readable log lines instead of JSON"))
	flags.Int64(config.KeyMaxConns, defaults.MaxConns, WrapString("Maximum concurrent connections of a TCP server, further connections are closed on accept (0 = unlimited)"))
	flags.Duration(config.KeyGracePeriod, defaults.GracePeriod, WrapString("How long a TCP server waits for running connections on shutdown before interrupting them"))
	flags.Duration(config.KeyKeepAlive, defaults.KeepAlive, WrapString("TCP keep-alive period of accepted connections (0 = system default)"))
	flags.Int(config.KeyReadBuffer, defaults.ReadBuffer, WrapString("Size of the single read used by the TCP echo client"))
	flags.Duration(config.KeyConnectTimeout, defaults.ConnectTimeout, WrapString("Timeout for establishing a TCP connection"))
	flags.Duration(config.KeyReplyTimeout, defaults.ReplyTimeout, WrapString("How long clients wait for a reply (0 = forever)"))
	flags.Uint32(config.KeyMaxFrame, defaults.MaxFrame, WrapString("Largest framed payload accepted, in bytes"))
	flags.Duration(config.KeyPeerTTL, defaults.PeerTTL, WrapString("How long the UDP chat server remembers a silent sender"))
	flags.String(config.KeyRedisAddr, defaults.RedisAddr, WrapString("Redis address for a UDP peer registry shared between servers (empty = in memory)"))
	flags.String(config.KeyMetricsAddr, defaults.MetricsAddr, WrapString("Address of the Prometheus /metrics endpoint served next to a server (empty = disabled)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
