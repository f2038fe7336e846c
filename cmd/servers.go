package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/netlab/echo"
	"github.com/cyberinferno/netlab/exchange"
	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/sink"
	"github.com/cyberinferno/netlab/tcpserver"
	"github.com/cyberinferno/netlab/transport"
	"github.com/cyberinferno/netlab/udpchat"
)

var (
	tcpServerCmd = &cobra.Command{
		Use:     "tcp-server <port>",
		Aliases: []string{"tcp_server"},
		Short:   "Echo one message from a single client, then exit",
		Args:    cobra.ExactArgs(1),
		RunE:    runTCPServer,
	}
	tcpServerMTCmd = &cobra.Command{
		Use:     "tcp-server-mt <port>",
		Aliases: []string{"tcp_server_mt"},
		Short:   "Echo server handling many clients concurrently",
		Args:    cobra.ExactArgs(1),
		RunE:    runTCPServerMT,
	}
	udpServerCmd = &cobra.Command{
		Use:     "udp-server <port>",
		Aliases: []string{"udp_server"},
		Short:   "UDP chat server echoing every datagram to its sender",
		Args:    cobra.ExactArgs(1),
		RunE:    runUDPServer,
	}
	framedServerCmd = &cobra.Command{
		Use:     "framed-server <port>",
		Aliases: []string{"framed_server", "tcp_json_server", "tcp-json-server"},
		Short:   "Length-prefixed JSON exchange server",
		Args:    cobra.ExactArgs(1),
		RunE:    runFramedServer,
	}
)

func runTCPServer(cmd *cobra.Command, args []string) error {
	addr, err := listenAddr(args[0])
	if err != nil {
		return err
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	out := sink.Stdout()
	_ = out.Printf("TCP echo server on port %s", args[0])

	return runService(cmd.Context(), settings, log, func(ctx context.Context) error {
		ln, err := transport.ListenTCP(ctx, addr)
		if err != nil {
			log.Error("listen failed", logger.F("error", err))
			return err
		}

		return echo.ServeOnce(ctx, ln, out, log)
	})
}

func runTCPServerMT(cmd *cobra.Command, args []string) error {
	out := sink.Stdout()
	return runStreamServer(cmd, args[0], "tcp-echo-mt", "Multi-client TCP echo server on port %s", out, func(log logger.Logger) tcpserver.NewSessionFunc {
		return echo.NewSessionFunc(echo.MarkerMT, echo.SessionReadBufferSize, out, log)
	})
}

func runFramedServer(cmd *cobra.Command, args []string) error {
	out := sink.Stdout()
	return runStreamServer(cmd, args[0], "framed", "Framed JSON server on port %s", out, func(log logger.Logger) tcpserver.NewSessionFunc {
		return exchange.NewSessionFunc(exchange.Options{MaxPayload: settings.MaxFrame}, out, log)
	})
}

// runStreamServer serves port with the connection dispatcher until the
// process is interrupted.
func runStreamServer(cmd *cobra.Command, rawPort, name, banner string, out *sink.Sink, sessions func(logger.Logger) tcpserver.NewSessionFunc) error {
	addr, err := listenAddr(rawPort)
	if err != nil {
		return err
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	_ = out.Printf(banner, rawPort)

	return runService(cmd.Context(), settings, log, func(ctx context.Context) error {
		ln, err := transport.ListenTCP(ctx, addr)
		if err != nil {
			log.Error("listen failed", logger.F("error", err))
			return err
		}

		srv := tcpserver.New(ln, sessions(log), log, tcpserver.Config{
			Name:        name,
			MaxConns:    settings.MaxConns,
			GracePeriod: settings.GracePeriod,
			KeepAlive:   settings.KeepAlive,
		})
		return srv.Serve(ctx)
	})
}

func runUDPServer(cmd *cobra.Command, args []string) error {
	addr, err := listenAddr(args[0])
	if err != nil {
		return err
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	out := sink.Stdout()
	_ = out.Printf("UDP chat server on port %s", args[0])

	return runService(cmd.Context(), settings, log, func(ctx context.Context) error {
		peers, closePeers, err := newPeerRegistry(ctx, settings, log)
		if err != nil {
			return err
		}
		defer closePeers()

		conn, err := transport.ListenUDP(ctx, addr)
		if err != nil {
			log.Error("bind failed", logger.F("error", err))
			return err
		}

		_ = out.Write("Listening UDP messages... (Ctrl+C to stop)")
		return udpchat.NewServer(conn, out, log, peers, settings.PeerTTL).Serve(ctx)
	})
}
