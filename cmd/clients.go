package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/netlab/logger"
	"github.com/cyberinferno/netlab/record"
	"github.com/cyberinferno/netlab/sink"
	"github.com/cyberinferno/netlab/tcpclient"
	"github.com/cyberinferno/netlab/udpchat"
)

var (
	tcpClientCmd = &cobra.Command{
		Use:     "tcp-client <host> <port> <message>",
		Aliases: []string{"tcp_client"},
		Short:   "Send one message to an echo server and print the reply",
		Args:    cobra.ExactArgs(3),
		RunE:    runTCPClient,
	}
	udpClientCmd = &cobra.Command{
		Use:     "udp-client <host> <port> <nickname>",
		Aliases: []string{"udp_client"},
		Short:   "Chat with a UDP chat server; type 'exit' to quit",
		Args:    cobra.ExactArgs(3),
		RunE:    runUDPClient,
	}
	framedClientCmd = &cobra.Command{
		Use:     "framed-client <host> <port> <name> <age> <city>",
		Aliases: []string{"framed_client", "tcp_json_client", "tcp-json-client"},
		Short:   "Send one JSON record to a framed server and print the reply",
		Args:    cobra.ExactArgs(5),
		RunE:    runFramedClient,
	}
)

func newTCPClient(addr string) *tcpclient.TCPClient {
	cfg := tcpclient.DefaultConfig(addr)
	cfg.ConnectionTimeout = settings.ConnectTimeout
	cfg.ReadBufferSize = settings.ReadBuffer
	cfg.ReadTimeout = settings.ReplyTimeout
	cfg.MaxFrameSize = settings.MaxFrame
	return tcpclient.NewTCPClient(cfg)
}

func runTCPClient(cmd *cobra.Command, args []string) error {
	addr, err := remoteAddr(args[0], args[1])
	if err != nil {
		return err
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	out := sink.Stdout()
	_ = out.Printf("TCP client to %s", addr)

	client := newTCPClient(addr)
	if err := client.Connect(cmd.Context()); err != nil {
		log.Error("connect failed", logger.F("addr", addr), logger.F("error", err))
		return err
	}
	defer client.Close()

	reply, err := client.Echo([]byte(args[2]))
	if err != nil {
		log.Error("echo failed", logger.F("addr", addr), logger.F("error", err))
		return err
	}

	_ = out.Printf("Reply: %s", reply)
	return nil
}

func runUDPClient(cmd *cobra.Command, args []string) error {
	addr, err := remoteAddr(args[0], args[1])
	if err != nil {
		return err
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	out := sink.Stdout()
	_ = out.Printf("UDP chat client to %s", addr)

	client, err := udpchat.Dial(cmd.Context(), addr, udpchat.ClientConfig{Nick: args[2], ReplyTimeout: settings.ReplyTimeout})
	if err != nil {
		log.Error("socket failed", logger.F("addr", addr), logger.F("error", err))
		return err
	}
	defer client.Close()

	// Interrupts keep their default behaviour here: the chat blocks on stdin.
	_ = out.Printf("Type messages, '%s' to quit.", udpchat.ExitCommand)
	return client.Chat(cmd.Context(), os.Stdin, out)
}

func runFramedClient(cmd *cobra.Command, args []string) error {
	addr, err := remoteAddr(args[0], args[1])
	if err != nil {
		return err
	}

	age, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid age %q", args[3])
	}

	log, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer log.Close()

	out := sink.Stdout()
	_ = out.Printf("Framed JSON client to %s", addr)

	client := newTCPClient(addr)
	if err := client.Connect(cmd.Context()); err != nil {
		log.Error("connect failed", logger.F("addr", addr), logger.F("error", err))
		return err
	}
	defer client.Close()

	person := record.Person{Name: args[2], Age: age, City: args[4]}
	reply, raw, err := client.Exchange(record.NewJSONCodec(), person)
	if raw != nil {
		_ = out.Printf("Server reply JSON: %s", raw)
	}
	if err != nil {
		log.Error("exchange failed", logger.F("addr", addr), logger.F("error", err))
		return err
	}

	if !reply.OK() {
		return fmt.Errorf("server replied with status %q", reply.Status)
	}

	return nil
}
