// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// sunset-relay is the rendezvous point for sunset peers. It holds
// circuit relay v2 reservations so peers behind NAT stay reachable, and
// answers discovery polls with the other members of the polled room.
//
// The relay listens on TCP, QUIC, WebTransport, WebRTC-direct and plain
// WebSocket on a single port. TLS for browsers is expected to terminate
// at a reverse proxy in front of the WebSocket listener.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/libp2p/go-libp2p"
	relayv2 "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	quic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	libp2pwebrtc "github.com/libp2p/go-libp2p/p2p/transport/webrtc"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
	webtransport "github.com/libp2p/go-libp2p/p2p/transport/webtransport"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sunset-chat/sunset/discovery"
	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/lib/config"
	"github.com/sunset-chat/sunset/lib/version"
	"github.com/sunset-chat/sunset/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var port int
	var identityPath string
	var maxReservations int

	flagSet := pflag.NewFlagSet("sunset-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $SUNSET_CONFIG)")
	flagSet.IntVar(&port, "port", 0, "port for every transport (default from config: 4001)")
	flagSet.StringVar(&identityPath, "identity", "", "path to the persistent identity key")
	flagSet.IntVar(&maxReservations, "max-reservations", 0, "max circuit relay reservations")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("sunset-relay")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "Usage:\n  sunset-relay [flags]\n\nFlags:")
		flagSet.SetOutput(os.Stderr)
		flagSet.PrintDefaults()
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Relay.Port = port
	}
	if identityPath != "" {
		cfg.Relay.Identity = identityPath
	}
	if maxReservations != 0 {
		cfg.Relay.MaxReservations = maxReservations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger()

	identity, err := transport.LoadOrCreateIdentity(cfg.Relay.Identity, logger)
	if err != nil {
		return err
	}

	host, err := transport.NewLibP2PHost(transport.LibP2PConfig{
		Identity:    identity,
		ListenAddrs: listenAddrs(cfg.Relay.Port),
		Options:     hostOptions(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer host.Close()

	resources := relayv2.DefaultResources()
	resources.MaxReservations = cfg.Relay.MaxReservations
	relayService, err := relayv2.New(host.Libp2p(), relayv2.WithResources(resources))
	if err != nil {
		return fmt.Errorf("starting circuit relay: %w", err)
	}
	defer relayService.Close()

	registry := discovery.NewRegistry(clock.Real(), cfg.Relay.PeerTTL, logger)
	registry.Attach(host)

	logger.Info("relay running",
		"peer_id", host.ID(),
		"addrs", host.Addrs(),
		"max_reservations", cfg.Relay.MaxReservations,
		"peer_ttl", cfg.Relay.PeerTTL,
		"version", version.Info(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down", "rooms", registry.Rooms())
	return nil
}

// listenAddrs returns the IPv4 and IPv6 listen multiaddrs for every
// relay transport on port.
func listenAddrs(port int) []string {
	p := strconv.Itoa(port)
	var addrs []string
	for _, ip := range []string{"/ip4/0.0.0.0", "/ip6/::"} {
		addrs = append(addrs,
			ip+"/tcp/"+p,
			ip+"/tcp/"+p+"/ws",
			ip+"/udp/"+p+"/quic-v1",
			ip+"/udp/"+p+"/quic-v1/webtransport",
			ip+"/udp/"+p+"/webrtc-direct",
		)
	}
	return addrs
}

// hostOptions are the libp2p options for a publicly reachable relay.
// TCP and WebSocket share one listener.
func hostOptions() []libp2p.Option {
	return []libp2p.Option{
		libp2p.ForceReachabilityPublic(),
		libp2p.NATPortMap(),
		libp2p.ShareTCPListener(),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(ws.New),
		libp2p.Transport(quic.NewTransport),
		libp2p.Transport(webtransport.New),
		libp2p.Transport(libp2pwebrtc.New),
	}
}

// newLogger logs text on a terminal and JSON otherwise.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
