// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// sunset-node is a chat and voice peer. It joins a room through the
// relay's discovery service, exchanges presence and chat with every
// peer in the room, and holds an audio connection to each peer that has
// joined audio.
//
// By default the node runs an interactive terminal UI. With --headless
// it runs until interrupted, logging to stderr; this is how bots and
// test peers run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sunset-chat/sunset/lib/chatui"
	"github.com/sunset-chat/sunset/lib/config"
	"github.com/sunset-chat/sunset/lib/version"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/room"
	"github.com/sunset-chat/sunset/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line overrides applied over the loaded
// configuration file.
type options struct {
	configPath string
	name       string
	room       string
	relay      string
	identity   string
	logLevel   string
	logFile    string
	audio      bool
	headless   bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("sunset-node", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config (default: $SUNSET_CONFIG)")
	flagSet.StringVar(&opts.name, "name", "", "display name advertised to peers")
	flagSet.StringVar(&opts.room, "room", "", "room to join on startup")
	flagSet.StringVar(&opts.relay, "relay", "", "relay multiaddr including /p2p/<id>")
	flagSet.StringVar(&opts.identity, "identity", "", "path of the persistent identity key")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write JSON log records to this file")
	flagSet.BoolVar(&opts.audio, "audio", false, "join audio as soon as the room is joined")
	flagSet.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("sunset-node")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, err := parseLevel(cfg.Node.LogLevel)
	if err != nil {
		return err
	}
	logs, err := newLogging(opts.headless, level, cfg.Node.LogFile)
	if err != nil {
		return err
	}
	defer logs.close()
	logger := logs.logger

	identity, err := transport.LoadOrCreateIdentity(cfg.Node.Identity, logger)
	if err != nil {
		return err
	}

	roomConfig := room.ConfigFromTiming(cfg.Timing)
	roomConfig.Name = cfg.Node.Name
	roomConfig.Version = version.Short()

	hostConfig := transport.LibP2PConfig{
		Identity:    identity,
		ListenAddrs: cfg.Node.ListenAddrs,
		Logger:      logger,
	}
	if cfg.Node.Relay != "" {
		relayID, err := transport.ParseRelayAddr(cfg.Node.Relay)
		if err != nil {
			return err
		}
		roomConfig.RelayID = relayID
		roomConfig.RelayAddr = cfg.Node.Relay
		hostConfig.StaticRelays = []string{cfg.Node.Relay}
	}

	host, err := transport.NewLibP2PHost(hostConfig)
	if err != nil {
		return err
	}
	defer host.Close()

	var microphone media.Microphone
	if cfg.Node.Microphone == "silence" {
		microphone = media.SilenceMicrophone{}
	}
	engine, err := media.NewPionEngine(media.PionOptions{
		ICE:        media.ICEConfigFromServers(cfg.ICE.Servers),
		Microphone: microphone,
		StreamID:   host.ID(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	controller := room.New(roomConfig, room.Deps{
		Host:   host,
		Media:  engine,
		Logger: logger,
	})

	logger.Info("node started",
		"peer_id", host.ID(),
		"addrs", host.Addrs(),
		"relay", roomConfig.RelayID,
		"version", version.Info(),
	)

	if cfg.Node.Room != "" {
		controller.Post(room.JoinRoom{Room: cfg.Node.Room})
		if cfg.Node.AutoJoinAudio {
			controller.Post(room.JoinAudio{})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runContext, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runDone := make(chan error, 1)
	go func() {
		runDone <- controller.Run(runContext)
	}()

	if opts.headless {
		<-ctx.Done()
		logger.Info("shutting down")
	} else {
		program := tea.NewProgram(chatui.NewModel(controller), tea.WithAltScreen())
		logs.tui.SetProgram(program)
		go func() {
			<-ctx.Done()
			program.Quit()
		}()
		if _, err := program.Run(); err != nil {
			cancelRun()
			<-runDone
			return err
		}
	}

	cancelRun()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.name != "" {
		cfg.Node.Name = opts.name
	}
	if opts.room != "" {
		cfg.Node.Room = opts.room
	}
	if opts.relay != "" {
		cfg.Node.Relay = opts.relay
	}
	if opts.identity != "" {
		cfg.Node.Identity = opts.identity
	}
	if opts.logLevel != "" {
		cfg.Node.LogLevel = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Node.LogFile = opts.logFile
	}
	if opts.audio {
		cfg.Node.AutoJoinAudio = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `sunset-node: peer-to-peer chat and voice.

Usage:
  sunset-node [flags]

Examples:
  # Join a room through a relay
  sunset-node --relay /ip4/203.0.113.7/tcp/4001/p2p/12D3KooW... --room lobby

  # Run a headless peer that joins audio with a silent microphone
  sunset-node --headless --audio --room lobby --relay ...

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
