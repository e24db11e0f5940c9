// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sunset-chat/sunset/media"
)

// Config is the master configuration for sunset binaries.
type Config struct {
	// Node configures a chat peer.
	Node NodeConfig `yaml:"node"`

	// Timing holds the room engine's intervals and backoffs.
	Timing TimingConfig `yaml:"timing"`

	// ICE lists STUN/TURN servers for audio connections.
	ICE ICEConfig `yaml:"ice"`

	// Relay configures the relay binary.
	Relay RelayConfig `yaml:"relay"`
}

// NodeConfig configures a chat peer.
type NodeConfig struct {
	// Name is the display name advertised in presence.
	Name string `yaml:"name"`

	// Room is joined on startup when set.
	Room string `yaml:"room"`

	// Relay is the relay's full multiaddr, ending in /p2p/<id>. It is
	// used for discovery and circuit reservations.
	Relay string `yaml:"relay"`

	// ListenAddrs are libp2p listen multiaddrs.
	// Default: TCP and QUIC on an ephemeral port.
	ListenAddrs []string `yaml:"listen_addrs"`

	// Identity is the path of the persistent key file. Empty means an
	// ephemeral identity.
	Identity string `yaml:"identity"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`

	// LogFile receives logs while the chat UI owns the terminal.
	// Empty discards them.
	LogFile string `yaml:"log_file"`

	// AutoJoinAudio joins audio as soon as the room is joined.
	AutoJoinAudio bool `yaml:"auto_join_audio"`

	// Microphone selects the capture source: "silence" sends Opus
	// silence, "none" runs receive-only.
	// Default: silence
	Microphone string `yaml:"microphone"`
}

// TimingConfig holds the room engine's intervals and backoffs.
type TimingConfig struct {
	// TickInterval drives pruning, the reconciliation sweep, presence
	// broadcast and upgrade attempts.
	TickInterval time.Duration `yaml:"tick_interval"`

	// DisconnectGrace is how long a disconnected peer stays listed.
	DisconnectGrace time.Duration `yaml:"disconnect_grace"`

	// ReconnectBase and ReconnectMax bound reconnection backoff.
	ReconnectBase time.Duration `yaml:"reconnect_base"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`

	// DiscoveryInterval is the relay polling period.
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`

	// RenegotiationCooldown delays the offer that follows a glare
	// rollback.
	RenegotiationCooldown time.Duration `yaml:"renegotiation_cooldown"`

	// UpgradeCooldown spaces direct-dial attempts to relay-only peers.
	UpgradeCooldown time.Duration `yaml:"upgrade_cooldown"`

	// ICEDisconnectDebounce is how long ICE must stay disconnected
	// before the connection counts as broken.
	ICEDisconnectDebounce time.Duration `yaml:"ice_disconnect_debounce"`

	// SignalingAttempts and SignalingBackoff bound signaling retries.
	SignalingAttempts int           `yaml:"signaling_attempts"`
	SignalingBackoff  time.Duration `yaml:"signaling_backoff"`
}

// ICEConfig lists STUN/TURN servers.
type ICEConfig struct {
	Servers []media.ICEServer `yaml:"servers"`
}

// RelayConfig configures the relay binary.
type RelayConfig struct {
	// Port is used for every transport (TCP, QUIC, WebTransport,
	// WebRTC-direct, WebSocket).
	Port int `yaml:"port"`

	// Identity is the persistent key file path.
	Identity string `yaml:"identity"`

	// MaxReservations caps circuit relay reservations.
	MaxReservations int `yaml:"max_reservations"`

	// PeerTTL is how long a peer stays in a discovery room after its
	// last poll.
	PeerTTL time.Duration `yaml:"peer_ttl"`
}

// Default returns the default configuration. Loaded files merge over
// it, so fields a file leaves out keep these values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ListenAddrs: []string{
				"/ip4/0.0.0.0/tcp/0",
				"/ip4/0.0.0.0/udp/0/quic-v1",
			},
			LogLevel:   "info",
			Microphone: "silence",
		},
		Timing: TimingConfig{
			TickInterval:          time.Second,
			DisconnectGrace:       10 * time.Second,
			ReconnectBase:         time.Second,
			ReconnectMax:          30 * time.Second,
			DiscoveryInterval:     2 * time.Second,
			RenegotiationCooldown: time.Second,
			UpgradeCooldown:       15 * time.Second,
			ICEDisconnectDebounce: 3 * time.Second,
			SignalingAttempts:     3,
			SignalingBackoff:      500 * time.Millisecond,
		},
		ICE: ICEConfig{
			Servers: []media.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		},
		Relay: RelayConfig{
			Port:            4001,
			Identity:        "identity.key",
			MaxReservations: 256,
			PeerTTL:         30 * time.Second,
		},
	}
}

// Load loads the file named by SUNSET_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("SUNSET_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Node.Identity = expandVars(c.Node.Identity, vars)
	c.Node.LogFile = expandVars(c.Node.LogFile, vars)
	c.Relay.Identity = expandVars(c.Relay.Identity, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	logLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(logLevels, c.Node.LogLevel) {
		errs = append(errs, fmt.Errorf("node.log_level must be one of: %v", logLevels))
	}
	microphones := []string{"silence", "none"}
	if !slices.Contains(microphones, c.Node.Microphone) {
		errs = append(errs, fmt.Errorf("node.microphone must be one of: %v", microphones))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"timing.tick_interval", c.Timing.TickInterval},
		{"timing.disconnect_grace", c.Timing.DisconnectGrace},
		{"timing.reconnect_base", c.Timing.ReconnectBase},
		{"timing.reconnect_max", c.Timing.ReconnectMax},
		{"timing.discovery_interval", c.Timing.DiscoveryInterval},
		{"timing.renegotiation_cooldown", c.Timing.RenegotiationCooldown},
		{"timing.upgrade_cooldown", c.Timing.UpgradeCooldown},
		{"timing.ice_disconnect_debounce", c.Timing.ICEDisconnectDebounce},
		{"timing.signaling_backoff", c.Timing.SignalingBackoff},
		{"relay.peer_ttl", c.Relay.PeerTTL},
	}
	for _, duration := range durations {
		if duration.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", duration.name, duration.value))
		}
	}
	if c.Timing.ReconnectMax < c.Timing.ReconnectBase {
		errs = append(errs, fmt.Errorf("timing.reconnect_max (%v) is less than timing.reconnect_base (%v)",
			c.Timing.ReconnectMax, c.Timing.ReconnectBase))
	}
	if c.Timing.SignalingAttempts < 1 {
		errs = append(errs, fmt.Errorf("timing.signaling_attempts must be at least 1"))
	}

	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		errs = append(errs, fmt.Errorf("relay.port %d out of range", c.Relay.Port))
	}
	if c.Relay.MaxReservations < 1 {
		errs = append(errs, fmt.Errorf("relay.max_reservations must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
