// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"time"

	"github.com/sunset-chat/sunset/lib/config"
)

// Config holds the controller's identity settings and timing.
type Config struct {
	// Name is the display name advertised in presence.
	Name string

	// Version is advertised in presence.
	Version string

	// RelayID is the relay's peer ID. The relay is excluded from
	// presence, chat and audio, and answers discovery polls.
	RelayID string

	// RelayAddr is dialed whenever the relay is not connected while a
	// room is joined. Empty disables re-dialing.
	RelayAddr string

	Tick                  time.Duration
	DisconnectGrace       time.Duration
	ReconnectBase         time.Duration
	ReconnectMax          time.Duration
	DiscoveryInterval     time.Duration
	RenegotiationCooldown time.Duration
	UpgradeCooldown       time.Duration
	ICEDisconnectDebounce time.Duration
	SignalingAttempts     int
	SignalingBackoff      time.Duration
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return ConfigFromTiming(config.Default().Timing)
}

// ConfigFromTiming copies a configuration file's timing section.
func ConfigFromTiming(timing config.TimingConfig) Config {
	return Config{
		Tick:                  timing.TickInterval,
		DisconnectGrace:       timing.DisconnectGrace,
		ReconnectBase:         timing.ReconnectBase,
		ReconnectMax:          timing.ReconnectMax,
		DiscoveryInterval:     timing.DiscoveryInterval,
		RenegotiationCooldown: timing.RenegotiationCooldown,
		UpgradeCooldown:       timing.UpgradeCooldown,
		ICEDisconnectDebounce: timing.ICEDisconnectDebounce,
		SignalingAttempts:     timing.SignalingAttempts,
		SignalingBackoff:      timing.SignalingBackoff,
	}
}

// withDefaults fills zero durations and counts from DefaultConfig.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	fill := func(value *time.Duration, fallback time.Duration) {
		if *value <= 0 {
			*value = fallback
		}
	}
	fill(&c.Tick, defaults.Tick)
	fill(&c.DisconnectGrace, defaults.DisconnectGrace)
	fill(&c.ReconnectBase, defaults.ReconnectBase)
	fill(&c.ReconnectMax, defaults.ReconnectMax)
	fill(&c.DiscoveryInterval, defaults.DiscoveryInterval)
	fill(&c.RenegotiationCooldown, defaults.RenegotiationCooldown)
	fill(&c.UpgradeCooldown, defaults.UpgradeCooldown)
	fill(&c.ICEDisconnectDebounce, defaults.ICEDisconnectDebounce)
	fill(&c.SignalingBackoff, defaults.SignalingBackoff)
	if c.SignalingAttempts <= 0 {
		c.SignalingAttempts = defaults.SignalingAttempts
	}
	if c.ReconnectMax < c.ReconnectBase {
		c.ReconnectMax = c.ReconnectBase
	}
	return c
}
