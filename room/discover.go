// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"time"

	"github.com/sunset-chat/sunset/discovery"
)

// pollTimeout bounds one discovery round trip to the relay.
const pollTimeout = 10 * time.Second

// upgradeState tracks attempts to replace a relayed connection with a
// direct one.
type upgradeState struct {
	since    time.Time
	last     time.Time
	inFlight bool
}

// pollDiscovery asks the relay for room members once per discovery
// interval. Without a relay connection it re-dials the relay instead.
func (c *Controller) pollDiscovery() {
	room := c.state.DiscoveryRoom
	if room == "" || c.discovery == nil || c.polling {
		return
	}
	if !c.state.Connected[c.state.RelayID] {
		c.dialRelay()
		return
	}
	now := c.clock.Now()
	if now.Before(c.nextPoll) {
		return
	}
	c.polling = true
	c.nextPoll = now.Add(c.config.DiscoveryInterval)
	c.runner.Go(func() {
		ctx, cancel := context.WithTimeout(c.ctx, pollTimeout)
		defer cancel()
		response, err := c.discovery.Poll(ctx, room)
		c.Post(DiscoveryResult{Room: room, Response: response, Err: err})
	})
}

func (c *Controller) dialRelay() {
	if c.config.RelayAddr == "" || c.relayDialing {
		return
	}
	c.relayDialing = true
	relay, addr := c.state.RelayID, c.config.RelayAddr
	c.runner.Go(func() {
		err := c.host.Dial(c.ctx, addr)
		c.Post(DialResult{Peer: relay, Addr: addr, Err: err})
	})
}

// discoveryResult dials every newly discovered member, direct
// addresses first.
func (c *Controller) discoveryResult(e DiscoveryResult) {
	c.polling = false
	if e.Room != c.state.DiscoveryRoom {
		return
	}
	if e.Err != nil {
		c.logger.Warn("discovery poll failed", "room", e.Room, "error", e.Err)
		return
	}
	for _, info := range e.Response.Peers {
		peer := info.PeerID
		if peer == "" || peer == c.state.SelfID || peer == c.state.RelayID {
			continue
		}
		c.knownAddrs[peer] = info.Addrs
		if c.state.Connected[peer] || c.dialing[peer] {
			continue
		}
		addrs := discovery.OrderAddrs(info.Addrs)
		if len(addrs) == 0 {
			continue
		}
		c.dialing[peer] = true
		c.logger.Debug("dialing discovered peer", "peer", peer, "addrs", len(addrs))
		c.runner.Go(func() {
			addr, err := discovery.DialSequential(c.ctx, c.host, addrs)
			c.Post(DialResult{Peer: peer, Addr: addr, Err: err})
		})
	}
}

func (c *Controller) dialResult(e DialResult) {
	if e.Peer == c.state.RelayID && !e.Upgrade {
		c.relayDialing = false
		if e.Err != nil {
			c.logger.Warn("relay dial failed", "addr", e.Addr, "error", e.Err)
		}
		return
	}
	if e.Upgrade {
		if upgrade := c.upgrades[e.Peer]; upgrade != nil {
			upgrade.inFlight = false
		}
		if e.Err != nil {
			c.logger.Debug("direct upgrade failed", "peer", e.Peer, "error", e.Err)
		} else {
			c.logger.Info("upgraded to direct connection", "peer", e.Peer, "addr", e.Addr)
		}
		return
	}
	delete(c.dialing, e.Peer)
	if e.Err != nil {
		c.logger.Warn("dialing discovered peer failed", "peer", e.Peer, "error", e.Err)
		return
	}
	c.logger.Debug("dialed discovered peer", "peer", e.Peer, "addr", e.Addr)
}

// upgradeRelayed tries direct addresses for peers reachable only
// through the relay. The deterministic offerer dials after one
// cooldown, the other side only after two, so both ends rarely dial at
// once.
func (c *Controller) upgradeRelayed() {
	now := c.clock.Now()
	for _, peer := range c.roomPeers() {
		addrs := c.host.PeerAddrs(peer)
		if len(addrs) == 0 || !discovery.RelayOnly(addrs) {
			delete(c.upgrades, peer)
			continue
		}
		direct := discovery.DirectAddrs(c.knownAddrs[peer])
		if len(direct) == 0 {
			continue
		}
		upgrade := c.upgrades[peer]
		if upgrade == nil {
			upgrade = &upgradeState{since: now}
			c.upgrades[peer] = upgrade
		}
		if upgrade.inFlight {
			continue
		}
		cooldown := c.config.UpgradeCooldown
		if !IsOfferer(c.state.SelfID, peer) {
			cooldown *= 2
		}
		last := upgrade.last
		if last.IsZero() {
			last = upgrade.since
		}
		if now.Sub(last) < cooldown {
			continue
		}
		upgrade.inFlight = true
		upgrade.last = now
		c.logger.Debug("trying direct connection", "peer", peer, "addrs", len(direct))
		c.runner.Go(func() {
			addr, err := discovery.DialSequential(c.ctx, c.host, direct)
			c.Post(DialResult{Peer: peer, Addr: addr, Upgrade: true, Err: err})
		})
	}
}
