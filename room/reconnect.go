// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "time"

// ReconnectDelay is the wait before reconnect attempt n (1-based):
// base doubled for every earlier attempt, capped at max.
func ReconnectDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return min(delay, max)
}

// scheduleReconnect arms a reconnect attempt for peer. Only the
// deterministic offerer reconnects, and only while audio is joined. At
// most one attempt is pending per peer.
func (c *Controller) scheduleReconnect(peer string) {
	if !c.state.AudioJoined || peer == c.state.RelayID || !IsOfferer(c.state.SelfID, peer) {
		return
	}
	if _, pending := c.reconnectTimers[peer]; pending {
		return
	}
	attempt := c.state.ReconnectAttempts[peer] + 1
	c.state.ReconnectAttempts[peer] = attempt
	delay := ReconnectDelay(attempt, c.config.ReconnectBase, c.config.ReconnectMax)
	c.logger.Debug("scheduling reconnect", "peer", peer, "attempt", attempt, "delay", delay)
	c.reconnectTimers[peer] = c.clock.AfterFunc(delay, func() {
		c.Post(ReconnectDue{Peer: peer})
	})
}

// reconnectDue re-checks every precondition before rebuilding the
// peer's link. A healthy link or audio having been left ends the
// attempt; anything else that is missing reschedules it.
func (c *Controller) reconnectDue(peer string) {
	if _, pending := c.reconnectTimers[peer]; !pending {
		return
	}
	delete(c.reconnectTimers, peer)
	if !c.state.AudioJoined {
		return
	}
	if c.hasHealthyLink(peer) {
		return
	}
	if !c.state.Connected[peer] || !c.state.Presence[peer].Joined {
		c.scheduleReconnect(peer)
		return
	}
	c.logger.Info("reconnecting audio", "peer", peer, "attempt", c.state.ReconnectAttempts[peer])
	if l := c.createLink(peer); l != nil {
		c.negotiate(l, false)
	}
}

func (c *Controller) cancelReconnect(peer string) {
	if timer, ok := c.reconnectTimers[peer]; ok {
		timer.Stop()
		delete(c.reconnectTimers, peer)
	}
}

func (c *Controller) stopReconnects() {
	for peer, timer := range c.reconnectTimers {
		timer.Stop()
		delete(c.reconnectTimers, peer)
	}
	clear(c.state.ReconnectAttempts)
}
