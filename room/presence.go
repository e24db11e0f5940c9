// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "github.com/sunset-chat/sunset/signaling"

// localPresence is what this node advertises. Muted is reported
// whenever audio is joined but no captured audio is going out, which
// covers both a muted and a not yet acquired microphone.
func (c *Controller) localPresence() signaling.Presence {
	joined := c.state.AudioJoined
	return signaling.Presence{
		Joined:  joined,
		Muted:   joined && !c.media.Sending(),
		Name:    c.state.Name,
		Version: c.config.Version,
	}
}

// broadcastPresence sends local presence to every connected peer other
// than the relay.
func (c *Controller) broadcastPresence() {
	if c.state.Room == "" {
		return
	}
	c.sendPresenceTo(c.roomPeers(), c.localPresence())
}

// broadcastLeft tells every peer this node left the room.
func (c *Controller) broadcastLeft() {
	c.sendPresenceTo(c.roomPeers(), signaling.Presence{Name: c.state.Name, Version: c.config.Version})
}

func (c *Controller) sendPresence(peer string) {
	c.sendPresenceTo([]string{peer}, c.localPresence())
}

// sendPresenceTo makes one delivery attempt per peer; the next tick
// repeats it anyway.
func (c *Controller) sendPresenceTo(peers []string, presence signaling.Presence) {
	if len(peers) == 0 {
		return
	}
	payload, err := signaling.EncodePresence(presence)
	if err != nil {
		c.logger.Warn("encoding presence failed", "error", err)
		return
	}
	ctx := c.ctx
	for _, peer := range peers {
		c.runner.Go(func() {
			if err := c.sender.SendOnce(ctx, peer, signaling.ProtocolPresence, payload); err != nil {
				c.logger.Debug("presence not delivered", "peer", peer, "error", err)
			}
		})
	}
}

// presenceReceived stores the peer's latest presence. Presence carries
// no sequence number; the newest message wins.
func (c *Controller) presenceReceived(peer string, presence signaling.Presence) {
	if peer == c.state.SelfID || peer == c.state.RelayID {
		return
	}
	c.state.Presence[peer] = presence
}

func (c *Controller) setMuted(muted bool) {
	c.state.Muted = muted
	c.media.SetMuted(muted)
	c.broadcastPresence()
}
