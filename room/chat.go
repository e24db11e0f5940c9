// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "github.com/sunset-chat/sunset/signaling"

// sendChat adds text to the thread and sends it to every connected
// peer. With nobody to send to, the failure is shown in the thread
// instead.
func (c *Controller) sendChat(text string) error {
	if text == "" {
		return nil
	}
	peers := c.roomPeers()
	if len(peers) == 0 {
		c.systemMessage("No peers connected")
		return ErrNoPeers
	}
	c.addChat(EntryLocal, c.state.SelfID, text)
	payload := []byte(text)
	ctx := c.ctx
	for _, peer := range peers {
		c.runner.Go(func() {
			if err := c.sender.Send(ctx, peer, signaling.ProtocolChat, payload); err != nil {
				c.logger.Warn("chat message not delivered", "peer", peer, "error", err)
			}
		})
	}
	return nil
}

func (c *Controller) chatReceived(peer, text string) {
	if peer == c.state.RelayID || text == "" {
		return
	}
	c.addChat(EntryRemote, peer, text)
}
