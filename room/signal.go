// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"sync"

	"github.com/sunset-chat/sunset/signaling"
)

// outbox serializes signaling to one peer so offers, answers and
// candidates arrive in the order they were produced.
type outbox struct {
	mu      sync.Mutex
	queue   []outgoing
	running bool
}

type outgoing struct {
	kind    signaling.Type
	payload []byte
}

// sendSignal queues message for peer. Delivery is retried by the
// sender and dropped after the last attempt.
func (c *Controller) sendSignal(peer string, message signaling.Message) {
	payload, err := signaling.Encode(message)
	if err != nil {
		c.logger.Warn("encoding signaling message failed", "peer", peer, "error", err)
		return
	}
	box := c.outboxes[peer]
	if box == nil {
		box = &outbox{}
		c.outboxes[peer] = box
	}

	box.mu.Lock()
	box.queue = append(box.queue, outgoing{kind: message.Type, payload: payload})
	if box.running {
		box.mu.Unlock()
		return
	}
	box.running = true
	box.mu.Unlock()

	c.runner.Go(func() { c.flush(peer, box) })
}

func (c *Controller) flush(peer string, box *outbox) {
	for {
		box.mu.Lock()
		if len(box.queue) == 0 {
			box.running = false
			box.mu.Unlock()
			return
		}
		next := box.queue[0]
		box.queue = box.queue[1:]
		box.mu.Unlock()

		if err := c.sender.Send(c.ctx, peer, signaling.ProtocolAudioSignal, next.payload); err != nil {
			c.logger.Debug("dropped signaling message", "peer", peer, "type", next.kind, "error", err)
		}
	}
}
