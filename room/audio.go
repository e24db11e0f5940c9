// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import "github.com/sunset-chat/sunset/media"

// joinAudio opts in to audio. The microphone is acquired in the
// background; links are created right away and pick the track up when
// it arrives.
func (c *Controller) joinAudio() {
	if c.state.AudioJoined {
		return
	}
	if c.state.Room == "" {
		c.systemMessage("Join a room before joining audio")
		return
	}
	c.state.AudioJoined = true
	c.state.MediaError = ""
	c.logger.Info("joining audio", "room", c.state.Room)

	ctx := c.ctx
	c.runner.Go(func() {
		c.Post(MicrophoneResult{Err: c.media.AcquireMicrophone(ctx)})
	})
	c.sweep()
	c.broadcastPresence()
}

// microphoneResult attaches the microphone to existing links and
// renegotiates the ones that already exchanged descriptions. A failure
// is shown to the user; audio stays joined for listening.
func (c *Controller) microphoneResult(err error) {
	if !c.state.AudioJoined {
		c.media.ReleaseMicrophone()
		return
	}
	if err != nil {
		c.logger.Warn("microphone unavailable", "error", err)
		c.state.MediaError = err.Error()
		c.systemMessage("Microphone unavailable: " + err.Error())
		c.broadcastPresence()
		return
	}
	c.media.SetMuted(c.state.Muted)
	for _, peer := range c.linkedPeers() {
		l := c.newestLink(peer)
		if l == nil || l.conn.HasLocalTracks() {
			continue
		}
		if err := l.conn.AddLocalTracks(); err != nil {
			c.logger.Warn("attaching microphone failed", "peer", peer, "error", err)
			continue
		}
		if !l.offerer && !l.conn.HasRemoteDescription() {
			continue
		}
		if l.conn.SignalingState() == media.SignalingStable {
			c.negotiate(l, false)
		} else {
			c.scheduleRenegotiation(l)
		}
	}
	c.broadcastPresence()
}

// leaveAudio says bye to every peer, closes all links and releases the
// microphone.
func (c *Controller) leaveAudio() {
	if !c.state.AudioJoined {
		return
	}
	c.state.AudioJoined = false
	c.closeAllLinks(true)
	c.stopReconnects()
	c.media.ReleaseMicrophone()
	clear(c.state.PCState)
	c.state.MediaError = ""
	c.logger.Info("left audio", "room", c.state.Room)
	c.broadcastPresence()
}
