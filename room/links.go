// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"slices"

	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
)

// link is one media connection to a peer. There is at most one per
// peer. A link is live until it is closed; timers and callbacks that
// still hold a closed link find it not live and do nothing.
type link struct {
	id      uint64
	peer    string
	conn    media.Connection
	live    bool
	offerer bool

	// pending holds remote candidates that arrived before the remote
	// description.
	pending []media.Candidate

	debounce    *clock.Timer
	renegotiate *clock.Timer
}

// linkObserver turns media callbacks into events tagged with the link.
type linkObserver struct {
	c    *Controller
	peer string
	id   uint64
}

func (o linkObserver) ConnectionStateChanged(state media.ConnectionState) {
	o.c.Post(MediaStateChanged{Peer: o.peer, Link: o.id, State: state})
}

func (o linkObserver) ICEStateChanged(state media.ICEState) {
	o.c.Post(ICEStateChanged{Peer: o.peer, Link: o.id, State: state})
}

func (o linkObserver) CandidateGathered(candidate media.Candidate) {
	o.c.Post(CandidateGathered{Peer: o.peer, Link: o.id, Candidate: candidate})
}

func (o linkObserver) TrackReceived(track media.TrackInfo) {
	o.c.Post(TrackReceived{Peer: o.peer, Link: o.id, Track: track})
}

func (c *Controller) findLink(peer string, id uint64) *link {
	for _, l := range c.links[peer] {
		if l.id == id {
			return l
		}
	}
	return nil
}

// newestLink returns the most recently created live link to peer.
func (c *Controller) newestLink(peer string) *link {
	links := c.links[peer]
	for i := len(links) - 1; i >= 0; i-- {
		if links[i].live {
			return links[i]
		}
	}
	return nil
}

// hasLink reports whether peer has a live link that has not failed or
// closed. A disconnected link counts: it is recovered by ICE restart
// and the reconnection scheduler, not replaced by the sweep.
func (c *Controller) hasLink(peer string) bool {
	for _, l := range c.links[peer] {
		if l.live && !l.conn.ConnectionState().Terminal() {
			return true
		}
	}
	return false
}

// hasHealthyLink reports whether peer has a live link that is connected
// or connecting.
func (c *Controller) hasHealthyLink(peer string) bool {
	for _, l := range c.links[peer] {
		if l.live && l.conn.ConnectionState().Healthy() {
			return true
		}
	}
	return false
}

// createLink closes any existing links to peer and opens a fresh one
// with the microphone attached when it is capturing.
func (c *Controller) createLink(peer string) *link {
	c.closeLinks(peer, false)

	c.nextLink++
	l := &link{
		id:      c.nextLink,
		peer:    peer,
		live:    true,
		offerer: IsOfferer(c.state.SelfID, peer),
	}
	conn, err := c.media.NewConnection(peer, linkObserver{c: c, peer: peer, id: l.id})
	if err != nil {
		c.logger.Warn("creating media connection failed", "peer", peer, "error", err)
		return nil
	}
	l.conn = conn
	if c.media.Capturing() {
		if err := conn.AddLocalTracks(); err != nil {
			c.logger.Warn("attaching microphone failed", "peer", peer, "error", err)
		}
	}
	c.links[peer] = append(c.links[peer], l)
	c.state.PCState[peer] = media.StateNew
	c.logger.Debug("created media connection", "peer", peer, "link", l.id, "offerer", l.offerer)
	return l
}

// closeLink tears one link down, optionally telling the peer first.
func (c *Controller) closeLink(l *link, bye bool) {
	l.live = false
	l.debounce.Stop()
	l.renegotiate.Stop()
	l.debounce, l.renegotiate = nil, nil
	if bye {
		c.sendSignal(l.peer, signaling.Bye())
	}
	if err := l.conn.Close(); err != nil {
		c.logger.Debug("closing media connection", "peer", l.peer, "error", err)
	}

	links := slices.DeleteFunc(c.links[l.peer], func(other *link) bool { return other == l })
	if len(links) == 0 {
		delete(c.links, l.peer)
	} else {
		c.links[l.peer] = links
	}
}

// closeLinks closes every link to peer and forgets its media state.
func (c *Controller) closeLinks(peer string, bye bool) {
	links := slices.Clone(c.links[peer])
	for _, l := range links {
		c.closeLink(l, bye && l.live)
	}
	delete(c.state.PCState, peer)
}

func (c *Controller) closeAllLinks(bye bool) {
	peers := make([]string, 0, len(c.links))
	for peer := range c.links {
		peers = append(peers, peer)
	}
	slices.Sort(peers)
	for _, peer := range peers {
		c.closeLinks(peer, bye)
	}
}

// negotiate sends a fresh offer on l. It does nothing unless the link
// is live and stable. The offer restarts ICE when asked to, or when the
// transport is already down.
func (c *Controller) negotiate(l *link, restart bool) bool {
	if !l.live || l.conn.SignalingState() != media.SignalingStable {
		return false
	}
	restart = restart || l.conn.ICEState().NeedsRestart()
	offer, err := l.conn.CreateOffer(restart)
	if err != nil {
		c.logger.Warn("creating offer failed", "peer", l.peer, "error", err)
		return false
	}
	if err := l.conn.SetLocalDescription(offer); err != nil {
		c.logger.Warn("applying local offer failed", "peer", l.peer, "error", err)
		return false
	}
	c.logger.Debug("sending offer", "peer", l.peer, "link", l.id, "restart", restart)
	c.sendSignal(l.peer, signaling.Offer(offer.SDP, restart))
	return true
}

// scheduleRenegotiation offers again on l once the cooldown passes.
func (c *Controller) scheduleRenegotiation(l *link) {
	l.renegotiate.Stop()
	peer, id := l.peer, l.id
	l.renegotiate = c.clock.AfterFunc(c.config.RenegotiationCooldown, func() {
		c.Post(RenegotiateDue{Peer: peer, Link: id})
	})
}

func (c *Controller) renegotiateDue(e RenegotiateDue) {
	l := c.findLink(e.Peer, e.Link)
	if l == nil || l.renegotiate == nil {
		return
	}
	l.renegotiate = nil
	if !l.live {
		return
	}
	if l.conn.SignalingState() != media.SignalingStable {
		c.scheduleRenegotiation(l)
		return
	}
	c.negotiate(l, false)
}

type offerOutcome int

const (
	offerAccepted offerOutcome = iota
	offerIgnored
	offerFailed
)

// handleOffer applies a remote offer. The existing link answers when
// there is one; otherwise a new link does. A link that refuses the
// offer is closed and the peer is told to start over.
func (c *Controller) handleOffer(peer string, message signaling.Message) {
	description := message.Description()
	if l := c.newestLink(peer); l != nil {
		if c.acceptOffer(l, description, message.Restart) != offerFailed {
			return
		}
		c.logger.Warn("media connection refused offer", "peer", peer)
		c.closeLinks(peer, true)
		return
	}

	l := c.createLink(peer)
	if l == nil {
		return
	}
	if c.acceptOffer(l, description, message.Restart) == offerFailed {
		c.closeLinks(peer, true)
	}
}

// acceptOffer answers description on l, resolving glare by the
// deterministic-offerer rule.
func (c *Controller) acceptOffer(l *link, description media.SessionDescription, restart bool) offerOutcome {
	conn := l.conn
	renegotiate := false
	switch conn.SignalingState() {
	case media.SignalingHaveLocalOffer:
		if l.offerer {
			c.logger.Debug("glare: keeping local offer", "peer", l.peer, "link", l.id)
			return offerIgnored
		}
		renegotiate = conn.HasLocalTracks()
		if err := conn.Rollback(); err != nil {
			c.logger.Warn("rolling back local offer failed", "peer", l.peer, "error", err)
			return offerFailed
		}
		c.logger.Debug("glare: rolled back local offer", "peer", l.peer, "link", l.id)
	case media.SignalingHaveRemoteOffer:
		if err := conn.Rollback(); err != nil {
			return offerFailed
		}
	case media.SignalingClosed:
		return offerFailed
	}

	if err := conn.SetRemoteDescription(description); err != nil {
		if !restart {
			c.logger.Debug("applying remote offer failed", "peer", l.peer, "link", l.id, "error", err)
			return offerFailed
		}
		c.logger.Debug("reapplying ICE restart offer", "peer", l.peer, "link", l.id, "error", err)
		if conn.SignalingState() != media.SignalingStable {
			if err := conn.Rollback(); err != nil {
				return offerFailed
			}
		}
		if err := conn.SetRemoteDescription(description); err != nil {
			c.logger.Debug("applying remote offer failed", "peer", l.peer, "link", l.id, "error", err)
			return offerFailed
		}
	}

	answer, err := conn.CreateAnswer()
	if err != nil {
		c.logger.Warn("creating answer failed", "peer", l.peer, "error", err)
		return offerFailed
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		c.logger.Warn("applying local answer failed", "peer", l.peer, "error", err)
		return offerFailed
	}
	c.sendSignal(l.peer, signaling.Answer(answer.SDP))
	c.flushCandidates(l)
	if renegotiate {
		c.scheduleRenegotiation(l)
	}
	return offerAccepted
}

func (c *Controller) handleAnswer(peer string, message signaling.Message) {
	for _, l := range c.links[peer] {
		if !l.live || l.conn.SignalingState() != media.SignalingHaveLocalOffer {
			continue
		}
		if err := l.conn.SetRemoteDescription(message.Description()); err != nil {
			c.logger.Debug("applying remote answer failed", "peer", peer, "link", l.id, "error", err)
			continue
		}
		c.flushCandidates(l)
		return
	}
	c.logger.Debug("answer without pending offer", "peer", peer)
}

func (c *Controller) handleCandidate(peer string, candidate media.Candidate) {
	l := c.newestLink(peer)
	if l == nil {
		return
	}
	if !l.conn.HasRemoteDescription() {
		l.pending = append(l.pending, candidate)
		return
	}
	if err := l.conn.AddICECandidate(candidate); err != nil {
		c.logger.Debug("adding remote candidate failed", "peer", peer, "error", err)
	}
}

func (c *Controller) flushCandidates(l *link) {
	pending := l.pending
	l.pending = nil
	for _, candidate := range pending {
		if err := l.conn.AddICECandidate(candidate); err != nil {
			c.logger.Debug("adding queued candidate failed", "peer", l.peer, "error", err)
		}
	}
}

func (c *Controller) handleBye(peer string) {
	c.logger.Debug("peer left audio", "peer", peer)
	c.closeLinks(peer, false)
	c.scheduleReconnect(peer)
}

// signalReceived dispatches an audio signaling message. Signaling is
// ignored while audio is not joined.
func (c *Controller) signalReceived(peer string, message signaling.Message) {
	if peer == c.state.RelayID {
		return
	}
	if message.Type == signaling.TypeBye {
		c.handleBye(peer)
		return
	}
	if !c.state.AudioJoined {
		c.logger.Debug("ignoring signaling while audio is off", "peer", peer, "type", message.Type)
		return
	}
	switch message.Type {
	case signaling.TypeOffer:
		c.handleOffer(peer, message)
	case signaling.TypeAnswer:
		c.handleAnswer(peer, message)
	case signaling.TypeCandidate:
		c.handleCandidate(peer, *message.Candidate)
	}
}

// mediaStateChanged mirrors the newest link's state. Healthy links
// clear reconnect bookkeeping; failed or closed links are torn down and
// handed to the reconnection scheduler.
func (c *Controller) mediaStateChanged(e MediaStateChanged) {
	l := c.findLink(e.Peer, e.Link)
	if l == nil || l != c.newestLink(e.Peer) {
		return
	}
	c.state.PCState[e.Peer] = e.State
	switch {
	case e.State.Healthy():
		c.cancelReconnect(e.Peer)
		delete(c.state.ReconnectAttempts, e.Peer)
		if e.State == media.StateConnected {
			c.logger.Info("audio connected", "peer", e.Peer)
		}
	case e.State.Terminal():
		c.logger.Info("audio connection lost", "peer", e.Peer, "state", e.State)
		c.closeLinks(e.Peer, false)
		c.scheduleReconnect(e.Peer)
	}
}

// iceStateChanged debounces transient ICE disconnections. Failure is
// handled at once.
func (c *Controller) iceStateChanged(e ICEStateChanged) {
	l := c.findLink(e.Peer, e.Link)
	if l == nil {
		return
	}
	switch e.State {
	case media.ICEDisconnected:
		if l.debounce != nil {
			return
		}
		peer, id := l.peer, l.id
		l.debounce = c.clock.AfterFunc(c.config.ICEDisconnectDebounce, func() {
			c.Post(DisconnectDebounced{Peer: peer, Link: id})
		})
	case media.ICEConnected, media.ICECompleted:
		l.debounce.Stop()
		l.debounce = nil
	case media.ICEFailed:
		l.debounce.Stop()
		l.debounce = nil
		c.handleBroken(l)
	}
}

func (c *Controller) disconnectDebounced(e DisconnectDebounced) {
	l := c.findLink(e.Peer, e.Link)
	if l == nil || l.debounce == nil {
		return
	}
	l.debounce = nil
	if l.conn.ICEState() != media.ICEDisconnected {
		return
	}
	c.handleBroken(l)
}

// handleBroken reacts to a lost transport path: the offerer restarts
// ICE, and the reconnection scheduler takes over if that does not help.
func (c *Controller) handleBroken(l *link) {
	if !l.live || !c.state.AudioJoined {
		return
	}
	c.logger.Info("audio path broken", "peer", l.peer, "ice", l.conn.ICEState())
	if l.offerer {
		c.negotiate(l, true)
	}
	c.scheduleReconnect(l.peer)
}

func (c *Controller) candidateGathered(e CandidateGathered) {
	l := c.findLink(e.Peer, e.Link)
	if l == nil || !l.live {
		return
	}
	c.sendSignal(e.Peer, signaling.CandidateMessage(e.Candidate))
}

// sweep creates links for audio peers that have none. Only offerers
// offer; the other side waits for the offer.
func (c *Controller) sweep() {
	if !c.state.AudioJoined {
		return
	}
	for _, peer := range c.roomPeers() {
		if !c.state.Presence[peer].Joined || c.hasLink(peer) {
			continue
		}
		l := c.createLink(peer)
		if l != nil && l.offerer {
			c.negotiate(l, false)
		}
	}
}

func (c *Controller) linkedPeers() []string {
	peers := make([]string, 0, len(c.links))
	for peer := range c.links {
		peers = append(peers, peer)
	}
	slices.Sort(peers)
	return peers
}
