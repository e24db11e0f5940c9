// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Compile-time interface checks.
var (
	_ Engine     = (*LoopbackEngine)(nil)
	_ Connection = (*loopbackConnection)(nil)
)

// LoopbackNetwork simulates WebRTC between engines in one process. It
// models the offer/answer state machine, glare errors, ICE credentials
// and transport breakage closely enough to drive session controllers in
// tests and in the headless demo without touching the network.
//
// Descriptions exchanged between loopback connections are JSON, not
// SDP; they only make sense to another loopback connection.
type LoopbackNetwork struct {
	mu          sync.Mutex
	engines     map[string]*LoopbackEngine
	connections map[int]*loopbackConnection
	nextID      int
	nextSession int
}

// NewLoopbackNetwork creates an empty network.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{
		engines:     make(map[string]*LoopbackEngine),
		connections: make(map[int]*loopbackConnection),
	}
}

// NewEngine registers an engine for the local peer id. When microphone
// is false, AcquireMicrophone fails with ErrNoMicrophone.
func (n *LoopbackNetwork) NewEngine(id string, microphone bool) *LoopbackEngine {
	n.mu.Lock()
	defer n.mu.Unlock()
	engine := &LoopbackEngine{network: n, id: id, microphone: microphone}
	n.engines[id] = engine
	return engine
}

// Break simulates a transport path failure between two peers: every
// open connection between them goes ICE-disconnected until a
// negotiation with fresh ICE credentials completes.
func (n *LoopbackNetwork) Break(a, b string) {
	var notify []func()
	n.mu.Lock()
	for _, connection := range n.connections {
		if connection.closed {
			continue
		}
		if (connection.local == a && connection.peer == b) || (connection.local == b && connection.peer == a) {
			connection.broken = true
			notify = append(notify, connection.setStatesLocked(ICEDisconnected, StateDisconnected)...)
		}
	}
	n.mu.Unlock()
	run(notify)
}

// Connected reports whether a and b have a connected pair of
// connections.
func (n *LoopbackNetwork) Connected(a, b string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, connection := range n.connections {
		if connection.closed || connection.local != a || connection.peer != b {
			continue
		}
		if connection.state == StateConnected {
			return true
		}
	}
	return false
}

// OpenConnections counts connections from local to peer that are not
// closed.
func (n *LoopbackNetwork) OpenConnections(local, peer string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, connection := range n.connections {
		if !connection.closed && connection.local == local && connection.peer == peer {
			count++
		}
	}
	return count
}

// FailRemoteDescriptions makes the next count SetRemoteDescription
// calls on local's connections fail.
func (n *LoopbackNetwork) FailRemoteDescriptions(local string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if engine, ok := n.engines[local]; ok {
		engine.failRemote += count
	}
}

func run(notify []func()) {
	for _, call := range notify {
		call()
	}
}

// LoopbackEngine is an Engine on a LoopbackNetwork.
type LoopbackEngine struct {
	network    *LoopbackNetwork
	id         string
	microphone bool

	// Guarded by network.mu.
	capturing  bool
	muted      bool
	failRemote int
}

func (e *LoopbackEngine) AcquireMicrophone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	if !e.microphone {
		return ErrNoMicrophone
	}
	e.capturing = true
	return nil
}

func (e *LoopbackEngine) ReleaseMicrophone() {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	e.capturing = false
}

func (e *LoopbackEngine) SetMuted(muted bool) {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	e.muted = muted
}

func (e *LoopbackEngine) Capturing() bool {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	return e.capturing
}

func (e *LoopbackEngine) Sending() bool {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	return e.capturing && !e.muted
}

func (e *LoopbackEngine) NewConnection(peer string, observer Observer) (Connection, error) {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	e.network.nextID++
	connection := &loopbackConnection{
		network:   e.network,
		engine:    e,
		id:        e.network.nextID,
		local:     e.id,
		peer:      peer,
		observer:  observer,
		signaling: SignalingStable,
		ice:       ICENew,
		state:     StateNew,
	}
	e.network.connections[connection.id] = connection
	return connection, nil
}

func (e *LoopbackEngine) Close() error {
	var notify []func()
	e.network.mu.Lock()
	e.capturing = false
	for _, connection := range e.network.connections {
		if connection.engine == e && !connection.closed {
			notify = append(notify, connection.closeLocked()...)
		}
	}
	e.network.mu.Unlock()
	run(notify)
	return nil
}

// loopbackDescription is the body of a loopback "SDP".
type loopbackDescription struct {
	From       string `json:"from"`
	Connection int    `json:"connection"`
	Session    int    `json:"session"`
	Ufrag      string `json:"ufrag"`
	Audio      bool   `json:"audio"`
}

type loopbackConnection struct {
	network  *LoopbackNetwork
	engine   *LoopbackEngine
	id       int
	local    string
	peer     string
	observer Observer

	// Guarded by network.mu.
	closed      bool
	tracks      bool
	signaling   SignalingState
	ice         ICEState
	state       ConnectionState
	pending     *loopbackDescription // local offer awaiting an answer
	created     *loopbackDescription // from the last Create* call
	remote      *loopbackDescription // last applied remote description
	remoteOffer *loopbackDescription // offer applied, answer not yet sent
	ufrag       string               // ICE credentials in use
	negotiated  int                  // last completed offer session
	counterpart int
	broken      bool
	remoteAudio bool
}

func (c *loopbackConnection) AddLocalTracks() error {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.tracks = true
	return nil
}

func (c *loopbackConnection) HasLocalTracks() bool {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.tracks
}

func (c *loopbackConnection) CreateOffer(iceRestart bool) (SessionDescription, error) {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	if c.closed {
		return SessionDescription{}, ErrClosed
	}
	ufrag := c.ufrag
	if ufrag == "" || iceRestart {
		ufrag = c.newUfragLocked()
	}
	c.network.nextSession++
	description := &loopbackDescription{
		From:       c.local,
		Connection: c.id,
		Session:    c.network.nextSession,
		Ufrag:      ufrag,
		Audio:      c.tracks,
	}
	c.created = description
	return encodeLoopback(SDPOffer, description)
}

func (c *loopbackConnection) CreateAnswer() (SessionDescription, error) {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	if c.closed {
		return SessionDescription{}, ErrClosed
	}
	if c.signaling != SignalingHaveRemoteOffer || c.remoteOffer == nil {
		return SessionDescription{}, fmt.Errorf("create answer in state %s", c.signaling)
	}
	description := &loopbackDescription{
		From:       c.local,
		Connection: c.id,
		Session:    c.remoteOffer.Session,
		Ufrag:      c.remoteOffer.Ufrag,
		Audio:      c.tracks,
	}
	c.created = description
	return encodeLoopback(SDPAnswer, description)
}

func (c *loopbackConnection) SetLocalDescription(description SessionDescription) error {
	var notify []func()
	c.network.mu.Lock()
	err := func() error {
		if c.closed {
			return ErrClosed
		}
		body, err := decodeLoopback(description)
		if err != nil {
			return err
		}
		switch description.Type {
		case SDPOffer:
			if c.signaling != SignalingStable {
				return fmt.Errorf("set local offer in state %s", c.signaling)
			}
			c.pending = body
			c.signaling = SignalingHaveLocalOffer
		case SDPAnswer:
			if c.signaling != SignalingHaveRemoteOffer {
				return fmt.Errorf("set local answer in state %s", c.signaling)
			}
			c.signaling = SignalingStable
			notify = c.completeLocked(c.remoteOffer, body)
			c.remoteOffer = nil
		}
		notify = append(notify, c.gatherLocked(body)...)
		return nil
	}()
	c.network.mu.Unlock()
	run(notify)
	return err
}

func (c *loopbackConnection) SetRemoteDescription(description SessionDescription) error {
	var notify []func()
	c.network.mu.Lock()
	err := func() error {
		if c.closed {
			return ErrClosed
		}
		if c.engine.failRemote > 0 {
			c.engine.failRemote--
			return errors.New("injected remote description failure")
		}
		body, err := decodeLoopback(description)
		if err != nil {
			return err
		}
		switch description.Type {
		case SDPOffer:
			if c.signaling != SignalingStable {
				return fmt.Errorf("set remote offer in state %s", c.signaling)
			}
			c.remote = body
			c.remoteOffer = body
			c.counterpart = body.Connection
			c.signaling = SignalingHaveRemoteOffer
		case SDPAnswer:
			if c.signaling != SignalingHaveLocalOffer || c.pending == nil {
				return fmt.Errorf("set remote answer in state %s", c.signaling)
			}
			if body.Session != c.pending.Session {
				return fmt.Errorf("answer for session %d, pending offer is %d", body.Session, c.pending.Session)
			}
			c.remote = body
			c.counterpart = body.Connection
			c.signaling = SignalingStable
			notify = c.completeLocked(c.pending, body)
			c.pending = nil
		}
		return nil
	}()
	c.network.mu.Unlock()
	run(notify)
	return err
}

func (c *loopbackConnection) Rollback() error {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch c.signaling {
	case SignalingHaveLocalOffer:
		c.pending = nil
	case SignalingHaveRemoteOffer:
		c.remoteOffer = nil
	default:
		return fmt.Errorf("rollback in state %s", c.signaling)
	}
	c.signaling = SignalingStable
	return nil
}

func (c *loopbackConnection) AddICECandidate(candidate Candidate) error {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.remote == nil {
		return errors.New("add candidate before remote description")
	}
	if candidate.Candidate == "" {
		return errors.New("empty candidate")
	}
	return nil
}

func (c *loopbackConnection) SignalingState() SignalingState {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.signaling
}

func (c *loopbackConnection) ICEState() ICEState {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.ice
}

func (c *loopbackConnection) ConnectionState() ConnectionState {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.state
}

func (c *loopbackConnection) HasRemoteDescription() bool {
	c.network.mu.Lock()
	defer c.network.mu.Unlock()
	return c.remote != nil
}

func (c *loopbackConnection) Close() error {
	c.network.mu.Lock()
	notify := c.closeLocked()
	c.network.mu.Unlock()
	run(notify)
	return nil
}

// closeLocked closes c and drops its counterpart to disconnected, the
// way a remote browser sees a peer that went away.
func (c *loopbackConnection) closeLocked() []func() {
	if c.closed {
		return nil
	}
	notify := c.setStatesLocked(ICEClosed, StateClosed)
	c.closed = true
	c.signaling = SignalingClosed
	if other := c.counterpartLocked(); other != nil && !other.closed && other.state == StateConnected {
		other.broken = true
		notify = append(notify, other.setStatesLocked(ICEDisconnected, StateDisconnected)...)
	}
	return notify
}

func (c *loopbackConnection) counterpartLocked() *loopbackConnection {
	other, ok := c.network.connections[c.counterpart]
	if !ok || other.counterpart != c.id {
		return nil
	}
	return other
}

// completeLocked records a finished offer/answer exchange. offer and
// answer are the two halves; either side may be local.
func (c *loopbackConnection) completeLocked(offer, answer *loopbackDescription) []func() {
	var notify []func()
	if offer.Ufrag != c.ufrag {
		c.ufrag = offer.Ufrag
		c.broken = false
	}
	c.negotiated = offer.Session

	remoteAudio := answer.Audio
	if offer.From != c.local {
		remoteAudio = offer.Audio
	}
	if remoteAudio && !c.remoteAudio {
		observer := c.observer
		info := TrackInfo{ID: "audio", StreamID: c.peer, Codec: "audio/opus"}
		notify = append(notify, func() { observer.TrackReceived(info) })
	}
	c.remoteAudio = remoteAudio

	other := c.counterpartLocked()
	if other == nil || other.closed || other.negotiated != c.negotiated {
		if c.state == StateNew {
			notify = append(notify, c.setStatesLocked(ICEChecking, StateConnecting)...)
		}
		return notify
	}
	if c.broken || other.broken {
		return notify
	}
	notify = append(notify, c.setStatesLocked(ICEConnected, StateConnected)...)
	notify = append(notify, other.setStatesLocked(ICEConnected, StateConnected)...)
	return notify
}

// gatherLocked emits the single host candidate a loopback connection
// has for the credentials in description.
func (c *loopbackConnection) gatherLocked(description *loopbackDescription) []func() {
	observer := c.observer
	mid := "0"
	index := uint16(0)
	ufrag := description.Ufrag
	candidate := Candidate{
		Candidate:        fmt.Sprintf("candidate:%d 1 udp 2130706431 127.0.0.1 %d typ host", c.id, 40000+c.id),
		SDPMid:           &mid,
		SDPMLineIndex:    &index,
		UsernameFragment: &ufrag,
	}
	return []func(){func() { observer.CandidateGathered(candidate) }}
}

func (c *loopbackConnection) setStatesLocked(ice ICEState, state ConnectionState) []func() {
	var notify []func()
	observer := c.observer
	if c.ice != ice {
		c.ice = ice
		notify = append(notify, func() { observer.ICEStateChanged(ice) })
	}
	if c.state != state {
		c.state = state
		notify = append(notify, func() { observer.ConnectionStateChanged(state) })
	}
	return notify
}

func (c *loopbackConnection) newUfragLocked() string {
	c.network.nextSession++
	return fmt.Sprintf("%s-%d-%d", c.local, c.id, c.network.nextSession)
}

func encodeLoopback(sdpType SDPType, description *loopbackDescription) (SessionDescription, error) {
	data, err := json.Marshal(description)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: sdpType, SDP: string(data)}, nil
}

func decodeLoopback(description SessionDescription) (*loopbackDescription, error) {
	var body loopbackDescription
	if err := json.Unmarshal([]byte(description.SDP), &body); err != nil {
		return nil, fmt.Errorf("not a loopback description: %w", err)
	}
	return &body, nil
}
