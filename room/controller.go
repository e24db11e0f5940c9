// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sunset-chat/sunset/discovery"
	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
	"github.com/sunset-chat/sunset/transport"
)

// ErrNoPeers is reported for a chat message when no peer is connected.
var ErrNoPeers = errors.New("no peers connected")

// Sender delivers one-message streams to peers.
type Sender interface {
	// Send retries with backoff.
	Send(ctx context.Context, peer, protocol string, payload []byte) error

	// SendOnce makes a single attempt.
	SendOnce(ctx context.Context, peer, protocol string, payload []byte) error
}

// Poller queries the relay for room members.
type Poller interface {
	Poll(ctx context.Context, room string) (discovery.Response, error)
}

// Deps are the controller's collaborators.
type Deps struct {
	Host  transport.Host
	Media media.Engine

	// Sender defaults to a signaling.Sender on Host.
	Sender Sender

	// Discovery defaults to a discovery.Client for Config.RelayID.
	// Without a relay there is no discovery.
	Discovery Poller

	Clock  clock.Clock
	Runner Runner
	Logger *slog.Logger
}

// Controller owns the room state. Post may be called from any
// goroutine; Handle, Drain and Close must only be called from the
// goroutine that owns the controller (the one running Run, or the test).
type Controller struct {
	config    Config
	host      transport.Host
	media     media.Engine
	sender    Sender
	discovery Poller
	clock     clock.Clock
	runner    Runner
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state    State
	links    map[string][]*link
	outboxes map[string]*outbox

	nextLink        uint64
	reconnectTimers map[string]*clock.Timer
	knownAddrs      map[string][]string
	dialing         map[string]bool
	upgrades        map[string]*upgradeState
	nextPoll        time.Time
	polling         bool
	relayDialing    bool
	closed          bool

	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	latest  Snapshot
	updates chan Snapshot
}

// New creates a controller and registers its protocol handlers and
// connection notifications on the host.
func New(config Config, deps Deps) *Controller {
	config = config.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Runner == nil {
		deps.Runner = GoRunner{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger.With("component", "room", "self", deps.Host.ID())
	if deps.Sender == nil {
		deps.Sender = signaling.NewSender(deps.Host, signaling.SenderConfig{
			Attempts: config.SignalingAttempts,
			Backoff:  config.SignalingBackoff,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		})
	}
	if deps.Discovery == nil && config.RelayID != "" {
		deps.Discovery = discovery.NewClient(deps.Host, config.RelayID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:          config,
		host:            deps.Host,
		media:           deps.Media,
		sender:          deps.Sender,
		discovery:       deps.Discovery,
		clock:           deps.Clock,
		runner:          deps.Runner,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		state:           newState(deps.Host.ID(), config.RelayID, config.Name),
		links:           make(map[string][]*link),
		outboxes:        make(map[string]*outbox),
		reconnectTimers: make(map[string]*clock.Timer),
		knownAddrs:      make(map[string][]string),
		dialing:         make(map[string]bool),
		upgrades:        make(map[string]*upgradeState),
		wake:            make(chan struct{}, 1),
		updates:         make(chan Snapshot, 1),
	}
	c.latest = c.buildSnapshot()

	c.listen(signaling.ProtocolAudioSignal, signaling.MaxSignalSize)
	c.listen(signaling.ProtocolPresence, signaling.MaxPresenceSize)
	c.listen(signaling.ProtocolChat, signaling.MaxChatSize)
	c.host.Notify(transport.ConnectionHandler{
		Connected:    func(peer string) { c.Post(PeerConnected{Peer: peer}) },
		Disconnected: func(peer string) { c.Post(PeerDisconnected{Peer: peer}) },
	})
	return c
}

func (c *Controller) listen(protocol string, limit int) {
	signaling.Listen(c.host, protocol, limit, c.logger, func(peer string, payload []byte) {
		c.deliver(peer, protocol, payload)
	})
}

// deliver decodes an inbound payload into an event.
func (c *Controller) deliver(peer, protocol string, payload []byte) {
	switch protocol {
	case signaling.ProtocolAudioSignal:
		message, err := signaling.Decode(payload)
		if err != nil {
			c.logger.Debug("dropping signaling message", "peer", peer, "error", err)
			return
		}
		c.Post(SignalReceived{Peer: peer, Message: message})
	case signaling.ProtocolPresence:
		presence, err := signaling.DecodePresence(payload)
		if err != nil {
			c.logger.Debug("dropping presence", "peer", peer, "error", err)
			return
		}
		c.Post(PresenceReceived{Peer: peer, Presence: presence})
	case signaling.ProtocolChat:
		c.Post(ChatReceived{Peer: peer, Text: string(payload)})
	}
}

// Post queues an event. It never blocks.
func (c *Controller) Post(event Event) {
	c.mu.Lock()
	c.queue = append(c.queue, event)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) next() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	event := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return event, true
}

// Drain handles queued events, including any queued while draining,
// until the queue is empty. It returns how many were handled.
func (c *Controller) Drain() int {
	handled := 0
	for {
		event, ok := c.next()
		if !ok {
			return handled
		}
		c.Handle(event)
		handled++
	}
}

// Run drives the controller until ctx is done: a tick every
// Config.Tick, and queued events as they arrive. It closes the
// controller before returning.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.config.Tick)
	defer ticker.Stop()
	defer c.Close()

	c.Handle(Tick{})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Drain()
			c.Handle(Tick{})
		case <-c.wake:
			c.Drain()
		}
	}
}

// Snapshot returns the most recently published snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Updates delivers snapshots as they change. Only the latest is kept
// for a slow reader.
func (c *Controller) Updates() <-chan Snapshot { return c.updates }

// State returns the live room state. Only the owning goroutine may use
// it.
func (c *Controller) State() *State { return &c.state }

// Handle processes one event to completion and publishes a snapshot.
func (c *Controller) Handle(event Event) {
	if c.closed {
		return
	}
	switch e := event.(type) {
	case Tick:
		c.tick()
	case JoinRoom:
		c.joinRoom(e.Room)
	case LeaveRoom:
		c.leaveRoom()
	case JoinAudio:
		c.joinAudio()
	case LeaveAudio:
		c.leaveAudio()
	case SetMuted:
		c.setMuted(e.Muted)
	case SetName:
		c.state.Name = e.Name
		c.broadcastPresence()
	case SendChat:
		err := c.sendChat(e.Text)
		if e.Done != nil {
			select {
			case e.Done <- err:
			default:
			}
		}
	case PeerConnected:
		c.peerConnected(e.Peer)
	case PeerDisconnected:
		c.peerDisconnected(e.Peer)
	case DiscoveryResult:
		c.discoveryResult(e)
	case DialResult:
		c.dialResult(e)
	case SignalReceived:
		c.signalReceived(e.Peer, e.Message)
	case PresenceReceived:
		c.presenceReceived(e.Peer, e.Presence)
	case ChatReceived:
		c.chatReceived(e.Peer, e.Text)
	case MediaStateChanged:
		c.mediaStateChanged(e)
	case ICEStateChanged:
		c.iceStateChanged(e)
	case CandidateGathered:
		c.candidateGathered(e)
	case TrackReceived:
		c.logger.Info("remote audio track", "peer", e.Peer, "track", e.Track.ID, "codec", e.Track.Codec)
	case MicrophoneResult:
		c.microphoneResult(e.Err)
	case RenegotiateDue:
		c.renegotiateDue(e)
	case ReconnectDue:
		c.reconnectDue(e.Peer)
	case DisconnectDebounced:
		c.disconnectDebounced(e)
	default:
		c.logger.Warn("unhandled event", "type", fmt.Sprintf("%T", event))
	}
	c.publish()
}

func (c *Controller) publish() {
	snapshot := c.buildSnapshot()
	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snapshot:
	default:
	}
}

// Close tears down every link, releases the microphone and stops all
// timers. Later events are ignored.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closeAllLinks(false)
	c.stopReconnects()
	c.media.ReleaseMicrophone()
	c.closed = true
	c.cancel()
}

// tick is the periodic pass, in order: refresh the connected set, prune
// expired peers, reconcile audio links, broadcast presence, poll
// discovery, and try to upgrade relay-only peers.
func (c *Controller) tick() {
	c.refreshConnected()
	c.prune()
	c.sweep()
	c.broadcastPresence()
	c.pollDiscovery()
	c.upgradeRelayed()
}

// refreshConnected reconciles the connected set with the host's view,
// covering notifications that were missed or arrived out of order.
func (c *Controller) refreshConnected() {
	current := make(map[string]bool)
	for _, peer := range c.host.ConnectedPeers() {
		current[peer] = true
		if !c.state.Connected[peer] {
			c.peerConnected(peer)
		}
	}
	for _, peer := range c.sortedConnected() {
		if !current[peer] {
			c.peerDisconnected(peer)
		}
	}
}

// prune forgets peers that have been gone longer than the grace window,
// then drops presence for anyone neither connected nor within it.
func (c *Controller) prune() {
	now := c.clock.Now()
	for peer, since := range c.state.Disconnected {
		if now.Sub(since) > c.config.DisconnectGrace {
			delete(c.state.Disconnected, peer)
			c.forgetPeer(peer)
		}
	}
	for peer := range c.state.Presence {
		if c.state.Connected[peer] {
			continue
		}
		if _, recent := c.state.Disconnected[peer]; recent {
			continue
		}
		delete(c.state.Presence, peer)
	}
}

// forgetPeer drops per-peer bookkeeping for a peer that is fully gone.
func (c *Controller) forgetPeer(peer string) {
	c.closeLinks(peer, false)
	c.cancelReconnect(peer)
	delete(c.state.ReconnectAttempts, peer)
	delete(c.state.Presence, peer)
	delete(c.knownAddrs, peer)
	delete(c.upgrades, peer)
	delete(c.outboxes, peer)
}

func (c *Controller) peerConnected(peer string) {
	if peer == c.state.SelfID || c.state.Connected[peer] {
		return
	}
	c.state.Connected[peer] = true
	delete(c.state.Disconnected, peer)
	c.logger.Debug("peer connected", "peer", peer)
	if peer == c.state.RelayID {
		return
	}
	if c.state.Room != "" {
		c.sendPresence(peer)
	}
}

func (c *Controller) peerDisconnected(peer string) {
	if !c.state.Connected[peer] {
		return
	}
	delete(c.state.Connected, peer)
	c.state.Disconnected[peer] = c.clock.Now()
	delete(c.upgrades, peer)
	c.logger.Debug("peer disconnected", "peer", peer)

	// The media connections were negotiated over the lost transport.
	hadLinks := len(c.links[peer]) > 0
	c.closeLinks(peer, false)
	if hadLinks {
		c.scheduleReconnect(peer)
	}
}

func (c *Controller) sortedConnected() []string {
	peers := make([]string, 0, len(c.state.Connected))
	for peer := range c.state.Connected {
		peers = append(peers, peer)
	}
	slices.Sort(peers)
	return peers
}

// roomPeers are the connected peers other than the relay.
func (c *Controller) roomPeers() []string {
	var peers []string
	for _, peer := range c.sortedConnected() {
		if peer != c.state.RelayID {
			peers = append(peers, peer)
		}
	}
	return peers
}

// joinRoom resets the room state and subscribes to discovery.
func (c *Controller) joinRoom(name string) {
	if name == "" || name == c.state.Room {
		return
	}
	if c.state.Room != "" {
		c.leaveRoom()
	}

	connected := c.state.Connected
	disconnected := c.state.Disconnected
	c.state = newState(c.state.SelfID, c.state.RelayID, c.state.Name)
	c.state.Connected = connected
	c.state.Disconnected = disconnected
	c.state.Room = name
	c.state.DiscoveryRoom = name
	c.nextPoll = time.Time{}

	c.logger.Info("joined room", "room", name)
	c.systemMessage("Joined room " + name)
	c.broadcastPresence()
	c.pollDiscovery()
}

// leaveRoom leaves audio, tells peers, and drops the room state.
func (c *Controller) leaveRoom() {
	if c.state.Room == "" {
		return
	}
	if c.state.AudioJoined {
		c.leaveAudio()
	}
	room := c.state.Room
	c.state.Room = ""
	c.state.DiscoveryRoom = ""
	c.broadcastLeft()

	connected := c.state.Connected
	disconnected := c.state.Disconnected
	c.state = newState(c.state.SelfID, c.state.RelayID, c.state.Name)
	c.state.Connected = connected
	c.state.Disconnected = disconnected
	clear(c.knownAddrs)
	clear(c.dialing)
	clear(c.upgrades)
	c.logger.Info("left room", "room", room)
}
