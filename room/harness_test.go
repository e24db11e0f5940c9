// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
	"github.com/sunset-chat/sunset/transport"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(name string) Config {
	return Config{
		Name:                  name,
		Version:               "test",
		Tick:                  time.Second,
		DisconnectGrace:       10 * time.Second,
		ReconnectBase:         time.Second,
		ReconnectMax:          8 * time.Second,
		DiscoveryInterval:     2 * time.Second,
		RenegotiationCooldown: 500 * time.Millisecond,
		UpgradeCooldown:       5 * time.Second,
		ICEDisconnectDebounce: 3 * time.Second,
		SignalingAttempts:     1,
		SignalingBackoff:      10 * time.Millisecond,
	}
}

// delivery is one message the switchboard carried.
type delivery struct {
	from, to, protocol string
	payload            []byte
}

func (d delivery) signal(t *testing.T) signaling.Message {
	t.Helper()
	message, err := signaling.Decode(d.payload)
	if err != nil {
		t.Fatalf("Decode(%s) error: %v", d.payload, err)
	}
	return message
}

// mesh runs several controllers against one memory network, one
// loopback media network and one fake clock. Messages between
// controllers are delivered synchronously into the receiver's queue, so
// settle brings every controller to quiescence deterministically.
type mesh struct {
	t       *testing.T
	clock   *clock.FakeClock
	network *transport.MemoryNetwork
	media   *media.LoopbackNetwork
	nodes   map[string]*node

	mu  sync.Mutex
	log []delivery
}

type node struct {
	id     string
	host   *transport.MemoryHost
	engine *media.LoopbackEngine
	c      *Controller
}

func newMesh(t *testing.T) *mesh {
	return &mesh{
		t:       t,
		clock:   clock.Fake(epoch),
		network: transport.NewMemoryNetwork(),
		media:   media.NewLoopbackNetwork(),
		nodes:   make(map[string]*node),
	}
}

type nodeOption func(*nodeOptions)

type nodeOptions struct {
	noMicrophone bool
	config       func(*Config)
	discovery    Poller
}

func withoutMicrophone() nodeOption {
	return func(o *nodeOptions) { o.noMicrophone = true }
}

func withConfig(adjust func(*Config)) nodeOption {
	return func(o *nodeOptions) { o.config = adjust }
}

func withDiscovery(poller Poller) nodeOption {
	return func(o *nodeOptions) { o.discovery = poller }
}

// add creates a node reachable at /memory/<id>.
func (m *mesh) add(id string, options ...nodeOption) *node {
	var opts nodeOptions
	for _, option := range options {
		option(&opts)
	}
	config := testConfig(id)
	if opts.config != nil {
		opts.config(&config)
	}
	n := &node{
		id:     id,
		host:   m.network.NewHost(id, "/memory/"+id),
		engine: m.media.NewEngine(id, !opts.noMicrophone),
	}
	n.c = New(config, Deps{
		Host:      n.host,
		Media:     n.engine,
		Sender:    switchboard{mesh: m, from: id},
		Discovery: opts.discovery,
		Clock:     m.clock,
		Runner:    InlineRunner{},
		Logger:    slog.New(slog.DiscardHandler),
	})
	m.nodes[id] = n
	m.t.Cleanup(n.c.Close)
	return n
}

func (m *mesh) connect(a, b string) {
	m.t.Helper()
	if err := m.network.Connect(a, b, "/memory/"+b); err != nil {
		m.t.Fatalf("Connect(%s, %s) error: %v", a, b, err)
	}
	m.settle()
}

func (m *mesh) disconnect(a, b string) {
	m.network.Disconnect(a, b)
	m.settle()
}

// settle drains every controller until no events remain.
func (m *mesh) settle() {
	m.t.Helper()
	ids := m.ids()
	for round := 0; round < 100; round++ {
		handled := 0
		for _, id := range ids {
			handled += m.nodes[id].c.Drain()
		}
		if handled == 0 {
			return
		}
	}
	m.t.Fatalf("controllers did not settle after 100 rounds")
}

// handle delivers event to one node and settles the mesh.
func (m *mesh) handle(id string, event Event) {
	m.t.Helper()
	m.nodes[id].c.Handle(event)
	m.settle()
}

// tick advances the clock by one tick and runs a tick on every node.
func (m *mesh) tick() {
	m.t.Helper()
	m.advance(time.Second)
	for _, id := range m.ids() {
		m.nodes[id].c.Handle(Tick{})
	}
	m.settle()
}

func (m *mesh) ticks(n int) {
	m.t.Helper()
	for range n {
		m.tick()
	}
}

// advance moves the clock, firing timers, and settles.
func (m *mesh) advance(d time.Duration) {
	m.t.Helper()
	m.clock.Advance(d)
	m.settle()
}

func (m *mesh) ids() []string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// deliveries returns everything carried on protocol since mark.
func (m *mesh) deliveries(protocol string, mark int) []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []delivery
	for _, d := range m.log[mark:] {
		if d.protocol == protocol {
			matched = append(matched, d)
		}
	}
	return matched
}

func (m *mesh) mark() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

// signals returns the signaling messages from one node since mark.
func (m *mesh) signals(from string, kind signaling.Type, mark int) []signaling.Message {
	m.t.Helper()
	var matched []signaling.Message
	for _, d := range m.deliveries(signaling.ProtocolAudioSignal, mark) {
		if d.from != from {
			continue
		}
		if message := d.signal(m.t); message.Type == kind {
			matched = append(matched, message)
		}
	}
	return matched
}

// joinAudio puts every listed node into room lobby with audio on.
func (m *mesh) joinAudio(ids ...string) {
	m.t.Helper()
	for _, id := range ids {
		m.handle(id, JoinRoom{Room: "lobby"})
	}
	for _, id := range ids {
		m.handle(id, JoinAudio{})
	}
	m.ticks(2)
}

// switchboard is a Sender that hands payloads straight to the target
// controller, provided the two hosts are connected.
type switchboard struct {
	mesh *mesh
	from string
}

func (s switchboard) Send(ctx context.Context, peer, protocol string, payload []byte) error {
	return s.SendOnce(ctx, peer, protocol, payload)
}

func (s switchboard) SendOnce(ctx context.Context, peer, protocol string, payload []byte) error {
	from := s.mesh.nodes[s.from]
	target, ok := s.mesh.nodes[peer]
	if !ok || from == nil || !slices.Contains(from.host.ConnectedPeers(), peer) {
		return transport.ErrUnknownPeer
	}
	s.mesh.mu.Lock()
	s.mesh.log = append(s.mesh.log, delivery{from: s.from, to: peer, protocol: protocol, payload: payload})
	s.mesh.mu.Unlock()
	target.c.deliver(s.from, protocol, payload)
	return nil
}

func decodePresence(t *testing.T, payload []byte) signaling.Presence {
	t.Helper()
	var presence signaling.Presence
	if err := json.Unmarshal(payload, &presence); err != nil {
		t.Fatalf("presence %s: %v", payload, err)
	}
	return presence
}
