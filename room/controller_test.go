// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/sunset-chat/sunset/discovery"
	"github.com/sunset-chat/sunset/lib/testutil"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
)

func TestPresenceIdempotent(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.handle("peer-a", JoinRoom{Room: "lobby"})

	presence := signaling.Presence{Joined: true, Name: "bob", Version: "1.2.0"}
	m.handle("peer-a", PresenceReceived{Peer: "peer-b", Presence: presence})
	first := maps.Clone(a.c.State().Presence)
	m.handle("peer-a", PresenceReceived{Peer: "peer-b", Presence: presence})
	if got := a.c.State().Presence; !maps.Equal(got, first) {
		t.Errorf("Presence after repeat = %v, want %v", got, first)
	}

	latest := signaling.Presence{Joined: false, Name: "bob", Version: "1.2.0"}
	m.handle("peer-a", PresenceReceived{Peer: "peer-b", Presence: latest})
	if got := a.c.State().Presence["peer-b"]; got != latest {
		t.Errorf("Presence[peer-b] = %+v, want %+v", got, latest)
	}
}

func TestPresenceExchangedOnConnect(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	b := m.add("peer-b")
	m.handle("peer-a", JoinRoom{Room: "lobby"})
	m.handle("peer-b", JoinRoom{Room: "lobby"})
	m.connect("peer-a", "peer-b")

	if got := a.c.State().Presence["peer-b"]; got.Name != "peer-b" || got.Version != "test" {
		t.Errorf("peer-a sees %+v, want name peer-b version test", got)
	}
	if _, ok := b.c.State().Presence["peer-a"]; !ok {
		t.Error("peer-b has no presence for peer-a")
	}

	m.handle("peer-a", SetName{Name: "alice"})
	if got := b.c.State().Presence["peer-a"].Name; got != "alice" {
		t.Errorf("name after SetName = %q, want alice", got)
	}
	if got := b.c.Snapshot().DisplayName("peer-a"); got != "alice" {
		t.Errorf("DisplayName(peer-a) = %q, want alice", got)
	}
}

func TestPruneAfterGraceWindow(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.add("peer-b")
	m.connect("peer-a", "peer-b")
	m.handle("peer-a", JoinRoom{Room: "lobby"})
	m.handle("peer-b", JoinRoom{Room: "lobby"})

	m.disconnect("peer-a", "peer-b")
	state := a.c.State()
	if state.Connected["peer-b"] {
		t.Fatal("peer-b still connected")
	}

	m.advance(5 * time.Second)
	m.tick()
	if _, ok := state.Disconnected["peer-b"]; !ok {
		t.Error("peer-b pruned from Disconnected inside the grace window")
	}
	if _, ok := state.Presence["peer-b"]; !ok {
		t.Error("peer-b presence pruned inside the grace window")
	}

	m.advance(5 * time.Second)
	m.tick()
	if _, ok := state.Disconnected["peer-b"]; ok {
		t.Error("peer-b still in Disconnected after the grace window")
	}
	if _, ok := state.Presence["peer-b"]; ok {
		t.Error("peer-b presence survived the grace window")
	}
}

func TestPruneDropsPresenceOfUnknownPeers(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.handle("peer-a", JoinRoom{Room: "lobby"})
	m.handle("peer-a", PresenceReceived{Peer: "peer-z", Presence: signaling.Presence{Joined: true}})
	m.tick()
	if _, ok := a.c.State().Presence["peer-z"]; ok {
		t.Error("presence kept for a peer that is neither connected nor recently disconnected")
	}
}

func TestSendChatWithoutPeers(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.handle("peer-a", JoinRoom{Room: "lobby"})

	done := make(chan error, 1)
	m.handle("peer-a", SendChat{Text: "anyone?", Done: done})
	if err := testutil.RequireReceive(t, done, time.Second, "chat result"); !errors.Is(err, ErrNoPeers) {
		t.Fatalf("SendChat error = %v, want ErrNoPeers", err)
	}

	var system, local int
	for _, entry := range a.c.State().Chat {
		switch {
		case entry.Kind == EntrySystem && entry.Text == "No peers connected":
			system++
		case entry.Kind == EntryLocal:
			local++
		}
	}
	if system != 1 {
		t.Errorf("No peers connected messages = %d, want 1", system)
	}
	if local != 0 {
		t.Errorf("local entries = %d, want 0", local)
	}
}

func TestSendChatReachesPeers(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	b := m.add("peer-b")
	c := m.add("peer-c")
	m.connect("peer-a", "peer-b")
	m.connect("peer-a", "peer-c")
	for _, id := range []string{"peer-a", "peer-b", "peer-c"} {
		m.handle(id, JoinRoom{Room: "lobby"})
	}

	done := make(chan error, 1)
	m.handle("peer-a", SendChat{Text: "hello", Done: done})
	if err := testutil.RequireReceive(t, done, time.Second, "chat result"); err != nil {
		t.Fatalf("SendChat error = %v", err)
	}
	last := a.c.State().Chat[len(a.c.State().Chat)-1]
	if last.Kind != EntryLocal || last.Text != "hello" || last.ID == "" {
		t.Errorf("local entry = %+v, want local hello with an ID", last)
	}
	for _, n := range []*node{b, c} {
		chat := n.c.State().Chat
		entry := chat[len(chat)-1]
		if entry.Kind != EntryRemote || entry.From != "peer-a" || entry.Text != "hello" {
			t.Errorf("%s last entry = %+v, want remote hello from peer-a", n.id, entry)
		}
	}
}

func TestChatThreadBounded(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	for i := range maxChatEntries + 10 {
		a.c.Handle(ChatReceived{Peer: "peer-b", Text: string(rune('a' + i%26))})
	}
	if got := len(a.c.State().Chat); got != maxChatEntries {
		t.Errorf("len(Chat) = %d, want %d", got, maxChatEntries)
	}
}

func TestLeaveRoomAnnouncesAndResets(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	b := m.add("peer-b")
	m.connect("peer-a", "peer-b")
	m.joinAudio("peer-a", "peer-b")

	m.handle("peer-a", LeaveRoom{})
	state := a.c.State()
	if state.Room != "" || state.AudioJoined || len(state.PCState) != 0 || len(state.Presence) != 0 {
		t.Errorf("state after LeaveRoom = room %q audio %v pc %v presence %v, want empty",
			state.Room, state.AudioJoined, state.PCState, state.Presence)
	}
	if got := b.c.State().Presence["peer-a"]; got.Joined {
		t.Errorf("peer-b sees %+v, want joined=false", got)
	}
	if got := m.media.OpenConnections("peer-a", "peer-b"); got != 0 {
		t.Errorf("OpenConnections after LeaveRoom = %d, want 0", got)
	}
	if a.engine.Capturing() {
		t.Error("microphone still captured after LeaveRoom")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.add("peer-b")
	m.connect("peer-a", "peer-b")
	m.joinAudio("peer-a", "peer-b")

	a.c.Close()
	if got := m.media.OpenConnections("peer-a", "peer-b"); got != 0 {
		t.Errorf("OpenConnections after Close = %d, want 0", got)
	}
	if a.engine.Capturing() {
		t.Error("microphone still captured after Close")
	}
	a.c.Handle(JoinAudio{})
	if got := m.media.OpenConnections("peer-a", "peer-b"); got != 0 {
		t.Errorf("OpenConnections after handling an event post-Close = %d, want 0", got)
	}
}

func TestSnapshotPeers(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")
	m.add("peer-b")
	m.connect("peer-a", "peer-b")
	m.joinAudio("peer-a", "peer-b")

	snapshot := a.c.Snapshot()
	if snapshot.Room != "lobby" || !snapshot.AudioJoined || !snapshot.Sending {
		t.Errorf("snapshot = room %q audio %v sending %v, want lobby, joined, sending",
			snapshot.Room, snapshot.AudioJoined, snapshot.Sending)
	}
	if len(snapshot.Peers) != 1 {
		t.Fatalf("len(Peers) = %d, want 1", len(snapshot.Peers))
	}
	peer := snapshot.Peers[0]
	if peer.ID != "peer-b" || !peer.Connected || !peer.HasPresence || peer.AudioState != media.StateConnected {
		t.Errorf("peer view = %+v, want connected peer-b with presence and audio", peer)
	}
	if peer.RelayOnly {
		t.Error("RelayOnly = true for a direct connection")
	}
}

func TestRunProcessesPostedEvents(t *testing.T) {
	m := newMesh(t)
	a := m.add("peer-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.c.Run(ctx) }()

	a.c.Post(JoinRoom{Room: "lobby"})
	for {
		snapshot := testutil.RequireReceive(t, a.c.Updates(), 5*time.Second, "snapshot update")
		if snapshot.Room == "lobby" {
			break
		}
	}
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run to return"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

// relayFixture is a relay host serving the discovery registry, plus a
// peer-x host registered in room lobby.
type relayFixture struct {
	registry *discovery.Registry
	circuit  string
}

func newRelayFixture(m *mesh) relayFixture {
	relay := m.network.NewHost("relay", "/memory/relay")
	registry := discovery.NewRegistry(m.clock, time.Minute, slog.New(slog.DiscardHandler))
	registry.Attach(relay)

	target := m.network.NewHost("peer-x", "/memory/peer-x")
	circuit := "/memory/relay/p2p-circuit/p2p/peer-x"
	target.AddAddr(circuit)
	registry.Handle(discovery.Request{
		Room:   "lobby",
		PeerID: "peer-x",
		Addrs:  []string{circuit, "/memory/peer-x"},
	})
	return relayFixture{registry: registry, circuit: circuit}
}

func withRelay() nodeOption {
	return withConfig(func(c *Config) {
		c.RelayID = "relay"
		c.RelayAddr = "/memory/relay"
	})
}

func TestDiscoveryDialsDirectAddressFirst(t *testing.T) {
	m := newMesh(t)
	newRelayFixture(m)
	a := m.add("peer-a", withRelay())
	m.connect("peer-a", "relay")

	m.handle("peer-a", JoinRoom{Room: "lobby"})

	if got, want := m.network.Dials("peer-a"), []string{"/memory/peer-x"}; !slices.Equal(got, want) {
		t.Errorf("Dials = %v, want %v", got, want)
	}
	if !a.c.State().Connected["peer-x"] {
		t.Error("peer-x not connected after discovery")
	}
	if a.c.State().DiscoveryRoom != "lobby" {
		t.Errorf("DiscoveryRoom = %q, want lobby", a.c.State().DiscoveryRoom)
	}
}

func TestDiscoveryFallsBackToRelayThenUpgrades(t *testing.T) {
	m := newMesh(t)
	fixture := newRelayFixture(m)
	a := m.add("peer-a", withRelay())
	m.connect("peer-a", "relay")
	m.network.SetUnreachable("/memory/peer-x", true)

	m.handle("peer-a", JoinRoom{Room: "lobby"})
	if got, want := m.network.Dials("peer-a"), []string{"/memory/peer-x", fixture.circuit}; !slices.Equal(got, want) {
		t.Fatalf("Dials = %v, want %v", got, want)
	}
	if got := a.host.PeerAddrs("peer-x"); !discovery.RelayOnly(got) {
		t.Fatalf("PeerAddrs(peer-x) = %v, want relay only", got)
	}

	m.network.SetUnreachable("/memory/peer-x", false)
	// peer-a is not the offerer toward peer-x, so it waits two cooldowns.
	m.ticks(5)
	if got := len(m.network.Dials("peer-a")); got != 2 {
		t.Fatalf("dials before the upgrade cooldown = %d, want 2", got)
	}
	m.ticks(8)
	dials := m.network.Dials("peer-a")
	if got := dials[len(dials)-1]; got != "/memory/peer-x" {
		t.Errorf("last dial = %q, want the direct address", got)
	}
	if discovery.RelayOnly(a.host.PeerAddrs("peer-x")) {
		t.Error("peer-x still relay only after upgrade")
	}
	if got := a.c.Snapshot().Peers; len(got) != 1 || got[0].RelayOnly {
		t.Errorf("snapshot peers = %+v, want one direct peer", got)
	}
}

func TestRelayRedialedWhenDisconnected(t *testing.T) {
	m := newMesh(t)
	newRelayFixture(m)
	a := m.add("peer-a", withRelay())
	m.handle("peer-a", JoinRoom{Room: "lobby"})

	if !a.c.State().Connected["relay"] {
		t.Fatal("relay not dialed on join")
	}
	if got := m.network.Dials("peer-a")[0]; got != "/memory/relay" {
		t.Errorf("first dial = %q, want the relay", got)
	}
	m.tick()
	m.tick()
	if !a.c.State().Connected["peer-x"] {
		t.Error("peer-x not discovered after the relay came up")
	}
}

func TestDiscoveryFailureIsIgnored(t *testing.T) {
	m := newMesh(t)
	poller := &failingPoller{}
	a := m.add("peer-a", withConfig(func(c *Config) { c.RelayID = "relay" }), withDiscovery(poller))
	m.network.NewHost("relay", "/memory/relay")
	m.connect("peer-a", "relay")

	m.handle("peer-a", JoinRoom{Room: "lobby"})
	m.ticks(4)
	if poller.calls < 2 {
		t.Errorf("polls = %d, want polling to continue after failures", poller.calls)
	}
	if a.c.polling {
		t.Error("poll still marked in flight after failure")
	}
}

type failingPoller struct{ calls int }

func (p *failingPoller) Poll(ctx context.Context, room string) (discovery.Response, error) {
	p.calls++
	return discovery.Response{}, errors.New("relay unreachable")
}
