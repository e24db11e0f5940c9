// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sunset-chat/sunset/discovery"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
)

// maxChatEntries bounds the chat thread; older entries are dropped.
const maxChatEntries = 500

// State is everything the controller knows about the current room. It
// is rebuilt on room join and discarded on leave.
type State struct {
	SelfID  string
	RelayID string
	Room    string
	Name    string

	// Connected is the set of peers with an open transport connection.
	Connected map[string]bool

	// Disconnected records when each recently lost peer went away.
	// Entries older than the grace window are pruned.
	Disconnected map[string]time.Time

	// Presence is the last presence each peer broadcast. Entries exist
	// only for connected peers and peers within the grace window.
	Presence map[string]signaling.Presence

	AudioJoined bool
	Muted       bool

	// PCState mirrors the state of each peer's audio connection.
	PCState map[string]media.ConnectionState

	// ReconnectAttempts counts scheduled reconnects per peer since the
	// last healthy connection.
	ReconnectAttempts map[string]int

	// DiscoveryRoom is the room polled on the relay, empty when not
	// subscribed.
	DiscoveryRoom string

	Chat       []ChatEntry
	MediaError string
}

func newState(selfID, relayID, name string) State {
	return State{
		SelfID:            selfID,
		RelayID:           relayID,
		Name:              name,
		Connected:         make(map[string]bool),
		Disconnected:      make(map[string]time.Time),
		Presence:          make(map[string]signaling.Presence),
		PCState:           make(map[string]media.ConnectionState),
		ReconnectAttempts: make(map[string]int),
	}
}

// EntryKind distinguishes chat thread entries.
type EntryKind string

const (
	EntryLocal  EntryKind = "local"
	EntryRemote EntryKind = "remote"
	EntrySystem EntryKind = "system"
)

// ChatEntry is one line of the chat thread.
type ChatEntry struct {
	ID   string
	Time time.Time
	Kind EntryKind
	From string
	Text string
}

func newEntry(now time.Time, kind EntryKind, from, text string) ChatEntry {
	return ChatEntry{ID: uuid.NewString(), Time: now, Kind: kind, From: from, Text: text}
}

// PeerView is a peer as a front end shows it.
type PeerView struct {
	ID          string
	Connected   bool
	Presence    signaling.Presence
	HasPresence bool
	AudioState  media.ConnectionState
	Reconnects  int

	// RelayOnly is set when every transport connection to the peer goes
	// through the relay.
	RelayOnly bool
}

// Snapshot is an immutable copy of the room for front ends.
type Snapshot struct {
	SelfID      string
	Room        string
	Name        string
	AudioJoined bool
	Muted       bool
	Sending     bool
	MediaError  string
	Peers       []PeerView
	Chat        []ChatEntry
}

// DisplayName returns the name a peer advertised, or a shortened ID.
func (s Snapshot) DisplayName(peer string) string {
	if peer == s.SelfID {
		if s.Name != "" {
			return s.Name
		}
		return shortID(peer)
	}
	for _, view := range s.Peers {
		if view.ID == peer && view.Presence.Name != "" {
			return view.Presence.Name
		}
	}
	return shortID(peer)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func (c *Controller) buildSnapshot() Snapshot {
	state := &c.state
	snapshot := Snapshot{
		SelfID:      state.SelfID,
		Room:        state.Room,
		Name:        state.Name,
		AudioJoined: state.AudioJoined,
		Muted:       state.Muted,
		Sending:     c.media.Sending(),
		MediaError:  state.MediaError,
		Chat:        slices.Clone(state.Chat),
	}

	ids := make(map[string]bool)
	for id := range state.Connected {
		ids[id] = true
	}
	for id := range state.Disconnected {
		ids[id] = true
	}
	for id := range state.Presence {
		ids[id] = true
	}
	delete(ids, state.RelayID)
	for id := range ids {
		presence, hasPresence := state.Presence[id]
		snapshot.Peers = append(snapshot.Peers, PeerView{
			ID:          id,
			Connected:   state.Connected[id],
			Presence:    presence,
			HasPresence: hasPresence,
			AudioState:  state.PCState[id],
			Reconnects:  state.ReconnectAttempts[id],
			RelayOnly:   state.Connected[id] && discovery.RelayOnly(c.host.PeerAddrs(id)),
		})
	}
	slices.SortFunc(snapshot.Peers, func(a, b PeerView) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return snapshot
}

func (c *Controller) addChat(kind EntryKind, from, text string) {
	c.state.Chat = append(c.state.Chat, newEntry(c.clock.Now(), kind, from, text))
	if overflow := len(c.state.Chat) - maxChatEntries; overflow > 0 {
		c.state.Chat = slices.Delete(c.state.Chat, 0, overflow)
	}
}

func (c *Controller) systemMessage(text string) {
	c.addChat(EntrySystem, "", text)
}
