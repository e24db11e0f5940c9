// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/signaling"
	"github.com/sunset-chat/sunset/transport"
)

// DefaultPeerTTL is how long a peer stays listed after its last poll.
const DefaultPeerTTL = 30 * time.Second

// Registry is the relay's room membership table.
type Registry struct {
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]map[string]*registryEntry
}

type registryEntry struct {
	addrs    []string
	lastSeen time.Time
}

// NewRegistry creates an empty registry. A non-positive ttl uses
// DefaultPeerTTL.
func NewRegistry(clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultPeerTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clock:  clk,
		ttl:    ttl,
		logger: logger.With("component", "discovery"),
		rooms:  make(map[string]map[string]*registryEntry),
	}
}

// Handle records the requester in its room, drops members not seen
// within the TTL, and returns every other member sorted by peer ID.
func (r *Registry) Handle(request Request) Response {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[request.Room]
	if !ok {
		room = make(map[string]*registryEntry)
		r.rooms[request.Room] = room
	}
	for id, entry := range room {
		if now.Sub(entry.lastSeen) >= r.ttl {
			delete(room, id)
		}
	}
	room[request.PeerID] = &registryEntry{addrs: slices.Clone(request.Addrs), lastSeen: now}

	response := Response{Peers: []PeerInfo{}}
	for id, entry := range room {
		if id == request.PeerID {
			continue
		}
		response.Peers = append(response.Peers, PeerInfo{PeerID: id, Addrs: slices.Clone(entry.addrs)})
	}
	slices.SortFunc(response.Peers, func(a, b PeerInfo) int {
		switch {
		case a.PeerID < b.PeerID:
			return -1
		case a.PeerID > b.PeerID:
			return 1
		}
		return 0
	})
	return response
}

// RemovePeer drops peer from every room and deletes rooms left empty.
func (r *Registry) RemovePeer(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, room := range r.rooms {
		delete(room, peer)
		if len(room) == 0 {
			delete(r.rooms, name)
		}
	}
}

// Rooms returns the number of rooms with at least one recorded member.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ServeStream answers one discovery request. The requester is
// identified by the stream's authenticated remote peer, not the ID in
// the request body.
func (r *Registry) ServeStream(stream transport.Stream) {
	defer stream.Close()
	remote := stream.RemotePeer()

	payload, err := signaling.ReadMessage(stream, signaling.MaxDiscoveryRequestSize)
	if err != nil {
		r.logger.Warn("reading discovery request failed", "peer", remote, "error", err)
		stream.Reset()
		return
	}
	var request Request
	if err := json.Unmarshal(payload, &request); err != nil {
		r.logger.Warn("malformed discovery request", "peer", remote, "error", err)
		stream.Reset()
		return
	}
	if request.PeerID != remote {
		if request.PeerID != "" {
			r.logger.Debug("discovery request names another peer",
				"peer", remote, "claimed", request.PeerID)
		}
		request.PeerID = remote
	}

	response := r.Handle(request)
	data, err := json.Marshal(response)
	if err != nil {
		stream.Reset()
		return
	}
	if err := signaling.WriteMessage(stream, data); err != nil {
		r.logger.Debug("writing discovery response failed", "peer", remote, "error", err)
		stream.Reset()
		return
	}
	r.logger.Debug("discovery served", "peer", remote, "room", request.Room, "members", len(response.Peers))
}

// Attach serves discovery on host and forgets peers when their last
// connection closes.
func (r *Registry) Attach(host transport.Host) {
	host.SetStreamHandler(signaling.ProtocolDiscovery, r.ServeStream)
	host.Notify(transport.ConnectionHandler{Disconnected: r.RemovePeer})
}
