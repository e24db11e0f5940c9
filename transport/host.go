// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
)

// ErrUnknownPeer is returned when an operation names a peer the host has
// no connection to.
var ErrUnknownPeer = errors.New("unknown peer")

// Stream is one bidirectional byte stream to a remote peer on one
// protocol. Sunset protocols carry a single message per stream: the
// writer writes the payload and calls CloseWrite, the reader reads to
// EOF.
type Stream interface {
	io.Reader
	io.Writer

	// CloseWrite half-closes the stream; the remote reader sees EOF.
	CloseWrite() error

	// Close closes both directions gracefully.
	Close() error

	// Reset aborts both directions. Blocked reads and writes return.
	Reset() error

	// RemotePeer is the ID of the peer on the other end.
	RemotePeer() string
}

// StreamHandler serves one inbound stream. The handler owns the stream
// and must close it.
type StreamHandler func(stream Stream)

// ConnectionHandler receives peer connectivity changes. Connected fires
// on every new connection to a peer, so it can repeat for a peer that
// was already connected. Disconnected fires once the last connection to
// a peer closes. Either field may be nil.
type ConnectionHandler struct {
	Connected    func(peer string)
	Disconnected func(peer string)
}

// Host is a node on the peer-to-peer network.
type Host interface {
	// ID is this node's peer ID.
	ID() string

	// Addrs returns this node's dialable addresses, each ending in
	// /p2p/<ID>. Relay circuit addresses appear once a reservation
	// exists.
	Addrs() []string

	// Dial connects to the peer named in addr (a full multiaddr with a
	// /p2p component). It returns when the connection is established.
	Dial(ctx context.Context, addr string) error

	// ConnectedPeers lists peers with at least one open connection.
	ConnectedPeers() []string

	// PeerAddrs returns the remote address of every open connection to
	// peer. A peer whose addresses are all circuit addresses is only
	// reachable through a relay.
	PeerAddrs(peer string) []string

	// OpenStream opens a stream to a connected peer.
	OpenStream(ctx context.Context, peer, protocol string) (Stream, error)

	// SetStreamHandler registers handler for inbound streams on
	// protocol, replacing any previous handler.
	SetStreamHandler(protocol string, handler StreamHandler)

	// Notify registers a connectivity handler.
	Notify(handler ConnectionHandler)

	Close() error
}
