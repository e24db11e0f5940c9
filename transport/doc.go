// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the peer-to-peer byte-stream layer under sunset's
// room engine.
//
// [Host] is the narrow surface the rest of the module consumes: dial a
// multiaddr, list connected peers and the remote addresses of their
// connections, open a stream to a peer on a named protocol, register
// protocol handlers, and observe peer connect and disconnect. Peer IDs
// and addresses cross the interface as strings so the room engine never
// imports libp2p types.
//
// [LibP2PHost] is the production implementation on go-libp2p. Streams
// are opened with limited connections allowed, so signaling works over a
// circuit relay before any direct path exists. Dialing a direct address
// to a peer that is only reachable through a relay forces a direct dial,
// which is how relay-only connections are upgraded.
//
// [MemoryNetwork] connects [MemoryHost] instances in one process with
// io.Pipe streams. Tests use it to script reachability: individual
// addresses can be made unreachable and peers can be disconnected.
//
// [LoadOrCreateIdentity] persists the Ed25519 libp2p identity so a peer
// or relay keeps its peer ID across restarts.
package transport
