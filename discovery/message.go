// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

// Request announces the requester in a room and asks for its members.
type Request struct {
	Room   string   `json:"room"`
	PeerID string   `json:"peer_id"`
	Addrs  []string `json:"addrs"`
}

// PeerInfo is one room member and the addresses it announced.
type PeerInfo struct {
	PeerID string   `json:"peer_id"`
	Addrs  []string `json:"addrs"`
}

// Response lists the room's other members.
type Response struct {
	Peers []PeerInfo `json:"peers"`
}
