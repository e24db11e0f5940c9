// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery finds the other members of a room through the relay.
//
// Peers poll the relay with a [Request] naming the room, their peer ID
// and their addresses; the relay's [Registry] records them and answers
// with every other live member ([Response]). Each poll is one stream on
// the discovery protocol carrying raw JSON in each direction, read to
// EOF.
//
// Discovered addresses are dialed by [DialSequential]: [OrderAddrs] puts
// direct addresses ahead of relay circuit addresses, then each address
// is tried in turn until one connects.
package discovery
