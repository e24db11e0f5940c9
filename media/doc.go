// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package media is the real-time audio boundary of a sunset peer.
//
// An [Engine] owns local microphone capture and hands out one negotiable
// [Connection] per remote peer. The room controller drives connections
// through offer/answer/candidate exchanges; the engine reports back
// through an [Observer] (connection and ICE state, gathered candidates,
// remote tracks). Observers are called from engine goroutines, so
// implementations must hand events off rather than mutate shared state.
//
// [PionEngine] is the production implementation on pion/webrtc: one
// PeerConnection per peer carrying a single Opus track fed by a
// [Microphone]. [LoopbackNetwork] is an in-process implementation for
// tests that simulates the SDP state machine between engines sharing a
// network, including offer collisions, ICE restarts and link failures.
package media
