// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package room is sunset's peer session engine: one [Controller] per
// node owns the state of the current room and every per-peer audio
// connection.
//
// The controller is a single reducer. Everything that happens (a tick,
// a user intent, a transport notification, a signaling message, a media
// state change, the completion of a dial or a microphone request)
// arrives as an [Event] and is handled to completion before the next
// one. Nothing else touches room state. Work that blocks (sending on a
// stream, dialing, polling the relay, opening the microphone) runs on a
// [Runner] and reports back by posting another event. Timers post
// events too, and stale timer events are recognised and dropped when
// they arrive.
//
// Per-peer audio connections are "links". Exactly one side of each
// pair offers: the peer whose ID sorts greater ([IsOfferer]). The other
// side creates its link and waits for the offer. If both sides offer at
// once (glare), the non-offerer rolls back and answers, then
// re-offers its own media after a cooldown. A link whose transport
// connection is gone is never renegotiated; the periodic sweep closes it
// and creates a fresh one once the peer is back.
//
// Broken links are healed two ways. ICE that stays disconnected past a
// debounce window makes the offerer send an ICE-restart offer, and the
// offerer also schedules a reconnect with exponential backoff. When the
// reconnect fires it re-checks that audio is still joined, the peer is
// connected and its presence says it joined audio, and that no live
// link is already up or coming up.
//
// Tests drive the controller synchronously with [Controller.Handle],
// [Controller.Drain], [InlineRunner] and a fake clock.
package room
