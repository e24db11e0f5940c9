// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling defines the messages peers exchange outside the
// media path and how they travel over transport streams.
//
// Every sunset protocol carries exactly one message per stream: the
// sender writes the payload and half-closes, the receiver reads to EOF
// under a size cap ([WriteMessage], [ReadMessage]). Audio signaling
// ([Message]: offer, answer, candidate, bye) and presence ([Presence])
// are JSON; chat is a bare UTF-8 payload.
//
// [Sender] opens the stream, writes one payload and retries a bounded
// number of times with exponential backoff. Signaling loss is expected:
// the room engine's periodic reconciliation recovers from any message
// that never arrives, so the final failure is only logged.
package signaling
