// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

// Protocol IDs. The discovery protocol is served by the relay; the rest
// are peer to peer.
const (
	ProtocolDiscovery   = "/sunset/discovery/1.0.0"
	ProtocolAudioSignal = "/sunset/audio-signal/1.0.0"
	ProtocolPresence    = "/sunset/presence/1.0.0"
	ProtocolChat        = "/sunset/chat/1.0.0"
)

// Size caps for one message. Discovery matches the relay's JSON codec
// limits; the peer protocols are far smaller in practice.
const (
	MaxSignalSize            = 256 << 10
	MaxPresenceSize          = 4 << 10
	MaxChatSize              = 64 << 10
	MaxDiscoveryRequestSize  = 1 << 20
	MaxDiscoveryResponseSize = 10 << 20
)
