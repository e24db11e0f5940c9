// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"github.com/sunset-chat/sunset/discovery"
	"github.com/sunset-chat/sunset/media"
	"github.com/sunset-chat/sunset/signaling"
)

// Event is an input to the controller.
type Event interface {
	event()
}

// Tick is the periodic housekeeping pass.
type Tick struct{}

// User intents.
type (
	JoinRoom  struct{ Room string }
	LeaveRoom struct{}

	JoinAudio  struct{}
	LeaveAudio struct{}

	SetMuted struct{ Muted bool }
	SetName  struct{ Name string }

	// SendChat broadcasts Text to every connected peer. When Done is
	// non-nil it receives the outcome (nil or ErrNoPeers); it should
	// be buffered.
	SendChat struct {
		Text string
		Done chan<- error
	}
)

// Transport and protocol inputs.
type (
	PeerConnected    struct{ Peer string }
	PeerDisconnected struct{ Peer string }

	// DiscoveryResult is the outcome of a relay poll for Room.
	DiscoveryResult struct {
		Room     string
		Response discovery.Response
		Err      error
	}

	// DialResult is the outcome of dialing Peer. Upgrade marks a dial
	// of direct addresses to a relay-only peer.
	DialResult struct {
		Peer    string
		Addr    string
		Upgrade bool
		Err     error
	}

	SignalReceived struct {
		Peer    string
		Message signaling.Message
	}

	PresenceReceived struct {
		Peer     string
		Presence signaling.Presence
	}

	ChatReceived struct {
		Peer string
		Text string
	}
)

// Media inputs. Link identifies the connection that produced the event;
// events from a link that has since been closed are ignored.
type (
	MediaStateChanged struct {
		Peer  string
		Link  uint64
		State media.ConnectionState
	}

	ICEStateChanged struct {
		Peer  string
		Link  uint64
		State media.ICEState
	}

	CandidateGathered struct {
		Peer      string
		Link      uint64
		Candidate media.Candidate
	}

	TrackReceived struct {
		Peer  string
		Link  uint64
		Track media.TrackInfo
	}

	MicrophoneResult struct{ Err error }
)

// Timer inputs.
type (
	RenegotiateDue struct {
		Peer string
		Link uint64
	}

	ReconnectDue struct{ Peer string }

	DisconnectDebounced struct {
		Peer string
		Link uint64
	}
)

func (Tick) event()                {}
func (JoinRoom) event()            {}
func (LeaveRoom) event()           {}
func (JoinAudio) event()           {}
func (LeaveAudio) event()          {}
func (SetMuted) event()            {}
func (SetName) event()             {}
func (SendChat) event()            {}
func (PeerConnected) event()       {}
func (PeerDisconnected) event()    {}
func (DiscoveryResult) event()     {}
func (DialResult) event()          {}
func (SignalReceived) event()      {}
func (PresenceReceived) event()    {}
func (ChatReceived) event()        {}
func (MediaStateChanged) event()   {}
func (ICEStateChanged) event()     {}
func (CandidateGathered) event()   {}
func (TrackReceived) event()       {}
func (MicrophoneResult) event()    {}
func (RenegotiateDue) event()      {}
func (ReconnectDue) event()        {}
func (DisconnectDebounced) event() {}
