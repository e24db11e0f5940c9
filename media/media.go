// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
)

var (
	// ErrNoMicrophone is returned by AcquireMicrophone when the engine
	// has no capture device or the device refused access.
	ErrNoMicrophone = errors.New("microphone unavailable")

	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("media connection closed")
)

// ConnectionState is the aggregate state of one peer connection, using
// the browser's RTCPeerConnectionState labels.
type ConnectionState string

const (
	StateNew          ConnectionState = "new"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
	StateClosed       ConnectionState = "closed"
)

// Healthy reports whether the connection is up or on its way up.
func (s ConnectionState) Healthy() bool {
	return s == StateConnected || s == StateConnecting
}

// Active reports whether the connection can still carry media without
// being rebuilt.
func (s ConnectionState) Active() bool {
	return s == StateNew || s.Healthy()
}

// Terminal reports whether the connection is beyond recovery.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// ICEState is the ICE transport state (RTCIceConnectionState labels).
type ICEState string

const (
	ICENew          ICEState = "new"
	ICEChecking     ICEState = "checking"
	ICEConnected    ICEState = "connected"
	ICECompleted    ICEState = "completed"
	ICEDisconnected ICEState = "disconnected"
	ICEFailed       ICEState = "failed"
	ICEClosed       ICEState = "closed"
)

// NeedsRestart reports whether a negotiation started in this state must
// change ICE credentials to recover the transport path.
func (s ICEState) NeedsRestart() bool {
	return s == ICEDisconnected || s == ICEFailed || s == ICEClosed
}

// SignalingState is the offer/answer state of a connection.
type SignalingState string

const (
	SignalingStable          SignalingState = "stable"
	SignalingHaveLocalOffer  SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer SignalingState = "have-remote-offer"
	SignalingClosed          SignalingState = "closed"
)

// SDPType distinguishes offers from answers.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// SessionDescription is an SDP blob plus its role.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// Candidate is a trickled ICE candidate in the browser's
// RTCIceCandidateInit JSON shape.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// TrackInfo describes a remote track that started arriving.
type TrackInfo struct {
	ID       string
	StreamID string
	Codec    string
}

// Observer receives asynchronous notifications for one connection.
// Calls may arrive on any goroutine.
type Observer interface {
	ConnectionStateChanged(state ConnectionState)
	ICEStateChanged(state ICEState)
	CandidateGathered(candidate Candidate)
	TrackReceived(track TrackInfo)
}

// Engine owns the microphone and creates per-peer connections.
type Engine interface {
	// AcquireMicrophone starts capture. It may block on a permission
	// prompt or device open.
	AcquireMicrophone(ctx context.Context) error

	// ReleaseMicrophone stops capture. Attached tracks go silent.
	ReleaseMicrophone()

	// SetMuted pauses or resumes sending captured audio.
	SetMuted(muted bool)

	// Capturing reports whether the microphone is acquired.
	Capturing() bool

	// Sending reports whether captured audio is actually going out:
	// capturing and not muted.
	Sending() bool

	// NewConnection creates a fresh connection to peer.
	NewConnection(peer string, observer Observer) (Connection, error)

	// Close releases the microphone and every connection.
	Close() error
}

// Connection is one negotiable media session with a remote peer.
type Connection interface {
	// AddLocalTracks attaches the local microphone track. A no-op when
	// the track is already attached.
	AddLocalTracks() error

	// HasLocalTracks reports whether a local track is attached.
	HasLocalTracks() bool

	CreateOffer(iceRestart bool) (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(description SessionDescription) error
	SetRemoteDescription(description SessionDescription) error

	// Rollback discards a pending local or remote offer, returning to
	// stable.
	Rollback() error

	AddICECandidate(candidate Candidate) error

	SignalingState() SignalingState
	ICEState() ICEState
	ConnectionState() ConnectionState
	HasRemoteDescription() bool

	Close() error
}
