// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sunset-chat/sunset/media"
)

// ErrUnknownType is returned by Decode for a message whose type is not
// one of the four signaling kinds.
var ErrUnknownType = errors.New("unknown signaling message type")

// Type is the kind of a signaling message.
type Type string

const (
	TypeOffer     Type = "offer"
	TypeAnswer    Type = "answer"
	TypeCandidate Type = "candidate"
	TypeBye       Type = "bye"
)

// Message is one audio signaling message.
type Message struct {
	Type Type `json:"type"`

	// SDP is set for offers and answers.
	SDP string `json:"sdp,omitempty"`

	// Restart marks an offer that changes ICE credentials. Receivers
	// that ignore it still negotiate correctly, but may need the
	// rollback-and-reapply path.
	Restart bool `json:"restart,omitempty"`

	// Candidate is set for candidate messages.
	Candidate *media.Candidate `json:"candidate,omitempty"`
}

// Offer builds an offer message.
func Offer(sdp string, restart bool) Message {
	return Message{Type: TypeOffer, SDP: sdp, Restart: restart}
}

// Answer builds an answer message.
func Answer(sdp string) Message { return Message{Type: TypeAnswer, SDP: sdp} }

// CandidateMessage builds a trickle ICE candidate message.
func CandidateMessage(candidate media.Candidate) Message {
	return Message{Type: TypeCandidate, Candidate: &candidate}
}

// Bye builds a bye message.
func Bye() Message { return Message{Type: TypeBye} }

// Description returns the session description carried by an offer or
// answer.
func (m Message) Description() media.SessionDescription {
	sdpType := media.SDPOffer
	if m.Type == TypeAnswer {
		sdpType = media.SDPAnswer
	}
	return media.SessionDescription{Type: sdpType, SDP: m.SDP}
}

// Encode serializes a message after checking it is well formed.
func Encode(message Message) ([]byte, error) {
	if err := message.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(message)
}

// Decode parses and validates a message.
func Decode(data []byte) (Message, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return Message{}, fmt.Errorf("decoding signaling message: %w", err)
	}
	if err := message.validate(); err != nil {
		return Message{}, err
	}
	return message, nil
}

func (m Message) validate() error {
	switch m.Type {
	case TypeOffer, TypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%s message without sdp", m.Type)
		}
	case TypeCandidate:
		if m.Candidate == nil {
			return errors.New("candidate message without candidate")
		}
	case TypeBye:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return nil
}
