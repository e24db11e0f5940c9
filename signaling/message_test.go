// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sunset-chat/sunset/media"
)

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		unknown bool
	}{
		{name: "unknown type", input: `{"type":"hangup"}`, unknown: true},
		{name: "missing type", input: `{"sdp":"v=0"}`, unknown: true},
		{name: "offer without sdp", input: `{"type":"offer"}`},
		{name: "answer without sdp", input: `{"type":"answer","sdp":""}`},
		{name: "candidate without body", input: `{"type":"candidate"}`},
		{name: "not json", input: `offer`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode([]byte(test.input))
			if err == nil {
				t.Fatal("Decode succeeded, want error")
			}
			if got := errors.Is(err, ErrUnknownType); got != test.unknown {
				t.Errorf("errors.Is(err, ErrUnknownType) = %v, want %v (err: %v)", got, test.unknown, err)
			}
		})
	}
}

func TestCandidateWireShape(t *testing.T) {
	mid := "0"
	index := uint16(0)
	ufrag := "abcd"
	payload, err := Encode(CandidateMessage(media.Candidate{
		Candidate:        "candidate:1 1 udp 2130706431 192.0.2.1 5000 typ host",
		SDPMid:           &mid,
		SDPMLineIndex:    &index,
		UsernameFragment: &ufrag,
	}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if wire["type"] != "candidate" {
		t.Errorf("type = %v, want candidate", wire["type"])
	}
	candidate, ok := wire["candidate"].(map[string]any)
	if !ok {
		t.Fatalf("candidate field = %T, want object", wire["candidate"])
	}
	for _, key := range []string{"candidate", "sdpMid", "sdpMLineIndex", "usernameFragment"} {
		if _, ok := candidate[key]; !ok {
			t.Errorf("candidate object missing %q", key)
		}
	}
	if _, ok := wire["sdp"]; ok {
		t.Error("candidate message carries an sdp field")
	}
}

func TestOfferRestartFlag(t *testing.T) {
	payload, err := Encode(Offer("v=0", true))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Restart {
		t.Error("restart flag lost")
	}
	if got := decoded.Description(); got.Type != media.SDPOffer || got.SDP != "v=0" {
		t.Errorf("Description() = %+v", got)
	}

	plain, _ := Encode(Offer("v=0", false))
	if string(plain) != `{"type":"offer","sdp":"v=0"}` {
		t.Errorf("plain offer encodes as %s", plain)
	}
}

func TestByeEncoding(t *testing.T) {
	payload, err := Encode(Bye())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(payload), `{"type":"bye"}`; got != want {
		t.Errorf("bye = %s, want %s", got, want)
	}
}

func TestPresenceDecodeDefaults(t *testing.T) {
	presence, err := DecodePresence([]byte(`{"joined":true,"name":"ada"}`))
	if err != nil {
		t.Fatalf("DecodePresence: %v", err)
	}
	want := Presence{Joined: true, Name: "ada"}
	if presence != want {
		t.Errorf("presence = %+v, want %+v", presence, want)
	}
	encoded, _ := EncodePresence(Presence{Joined: true, Muted: true, Name: "ada", Version: "0.1.0"})
	if got, want := string(encoded), `{"joined":true,"muted":true,"name":"ada","version":"0.1.0"}`; got != want {
		t.Errorf("EncodePresence = %s, want %s", got, want)
	}
}
