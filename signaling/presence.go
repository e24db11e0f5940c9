// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"fmt"
)

// Presence is a peer's self-reported audio participation and display
// metadata. Receivers keep the latest one per peer.
type Presence struct {
	Joined  bool   `json:"joined"`
	Muted   bool   `json:"muted"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// EncodePresence serializes presence as compact JSON.
func EncodePresence(presence Presence) ([]byte, error) {
	return json.Marshal(presence)
}

// DecodePresence parses a presence message. Missing fields take their
// zero values.
func DecodePresence(data []byte) (Presence, error) {
	var presence Presence
	if err := json.Unmarshal(data, &presence); err != nil {
		return Presence{}, fmt.Errorf("decoding presence: %w", err)
	}
	return presence, nil
}
