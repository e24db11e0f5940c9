// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"testing"
	"time"
)

func TestIsOffererExactlyOneSide(t *testing.T) {
	pairs := [][2]string{
		{"peer-a", "peer-b"},
		{"12D3KooWA", "12D3KooWB"},
		{"a", "ab"},
		{"Z", "a"},
		{"", "x"},
	}
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		if IsOfferer(a, b) == IsOfferer(b, a) {
			t.Errorf("IsOfferer(%q, %q) = IsOfferer(%q, %q) = %v, want exactly one offerer",
				a, b, b, a, IsOfferer(a, b))
		}
		if got, want := IsOfferer(a, b), a > b; got != want {
			t.Errorf("IsOfferer(%q, %q) = %v, want %v", a, b, got, want)
		}
	}
	if IsOfferer("same", "same") {
		t.Error("IsOfferer(same, same) = true, want false")
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{40, 10 * time.Second},
	}
	for _, test := range tests {
		if got := ReconnectDelay(test.attempt, time.Second, 10*time.Second); got != test.want {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", test.attempt, got, test.want)
		}
	}
}
