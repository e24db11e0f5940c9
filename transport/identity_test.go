// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
)

func TestLoadOrCreateIdentityPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")

	first, err := LoadOrCreateIdentity(path, nil)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity (create): %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("identity file not written: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("identity file mode = %o, want 600", mode)
	}

	second, err := LoadOrCreateIdentity(path, nil)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity (load): %v", err)
	}
	if !first.Equals(second) {
		t.Error("reloaded identity differs from the generated one")
	}
}

func TestLoadOrCreateIdentityReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	key, err := LoadOrCreateIdentity(path, nil)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	reloaded, err := LoadOrCreateIdentity(path, nil)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity (reload): %v", err)
	}
	if !key.Equals(reloaded) {
		t.Error("replacement key was not saved")
	}
}

func TestLoadOrCreateIdentityEphemeral(t *testing.T) {
	first, err := LoadOrCreateIdentity("", nil)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	second, _ := LoadOrCreateIdentity("", nil)
	if first.Equals(second) {
		t.Error("ephemeral identities should differ")
	}
}

func TestParseRelayAddr(t *testing.T) {
	key, err := LoadOrCreateIdentity("", nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := peer.IDFromPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseRelayAddr("/ip4/203.0.113.5/tcp/4001/p2p/" + id.String())
	if err != nil {
		t.Fatalf("ParseRelayAddr: %v", err)
	}
	if got != id.String() {
		t.Errorf("ParseRelayAddr = %q, want %q", got, id.String())
	}
	if _, err := ParseRelayAddr("/ip4/203.0.113.5/tcp/4001"); err == nil {
		t.Error("ParseRelayAddr without /p2p succeeded")
	}
}
