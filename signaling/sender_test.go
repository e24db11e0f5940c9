// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/lib/testutil"
	"github.com/sunset-chat/sunset/transport"
)

type received struct {
	peer    string
	payload string
}

func connectedPair(t *testing.T) (*transport.MemoryNetwork, *transport.MemoryHost, *transport.MemoryHost) {
	t.Helper()
	network := transport.NewMemoryNetwork()
	alice := network.NewHost("alice")
	bob := network.NewHost("bob", "/memory/bob")
	if err := alice.Dial(context.Background(), "/memory/bob"); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return network, alice, bob
}

func TestSenderDelivers(t *testing.T) {
	_, alice, bob := connectedPair(t)
	inbox := make(chan received, 1)
	Listen(bob, ProtocolAudioSignal, MaxSignalSize, slog.Default(), func(peer string, payload []byte) {
		inbox <- received{peer, string(payload)}
	})

	payload, err := Encode(Bye())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	sender := NewSender(alice, SenderConfig{})
	if err := sender.Send(context.Background(), "bob", ProtocolAudioSignal, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := testutil.RequireReceive(t, inbox, time.Second, "bye at bob")
	if got.peer != "alice" || got.payload != `{"type":"bye"}` {
		t.Errorf("received %+v", got)
	}
}

func TestSenderRetriesWithBackoff(t *testing.T) {
	_, alice, bob := connectedPair(t)
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	sender := NewSender(alice, SenderConfig{Clock: fake})

	result := make(chan error, 1)
	go func() {
		result <- sender.Send(context.Background(), "bob", ProtocolChat, []byte("hello"))
	}()

	// First attempt fails: bob has no chat handler yet.
	fake.WaitForTimers(1)
	inbox := make(chan received, 1)
	Listen(bob, ProtocolChat, MaxChatSize, slog.Default(), func(peer string, payload []byte) {
		inbox <- received{peer, string(payload)}
	})
	fake.Advance(499 * time.Millisecond)
	testutil.RequireNoReceive(t, result, 20*time.Millisecond, "send finished before the first backoff elapsed")
	fake.Advance(time.Millisecond)

	if err := testutil.RequireReceive(t, result, time.Second, "send result"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := testutil.RequireReceive(t, inbox, time.Second, "chat at bob"); got.payload != "hello" {
		t.Errorf("payload = %q, want hello", got.payload)
	}
}

func TestSenderGivesUpAfterThreeAttempts(t *testing.T) {
	network := transport.NewMemoryNetwork()
	alice := network.NewHost("alice")
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	sender := NewSender(alice, SenderConfig{Clock: fake})

	result := make(chan error, 1)
	go func() {
		result <- sender.Send(context.Background(), "nobody", ProtocolPresence, []byte("{}"))
	}()

	fake.WaitForTimers(1)
	fake.Advance(500 * time.Millisecond)
	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	err := testutil.RequireReceive(t, result, time.Second, "send result")
	if err == nil {
		t.Fatal("Send to unknown peer succeeded")
	}
	if !errors.Is(err, transport.ErrUnknownPeer) {
		t.Errorf("error = %v, want wrapping ErrUnknownPeer", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
}

func TestSenderStopsOnCancel(t *testing.T) {
	network := transport.NewMemoryNetwork()
	alice := network.NewHost("alice")
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	sender := NewSender(alice, SenderConfig{Clock: fake})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- sender.Send(ctx, "nobody", ProtocolPresence, []byte("{}")) }()
	fake.WaitForTimers(1)
	cancel()
	if err := testutil.RequireReceive(t, result, time.Second, "send result"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestReadMessageCap(t *testing.T) {
	if _, err := ReadMessage(bytes.NewReader(make([]byte, 11)), 10); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("11 bytes under a 10 byte cap: got %v, want ErrMessageTooLarge", err)
	}
	data, err := ReadMessage(bytes.NewReader(make([]byte, 10)), 10)
	if err != nil || len(data) != 10 {
		t.Errorf("10 bytes under a 10 byte cap: got %d bytes, err %v", len(data), err)
	}
}
