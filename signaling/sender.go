// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunset-chat/sunset/lib/clock"
	"github.com/sunset-chat/sunset/transport"
)

// Default retry policy. Three attempts wait 500ms and then 1s; the
// backoff doubles per attempt, so a 2s wait needs a fourth attempt.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond
)

// Sender delivers one-message streams with bounded retry.
type Sender struct {
	host     transport.Host
	clock    clock.Clock
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// SenderConfig configures NewSender. Zero values take the defaults.
type SenderConfig struct {
	Attempts int
	Backoff  time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewSender creates a Sender on host.
func NewSender(host transport.Host, config SenderConfig) *Sender {
	if config.Attempts <= 0 {
		config.Attempts = DefaultAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Sender{
		host:     host,
		clock:    config.Clock,
		logger:   config.Logger.With("component", "signaling"),
		attempts: config.Attempts,
		backoff:  config.Backoff,
	}
}

// Send opens a stream to peer on protocol and writes payload, retrying
// with exponential backoff. The error from the final attempt is
// returned; callers treat it as a dropped message.
func (s *Sender) Send(ctx context.Context, peer, protocol string, payload []byte) error {
	var lastError error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			backoff := s.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(backoff):
			}
		}

		err := s.sendOnce(ctx, peer, protocol, payload)
		if err == nil {
			return nil
		}
		lastError = err
		s.logger.Debug("signaling send failed",
			"peer", peer,
			"protocol", protocol,
			"attempt", attempt+1,
			"error", err,
		)
	}
	s.logger.Debug("signaling message dropped", "peer", peer, "protocol", protocol)
	return fmt.Errorf("sending %s to %s after %d attempts: %w", protocol, peer, s.attempts, lastError)
}

// SendOnce makes a single attempt. Presence uses it: the next periodic
// broadcast supersedes anything a retry would deliver.
func (s *Sender) SendOnce(ctx context.Context, peer, protocol string, payload []byte) error {
	return s.sendOnce(ctx, peer, protocol, payload)
}

func (s *Sender) sendOnce(ctx context.Context, peer, protocol string, payload []byte) error {
	stream, err := s.host.OpenStream(ctx, peer, protocol)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { stream.Reset() })
	defer stop()
	if err := WriteMessage(stream, payload); err != nil {
		stream.Reset()
		return err
	}
	return stream.Close()
}
