// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sunset-chat/sunset/transport"
)

// ErrMessageTooLarge is returned by ReadMessage when the payload exceeds
// its cap.
var ErrMessageTooLarge = errors.New("message too large")

// HalfCloser is a writer whose write side can be closed independently.
type HalfCloser interface {
	io.Writer
	CloseWrite() error
}

// WriteMessage writes payload and half-closes the stream so the reader
// sees EOF.
func WriteMessage(stream HalfCloser, payload []byte) error {
	if _, err := stream.Write(payload); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := stream.CloseWrite(); err != nil {
		return fmt.Errorf("closing write side: %w", err)
	}
	return nil
}

// ReadMessage reads to EOF, failing once more than limit bytes arrive.
func ReadMessage(reader io.Reader, limit int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	if len(data) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, limit)
	}
	return data, nil
}

// Receiver is called with each inbound message and the sending peer.
type Receiver func(peer string, payload []byte)

// Listen registers a handler on host for protocol that reads one
// message per stream under limit and passes it to receive. Oversized or
// truncated messages are logged and dropped.
func Listen(host transport.Host, protocol string, limit int, logger *slog.Logger, receive Receiver) {
	host.SetStreamHandler(protocol, func(stream transport.Stream) {
		defer stream.Close()
		payload, err := ReadMessage(stream, limit)
		if err != nil {
			stream.Reset()
			logger.Debug("dropping inbound message",
				"peer", stream.RemotePeer(),
				"protocol", protocol,
				"error", err,
			)
			return
		}
		receive(stream.RemotePeer(), payload)
	})
}
