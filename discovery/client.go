// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sunset-chat/sunset/signaling"
	"github.com/sunset-chat/sunset/transport"
)

// Client polls the relay's registry.
type Client struct {
	host  transport.Host
	relay string
}

// NewClient creates a client that polls the relay with peer ID relay.
func NewClient(host transport.Host, relay string) *Client {
	return &Client{host: host, relay: relay}
}

// Poll announces this host in room and returns the other members. The
// host must already be connected to the relay.
func (c *Client) Poll(ctx context.Context, room string) (Response, error) {
	request, err := json.Marshal(Request{
		Room:   room,
		PeerID: c.host.ID(),
		Addrs:  c.host.Addrs(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("encoding discovery request: %w", err)
	}

	stream, err := c.host.OpenStream(ctx, c.relay, signaling.ProtocolDiscovery)
	if err != nil {
		return Response{}, err
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Reset() })
	defer stop()

	if err := signaling.WriteMessage(stream, request); err != nil {
		stream.Reset()
		return Response{}, err
	}
	payload, err := signaling.ReadMessage(stream, signaling.MaxDiscoveryResponseSize)
	if err != nil {
		stream.Reset()
		return Response{}, err
	}

	var response Response
	if err := json.Unmarshal(payload, &response); err != nil {
		return Response{}, fmt.Errorf("decoding discovery response: %w", err)
	}
	return response, nil
}
