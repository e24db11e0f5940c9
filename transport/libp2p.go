// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
)

// Compile-time interface check.
var _ Host = (*LibP2PHost)(nil)

// LibP2PConfig configures NewLibP2PHost.
type LibP2PConfig struct {
	// Identity is the host key. Nil generates an ephemeral key.
	Identity crypto.PrivKey

	// ListenAddrs are multiaddrs to listen on. Empty uses the libp2p
	// defaults.
	ListenAddrs []string

	// StaticRelays are relay multiaddrs (with /p2p) to hold circuit
	// reservations on, so peers behind NAT stay reachable.
	StaticRelays []string

	// Options are appended after the options derived from the fields
	// above. The relay binary passes its transport set here.
	Options []libp2p.Option

	Logger *slog.Logger
}

// LibP2PHost implements Host on a go-libp2p host.
type LibP2PHost struct {
	host   host.Host
	logger *slog.Logger

	mu        sync.Mutex
	notifiees []*network.NotifyBundle
}

// NewLibP2PHost creates and starts a libp2p host.
func NewLibP2PHost(config LibP2PConfig) (*LibP2PHost, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var options []libp2p.Option
	if config.Identity != nil {
		options = append(options, libp2p.Identity(config.Identity))
	}
	if len(config.ListenAddrs) > 0 {
		options = append(options, libp2p.ListenAddrStrings(config.ListenAddrs...))
	}
	if len(config.StaticRelays) > 0 {
		relays := make([]peer.AddrInfo, 0, len(config.StaticRelays))
		for _, raw := range config.StaticRelays {
			info, err := peer.AddrInfoFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("parsing relay address %q: %w", raw, err)
			}
			relays = append(relays, *info)
		}
		options = append(options,
			libp2p.EnableRelay(),
			libp2p.EnableAutoRelayWithStaticRelays(relays),
			libp2p.EnableHolePunching(),
		)
	}
	options = append(options, config.Options...)

	h, err := libp2p.New(options...)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}
	return &LibP2PHost{
		host:   h,
		logger: logger.With("component", "transport", "peer_id", h.ID().String()),
	}, nil
}

// Libp2p exposes the underlying host for services that attach to it
// directly, such as the circuit relay.
func (h *LibP2PHost) Libp2p() host.Host { return h.host }

func (h *LibP2PHost) ID() string { return h.host.ID().String() }

func (h *LibP2PHost) Addrs() []string {
	suffix := "/p2p/" + h.host.ID().String()
	addrs := h.host.Addrs()
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		result = append(result, addr.String()+suffix)
	}
	return result
}

// Dial connects to the peer in addr. A direct address for a peer that is
// currently connected only through a relay forces a new direct dial
// instead of returning the existing limited connection.
func (h *LibP2PHost) Dial(ctx context.Context, addr string) error {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return fmt.Errorf("invalid dial multiaddr %q: %w", addr, err)
	}
	if info.ID == h.host.ID() {
		return fmt.Errorf("dial multiaddr %q targets this host", addr)
	}
	if len(info.Addrs) == 0 {
		return fmt.Errorf("invalid dial multiaddr %q: missing transport address", addr)
	}
	if h.host.Network().Connectedness(info.ID) == network.Limited && !anyCircuit(info.Addrs) {
		ctx = network.WithForceDirectDial(ctx, "relay upgrade")
	}
	if err := h.host.Connect(ctx, *info); err != nil {
		return err
	}
	h.logger.Debug("dial established",
		"target_peer_id", info.ID.String(),
		"address", addr,
		"conn_count", len(h.host.Network().ConnsToPeer(info.ID)),
	)
	return nil
}

func anyCircuit(addrs []ma.Multiaddr) bool {
	for _, addr := range addrs {
		if _, err := addr.ValueForProtocol(ma.P_CIRCUIT); err == nil {
			return true
		}
	}
	return false
}

func (h *LibP2PHost) ConnectedPeers() []string {
	peers := h.host.Network().Peers()
	result := make([]string, 0, len(peers))
	for _, id := range peers {
		result = append(result, id.String())
	}
	return result
}

func (h *LibP2PHost) PeerAddrs(peerID string) []string {
	id, err := peer.Decode(peerID)
	if err != nil {
		return nil
	}
	conns := h.host.Network().ConnsToPeer(id)
	result := make([]string, 0, len(conns))
	for _, conn := range conns {
		result = append(result, conn.RemoteMultiaddr().String())
	}
	return result
}

// OpenStream opens a stream on any existing connection to peerID,
// including limited relay connections.
func (h *LibP2PHost) OpenStream(ctx context.Context, peerID, protocolName string) (Stream, error) {
	id, err := peer.Decode(peerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownPeer, peerID, err)
	}
	streamCtx := network.WithAllowLimitedConn(ctx, protocolName)
	stream, err := h.host.NewStream(streamCtx, id, protocol.ID(protocolName))
	if err != nil {
		return nil, fmt.Errorf("opening %s stream to %s: %w", protocolName, peerID, err)
	}
	return libp2pStream{stream}, nil
}

func (h *LibP2PHost) SetStreamHandler(protocolName string, handler StreamHandler) {
	h.host.SetStreamHandler(protocol.ID(protocolName), func(stream network.Stream) {
		handler(libp2pStream{stream})
	})
}

// Notify forwards libp2p connection notifications. Disconnected is only
// reported when the peer has no connections left.
func (h *LibP2PHost) Notify(handler ConnectionHandler) {
	bundle := &network.NotifyBundle{
		ConnectedF: func(_ network.Network, conn network.Conn) {
			if handler.Connected != nil {
				handler.Connected(conn.RemotePeer().String())
			}
		},
		DisconnectedF: func(net network.Network, conn network.Conn) {
			remote := conn.RemotePeer()
			if net.Connectedness(remote) != network.NotConnected {
				return
			}
			if handler.Disconnected != nil {
				handler.Disconnected(remote.String())
			}
		},
	}
	h.mu.Lock()
	h.notifiees = append(h.notifiees, bundle)
	h.mu.Unlock()
	h.host.Network().Notify(bundle)
}

func (h *LibP2PHost) Close() error {
	h.mu.Lock()
	notifiees := h.notifiees
	h.notifiees = nil
	h.mu.Unlock()
	for _, bundle := range notifiees {
		h.host.Network().StopNotify(bundle)
	}
	return h.host.Close()
}

// libp2pStream adapts network.Stream to Stream.
type libp2pStream struct {
	network.Stream
}

func (s libp2pStream) RemotePeer() string { return s.Conn().RemotePeer().String() }

// ParseRelayAddr returns the peer ID of the relay at addr.
func ParseRelayAddr(addr string) (string, error) {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return "", fmt.Errorf("invalid relay multiaddr %q: %w", addr, err)
	}
	return info.ID.String(), nil
}
