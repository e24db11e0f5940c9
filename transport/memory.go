// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Host = (*MemoryHost)(nil)

// errStreamReset is returned from reads and writes on a reset stream.
var errStreamReset = errors.New("stream reset")

// MemoryNetwork connects MemoryHosts in one process. Addresses are
// opaque strings registered per host; dialing an address connects to the
// host that registered it. Tests control reachability per address.
type MemoryNetwork struct {
	mu          sync.Mutex
	hosts       map[string]*MemoryHost
	addrs       map[string]string // address -> host ID
	unreachable map[string]bool
	dials       map[string][]string // dialer ID -> addresses attempted
}

// NewMemoryNetwork creates an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		hosts:       make(map[string]*MemoryHost),
		addrs:       make(map[string]string),
		unreachable: make(map[string]bool),
		dials:       make(map[string][]string),
	}
}

// NewHost adds a host with the given peer ID, reachable at addrs.
func (n *MemoryNetwork) NewHost(id string, addrs ...string) *MemoryHost {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := &MemoryHost{
		network:  n,
		id:       id,
		addrs:    slices.Clone(addrs),
		conns:    make(map[string][]string),
		handlers: make(map[string]StreamHandler),
	}
	n.hosts[id] = h
	for _, addr := range addrs {
		n.addrs[addr] = id
	}
	return h
}

// SetUnreachable makes dials to addr fail (or succeed again).
func (n *MemoryNetwork) SetUnreachable(addr string, unreachable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unreachable[addr] = unreachable
}

// Dials returns the addresses id has attempted to dial, in order.
func (n *MemoryNetwork) Dials(id string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.dials[id])
}

// Connect links a and b directly as if a had dialed b at addr. The
// address need not be registered.
func (n *MemoryNetwork) Connect(a, b, addr string) error {
	n.mu.Lock()
	dialer, ok := n.hosts[a]
	target, ok2 := n.hosts[b]
	if !ok || !ok2 {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s or %s", ErrUnknownPeer, a, b)
	}
	notify := n.linkLocked(dialer, target, addr)
	n.mu.Unlock()
	run(notify)
	return nil
}

// Disconnect closes every connection between a and b.
func (n *MemoryNetwork) Disconnect(a, b string) {
	n.mu.Lock()
	var notify []func()
	first, ok := n.hosts[a]
	second, ok2 := n.hosts[b]
	if ok && ok2 {
		notify = append(notify, first.dropLocked(b)...)
		notify = append(notify, second.dropLocked(a)...)
	}
	n.mu.Unlock()
	run(notify)
}

// linkLocked records one connection in both directions. The listener
// sees the dialer's first address, or a circuit address when the dial
// went through one.
func (n *MemoryNetwork) linkLocked(dialer, target *MemoryHost, addr string) []func() {
	remote := "/memory/" + dialer.id
	if len(dialer.addrs) > 0 {
		remote = dialer.addrs[0]
	}
	if isCircuitString(addr) {
		remote = addr
	}
	var notify []func()
	notify = append(notify, dialer.addLocked(target.id, addr)...)
	notify = append(notify, target.addLocked(dialer.id, remote)...)
	return notify
}

func run(notify []func()) {
	for _, call := range notify {
		call()
	}
}

// isCircuitString is a cheap textual check for memory addresses, which
// are not required to be valid multiaddrs.
func isCircuitString(addr string) bool {
	return strings.Contains(addr, "/p2p-circuit")
}

// MemoryHost is a Host on a MemoryNetwork.
type MemoryHost struct {
	network *MemoryNetwork
	id      string
	addrs   []string

	// Guarded by network.mu.
	closed   bool
	conns    map[string][]string // peer -> remote address per connection
	handlers map[string]StreamHandler
	notify   []ConnectionHandler
}

func (h *MemoryHost) ID() string { return h.id }

func (h *MemoryHost) Addrs() []string {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	return slices.Clone(h.addrs)
}

// AddAddr registers another address for h, such as a circuit address
// obtained through a relay.
func (h *MemoryHost) AddAddr(addr string) {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	h.addrs = append(h.addrs, addr)
	h.network.addrs[addr] = h.id
}

func (h *MemoryHost) Dial(ctx context.Context, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := h.network
	n.mu.Lock()
	n.dials[h.id] = append(n.dials[h.id], addr)
	if h.closed {
		n.mu.Unlock()
		return errors.New("host closed")
	}
	targetID, ok := n.addrs[addr]
	if !ok || n.unreachable[addr] {
		n.mu.Unlock()
		return fmt.Errorf("dial %s: no route to host", addr)
	}
	target := n.hosts[targetID]
	if target == nil || target.closed {
		n.mu.Unlock()
		return fmt.Errorf("dial %s: connection refused", addr)
	}
	if target.id == h.id {
		n.mu.Unlock()
		return fmt.Errorf("dial %s: targets this host", addr)
	}
	notify := n.linkLocked(h, target, addr)
	n.mu.Unlock()
	run(notify)
	return nil
}

func (h *MemoryHost) ConnectedPeers() []string {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	peers := make([]string, 0, len(h.conns))
	for id := range h.conns {
		peers = append(peers, id)
	}
	slices.Sort(peers)
	return peers
}

func (h *MemoryHost) PeerAddrs(peer string) []string {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	return slices.Clone(h.conns[peer])
}

// OpenStream connects a pair of pipes to the remote handler, which runs
// on its own goroutine.
func (h *MemoryHost) OpenStream(ctx context.Context, peer, protocol string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := h.network
	n.mu.Lock()
	if _, connected := h.conns[peer]; !connected {
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	target := n.hosts[peer]
	handler, ok := target.handlers[protocol]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("opening %s stream to %s: protocol not supported", protocol, peer)
	}

	outboundReader, outboundWriter := io.Pipe()
	inboundReader, inboundWriter := io.Pipe()
	local := &memoryStream{reader: inboundReader, writer: outboundWriter, remote: peer}
	remote := &memoryStream{reader: outboundReader, writer: inboundWriter, remote: h.id}
	go handler(remote)
	return local, nil
}

func (h *MemoryHost) SetStreamHandler(protocol string, handler StreamHandler) {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	h.handlers[protocol] = handler
}

func (h *MemoryHost) Notify(handler ConnectionHandler) {
	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	h.notify = append(h.notify, handler)
}

// Close drops every connection; peers see Disconnected.
func (h *MemoryHost) Close() error {
	n := h.network
	n.mu.Lock()
	if h.closed {
		n.mu.Unlock()
		return nil
	}
	h.closed = true
	var notify []func()
	for peer := range h.conns {
		if other := n.hosts[peer]; other != nil {
			notify = append(notify, other.dropLocked(h.id)...)
		}
	}
	h.conns = make(map[string][]string)
	for _, addr := range h.addrs {
		delete(n.addrs, addr)
	}
	n.mu.Unlock()
	run(notify)
	return nil
}

func (h *MemoryHost) addLocked(peer, addr string) []func() {
	h.conns[peer] = append(h.conns[peer], addr)
	var notify []func()
	for _, handler := range h.notify {
		if handler.Connected != nil {
			connected := handler.Connected
			notify = append(notify, func() { connected(peer) })
		}
	}
	return notify
}

func (h *MemoryHost) dropLocked(peer string) []func() {
	if _, ok := h.conns[peer]; !ok {
		return nil
	}
	delete(h.conns, peer)
	var notify []func()
	for _, handler := range h.notify {
		if handler.Disconnected != nil {
			disconnected := handler.Disconnected
			notify = append(notify, func() { disconnected(peer) })
		}
	}
	return notify
}

type memoryStream struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	remote string
}

func (s *memoryStream) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *memoryStream) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *memoryStream) CloseWrite() error           { return s.writer.Close() }
func (s *memoryStream) RemotePeer() string          { return s.remote }

func (s *memoryStream) Close() error {
	s.writer.Close()
	return s.reader.Close()
}

func (s *memoryStream) Reset() error {
	s.writer.CloseWithError(errStreamReset)
	return s.reader.CloseWithError(errStreamReset)
}
