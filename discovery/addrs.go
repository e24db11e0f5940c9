// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/sunset-chat/sunset/transport"
)

var (
	// ErrNoAddresses is returned by DialSequential for an empty list.
	ErrNoAddresses = errors.New("no addresses to dial")

	// ErrAllDialsFailed is returned by DialSequential once every
	// address has failed.
	ErrAllDialsFailed = errors.New("all dials failed")
)

// IsCircuit reports whether addr routes through a circuit relay.
// Strings that do not parse as multiaddrs are classified textually.
func IsCircuit(addr string) bool {
	parsed, err := ma.NewMultiaddr(addr)
	if err != nil {
		return strings.Contains(addr, "/p2p-circuit")
	}
	_, err = parsed.ValueForProtocol(ma.P_CIRCUIT)
	return err == nil
}

// OrderAddrs returns addrs with relay circuit addresses after direct
// ones, otherwise preserving order.
func OrderAddrs(addrs []string) []string {
	ordered := slices.Clone(addrs)
	slices.SortStableFunc(ordered, func(a, b string) int {
		circuitA, circuitB := IsCircuit(a), IsCircuit(b)
		switch {
		case circuitA == circuitB:
			return 0
		case circuitB:
			return -1
		default:
			return 1
		}
	})
	return ordered
}

// RelayOnly reports whether every address in addrs is a circuit
// address. An empty list is not relay-only.
func RelayOnly(addrs []string) bool {
	if len(addrs) == 0 {
		return false
	}
	for _, addr := range addrs {
		if !IsCircuit(addr) {
			return false
		}
	}
	return true
}

// DirectAddrs filters addrs down to non-circuit addresses.
func DirectAddrs(addrs []string) []string {
	var direct []string
	for _, addr := range addrs {
		if !IsCircuit(addr) {
			direct = append(direct, addr)
		}
	}
	return direct
}

// DialSequential dials addrs in OrderAddrs order, one at a time, and
// returns the address that connected. Each failure moves on to the next
// address; the error lists every failure once all are exhausted.
func DialSequential(ctx context.Context, host transport.Host, addrs []string) (string, error) {
	if len(addrs) == 0 {
		return "", ErrNoAddresses
	}
	var failures []error
	for _, addr := range OrderAddrs(addrs) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := host.Dial(ctx, addr)
		if err == nil {
			return addr, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", addr, err))
	}
	return "", fmt.Errorf("%w: %w", ErrAllDialsFailed, errors.Join(failures...))
}
