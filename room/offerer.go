// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

// IsOfferer reports whether self initiates offers toward peer: the
// greater of two IDs, compared as byte strings, always offers. Both
// ends compute the same answer with no message exchange.
func IsOfferer(self, peer string) bool {
	return self > peer
}
