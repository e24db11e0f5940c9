// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
)

// LoadOrCreateIdentity reads a marshalled libp2p private key from path,
// or generates an Ed25519 key and writes it there (mode 0600). A corrupt
// file is replaced with a fresh key. An empty path returns an ephemeral
// key without touching the filesystem.
//
// Failing to save a generated key is logged, not returned: the host can
// still run, it just gets a new peer ID next time.
func LoadOrCreateIdentity(path string, logger *slog.Logger) (crypto.PrivKey, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			key, parseErr := crypto.UnmarshalPrivateKey(data)
			if parseErr == nil {
				return key, nil
			}
			logger.Warn("identity file is corrupt, generating a new key", "path", path, "error", parseErr)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading identity %s: %w", path, err)
		}
	}

	key, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, fmt.Errorf("generating identity key: %w", err)
	}
	if path == "" {
		return key, nil
	}

	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshalling identity key: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		logger.Warn("could not save identity", "path", path, "error", err)
	}
	return key, nil
}
