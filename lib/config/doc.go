// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for sunset
// binaries.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the SUNSET_CONFIG environment variable (via
// [Load]). With neither set, [Default] applies unchanged; binaries then
// layer their flags on top. There is no automatic file search.
//
// Path fields (identity files, log file) expand ${HOME} and
// ${VAR:-default} patterns after loading.
//
// Key exports:
//
//   - [Config] -- master struct with Node, Timing, ICE and Relay sections
//   - [Default] -- the defaults every file is merged over
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- rejects unusable timing and log settings
package config
