// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build information for sunset binaries.
//
// Values are injected at build time:
//
//	go build -ldflags "-X github.com/sunset-chat/sunset/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Short] is what peers advertise in the presence "version" field, so two
// peers can tell when they are running different builds.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the release version.
	Version = "0.1.0-dev"
)

// Info returns the --version line: "0.1.0-dev (abc1234, 2026-...)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Print writes "<binary> <Info>" plus the Go toolchain and platform.
func Print(binary string) {
	fmt.Printf("%s %s\n  Go: %s\n  Platform: %s/%s\n",
		binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version, as advertised in presence.
func Short() string {
	if GitCommit == "unknown" {
		return Version
	}
	return Version + "+" + GitCommit
}
