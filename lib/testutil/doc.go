// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across sunset packages.
//
// [RequireReceive] and [RequireNoReceive] wrap the select-with-timeout
// pattern so individual tests never call time.After themselves. They are
// the only place tests use wall-clock time; everything else runs on
// lib/clock's fake clock.
package testutil
