// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that timing-driven
// behavior (ticks, backoff, grace windows, debounce timers) can be tested
// deterministically.
//
// Production code holds a [Clock] and never calls time.Now, time.After,
// time.AfterFunc or time.NewTicker directly. Binaries inject [Real];
// tests inject [Fake] and move time forward with [FakeClock.Advance].
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := room.New(room.Dependencies{Clock: c, ...})
//	c.Advance(2 * time.Second) // fires every timer due within 2s, in order
//
// AfterFunc callbacks on a FakeClock run synchronously inside Advance, in
// deadline order (ties broken by registration order). Goroutines that
// block on After or a ticker can be synchronized with
// [FakeClock.WaitForTimers] before advancing.
package clock
