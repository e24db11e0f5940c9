// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package room

// Runner executes blocking work on behalf of the controller. Work
// reports back by posting events, never by touching state.
type Runner interface {
	Go(job func())
}

// GoRunner runs each job on its own goroutine.
type GoRunner struct{}

func (GoRunner) Go(job func()) { go job() }

// InlineRunner runs each job before Go returns. With in-memory
// transports and media it makes the controller fully deterministic:
// every consequence of an event is queued by the time Handle returns.
type InlineRunner struct{}

func (InlineRunner) Go(job func()) { job() }
