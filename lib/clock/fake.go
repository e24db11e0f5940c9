// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// It is safe for concurrent use.
type FakeClock struct {
	mu       sync.Mutex
	changed  *sync.Cond
	now      time.Time
	sequence uint64
	pending  []*entry
}

// entry is one scheduled wakeup: an After channel, an AfterFunc
// callback, or a ticker.
type entry struct {
	due      time.Time
	sequence uint64
	channel  chan time.Time
	callback func()
	period   time.Duration
	active   bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.scheduleLocked(&entry{due: c.now.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f to run during the Advance call that moves the
// clock past now+d. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	scheduled := &entry{due: c.now.Add(d), callback: f}
	if d > 0 {
		c.scheduleLocked(scheduled)
	}
	c.mu.Unlock()
	if d <= 0 {
		f()
	}

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := scheduled.active
			scheduled.active = false
			return wasActive
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := scheduled.active
			scheduled.active = false
			next := &entry{due: c.now.Add(d), callback: f}
			c.scheduleLocked(next)
			scheduled = next
			return wasActive
		},
	}
}

// NewTicker returns a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	channel := make(chan time.Time, 1)
	scheduled := &entry{due: c.now.Add(d), channel: channel, period: d}
	c.scheduleLocked(scheduled)
	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			scheduled.active = false
		},
	}
}

// Advance moves the clock forward by d, firing every wakeup that falls
// due on the way in (deadline, registration) order. Callbacks observe
// Now() equal to their own deadline. Callbacks may schedule further
// wakeups; those fire too if they fall within the advanced window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.due
		fireAt := next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
			c.scheduleLocked(next)
		}
		c.mu.Unlock()

		switch {
		case next.callback != nil:
			next.callback()
		case next.channel != nil:
			select {
			case next.channel <- fireAt:
			default:
			}
		}
	}
}

// WaitForTimers blocks until at least n wakeups are pending. Use it to
// make sure a goroutine has reached its After or ticker before calling
// Advance.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of wakeups that have not fired or
// been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) scheduleLocked(scheduled *entry) {
	c.sequence++
	scheduled.sequence = c.sequence
	scheduled.active = true
	c.pending = append(c.pending, scheduled)
	c.changed.Broadcast()
}

// popDueLocked removes and returns the earliest active entry due at or
// before target, dropping inactive entries along the way.
func (c *FakeClock) popDueLocked(target time.Time) *entry {
	live := c.pending[:0]
	for _, scheduled := range c.pending {
		if scheduled.active {
			live = append(live, scheduled)
		}
	}
	c.pending = live
	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].due.Equal(c.pending[j].due) {
			return c.pending[i].sequence < c.pending[j].sequence
		}
		return c.pending[i].due.Before(c.pending[j].due)
	})
	first := c.pending[0]
	if first.due.After(target) {
		return nil
	}
	c.pending = c.pending[1:]
	first.active = false
	return first
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, scheduled := range c.pending {
		if scheduled.active {
			count++
		}
	}
	return count
}
