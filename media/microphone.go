// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"sync"
	"time"

	"github.com/sunset-chat/sunset/lib/clock"
)

// Microphone opens an audio capture producing encoded Opus frames.
// Real capture devices live outside this module; they plug in here.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is an open microphone.
type Capture interface {
	// ReadFrame blocks until the next encoded frame is ready and
	// returns it with its playout duration.
	ReadFrame() ([]byte, time.Duration, error)
	Close() error
}

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrameDuration = 20 * time.Millisecond

// SilenceMicrophone is a capture device that emits Opus silence at the
// normal frame rate. Headless peers use it so remote sides still see a
// live sending track and negotiate sendrecv audio.
type SilenceMicrophone struct {
	Clock clock.Clock
}

// Open starts the frame ticker.
func (m SilenceMicrophone) Open(ctx context.Context) (Capture, error) {
	source := m.Clock
	if source == nil {
		source = clock.Real()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &silenceCapture{
		ticker: source.NewTicker(silenceFrameDuration),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

type silenceCapture struct {
	ticker    *clock.Ticker
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *silenceCapture) ReadFrame() ([]byte, time.Duration, error) {
	select {
	case <-c.ctx.Done():
		return nil, 0, ErrClosed
	case <-c.ticker.C:
		return opusSilence, silenceFrameDuration, nil
	}
}

func (c *silenceCapture) Close() error {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		c.cancel()
	})
	return nil
}
