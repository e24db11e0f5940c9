// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a log record to the status line.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the status line.
type logRecordFadeMsg struct{}

// logRecordFadeDelay is how long a log line stays on the status line.
const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that shows records at or above its level
// on the status line of a running program. Records that arrive before
// SetProgram are dropped. Handlers derived with WithAttrs and WithGroup
// share the program pointer.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	group   string
}

// NewLogHandler creates a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{level: level, program: &atomic.Pointer[tea.Program]{}}
}

// SetProgram starts delivery to program. Safe from any goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}
	program.Send(logRecordMsg{Summary: handler.summary(record), Level: record.Level})
	return nil
}

// summary formats "message (key=value, ...)".
func (handler *LogHandler) summary(record slog.Record) string {
	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, handler.format(attr))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.format(attr))
		return true
	})
	if len(parts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (handler *LogHandler) format(attr slog.Attr) string {
	key := attr.Key
	if handler.group != "" {
		key = handler.group + "." + key
	}
	return fmt.Sprintf("%s=%s", key, attr.Value)
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append(slices.Clone(handler.attrs), attrs...)
	return &derived
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	derived := *handler
	if derived.group != "" {
		name = derived.group + "." + name
	}
	derived.group = name
	return &derived
}
