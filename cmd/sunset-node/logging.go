// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/sunset-chat/sunset/lib/chatui"
)

// logging is the node's logger plus the pieces run needs to finish
// wiring it: the status-line handler gets its program only once the UI
// exists.
type logging struct {
	logger *slog.Logger
	tui    *chatui.LogHandler
	close  func()
}

// newLogging builds the node's logger. Headless nodes log to stderr, as
// text on a terminal and JSON otherwise. With the UI running, stderr
// belongs to the alt screen: warnings go to the status line and every
// record at level goes to logFile when one is set.
func newLogging(headless bool, level slog.Level, logFile string) (*logging, error) {
	result := &logging{close: func() {}}

	var fileHandler slog.Handler
	if logFile != "" {
		handler, closer, err := openFileLogHandler(logFile, level)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %s: %w", logFile, err)
		}
		fileHandler = handler
		result.close = closer
	}

	if headless {
		options := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if term.IsTerminal(int(os.Stderr.Fd())) {
			handler = slog.NewTextHandler(os.Stderr, options)
		} else {
			handler = slog.NewJSONHandler(os.Stderr, options)
		}
		if fileHandler != nil {
			handler = fanoutHandler{handler, fileHandler}
		}
		result.logger = slog.New(handler)
		return result, nil
	}

	result.tui = chatui.NewLogHandler(max(level, slog.LevelWarn))
	if fileHandler != nil {
		result.logger = slog.New(fanoutHandler{result.tui, fileHandler})
	} else {
		result.logger = slog.New(result.tui)
	}
	return result, nil
}

// parseLevel maps a configured level name to a slog level.
func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// openFileLogHandler creates a JSON handler appending to path.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return newFileHandler(file, level), func() { file.Close() }, nil
}

func newFileHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// fanoutHandler sends each record to every sub-handler enabled for its
// level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
