// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigAppliesOverrides(t *testing.T) {
	t.Setenv("SUNSET_CONFIG", "")

	cfg, err := loadConfig(options{
		name:     "alice",
		room:     "lobby",
		logLevel: "debug",
		audio:    true,
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Node.Name != "alice" {
		t.Errorf("Name = %q, want alice", cfg.Node.Name)
	}
	if cfg.Node.Room != "lobby" {
		t.Errorf("Room = %q, want lobby", cfg.Node.Room)
	}
	if cfg.Node.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Node.LogLevel)
	}
	if !cfg.Node.AutoJoinAudio {
		t.Error("AutoJoinAudio = false, want true")
	}
	if cfg.Timing.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want default 1s", cfg.Timing.TickInterval)
	}
}

func TestLoadConfigFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunset.yaml")
	content := "node:\n  name: from-file\n  room: garden\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{configPath: path, name: "from-flag"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Node.Name != "from-flag" {
		t.Errorf("Name = %q, want from-flag", cfg.Node.Name)
	}
	if cfg.Node.Room != "garden" {
		t.Errorf("Room = %q, want garden", cfg.Node.Room)
	}
}

func TestLoadConfigRejectsBadLevel(t *testing.T) {
	t.Setenv("SUNSET_CONFIG", "")
	if _, err := loadConfig(options{logLevel: "loud"}); err == nil {
		t.Fatal("expected a validation error for log level \"loud\"")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, test := range tests {
		got, err := parseLevel(test.name)
		if err != nil {
			t.Errorf("parseLevel(%q): %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("parseLevel(%q) = %v, want %v", test.name, got, test.want)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("parseLevel(\"verbose\") succeeded, want error")
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var quiet, verbose bytes.Buffer
	logger := slog.New(fanoutHandler{
		newFileHandler(&quiet, slog.LevelWarn),
		newFileHandler(&verbose, slog.LevelDebug),
	}).With("component", "test")

	logger.Debug("debug line")
	logger.Warn("warn line")

	if strings.Contains(quiet.String(), "debug line") {
		t.Error("warn-level handler received a debug record")
	}
	if !strings.Contains(quiet.String(), "warn line") {
		t.Error("warn-level handler missed the warn record")
	}
	if !strings.Contains(verbose.String(), "debug line") || !strings.Contains(verbose.String(), "warn line") {
		t.Errorf("debug-level handler output = %q, want both records", verbose.String())
	}
	if !strings.Contains(verbose.String(), `"component":"test"`) {
		t.Errorf("attrs not propagated: %q", verbose.String())
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("fanout should be enabled when any handler is")
	}
}

func TestNewLoggingHeadlessWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logs, err := newLogging(true, slog.LevelInfo, path)
	if err != nil {
		t.Fatalf("newLogging: %v", err)
	}
	logs.logger.Info("hello file")
	logs.close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q, want the record", data)
	}
	if logs.tui != nil {
		t.Error("headless logging should not create a status-line handler")
	}
}
