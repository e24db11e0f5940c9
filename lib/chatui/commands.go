// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sunset-chat/sunset/room"
)

// errQuit is returned by ParseInput for /quit.
var errQuit = errors.New("quit")

// Commands lists the slash commands for the help line.
var Commands = []string{
	"/join-audio", "/leave-audio", "/mute", "/unmute",
	"/name <name>", "/room <room>", "/leave", "/quit",
}

// ParseInput turns one input line into a controller event. Lines that
// do not start with a slash are chat. /quit yields errQuit.
func ParseInput(line string) (room.Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return room.SendChat{Text: line}, nil
	}

	command, argument, _ := strings.Cut(line, " ")
	argument = strings.TrimSpace(argument)
	switch command {
	case "/join-audio":
		return room.JoinAudio{}, nil
	case "/leave-audio":
		return room.LeaveAudio{}, nil
	case "/mute":
		return room.SetMuted{Muted: true}, nil
	case "/unmute":
		return room.SetMuted{Muted: false}, nil
	case "/name":
		if argument == "" {
			return nil, errors.New("usage: /name <name>")
		}
		return room.SetName{Name: argument}, nil
	case "/room":
		if argument == "" {
			return nil, errors.New("usage: /room <room>")
		}
		return room.JoinRoom{Room: argument}, nil
	case "/leave":
		return room.LeaveRoom{}, nil
	case "/quit":
		return nil, errQuit
	}
	return nil, fmt.Errorf("unknown command %s (try %s)", command, strings.Join(Commands, " "))
}
