// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal front end for a room: a scrolling chat
// thread, a peer list with audio state, and an input line that takes
// chat text or slash commands.
//
// The model never touches room state. It renders [room.Snapshot] values
// from the controller's update channel and turns user input into
// [room.Event] values posted back to the controller.
package chatui
