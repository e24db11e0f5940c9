// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sunset-chat/sunset/room"
)

// Session is the controller surface the front end needs.
type Session interface {
	Post(event room.Event)
	Snapshot() room.Snapshot
	Updates() <-chan room.Snapshot
}

// peerPaneWidth is the width of the peer list, borders included.
const peerPaneWidth = 30

// snapshotMsg carries a controller snapshot into the program.
type snapshotMsg struct{ snapshot room.Snapshot }

// Model is the bubbletea model for one room session.
type Model struct {
	session Session
	theme   Theme

	input  textinput.Model
	thread viewport.Model

	snapshot room.Snapshot

	// status is an input error or a log line shown under the input.
	status      string
	statusLevel slog.Level

	width  int
	height int
	ready  bool

	// followTail keeps the thread scrolled to the newest message until
	// the user scrolls up.
	followTail bool
}

// NewModel creates a model showing session's current snapshot.
func NewModel(session Session) Model {
	input := textinput.New()
	input.Placeholder = "message or /command"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	return Model{
		session:    session,
		theme:      DefaultTheme,
		input:      input,
		thread:     viewport.New(0, 0),
		snapshot:   session.Snapshot(),
		followTail: true,
	}
}

// Init starts the cursor blink and the snapshot listener.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(model.session.Updates()))
}

// waitForSnapshot blocks until the controller publishes a snapshot.
func waitForSnapshot(updates <-chan room.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg{snapshot: snapshot}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch message.Type {
		case tea.KeyCtrlC:
			return model, tea.Quit
		case tea.KeyEnter:
			return model.submit()
		case tea.KeyPgUp:
			model.thread.HalfViewUp()
			model.followTail = model.thread.AtBottom()
			return model, nil
		case tea.KeyPgDown:
			model.thread.HalfViewDown()
			model.followTail = model.thread.AtBottom()
			return model, nil
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		return model, nil

	case snapshotMsg:
		model.snapshot = message.snapshot
		model.refreshThread()
		return model, waitForSnapshot(model.session.Updates())

	case logRecordMsg:
		model.status = message.Summary
		model.statusLevel = message.Level
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg { return logRecordFadeMsg{} })

	case logRecordFadeMsg:
		model.status = ""
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

// submit parses the input line and posts the resulting event.
func (model Model) submit() (tea.Model, tea.Cmd) {
	line := model.input.Value()
	model.input.Reset()
	event, err := ParseInput(line)
	switch {
	case errors.Is(err, errQuit):
		return model, tea.Quit
	case err != nil:
		model.status = err.Error()
		model.statusLevel = slog.LevelWarn
	case event != nil:
		model.status = ""
		model.followTail = true
		model.session.Post(event)
	}
	return model, nil
}

// layout sizes the thread and input to the window.
func (model *Model) layout() {
	threadWidth := max(model.width-peerPaneWidth, 10)
	// Header, input and status lines.
	threadHeight := max(model.height-3, 1)
	model.thread.Width = threadWidth
	model.thread.Height = threadHeight
	model.input.Width = max(model.width-len(model.input.Prompt)-1, 1)
	model.refreshThread()
}

func (model *Model) refreshThread() {
	model.thread.SetContent(renderThread(model.snapshot, model.theme, model.thread.Width))
	if model.followTail {
		model.thread.GotoBottom()
	}
}
