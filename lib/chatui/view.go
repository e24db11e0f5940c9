// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sunset-chat/sunset/room"
)

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "starting..."
	}
	header := renderHeader(model.snapshot, model.theme, model.width)
	peers := renderPeers(model.snapshot, model.theme, peerPaneWidth, model.thread.Height)
	body := lipgloss.JoinHorizontal(lipgloss.Top, model.thread.View(), peers)
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		model.input.View(),
		model.renderStatus(),
	)
}

func renderHeader(snapshot room.Snapshot, theme Theme, width int) string {
	roomName := snapshot.Room
	if roomName == "" {
		roomName = "(no room)"
	}
	audio := "audio off"
	switch {
	case snapshot.AudioJoined && snapshot.Sending:
		audio = "audio on"
	case snapshot.AudioJoined && snapshot.Muted:
		audio = "audio on, muted"
	case snapshot.AudioJoined:
		audio = "audio on, listening"
	}
	text := fmt.Sprintf(" %s  ·  %s  ·  %s", roomName, snapshot.DisplayName(snapshot.SelfID), audio)
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Header).
		Width(width).
		MaxWidth(width).
		Render(text)
}

// renderThread formats the chat thread, one entry per line, wrapped to
// width.
func renderThread(snapshot room.Snapshot, theme Theme, width int) string {
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	system := lipgloss.NewStyle().Foreground(theme.System).Italic(true)
	local := lipgloss.NewStyle().Foreground(theme.LocalName).Bold(true)
	remote := lipgloss.NewStyle().Foreground(theme.RemoteName).Bold(true)
	text := lipgloss.NewStyle().Foreground(theme.NormalText)

	lines := make([]string, 0, len(snapshot.Chat))
	for _, entry := range snapshot.Chat {
		stamp := faint.Render(entry.Time.Local().Format("15:04"))
		var line string
		switch entry.Kind {
		case room.EntrySystem:
			line = stamp + " " + system.Render("* "+entry.Text)
		case room.EntryLocal:
			line = stamp + " " + local.Render(snapshot.DisplayName(entry.From)) + " " + text.Render(entry.Text)
		default:
			line = stamp + " " + remote.Render(snapshot.DisplayName(entry.From)) + " " + text.Render(entry.Text)
		}
		if width > 0 {
			line = ansi.Wrap(line, width, " ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderPeers draws the bordered peer list.
func renderPeers(snapshot room.Snapshot, theme Theme, width, height int) string {
	inner := width - 4
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(theme.Header).Render("Peers")}
	if len(snapshot.Peers) == 0 {
		lines = append(lines, faint.Render("nobody here yet"))
	}
	for _, peer := range snapshot.Peers {
		name := ansi.Truncate(snapshot.DisplayName(peer.ID), inner-4, "…")
		marker := lipgloss.NewStyle().Foreground(theme.AudioColor(peer.AudioState)).Render("●")
		if !peer.HasPresence || !peer.Presence.Joined {
			marker = faint.Render("○")
		}
		line := marker + " " + name
		switch {
		case !peer.Connected:
			line += faint.Render(" (away)")
		case peer.Presence.Muted:
			line += faint.Render(" (muted)")
		case peer.RelayOnly:
			line += faint.Render(" (relay)")
		}
		lines = append(lines, ansi.Truncate(line, inner, "…"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		Width(width - 2).
		Height(max(height-2, 1)).
		Render(strings.Join(lines, "\n"))
}

func (model Model) renderStatus() string {
	if model.status != "" {
		color := model.theme.FaintText
		if model.statusLevel >= slog.LevelWarn {
			color = model.theme.Error
		}
		return lipgloss.NewStyle().Foreground(color).Render(ansi.Truncate(model.status, model.width, "…"))
	}
	if model.snapshot.MediaError != "" {
		return lipgloss.NewStyle().Foreground(model.theme.Error).Render("microphone: " + model.snapshot.MediaError)
	}
	help := "PgUp/PgDn scroll · " + strings.Join(Commands, " ")
	return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(ansi.Truncate(help, model.width, "…"))
}
