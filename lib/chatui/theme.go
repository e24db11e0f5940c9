// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sunset-chat/sunset/media"
)

// Theme is the color palette, in ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	LocalName  lipgloss.Color
	RemoteName lipgloss.Color
	System     lipgloss.Color
	Error      lipgloss.Color
	Header     lipgloss.Color
	Border     lipgloss.Color

	AudioConnected  lipgloss.Color
	AudioConnecting lipgloss.Color
	AudioBroken     lipgloss.Color
}

// DefaultTheme is a dark-terminal palette.
var DefaultTheme = Theme{
	NormalText:      lipgloss.Color("252"),
	FaintText:       lipgloss.Color("243"),
	LocalName:       lipgloss.Color("111"),
	RemoteName:      lipgloss.Color("179"),
	System:          lipgloss.Color("245"),
	Error:           lipgloss.Color("203"),
	Header:          lipgloss.Color("255"),
	Border:          lipgloss.Color("238"),
	AudioConnected:  lipgloss.Color("78"),
	AudioConnecting: lipgloss.Color("221"),
	AudioBroken:     lipgloss.Color("203"),
}

// AudioColor returns the color for a media connection state.
func (theme Theme) AudioColor(state media.ConnectionState) lipgloss.Color {
	switch {
	case state == media.StateConnected:
		return theme.AudioConnected
	case state.Active():
		return theme.AudioConnecting
	case state == "":
		return theme.FaintText
	}
	return theme.AudioBroken
}
