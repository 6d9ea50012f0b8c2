// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	UserBody       lipgloss.Style
	AssistantBody  lipgloss.Style
	Thinking       lipgloss.Style

	// ==========================================================================
	// INPUT AREA
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// SIDE PANES
	// ==========================================================================

	Pane           lipgloss.Style
	PaneTitle      lipgloss.Style
	TopicCovered   lipgloss.Style
	TopicOpen      lipgloss.Style
	Participant    lipgloss.Style
	ParticipantYou lipgloss.Style
	LinkMarker     lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Collab       lipgloss.Style

	// ==========================================================================
	// OVERLAYS
	// ==========================================================================

	PromptBox   lipgloss.Style
	PromptTitle lipgloss.Style
	PromptHint  lipgloss.Style

	ToastError   lipgloss.Style
	ToastWarning lipgloss.Style
	ToastStatus  lipgloss.Style
	ToastSuccess lipgloss.Style

	ErrorStyle lipgloss.Style
	MutedStyle lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the terminal.
// Detecting once up front avoids terminal queries while the program owns
// the screen.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Tab = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)

	t.TabActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Bold(true).
		Padding(0, 1)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Foreground(UserBorder).
		Bold(true)

	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(AssistantBorder).
		Bold(true)

	t.SystemLabel = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.UserBody = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(UserBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.AssistantBody = lipgloss.NewStyle().
		Foreground(AssistantFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(AssistantBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Side panes
	t.Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.PaneTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.TopicCovered = lipgloss.NewStyle().
		Foreground(Emerald)

	t.TopicOpen = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Participant = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ParticipantYou = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.LinkMarker = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Collab = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	// Overlays
	t.PromptBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.PromptTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.PromptHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	toast := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)
	t.ToastError = toast.BorderForeground(Rose).Foreground(Rose)
	t.ToastWarning = toast.BorderForeground(Amber).Foreground(Amber)
	t.ToastStatus = toast.BorderForeground(Cyan).Foreground(TextPrimary)
	t.ToastSuccess = toast.BorderForeground(Emerald).Foreground(Emerald)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.MutedStyle = lipgloss.NewStyle().
		Foreground(TextMuted)
}
