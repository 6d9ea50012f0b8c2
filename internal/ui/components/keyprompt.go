// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
)

// =============================================================================
// KEY PROMPT
// =============================================================================

// KeyPrompt is the modal that asks for the AI-provider key when a gated
// action has been parked. Enter confirms through the gate, which runs the
// parked action; Esc dismisses it.
type KeyPrompt struct {
	input  textinput.Model
	gate   *apikey.Gate
	action apikey.Action
	err    error
	open   bool
	width  int
}

// KeyPromptClosedMsg reports how the prompt was closed.
type KeyPromptClosedMsg struct {
	Action    apikey.Action
	Confirmed bool
}

// NewKeyPrompt creates a closed prompt bound to gate.
func NewKeyPrompt(gate *apikey.Gate) KeyPrompt {
	ti := textinput.New()
	ti.Placeholder = "sk-..."
	ti.Prompt = "> "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.CharLimit = 256
	ti.Width = 40
	return KeyPrompt{input: ti, gate: gate}
}

// Open shows the prompt for action.
func (p *KeyPrompt) Open(action apikey.Action) tea.Cmd {
	p.action = action
	p.err = nil
	p.open = true
	p.input.Reset()
	return p.input.Focus()
}

// IsOpen reports whether the prompt is visible.
func (p KeyPrompt) IsOpen() bool {
	return p.open
}

// Action returns the action the prompt was opened for.
func (p KeyPrompt) Action() apikey.Action {
	return p.action
}

// Err returns the last validation error.
func (p KeyPrompt) Err() error {
	return p.err
}

// SetWidth sets the available width.
func (p *KeyPrompt) SetWidth(width int) {
	p.width = width
	w := width - 16
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	p.input.Width = w
}

func (p *KeyPrompt) close() {
	p.open = false
	p.input.Blur()
	p.input.Reset()
}

// Update handles input while the prompt is open.
func (p KeyPrompt) Update(msg tea.Msg) (KeyPrompt, tea.Cmd) {
	if !p.open {
		return p, nil
	}
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.Type {
		case tea.KeyEnter:
			action := p.action
			if err := p.gate.Confirm(strings.TrimSpace(p.input.Value())); err != nil {
				p.err = err
				return p, nil
			}
			p.close()
			return p, closed(action, true)
		case tea.KeyEsc:
			action := p.action
			p.gate.Dismiss()
			p.close()
			return p, closed(action, false)
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func closed(action apikey.Action, confirmed bool) tea.Cmd {
	return func() tea.Msg {
		return KeyPromptClosedMsg{Action: action, Confirmed: confirmed}
	}
}

// View renders the prompt box.
func (p KeyPrompt) View(theme *styles.Theme) string {
	if !p.open {
		return ""
	}
	var b strings.Builder
	b.WriteString(theme.PromptTitle.Render("API key required"))
	b.WriteString("\n\n")
	b.WriteString("Enter your API key to " + p.action.Label() + ".\n")
	b.WriteString(theme.MutedStyle.Render("The key is kept in memory for this session only."))
	b.WriteString("\n\n")
	b.WriteString(p.input.View())
	if p.err != nil {
		b.WriteString("\n")
		b.WriteString(theme.ErrorStyle.Render(styles.StatusIndicators.Error + " " + p.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(theme.PromptHint.Render("enter confirm  esc cancel"))
	return theme.PromptBox.Render(b.String())
}
