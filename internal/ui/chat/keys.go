// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings of the consultation view.
type KeyMap struct {
	Submit          key.Binding
	Abort           key.Binding
	RequestResponse key.Binding
	Summarize       key.Binding
	Findings        key.Binding
	NextTab         key.Binding
	PrevTab         key.Binding
	Copy            key.Binding
	StartOver       key.Binding
	Collaborative   key.Binding
	Generate        key.Binding
	ReenterKey      key.Binding
	SkipTopic       key.Binding
	PageUp          key.Binding
	PageDown        key.Binding
	Help            key.Binding
	Quit            key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send / start"),
		),
		Abort: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop / close"),
		),
		RequestResponse: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "ask AI"),
		),
		Summarize: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "summarize"),
		),
		Findings: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "findings"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next surface"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous surface"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy answer"),
		),
		StartOver: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x C-x", "start over"),
		),
		Collaborative: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "collaborative"),
		),
		Generate: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "persona answer"),
		),
		ReenterKey: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "re-enter key"),
		),
		SkipTopic: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "skip topic"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Abort, k.Findings, k.Summarize, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help view, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Conversation
		{k.Submit, k.Abort, k.RequestResponse, k.StartOver},
		// Findings
		{k.Findings, k.Summarize, k.SkipTopic, k.Copy},
		// Surfaces and collaboration
		{k.NextTab, k.PrevTab, k.Collaborative, k.Generate},
		// Misc
		{k.ReenterKey, k.PageUp, k.PageDown, k.Help, k.Quit},
	}
}
