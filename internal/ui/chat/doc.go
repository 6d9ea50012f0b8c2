// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the consultation view of the TUI.

The Model is a Bubble Tea model over one consult.Orchestrator per chat
surface, shown as tabs. Orchestrators change state on their own goroutines;
they report through a Notifier, which coalesces change signals into
StateChangedMsg at a capped frame rate and forwards posted messages (key
prompts, link navigation, persona results) into the update loop. The model
never reads orchestrator state outside Update and View.

# Usage

	notifier := chat.NewNotifier(30)
	gate := apikey.NewGate(apikey.Default(), notifier.PromptFunc())
	orch, _ := consult.New(consult.Config{ ..., Gate: gate, OnChange: notifier.Changed })
	m, _ := chat.New(chat.Options{
		Title:         "consult",
		Orchestrators: []*consult.Orchestrator{orch},
		Gate:          gate,
		Notifier:      notifier,
		Theme:         styles.NewTheme(),
	})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()

# Keys

Enter sends the input, or starts the conversation when the input is empty.
Ctrl+F toggles the findings pane, where digits follow numbered links.
Press ? for the full list.
*/
package chat
