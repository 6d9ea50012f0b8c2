// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StateChangedMsg reports that orchestrator state changed and the view
// should be rebuilt.
type StateChangedMsg struct{}

// KeyPromptMsg asks the user for an API key before action can run.
type KeyPromptMsg struct {
	Action apikey.Action
}

// NavigateMsg follows a findings link.
type NavigateMsg struct {
	Tab       findings.Tab
	SubTarget string
}

// LoadedMsg reports the initial load of one surface.
type LoadedMsg struct {
	Surface model.Surface
	Err     error
}

// ActionDoneMsg reports a background action started from the UI.
type ActionDoneMsg struct {
	Surface model.Surface
	Label   string
	Err     error
}

// PersonasMsg carries the persona list of the test mode.
type PersonasMsg struct {
	Personas []api.Persona
	Last     string
	Err      error
}

// PersonaDoneMsg reports the end of a persona generation.
type PersonaDoneMsg struct {
	Surface model.Surface
	Text    string
	Err     error
}
