// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable pieces of the consultation TUI.

# Components

KeyPrompt (keyprompt.go) - Masked API key entry bound to an apikey.Gate.
ToastManager (toast.go) - Non-blocking notifications that auto-dismiss.
RenderTabs, RenderTopics, RenderParticipants (panes.go) - Header and side panes.

All renderers take the *styles.Theme explicitly and never read global state.
*/
package components
