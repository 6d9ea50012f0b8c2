// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the consult-tui
// terminal interface.
//
// Colors are lipgloss.AdaptiveColor values that pick the light or dark
// variant from the terminal background. Theme bundles the styles used by the
// chat, findings and prompt views; build one per program with NewTheme.
//
// Every status color is paired with an ASCII indicator ([OK], [X], [!], [i])
// so that state never depends on color alone.
package styles
