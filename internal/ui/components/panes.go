// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
	"github.com/jeranaias/consult-tui/internal/util"
)

// =============================================================================
// TABS
// =============================================================================

// RenderTabs renders the surface tab strip with active highlighted.
func RenderTabs(theme *styles.Theme, title string, surfaces []model.Surface, active model.Surface, width int) string {
	parts := []string{theme.HeaderTitle.Render(title)}
	for i, s := range surfaces {
		label := fmt.Sprintf("%d %s", i+1, s.Title())
		if s == active {
			parts = append(parts, theme.TabActive.Render(label))
		} else {
			parts = append(parts, theme.Tab.Render(label))
		}
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if width > 0 {
		return theme.Header.Width(width).Render(line)
	}
	return theme.Header.Render(line)
}

// =============================================================================
// TOPIC COVERAGE
// =============================================================================

// RenderTopics renders the consultation topic checklist. Each line is
// truncated to width columns.
func RenderTopics(theme *styles.Theme, topics []consult.Topic, width int) string {
	if len(topics) == 0 {
		return ""
	}
	covered := 0
	lines := make([]string, 0, len(topics)+1)
	for _, t := range topics {
		mark, style := "[ ]", theme.TopicOpen
		switch {
		case t.Skipped:
			mark = "[-]"
			covered++
		case t.Covered:
			mark, style = "[x]", theme.TopicCovered
			covered++
		}
		lines = append(lines, style.Render(util.TruncateWidth(mark+" "+t.Title(), width)))
	}
	header := theme.PaneTitle.Render(fmt.Sprintf("Topics %d/%d", covered, len(topics)))
	return header + "\n" + strings.Join(lines, "\n")
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// RenderParticipants renders the collaborative participant list. self is the
// local participant id and is highlighted.
func RenderParticipants(theme *styles.Theme, participants []model.Participant, self string, width int) string {
	if len(participants) == 0 {
		return ""
	}
	lines := make([]string, 0, len(participants)+1)
	lines = append(lines, theme.PaneTitle.Render(fmt.Sprintf("Participants (%d)", len(participants))))
	for _, p := range participants {
		name := p.Name
		if name == "" {
			name = "Anonymous"
		}
		var tags []string
		if p.IsOwner {
			tags = append(tags, "owner")
		}
		if p.IsAI {
			tags = append(tags, "AI")
		}
		if len(tags) > 0 {
			name += " (" + strings.Join(tags, ", ") + ")"
		}
		style := theme.Participant
		if self != "" && p.UUID == self {
			name += " *"
			style = theme.ParticipantYou
		}
		lines = append(lines, style.Render(util.TruncateWidth(name, width)))
	}
	return strings.Join(lines, "\n")
}
