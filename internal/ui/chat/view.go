// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/ui/components"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
)

// =============================================================================
// REFRESH
// =============================================================================

// refresh rebuilds the viewport content from the active surface and turns
// new surface errors into toasts.
func (m *Model) refresh() {
	m.collectErrors()

	sv := m.current()
	st := sv.orch.Snapshot()
	if m.showFindings {
		m.viewport.SetContent(m.renderFindings(sv, st.Findings))
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages(st))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// refreshIfBusy refreshes while something on screen is animating.
func (m *Model) refreshIfBusy() {
	if m.showFindings {
		return
	}
	st := m.current().orch.Snapshot()
	_, _, generating := m.gen.snapshot()
	if st.Chat.Thinking || st.Chat.Sending || generating {
		m.refresh()
	}
}

// collectErrors toasts each surface error once.
func (m *Model) collectErrors() {
	for i, sv := range m.surfaces {
		st := sv.orch.Snapshot()
		text := components.ErrorText(st.Err)
		if text == sv.lastErr {
			continue
		}
		sv.lastErr = text
		if text == "" {
			continue
		}
		if i != m.active {
			text = sv.orch.Surface().Title() + ": " + text
		}
		m.toasts.AddError(text)
	}
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

func (m *Model) renderMessages(st consult.State) string {
	width := m.contentWidth() - 2
	if len(st.Chat.Messages) == 0 {
		return m.renderEmptyState(st)
	}

	var b strings.Builder
	for i, msg := range st.Chat.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}

	if persona, text, active := m.gen.snapshot(); active {
		b.WriteString("\n\n")
		b.WriteString(m.theme.SystemLabel.Render("Suggested answer (" + persona + ")"))
		b.WriteString("\n")
		if text == "" {
			text = m.spinner.View() + " generating..."
		}
		b.WriteString(m.theme.Thinking.Width(width).Render(text))
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	label := msg.Author()
	if !msg.CreatedAt.IsZero() {
		label += " " + m.theme.MutedStyle.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	switch msg.Role {
	case model.RoleUser:
		return m.theme.UserLabel.Render(label) + "\n" +
			m.theme.UserBody.Width(width).Render(msg.Content)
	case model.RoleSystem:
		return m.theme.SystemLabel.Render(label) + "\n" +
			m.theme.MutedStyle.Width(width).Render(msg.Content)
	}

	head := m.theme.AssistantLabel.Render(label)
	if msg.IsPlaceholder() {
		return head + "\n" + m.theme.Thinking.Render(m.spinner.View()+" Thinking...")
	}
	return head + "\n" + m.theme.AssistantBody.Render(m.markdown(msg))
}

// markdown renders assistant content, cached per content length. Content
// only grows while streaming, so key and length identify a version.
func (m *Model) markdown(msg model.Message) string {
	cacheKey := msg.Key + ":" + strconv.Itoa(len(msg.Content))
	if out, ok := m.mdCache[cacheKey]; ok {
		return out
	}
	out, err := m.md.Render(msg.Content)
	if err != nil {
		m.logger.Debug("markdown render failed", zap.Error(err))
		out = msg.Content
	}
	out = strings.Trim(out, "\n")
	if len(m.mdCache) >= mdCacheLimit {
		m.mdCache = map[string]string{}
	}
	m.mdCache[cacheKey] = out
	return out
}

func (m *Model) renderEmptyState(st consult.State) string {
	sv := m.current()
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render(sv.orch.Surface().Title()))
	b.WriteString("\n\n")
	switch {
	case !sv.loaded:
		b.WriteString(m.spinner.View() + " Loading conversation...")
	case st.Chat.Sending:
		b.WriteString(m.spinner.View() + " Starting...")
	default:
		b.WriteString("Press enter to start the conversation.")
		b.WriteString("\n")
		b.WriteString(m.theme.MutedStyle.Render("Or type your first message. F1 shows all keys."))
	}
	return b.String()
}

// =============================================================================
// FINDINGS RENDERING
// =============================================================================

func (m *Model) renderFindings(sv *surfaceView, fs model.FindingSet) string {
	if fs.IsEmpty() {
		sv.rendered = findings.Rendered{}
		sv.findingsSrc = ""
		return m.theme.PaneTitle.Render("Findings") + "\n\n" +
			m.theme.MutedStyle.Render("No findings yet. They appear as the conversation progresses; C-e summarizes now.")
	}
	src := fs.Markdown()
	if src != sv.findingsSrc {
		rendered, err := m.findings.RenderSet(fs)
		if err != nil {
			m.logger.Warn("findings render failed", zap.Error(err))
			return src
		}
		sv.rendered = rendered
		sv.findingsSrc = src
	}
	return sv.rendered.Text
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.prompt.IsOpen() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.prompt.View(m.theme))
	}

	sv := m.current()
	st := sv.orch.Snapshot()

	surfaces := make([]model.Surface, len(m.surfaces))
	for i, s := range m.surfaces {
		surfaces[i] = s.orch.Surface()
	}
	header := components.RenderTabs(m.theme, m.opts.Title, surfaces, sv.orch.Surface(), m.width)

	body := m.viewport.View()
	if m.showHelp {
		m.help.ShowAll = true
		body = lipgloss.NewStyle().
			Width(m.contentWidth()).
			Height(m.viewport.Height).
			Render(m.theme.PaneTitle.Render("Keys") + "\n\n" + m.help.View(m.keys))
	}
	if side := m.renderSidePane(sv, st); side != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, side)
	}

	input := m.theme.InputContainer.Width(m.width).Render(m.input.View())
	view := lipgloss.JoinVertical(lipgloss.Left, header, body, input, m.renderStatusBar(st))

	if toasts := m.toasts.Toasts(); len(toasts) > 0 {
		view = overlayBottomRight(view, components.RenderToastStack(m.theme, toasts, m.width, 0), m.width, statusHeight+inputHeight)
	}
	return view
}

func (m Model) renderSidePane(sv *surfaceView, st consult.State) string {
	w := m.sideWidth()
	if w == 0 {
		return ""
	}
	inner := w - 4
	var parts []string
	if topics := components.RenderTopics(m.theme, st.Topics, inner); topics != "" {
		parts = append(parts, topics)
	}
	if st.Collaborative {
		if ps := components.RenderParticipants(m.theme, st.Participants, sv.orch.ParticipantID(), inner); ps != "" {
			parts = append(parts, ps)
		}
	}
	if n := len(st.Findings.Present()); n > 0 {
		parts = append(parts, m.theme.PaneTitle.Render("Findings")+"\n"+
			m.theme.MutedStyle.Render(strconv.Itoa(n)+" sections (C-f)"))
	}
	if len(parts) == 0 {
		return ""
	}
	return m.theme.Pane.
		Width(w - 2).
		Height(m.viewport.Height - 2).
		Render(strings.Join(parts, "\n\n"))
}

func (m Model) renderStatusBar(st consult.State) string {
	var left []string
	switch {
	case st.Chat.Thinking:
		left = append(left, m.spinner.View()+" thinking")
	case st.Chat.Sending:
		left = append(left, m.spinner.View()+" streaming")
	}
	if st.Summarizing {
		left = append(left, "summarizing")
	} else if st.Extracting {
		left = append(left, "updating findings")
	}
	if st.Collaborative {
		badge := "COLLAB"
		if st.IsOwner {
			badge += " owner"
		}
		left = append(left, m.theme.Collab.Render(badge))
	}
	if st.AuthRejected {
		left = append(left, m.theme.ErrorStyle.Render(styles.StatusIndicators.Error+" key rejected"))
	}
	if m.showFindings {
		left = append(left, "1-9 follow link")
	}

	m.help.ShowAll = false
	right := m.help.View(m.keys)
	line := strings.Join(left, "  ")
	gap := m.width - lipgloss.Width(line) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(line)
	}
	return m.theme.StatusBar.Width(m.width).Render(line + strings.Repeat(" ", gap) + right)
}

// overlayBottomRight draws overlay over the bottom-right corner of base,
// keeping the last reserved lines of base visible.
func overlayBottomRight(base, overlay string, width, reserved int) string {
	baseLines := strings.Split(base, "\n")
	overLines := strings.Split(overlay, "\n")

	start := len(baseLines) - reserved - len(overLines)
	if start < 0 {
		start = 0
	}
	for i, ol := range overLines {
		row := start + i
		if row >= len(baseLines) {
			break
		}
		ow := lipgloss.Width(ol)
		cut := width - ow - 1
		if cut < 0 {
			cut = 0
		}
		left := lipgloss.NewStyle().MaxWidth(cut).Render(baseLines[row])
		if pad := cut - lipgloss.Width(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		baseLines[row] = left + " " + ol
	}
	return strings.Join(baseLines, "\n")
}
