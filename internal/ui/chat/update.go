// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/engine"
	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/ui/components"
)

// externalViews names the CLI command that shows a destination the TUI has
// no tab for.
var externalViews = map[findings.Tab]string{
	findings.TabCompanyProfile:     "consult company profile",
	findings.TabMaturity:           "consult company maturity",
	findings.TabSixThreeFive:       "consult ideas status",
	findings.TabPrioritization:     "consult ideas results",
	findings.TabSWOT:               "consult export swot",
	findings.TabTransitionBriefing: "consult export briefing",
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case listenMsg:
		next, cmd := m.Update(msg.msg)
		return next, tea.Batch(cmd, m.notifier.Listen())

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		if err := m.buildRenderers(); err != nil {
			m.logger.Warn("failed to rebuild renderers", zap.Error(err))
		}
		m.refresh()
		return m, nil

	case StateChangedMsg:
		m.refresh()
		return m, nil

	case KeyPromptMsg:
		m.prompt.SetWidth(m.width)
		return m, m.prompt.Open(msg.Action)

	case components.KeyPromptClosedMsg:
		if !msg.Confirmed {
			m.toasts.AddStatus("Cancelled: " + msg.Action.Label())
		}
		m.refresh()
		return m, nil

	case NavigateMsg:
		m.navigate(msg)
		return m, nil

	case LoadedMsg:
		for _, sv := range m.surfaces {
			if sv.orch.Surface() == msg.Surface {
				sv.loaded = true
			}
		}
		if msg.Err != nil {
			m.toasts.AddError(fmt.Sprintf("Could not load %s: %v", msg.Surface.Title(), msg.Err))
		}
		m.refresh()
		return m, nil

	case ActionDoneMsg:
		if msg.Err != nil {
			m.toasts.AddError(msg.Err.Error())
		} else if msg.Label != "" {
			m.toasts.AddSuccess(msg.Label)
		}
		m.refresh()
		return m, nil

	case PersonasMsg:
		if msg.Err != nil {
			m.toasts.AddError("Personas unavailable: " + msg.Err.Error())
			return m, nil
		}
		m.personas = msg.Personas
		m.lastPersona = msg.Last
		m.generate()
		return m, nil

	case PersonaDoneMsg:
		if msg.Err == nil && strings.TrimSpace(msg.Text) != "" {
			m.input.SetValue(msg.Text)
			m.input.CursorEnd()
			m.fromPersona = true
			m.toasts.AddSuccess("Suggested answer ready; enter sends it")
		}
		m.refresh()
		return m, nil

	case components.ToastTickMsg:
		m.toasts.Tick(msg.Time)
		return m, components.ToastTickCmd()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	if cmd != nil {
		m.refreshIfBusy()
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt.IsOpen() {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		m.refresh()
		if key.Matches(msg, m.keys.Help, m.keys.Abort) {
			return m, nil
		}
	}

	resetArmed := m.confirmReset
	m.confirmReset = false
	o := m.current().orch

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Abort):
		if m.showFindings {
			m.showFindings = false
			m.refresh()
			return m, nil
		}
		o.Abort()
		return m, nil

	case key.Matches(msg, m.keys.StartOver):
		if !resetArmed {
			m.confirmReset = true
			m.toasts.AddWarning("Press C-x again to delete this conversation")
			return m, nil
		}
		m.input.Reset()
		m.fromPersona = false
		return m, startOverCmd(o)

	case key.Matches(msg, m.keys.Findings):
		m.showFindings = !m.showFindings
		m.refresh()
		if m.showFindings {
			m.viewport.GotoTop()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.switchTo((m.active + 1) % len(m.surfaces))
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.switchTo((m.active + len(m.surfaces) - 1) % len(m.surfaces))
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		m.submit()
		return m, nil

	case key.Matches(msg, m.keys.RequestResponse):
		m.report(o.RequestResponse())
		return m, nil

	case key.Matches(msg, m.keys.Summarize):
		if err := o.Summarize(); err != nil {
			m.report(err)
		} else {
			m.toasts.AddStatus("Summarizing findings...")
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		m.copyLastAnswer()
		return m, nil

	case key.Matches(msg, m.keys.Collaborative):
		return m, collaborativeCmd(o)

	case key.Matches(msg, m.keys.Generate):
		if m.personas == nil {
			return m, personasCmd(o)
		}
		m.generate()
		return m, nil

	case key.Matches(msg, m.keys.ReenterKey):
		o.ReenterKey()
		return m, nil

	case key.Matches(msg, m.keys.SkipTopic):
		m.skipTopic()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.showFindings && msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; r >= '1' && r <= '9' {
			if !m.current().rendered.Navigate(int(r - '0')) {
				m.toasts.AddStatus(fmt.Sprintf("No link [%c]", r))
			}
			return m, nil
		}
	}

	switch msg.Type {
	case tea.KeyUp, tea.KeyDown, tea.KeyCtrlU, tea.KeyCtrlD:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or starts the conversation on empty input.
func (m *Model) submit() {
	o := m.current().orch
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		st := o.Snapshot()
		if st.Chat.Started || st.Chat.Sending {
			return
		}
		m.report(o.Start())
		return
	}

	var err error
	if m.fromPersona {
		err = o.UseGeneratedResponse(text)
	} else {
		err = o.Send(text)
	}
	if err != nil {
		m.report(err)
		return
	}
	m.input.Reset()
	m.fromPersona = false
	m.viewport.GotoBottom()
}

// report shows an action error as a toast.
func (m *Model) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrBusy):
		m.toasts.AddStatus("Wait for the current answer to finish")
	case errors.Is(err, consult.ErrTooFewMessages):
		m.toasts.AddStatus(fmt.Sprintf("Summarize needs at least %d messages", consult.SummarizeMinMessages))
	case errors.Is(err, consult.ErrNotSupported):
		m.toasts.AddStatus("Not available on " + m.current().orch.Surface().Title())
	default:
		m.toasts.AddError(err.Error())
	}
}

func (m *Model) copyLastAnswer() {
	last, ok := m.current().orch.Engine().LastAssistant()
	if !ok || last.IsEmpty() {
		m.toasts.AddStatus("Nothing to copy yet")
		return
	}
	if err := m.opts.Clipboard(last.Content); err != nil {
		m.toasts.AddError("Copy failed: " + err.Error())
		return
	}
	m.toasts.AddSuccess("Answer copied")
}

func (m *Model) skipTopic() {
	o := m.current().orch
	for _, t := range o.Topics() {
		if t.Covered || t.Skipped {
			continue
		}
		if err := o.SkipTopic(t.Key); err != nil {
			m.report(err)
			return
		}
		m.toasts.AddStatus("Skipped " + t.Title())
		return
	}
	m.toasts.AddStatus("No open topic to skip")
}

// generate starts a persona answer with the preferred persona.
func (m *Model) generate() {
	if len(m.personas) == 0 {
		m.toasts.AddStatus("No personas available")
		return
	}
	chosen := pickPersona(m.personas, m.opts.Persona, m.lastPersona)
	o := m.current().orch
	surface := o.Surface()
	gen, notifier := m.gen, m.notifier
	gen.begin(chosen.Name)
	err := o.GenerateResponse(chosen.ID,
		func(delta string) {
			gen.write(delta)
			notifier.Changed()
		},
		func(text string, err error) {
			gen.end()
			notifier.Post(PersonaDoneMsg{Surface: surface, Text: text, Err: err})
		})
	if err != nil {
		gen.end()
		m.report(err)
		return
	}
	m.lastPersona = chosen.ID
}

// pickPersona returns the first persona matching a preferred id, or the
// first persona.
func pickPersona(personas []api.Persona, preferred ...string) api.Persona {
	for _, want := range preferred {
		if want == "" {
			continue
		}
		for _, p := range personas {
			if p.ID == want {
				return p
			}
		}
	}
	return personas[0]
}

// =============================================================================
// NAVIGATION
// =============================================================================

func (m *Model) switchTo(idx int) {
	if idx == m.active {
		return
	}
	m.active = idx
	m.fromPersona = false
	m.refresh()
	if !m.showFindings {
		m.viewport.GotoBottom()
	}
}

// navigate follows a findings link: surfaces switch tab and scroll to the
// section; other destinations point at the CLI.
func (m *Model) navigate(msg NavigateMsg) {
	dest := findings.Destination{Tab: msg.Tab, SubTarget: msg.SubTarget}
	if s, ok := dest.Surface(); ok {
		for i, sv := range m.surfaces {
			if sv.orch.Surface() != s {
				continue
			}
			m.active = i
			anchor, hasAnchor := findings.SectionAnchor(dest)
			m.showFindings = hasAnchor
			m.refresh()
			if !hasAnchor {
				m.viewport.GotoBottom()
				return
			}
			if line, ok := m.current().rendered.Line(anchor); ok {
				m.viewport.SetYOffset(line)
			} else {
				m.toasts.AddStatus("That section has no findings yet")
			}
			return
		}
	}
	if hint, ok := externalViews[msg.Tab]; ok {
		m.toasts.AddStatus(fmt.Sprintf("Open it with `%s`", hint))
		return
	}
	m.toasts.AddStatus("Not available in this session")
}

// =============================================================================
// COMMANDS
// =============================================================================

func startOverCmd(o *consult.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultLoadTimeout)
		defer cancel()
		if err := o.StartOver(ctx); err != nil {
			// The orchestrator reports the failure through its state.
			return StateChangedMsg{}
		}
		return ActionDoneMsg{Surface: o.Surface(), Label: "Conversation cleared"}
	}
}

func collaborativeCmd(o *consult.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultLoadTimeout)
		defer cancel()
		enable := !o.Collaborative()
		if err := o.SetCollaborative(ctx, enable); err != nil {
			switch {
			case errors.Is(err, consult.ErrNotOwner):
				err = errors.New("only the session owner can change collaborative mode")
			case errors.Is(err, consult.ErrNotSupported):
				err = fmt.Errorf("collaborative mode is not available on %s", o.Surface().Title())
			}
			return ActionDoneMsg{Surface: o.Surface(), Err: err}
		}
		label := "Collaborative mode off"
		if enable {
			label = "Collaborative mode on"
		}
		return ActionDoneMsg{Surface: o.Surface(), Label: label}
	}
}

func personasCmd(o *consult.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultLoadTimeout)
		defer cancel()
		personas, err := o.Personas(ctx)
		if errors.Is(err, consult.ErrNotSupported) {
			err = errors.New("persona answers need the backend test mode")
		}
		if personas == nil && err == nil {
			personas = []api.Persona{}
		}
		return PersonasMsg{Personas: personas, Last: o.LastPersona(ctx), Err: err}
	}
}
