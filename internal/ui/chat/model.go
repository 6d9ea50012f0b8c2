// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/ui/components"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
)

// Layout constants.
const (
	headerHeight    = 1
	inputHeight     = 2
	statusHeight    = 1
	sidePaneWidth   = 30
	sidePaneMinSize = 100
	mdCacheLimit    = 512
)

// DefaultLoadTimeout bounds the initial history and findings load.
const DefaultLoadTimeout = 30 * time.Second

// Options configures the chat model.
type Options struct {
	// Title is shown left of the surface tabs.
	Title string

	// Orchestrators holds one orchestrator per surface in tab order.
	Orchestrators []*consult.Orchestrator

	Gate     *apikey.Gate
	Notifier *Notifier
	Theme    *styles.Theme
	Logger   *zap.Logger

	// WordWrap wraps messages at the view width instead of a fixed 80
	// columns.
	WordWrap bool

	// Persona preselects the persona used for generated answers.
	Persona string

	// Clipboard overrides the system clipboard writer.
	Clipboard func(string) error

	LoadTimeout time.Duration
}

// surfaceView is the per-tab view state.
type surfaceView struct {
	orch     *consult.Orchestrator
	loaded   bool
	lastErr  string
	rendered findings.Rendered
	// findingsSrc is the markdown the rendered findings were built from.
	findingsSrc string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the consultation view.
type Model struct {
	opts     Options
	theme    *styles.Theme
	keys     KeyMap
	help     help.Model
	notifier *Notifier
	logger   *zap.Logger

	surfaces []*surfaceView
	active   int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	prompt   components.KeyPrompt
	toasts   *components.ToastManager

	md       *glamour.TermRenderer
	mdCache  map[string]string
	findings *findings.Renderer

	showFindings bool
	showHelp     bool
	confirmReset bool
	fromPersona  bool
	personas     []api.Persona
	lastPersona  string
	gen          *generationBuffer

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(opts Options) (Model, error) {
	if len(opts.Orchestrators) == 0 {
		return Model{}, errors.New("chat: at least one orchestrator is required")
	}
	if opts.Gate == nil || opts.Notifier == nil {
		return Model{}, errors.New("chat: gate and notifier are required")
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Title == "" {
		opts.Title = "consult"
	}

	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.CharLimit = 8000
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = opts.Theme.Thinking

	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		Up:           key.NewBinding(key.WithKeys("up")),
		Down:         key.NewBinding(key.WithKeys("down")),
	}
	vp.MouseWheelEnabled = true

	m := Model{
		opts:     opts,
		theme:    opts.Theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		notifier: opts.Notifier,
		logger:   opts.Logger,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		prompt:   components.NewKeyPrompt(opts.Gate),
		toasts:   components.NewToastManager(),
		mdCache:  map[string]string{},
		gen:      &generationBuffer{},
		width:    80,
		height:   24,
	}
	for _, o := range opts.Orchestrators {
		m.surfaces = append(m.surfaces, &surfaceView{orch: o})
	}
	if err := m.buildRenderers(); err != nil {
		return Model{}, err
	}
	m.resize()
	return m, nil
}

// buildRenderers (re)creates the markdown renderers for the current width.
func (m *Model) buildRenderers() error {
	wrap := 80
	if m.opts.WordWrap {
		wrap = m.contentWidth() - 4
	}
	if wrap < 20 {
		wrap = 20
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	notifier := m.notifier
	fr, err := findings.NewRenderer(func(tab findings.Tab, sub string) {
		notifier.Post(NavigateMsg{Tab: tab, SubTarget: sub})
	}, findings.WithWordWrap(wrap), findings.WithStyle(m.theme.GlamourStyle()))
	if err != nil {
		return err
	}

	m.md = md
	m.findings = fr
	m.mdCache = map[string]string{}
	for _, sv := range m.surfaces {
		sv.findingsSrc = ""
	}
	return nil
}

// Init starts listening for orchestrator signals and loads every surface.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.notifier.Listen(),
		m.spinner.Tick,
		components.ToastTickCmd(),
		textinput.Blink,
	}
	for _, sv := range m.surfaces {
		cmds = append(cmds, m.loadCmd(sv.orch))
	}
	return tea.Batch(cmds...)
}

func (m Model) loadCmd(o *consult.Orchestrator) tea.Cmd {
	timeout := m.opts.LoadTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := o.LoadHistory(ctx)
		o.LoadFindings(ctx)
		return LoadedMsg{Surface: o.Surface(), Err: err}
	}
}

// current returns the active surface.
func (m Model) current() *surfaceView {
	return m.surfaces[m.active]
}

// Active returns the orchestrator of the active tab.
func (m Model) Active() *consult.Orchestrator {
	return m.current().orch
}

// ShowingFindings reports whether the findings pane is open.
func (m Model) ShowingFindings() bool {
	return m.showFindings
}

// Input returns the current input text.
func (m Model) Input() string {
	return m.input.Value()
}

// Toasts returns the visible toasts.
func (m Model) Toasts() []components.Toast {
	return m.toasts.Toasts()
}

// PromptOpen reports whether the key prompt is shown.
func (m Model) PromptOpen() bool {
	return m.prompt.IsOpen()
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) sideWidth() int {
	if m.width < sidePaneMinSize {
		return 0
	}
	return sidePaneWidth
}

func (m Model) contentWidth() int {
	w := m.width - m.sideWidth()
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) resize() {
	h := m.height - headerHeight - inputHeight - statusHeight
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.contentWidth()
	m.viewport.Height = h
	m.input.Width = m.width - 6
	m.help.Width = m.width
	m.prompt.SetWidth(m.width)
}
