// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/ui/components"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend implements consult.Backend. Chat streams are handed to the
// test through streams.
type fakeBackend struct {
	mu       sync.Mutex
	history  []model.Message
	findings model.FindingSet
	saved    []string
	saveID   int64
	streams  chan chan api.Event
	resetN   int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{streams: make(chan chan api.Event, 8), saveID: 10}
}

func (f *fakeBackend) GetMessages(ctx context.Context, session string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeBackend) SaveMessage(ctx context.Context, session, content string) (api.SaveAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, content)
	f.saveID++
	return api.SaveAck{MessageID: f.saveID}, nil
}

func (f *fakeBackend) open() *api.Stream {
	ch := make(chan api.Event, 16)
	f.streams <- ch
	return api.NewStream(ch)
}

func (f *fakeBackend) StartStream(ctx context.Context, session, apiKey string) *api.Stream {
	return f.open()
}

func (f *fakeBackend) RequestAIResponseStream(ctx context.Context, session, apiKey string) *api.Stream {
	return f.open()
}

func (f *fakeBackend) ExtractIncremental(ctx context.Context, session, apiKey string) (api.IncrementalResult, error) {
	return api.IncrementalResult{}, nil
}

func (f *fakeBackend) GetCollaborativeMessages(ctx context.Context, session string, sinceID int64) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeBackend) GetCollaborativeStatus(ctx context.Context, session string) (model.CollaborativeStatus, error) {
	return model.CollaborativeStatus{}, nil
}

func (f *fakeBackend) GetFindings(ctx context.Context, session string) (model.FindingSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findings, nil
}

func (f *fakeBackend) Extract(ctx context.Context, session, apiKey string) (api.ExtractResult, error) {
	return api.ExtractResult{}, nil
}

func (f *fakeBackend) Reset(ctx context.Context, session string) error {
	atomic.AddInt32(&f.resetN, 1)
	return nil
}

func (f *fakeBackend) SetCollaborativeMode(ctx context.Context, session string, enabled bool) error {
	return nil
}

func (f *fakeBackend) SaveCollaborativeMessage(ctx context.Context, session, content, participantUUID string) (api.CollaborativeAck, error) {
	return api.CollaborativeAck{}, nil
}

func (f *fakeBackend) next(t *testing.T) chan api.Event {
	t.Helper()
	select {
	case ch := <-f.streams:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no stream opened")
		return nil
	}
}

type fixedParticipant string

func (p fixedParticipant) ParticipantUUID(ctx context.Context, session string) (string, error) {
	return string(p), nil
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	model    Model
	notifier *Notifier
	gate     *apikey.Gate
	backends map[model.Surface]*fakeBackend
	copied   []string
}

func newHarness(t *testing.T, withKey bool, surfaces ...model.Surface) *harness {
	t.Helper()
	if len(surfaces) == 0 {
		surfaces = []model.Surface{model.SurfaceConsultation}
	}

	h := &harness{
		notifier: NewNotifier(60),
		backends: map[model.Surface]*fakeBackend{},
	}
	store := apikey.NewStore()
	if withKey {
		require.NoError(t, store.Set("sk-test-key"))
	}
	h.gate = apikey.NewGate(store, h.notifier.PromptFunc())

	var orchs []*consult.Orchestrator
	for _, s := range surfaces {
		fb := newFakeBackend()
		h.backends[s] = fb
		o, err := consult.New(consult.Config{
			Session:      "s1",
			Surface:      s,
			Backend:      fb,
			Gate:         h.gate,
			Participants: fixedParticipant("p-1"),
			PollInterval: time.Hour,
			OnChange:     h.notifier.Changed,
		})
		require.NoError(t, err)
		orchs = append(orchs, o)
		t.Cleanup(func() {
			o.Close()
			o.Wait()
		})
	}
	t.Cleanup(h.notifier.Close)

	m, err := New(Options{
		Orchestrators: orchs,
		Gate:          h.gate,
		Notifier:      h.notifier,
		Theme:         styles.NewTheme(),
		Clipboard: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	require.NoError(t, err)
	h.model = m
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send feeds msg to the model and returns the resulting command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) key(t tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: t})
}

func (h *harness) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// load runs the initial load of every surface.
func (h *harness) load() {
	for _, sv := range h.model.surfaces {
		h.send(h.model.loadCmd(sv.orch)())
	}
}

// listen delivers the next notifier message to the model.
func (h *harness) listen(t *testing.T) tea.Msg {
	t.Helper()
	got := make(chan tea.Msg, 1)
	go func() { got <- h.model.notifier.Listen()() }()
	select {
	case msg := <-got:
		require.IsType(t, listenMsg{}, msg)
		h.send(msg.(listenMsg).msg)
		return msg.(listenMsg).msg
	case <-time.After(2 * time.Second):
		t.Fatal("nothing delivered")
		return nil
	}
}

// listenFor delivers notifier messages until one of type T arrives.
func listenFor[T tea.Msg](t *testing.T, h *harness) T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := h.listen(t).(T); ok {
			return msg
		}
	}
	var zero T
	t.Fatalf("no %T delivered", zero)
	return zero
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func chunk(s string) api.Event { return api.Event{Kind: api.EventChunk, Text: s} }

var done = api.Event{Kind: api.EventDone}

func hasToast(m Model, substr string) bool {
	for _, t := range m.Toasts() {
		if strings.Contains(t.Message, substr) {
			return true
		}
	}
	return false
}

// =============================================================================
// NOTIFIER TESTS
// =============================================================================

func TestNotifier_CoalescesChanges(t *testing.T) {
	n := NewNotifier(60)
	defer n.Close()

	n.Changed()
	n.Changed()
	n.Changed()
	assert.Equal(t, listenMsg{msg: StateChangedMsg{}}, n.Listen()())

	n.Post(NavigateMsg{Tab: findings.TabSWOT})
	assert.Equal(t, listenMsg{msg: NavigateMsg{Tab: findings.TabSWOT}}, n.Listen()())
}

func TestNotifier_CloseStopsListen(t *testing.T) {
	n := NewNotifier(30)
	n.Close()
	n.Close()
	assert.Nil(t, n.Listen()())
	n.Post(StateChangedMsg{}) // dropped, must not block
	n.Changed()
}

func TestNotifier_PromptFunc(t *testing.T) {
	n := NewNotifier(30)
	defer n.Close()
	n.PromptFunc()(apikey.ActionSendMessage)
	assert.Equal(t, listenMsg{msg: KeyPromptMsg{Action: apikey.ActionSendMessage}}, n.Listen()())
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestModel_ColdStartAsksForKey(t *testing.T) {
	h := newHarness(t, false)
	h.load()
	assert.Contains(t, h.model.View(), "Press enter to start")

	h.key(tea.KeyEnter)
	msg := listenFor[KeyPromptMsg](t, h)
	assert.Equal(t, apikey.ActionStartConversation, msg.Action)
	require.True(t, h.model.PromptOpen())
	assert.Contains(t, h.model.View(), "start the conversation")

	h.typeText("sk-fresh-key")
	cmd := h.key(tea.KeyEnter)
	assert.False(t, h.model.PromptOpen())
	require.NotNil(t, cmd)
	h.send(cmd())

	ch := h.backends[model.SurfaceConsultation].next(t)
	ch <- chunk("Hello ")
	ch <- chunk("world")
	ch <- done
	close(ch)

	o := h.model.Active()
	waitFor(t, func() bool {
		last, ok := o.Engine().LastAssistant()
		return ok && last.Content == "Hello world" && !o.Snapshot().Chat.Sending
	})
	h.send(StateChangedMsg{})
	assert.Contains(t, h.model.View(), "Hello world")
}

func TestModel_DismissedPromptRunsNothing(t *testing.T) {
	h := newHarness(t, false)
	h.load()
	h.key(tea.KeyEnter)
	listenFor[KeyPromptMsg](t, h)

	cmd := h.key(tea.KeyEsc)
	require.NotNil(t, cmd)
	h.send(cmd())
	assert.False(t, h.model.PromptOpen())
	assert.True(t, hasToast(h.model, "Cancelled"))
	assert.False(t, h.model.Active().Snapshot().Chat.Started)
}

func TestModel_SendClearsInput(t *testing.T) {
	h := newHarness(t, true)
	h.load()

	h.typeText("We build bikes")
	assert.Equal(t, "We build bikes", h.model.Input())
	h.key(tea.KeyEnter)
	assert.Empty(t, h.model.Input())

	fb := h.backends[model.SurfaceConsultation]
	ch := fb.next(t)
	ch <- chunk("Tell me more.")
	ch <- done
	close(ch)

	waitFor(t, func() bool { return !h.model.Active().Snapshot().Chat.Sending })
	fb.mu.Lock()
	assert.Equal(t, []string{"We build bikes"}, fb.saved)
	fb.mu.Unlock()
}

func TestModel_StreamErrorToastsOnce(t *testing.T) {
	h := newHarness(t, true)
	h.load()
	h.key(tea.KeyEnter)

	ch := h.backends[model.SurfaceConsultation].next(t)
	ch <- api.Event{Kind: api.EventError, Err: &api.ServerError{Status: 500, Message: "backend exploded"}}
	close(ch)

	waitFor(t, func() bool { return h.model.Active().Snapshot().Err != nil })
	h.send(StateChangedMsg{})
	h.send(StateChangedMsg{})

	count := 0
	for _, toast := range h.model.Toasts() {
		if toast.Kind == components.ToastKindError {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestModel_TabsSwitchSurface(t *testing.T) {
	h := newHarness(t, true, model.SurfaceConsultation, model.SurfaceBusinessCase)
	assert.Equal(t, model.SurfaceConsultation, h.model.Active().Surface())

	h.key(tea.KeyTab)
	assert.Equal(t, model.SurfaceBusinessCase, h.model.Active().Surface())
	h.key(tea.KeyTab)
	assert.Equal(t, model.SurfaceConsultation, h.model.Active().Surface())
	h.key(tea.KeyShiftTab)
	assert.Equal(t, model.SurfaceBusinessCase, h.model.Active().Surface())
}

func TestModel_FindingsLinkNavigatesToSection(t *testing.T) {
	h := newHarness(t, true, model.SurfaceConsultation, model.SurfaceBusinessCase)
	h.backends[model.SurfaceConsultation].findings = model.NewFindingSet(model.SurfaceConsultation,
		map[string]string{"business_objectives": "Grow revenue. See [[business_case_pitch|the pitch]]."}, "")
	h.backends[model.SurfaceBusinessCase].findings = model.NewFindingSet(model.SurfaceBusinessCase,
		map[string]string{
			"classification":   "Level 2",
			"management_pitch": "Invest now.",
		}, "")
	h.load()

	h.key(tea.KeyCtrlF)
	require.True(t, h.model.ShowingFindings())

	n := 0
	for i, link := range h.model.current().rendered.Links {
		if link.Target == "business_case_pitch" {
			n = i + 1
		}
	}
	require.NotZero(t, n)
	h.typeText(string(rune('0' + n)))

	nav := listenFor[NavigateMsg](t, h)
	assert.Equal(t, findings.TabBusinessCase, nav.Tab)
	assert.Equal(t, "pitch", nav.SubTarget)
	assert.Equal(t, model.SurfaceBusinessCase, h.model.Active().Surface())
	assert.True(t, h.model.ShowingFindings())

	line, ok := h.model.current().rendered.Line("finding-management_pitch")
	require.True(t, ok)
	assert.Positive(t, line)

	h.key(tea.KeyEsc)
	assert.False(t, h.model.ShowingFindings())
}

func TestModel_ExternalLinkShowsHint(t *testing.T) {
	h := newHarness(t, true)
	h.send(NavigateMsg{Tab: findings.TabSWOT})
	assert.True(t, hasToast(h.model, "consult export swot"))
	assert.Equal(t, model.SurfaceConsultation, h.model.Active().Surface())
}

func TestModel_CopyLastAnswer(t *testing.T) {
	h := newHarness(t, true)
	fb := h.backends[model.SurfaceConsultation]
	fb.history = []model.Message{
		model.NewServerMessage(1, model.RoleAssistant, "What do you sell?", time.Time{}),
		model.NewServerMessage(2, model.RoleUser, "Bikes", time.Time{}),
		model.NewServerMessage(3, model.RoleAssistant, "Who buys them?", time.Time{}),
	}
	h.load()

	h.key(tea.KeyCtrlY)
	assert.Equal(t, []string{"Who buys them?"}, h.copied)
	assert.True(t, hasToast(h.model, "copied"))
}

func TestModel_StartOverNeedsConfirmation(t *testing.T) {
	h := newHarness(t, true)
	fb := h.backends[model.SurfaceConsultation]
	fb.history = []model.Message{model.NewServerMessage(1, model.RoleAssistant, "Hi", time.Time{})}
	h.load()

	assert.Nil(t, h.key(tea.KeyCtrlX))
	assert.True(t, hasToast(h.model, "again"))

	cmd := h.key(tea.KeyCtrlX)
	require.NotNil(t, cmd)
	h.send(cmd())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fb.resetN))
	assert.Empty(t, h.model.Active().Snapshot().Chat.Messages)
	assert.True(t, hasToast(h.model, "cleared"))
}

func TestModel_StartOverDisarmedByOtherKey(t *testing.T) {
	h := newHarness(t, true)
	h.load()
	h.key(tea.KeyCtrlX)
	h.typeText("x")
	assert.Nil(t, h.key(tea.KeyCtrlX))
}

func TestModel_SummarizeNeedsMessages(t *testing.T) {
	h := newHarness(t, true)
	h.load()
	h.key(tea.KeyCtrlE)
	assert.True(t, hasToast(h.model, "at least 4 messages"))
}

func TestModel_HelpToggles(t *testing.T) {
	h := newHarness(t, true)
	h.key(tea.KeyF1)
	assert.Contains(t, h.model.View(), "Keys")
	h.key(tea.KeyF1)
	assert.NotContains(t, h.model.View(), "start over")
}

func TestModel_QuitKey(t *testing.T) {
	h := newHarness(t, true)
	cmd := h.key(tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPickPersona(t *testing.T) {
	personas := []api.Persona{{ID: "ceo", Name: "CEO"}, {ID: "cfo", Name: "CFO"}}
	assert.Equal(t, "ceo", pickPersona(personas).ID)
	assert.Equal(t, "cfo", pickPersona(personas, "", "cfo").ID)
	assert.Equal(t, "cfo", pickPersona(personas, "unknown", "cfo").ID)
}

func TestOverlayBottomRight(t *testing.T) {
	base := strings.Join([]string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc", "dddddddddd"}, "\n")
	out := strings.Split(overlayBottomRight(base, "XY", 10, 1), "\n")
	require.Len(t, out, 4)
	assert.Equal(t, "aaaaaaaaaa", out[0])
	assert.Equal(t, "ccccccc XY", out[2])
	assert.Equal(t, "dddddddddd", out[3])
}
