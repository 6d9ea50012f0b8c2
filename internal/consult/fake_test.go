// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend implements Backend and PersonaBackend. Chat streams are handed
// to the test through streams; everything else is canned.
type fakeBackend struct {
	mu sync.Mutex

	history  []model.Message
	streams  chan chan api.Event
	streamed int32
	saved    []string
	saveID   int64

	incremental    api.IncrementalResult
	incrementalErr error
	incrementalN   int32
	incrementalKey string
	extractGate    chan struct{}

	findings    model.FindingSet
	findingsErr error
	extract     api.ExtractResult
	extractErr  error
	extractN    int32

	resetErr error
	resetN   int32

	status       model.CollaborativeStatus
	statusErr    error
	collabMsgs   [][]model.Message // returned per poll, in order
	collabSince  []int64
	collabPosts  []string
	collabUUIDs  []string
	collabNextID int64
	modeCalls    []bool

	personas   []api.Persona
	personaEvs []api.Event // nil blocks until cancelled
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		streams:      make(chan chan api.Event, 8),
		saveID:       41,
		collabNextID: 500,
	}
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
	atomic.AddInt32(&f.streamed, 1)
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
	atomic.AddInt32(&f.incrementalN, 1)
	if f.extractGate != nil {
		select {
		case <-f.extractGate:
		case <-ctx.Done():
			return api.IncrementalResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementalKey = apiKey
	return f.incremental, f.incrementalErr
}

func (f *fakeBackend) GetCollaborativeMessages(ctx context.Context, session string, sinceID int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collabSince = append(f.collabSince, sinceID)
	if len(f.collabMsgs) == 0 {
		return nil, nil
	}
	out := f.collabMsgs[0]
	f.collabMsgs = f.collabMsgs[1:]
	return out, nil
}

func (f *fakeBackend) GetCollaborativeStatus(ctx context.Context, session string) (model.CollaborativeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeBackend) GetFindings(ctx context.Context, session string) (model.FindingSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findings, f.findingsErr
}

func (f *fakeBackend) Extract(ctx context.Context, session, apiKey string) (api.ExtractResult, error) {
	atomic.AddInt32(&f.extractN, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extract, f.extractErr
}

func (f *fakeBackend) Reset(ctx context.Context, session string) error {
	atomic.AddInt32(&f.resetN, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetErr
}

func (f *fakeBackend) SetCollaborativeMode(ctx context.Context, session string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modeCalls = append(f.modeCalls, enabled)
	f.status.CollaborativeMode = enabled
	return nil
}

func (f *fakeBackend) SaveCollaborativeMessage(ctx context.Context, session, content, participantUUID string) (api.CollaborativeAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collabPosts = append(f.collabPosts, content)
	f.collabUUIDs = append(f.collabUUIDs, participantUUID)
	f.collabNextID++
	return api.CollaborativeAck{MessageID: f.collabNextID, Content: content}, nil
}

func (f *fakeBackend) GetPersonas(ctx context.Context) ([]api.Persona, error) {
	return f.personas, nil
}

func (f *fakeBackend) GenerateResponseStream(ctx context.Context, session string, surface model.Surface, personaID, apiKey string) *api.Stream {
	ch := make(chan api.Event, len(f.personaEvs)+1)
	if f.personaEvs == nil {
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return api.NewStream(ch)
	}
	for _, ev := range f.personaEvs {
		ch <- ev
	}
	close(ch)
	return api.NewStream(ch)
}

// next returns the event channel of the next opened chat stream.
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

// =============================================================================
// FAKE PREFERENCES
// =============================================================================

type fakePrefs struct {
	mu      sync.Mutex
	persona string
}

func (p *fakePrefs) LastPersona(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persona, nil
}

func (p *fakePrefs) SetLastPersona(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persona = id
	return nil
}

type fixedParticipant string

func (p fixedParticipant) ParticipantUUID(ctx context.Context, session string) (string, error) {
	return string(p), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func chunk(s string) api.Event { return api.Event{Kind: api.EventChunk, Text: s} }

var done = api.Event{Kind: api.EventDone}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func userMsg(id int64, content string) model.Message {
	return model.NewServerMessage(id, model.RoleUser, content, time.Time{})
}

func assistantMsg(id int64, content string) model.Message {
	return model.NewServerMessage(id, model.RoleAssistant, content, time.Time{})
}
