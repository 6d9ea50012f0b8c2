// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// FAKE TRANSPORT
// =============================================================================

// fakeTransport hands out streams whose events the test pushes by hand.
type fakeTransport struct {
	mu       sync.Mutex
	history  []model.Message
	histErr  error
	saveErr  error
	saveID   int64
	saved    []string
	streams  chan chan api.Event
	ctxs     []context.Context
	opened   int32
	saveGate chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan chan api.Event, 8), saveID: 41}
}

func (f *fakeTransport) GetMessages(ctx context.Context, session string) ([]model.Message, error) {
	return f.history, f.histErr
}

func (f *fakeTransport) SaveMessage(ctx context.Context, session, content string) (api.SaveAck, error) {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, content)
	if f.saveErr != nil {
		return api.SaveAck{}, f.saveErr
	}
	return api.SaveAck{MessageID: f.saveID}, nil
}

func (f *fakeTransport) open(ctx context.Context) *api.Stream {
	ch := make(chan api.Event, 16)
	f.mu.Lock()
	f.ctxs = append(f.ctxs, ctx)
	f.mu.Unlock()
	atomic.AddInt32(&f.opened, 1)
	f.streams <- ch
	return api.NewStream(ch)
}

func (f *fakeTransport) StartStream(ctx context.Context, session, apiKey string) *api.Stream {
	return f.open(ctx)
}

func (f *fakeTransport) RequestAIResponseStream(ctx context.Context, session, apiKey string) *api.Stream {
	return f.open(ctx)
}

// next returns the event channel of the next opened stream.
func (f *fakeTransport) next(t *testing.T) chan api.Event {
	t.Helper()
	select {
	case ch := <-f.streams:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no stream opened")
		return nil
	}
}

func chunk(s string) api.Event { return api.Event{Kind: api.EventChunk, Text: s} }

var done = api.Event{Kind: api.EventDone}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

// =============================================================================
// START
// =============================================================================

func TestEngine_StartStream(t *testing.T) {
	ft := newFakeTransport()
	var changes int32
	e := New(model.SurfaceConsultation, ft, WithOnChange(func() { atomic.AddInt32(&changes, 1) }))

	completed := make(chan struct{})
	require.NoError(t, e.StartStream("s1", "key-12345678", func() { close(completed) }))

	st := e.Snapshot()
	assert.True(t, st.Sending)
	assert.True(t, st.Started)
	assert.True(t, st.Thinking)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.RoleAssistant, st.Messages[0].Role)

	ch := ft.next(t)
	ch <- chunk("Hel")
	ch <- chunk("lo")
	ch <- done
	close(ch)

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("onComplete not called")
	}
	e.Wait()

	st = e.Snapshot()
	assert.False(t, st.Sending)
	assert.False(t, st.Thinking)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "Hello", st.Messages[0].Content)
	assert.NoError(t, st.Err)
	assert.Greater(t, atomic.LoadInt32(&changes), int32(0))
}

func TestEngine_StartStreamPreconditions(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.StartStream("s1", "k", nil))
	assert.ErrorIs(t, e.StartStream("s1", "k", nil), ErrAlreadyStarted)

	e.Close()
	assert.ErrorIs(t, e.StartStream("s1", "k", nil), ErrClosed)
}

func TestEngine_LoadHistoryMarksStarted(t *testing.T) {
	ft := newFakeTransport()
	ft.history = []model.Message{
		model.NewServerMessage(1, model.RoleAssistant, "Welcome", time.Time{}),
		model.NewServerMessage(2, model.RoleUser, "Hi", time.Time{}),
	}
	e := New(model.SurfaceBusinessCase, ft)

	require.NoError(t, e.LoadHistory(context.Background(), "s1"))
	assert.True(t, e.Started())
	assert.Equal(t, 2, e.CountNonSystem())
	assert.Equal(t, int64(2), e.MaxServerID())

	// Loading again does not duplicate.
	require.NoError(t, e.LoadHistory(context.Background(), "s1"))
	assert.Len(t, e.Snapshot().Messages, 2)
}

func TestEngine_LoadHistoryEmpty(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.LoadHistory(context.Background(), "s1"))
	assert.False(t, e.Started())
}

func TestEngine_LoadHistoryError(t *testing.T) {
	ft := newFakeTransport()
	ft.histErr = &api.NetworkError{Op: "GET", Err: errors.New("refused")}
	e := New(model.SurfaceConsultation, ft)

	err := e.LoadHistory(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, api.KindNetwork, api.Kind(e.Err()))
}

// =============================================================================
// SEND
// =============================================================================

func TestEngine_SendMessage(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	completed := make(chan struct{})
	require.NoError(t, e.SendMessage("s1", "We make bicycles", "key-12345678", func() { close(completed) }))

	// The user turn is visible before the save returns.
	st := e.Snapshot()
	require.NotEmpty(t, st.Messages)
	assert.Equal(t, model.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "We make bicycles", st.Messages[0].Content)
	assert.True(t, st.Sending)

	ch := ft.next(t)
	ch <- chunk("Tell me ")
	ch <- chunk("more.")
	ch <- done
	close(ch)

	<-completed
	e.Wait()

	st = e.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, int64(41), st.Messages[0].ServerID)
	assert.Equal(t, model.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, "Tell me more.", st.Messages[1].Content)
	assert.False(t, st.Sending)
	assert.Equal(t, []string{"We make bicycles"}, ft.saved)
}

func TestEngine_SendMessageRejectsBlank(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, e.SendMessage("s1", text, "k", nil), ErrEmptyMessage)
	}
	assert.Empty(t, e.Snapshot().Messages)
	assert.Empty(t, ft.saved)
}

func TestEngine_SendMessageBusy(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	assert.ErrorIs(t, e.SendMessage("s1", "hello", "k", nil), ErrBusy)
	assert.ErrorIs(t, e.RequestResponse("s1", "k", nil), ErrBusy)

	ch := ft.next(t)
	ch <- done
	close(ch)
	e.Wait()
	assert.False(t, e.Sending())
}

func TestEngine_SaveFailureKeepsUserTurn(t *testing.T) {
	ft := newFakeTransport()
	ft.saveErr = &api.ServerError{Status: 500, Message: "database locked"}
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.SendMessage("s1", "hello", "k", nil))
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "hello", st.Messages[0].Content)
	assert.False(t, st.Sending)
	require.Error(t, st.Err)
	assert.Contains(t, st.Err.Error(), "database locked")
	assert.Equal(t, int32(0), atomic.LoadInt32(&ft.opened))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestEngine_ErrorRemovesEmptyPlaceholder(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	ch := ft.next(t)
	ch <- api.Event{Kind: api.EventError, Err: &api.AuthError{Status: 401, Message: "invalid key"}}
	close(ch)
	e.Wait()

	st := e.Snapshot()
	assert.Empty(t, st.Messages)
	assert.False(t, st.Sending)
	assert.True(t, api.IsAuth(st.Err))
}

func TestEngine_FailedOpeningCanRetry(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.StartStream("s1", "k", nil))
	ch := ft.next(t)
	ch <- api.Event{Kind: api.EventError, Err: &api.NetworkError{Op: "POST /start", Err: errors.New("refused")}}
	close(ch)
	e.Wait()
	assert.False(t, e.Started())

	require.NoError(t, e.StartStream("s1", "k", nil))
	ch = ft.next(t)
	ch <- chunk("Hi")
	ch <- done
	close(ch)
	e.Wait()
	assert.True(t, e.Started())
	assert.NoError(t, e.Err())
}

func TestEngine_ErrorKeepsPartialContent(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	var completed int32
	require.NoError(t, e.RequestResponse("s1", "k", func() { atomic.AddInt32(&completed, 1) }))
	ch := ft.next(t)
	ch <- chunk("Partial ")
	ch <- api.Event{Kind: api.EventError, Err: &api.StreamError{Partial: "Partial ", Err: errors.New("reset")}}
	close(ch)
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "Partial ", st.Messages[0].Content)
	assert.Equal(t, api.KindStream, api.Kind(st.Err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&completed))
}

func TestEngine_NextActionClearsError(t *testing.T) {
	ft := newFakeTransport()
	ft.saveErr = errors.New("boom")
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.SendMessage("s1", "hello", "k", nil))
	e.Wait()
	require.Error(t, e.Err())

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	assert.NoError(t, e.Err())
	ch := ft.next(t)
	ch <- done
	close(ch)
	e.Wait()
}

// =============================================================================
// ABORT AND RESET
// =============================================================================

func TestEngine_AbortSuppressesLateEvents(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	var completed int32
	require.NoError(t, e.RequestResponse("s1", "k", func() { atomic.AddInt32(&completed, 1) }))
	ch := ft.next(t)
	ch <- chunk("Hello")
	waitFor(t, func() bool { return !e.Snapshot().Thinking })

	e.Abort()
	ft.mu.Lock()
	ctx := ft.ctxs[0]
	ft.mu.Unlock()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// Events already in flight are discarded.
	ch <- chunk(" world")
	ch <- done
	close(ch)
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "Hello", st.Messages[0].Content)
	assert.False(t, st.Sending)
	assert.NoError(t, st.Err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&completed))
}

func TestEngine_AbortTrimsEmptyPlaceholder(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.StartStream("s1", "k", nil))
	ch := ft.next(t)
	e.Abort()
	close(ch)
	e.Wait()

	st := e.Snapshot()
	assert.Empty(t, st.Messages)
	assert.False(t, st.Sending)
}

func TestEngine_AbortDuringSave(t *testing.T) {
	ft := newFakeTransport()
	ft.saveGate = make(chan struct{})
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.SendMessage("s1", "hello", "k", nil))
	e.Abort()
	close(ft.saveGate)
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "hello", st.Messages[0].Content)
	assert.Equal(t, int64(41), st.Messages[0].ServerID, "save completes even when aborted")
	assert.False(t, st.Sending)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ft.opened), "no reply stream after abort")
}

func TestEngine_ResetDuringStream(t *testing.T) {
	ft := newFakeTransport()
	ft.history = []model.Message{model.NewServerMessage(1, model.RoleAssistant, "Welcome", time.Time{})}
	e := New(model.SurfaceConsultation, ft)
	require.NoError(t, e.LoadHistory(context.Background(), "s1"))

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	ch := ft.next(t)
	ch <- chunk("Hal")
	waitFor(t, func() bool { return !e.Snapshot().Thinking })

	e.Reset()
	ch <- chunk("f")
	ch <- done
	close(ch)
	e.Wait()

	st := e.Snapshot()
	assert.Empty(t, st.Messages)
	assert.False(t, st.Started)
	assert.False(t, st.Sending)
	assert.NoError(t, st.Err)

	// A fresh start is allowed after reset.
	require.NoError(t, e.StartStream("s1", "k", nil))
	ch = ft.next(t)
	ch <- done
	close(ch)
	e.Wait()
}

func TestEngine_SupersededStreamDiscarded(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	first := ft.next(t)
	e.Abort()

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	second := ft.next(t)

	first <- chunk("stale")
	first <- done
	close(first)
	second <- chunk("fresh")
	second <- done
	close(second)
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "fresh", st.Messages[0].Content)
}

func TestEngine_CloseStopsMutation(t *testing.T) {
	ft := newFakeTransport()
	var changes int32
	e := New(model.SurfaceConsultation, ft, WithOnChange(func() { atomic.AddInt32(&changes, 1) }))

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	ch := ft.next(t)
	e.Close()
	before := atomic.LoadInt32(&changes)

	ch <- chunk("late")
	ch <- done
	close(ch)
	e.Wait()

	assert.Equal(t, before, atomic.LoadInt32(&changes))
	assert.False(t, e.InsertRemote(model.NewServerMessage(9, model.RoleUser, "x", time.Time{})))
	assert.NotPanics(t, e.Close)
	assert.NotPanics(t, e.Abort)
}

// =============================================================================
// COLLABORATIVE INSERTS
// =============================================================================

func TestEngine_InsertRemoteDuringStream(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.RequestResponse("s1", "k", nil))
	ch := ft.next(t)
	ch <- chunk("One ")
	waitFor(t, func() bool { return !e.Snapshot().Thinking })

	assert.True(t, e.InsertRemote(model.NewServerMessage(7, model.RoleUser, "peer message", time.Time{})))
	assert.False(t, e.InsertRemote(model.NewServerMessage(7, model.RoleUser, "peer message", time.Time{})))

	ch <- chunk("two")
	ch <- done
	close(ch)
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "One two", st.Messages[0].Content, "deltas follow the placeholder key, not the tail")
	assert.Equal(t, "peer message", st.Messages[1].Content)
}

func TestEngine_MergeRemote(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	remote := []model.Message{
		model.NewServerMessage(3, model.RoleUser, "a", time.Time{}),
		model.NewServerMessage(4, model.RoleAssistant, "b", time.Time{}),
	}
	added, maxID := e.MergeRemote(remote)
	assert.Equal(t, 2, added)
	assert.Equal(t, int64(4), maxID)
	assert.True(t, e.Started())

	added, _ = e.MergeRemote(remote)
	assert.Equal(t, 0, added)
}

func TestEngine_PostMessage(t *testing.T) {
	ft := newFakeTransport()
	e := New(model.SurfaceConsultation, ft)

	require.NoError(t, e.PostMessage("from me", func(ctx context.Context, content string) (int64, error) {
		assert.Equal(t, "from me", content)
		return 102, nil
	}))
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, int64(102), st.Messages[0].ServerID)
	assert.False(t, st.Sending)
	assert.True(t, st.Started)

	// The next poll returns the same row; it is not inserted twice.
	added, _ := e.MergeRemote([]model.Message{model.NewServerMessage(102, model.RoleUser, "from me", time.Time{})})
	assert.Equal(t, 0, added)
	assert.Len(t, e.Snapshot().Messages, 1)
}

func TestEngine_PostMessageFailureKeepsTurn(t *testing.T) {
	ft := newFakeTransport()
	var reported error
	e := New(model.SurfaceConsultation, ft, WithOnError(func(err error) { reported = err }))

	require.NoError(t, e.PostMessage("hello", func(context.Context, string) (int64, error) {
		return 0, &api.NetworkError{Op: "POST", Err: errors.New("down")}
	}))
	e.Wait()

	st := e.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, api.KindNetwork, api.Kind(st.Err))
	assert.Equal(t, api.KindNetwork, api.Kind(reported))
	assert.ErrorIs(t, e.PostMessage(" ", nil), ErrEmptyMessage)
}
