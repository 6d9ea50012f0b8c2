// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/model"
)

// logSink adapts a model.Log to MessageSink.
type logSink struct {
	mu      sync.Mutex
	log     *model.Log
	started bool
}

func newLogSink(started bool) *logSink {
	return &logSink{log: model.NewLog(), started: started}
}

func (s *logSink) MergeRemote(msgs []model.Message) (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.MergeRemote(msgs)
}

func (s *logSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *logSink) messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

func TestPoller_MergesWithoutDuplicates(t *testing.T) {
	fb := newFakeBackend()
	fb.collabMsgs = [][]model.Message{
		{userMsg(101, "first"), assistantMsg(102, "second")},
		{assistantMsg(102, "second"), userMsg(103, "third")},
	}
	sink := newLogSink(true)
	p := NewPoller("s1", fb, sink, PollerConfig{})

	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, int64(102), p.LastMessageID())

	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, int64(103), p.LastMessageID())

	msgs := sink.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{101, 102, 103}, []int64{msgs[0].ServerID, msgs[1].ServerID, msgs[2].ServerID})
	assert.Equal(t, []int64{0, 102}, fb.collabSince)
}

func TestPoller_LastIDNeverDecreases(t *testing.T) {
	fb := newFakeBackend()
	fb.collabMsgs = [][]model.Message{{userMsg(7, "late")}}
	p := NewPoller("s1", fb, newLogSink(true), PollerConfig{})
	p.ObserveMessageID(20)

	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, int64(20), p.LastMessageID())

	p.ResetMessageID()
	assert.Zero(t, p.LastMessageID())
}

func TestPoller_MessagesOnlyOnceStarted(t *testing.T) {
	fb := newFakeBackend()
	sink := newLogSink(false)
	p := NewPoller("s1", fb, sink, PollerConfig{})

	require.NoError(t, p.Poll(context.Background()))
	assert.Empty(t, fb.collabSince)

	fb.mu.Lock()
	fb.status.ConsultationStarted = true
	fb.mu.Unlock()
	require.NoError(t, p.Poll(context.Background())) // learns the status
	require.NoError(t, p.Poll(context.Background()))
	assert.Len(t, fb.collabSince, 1)
}

func TestPoller_StatusCallback(t *testing.T) {
	fb := newFakeBackend()
	fb.status = model.CollaborativeStatus{
		CollaborativeMode:    true,
		OwnerParticipantUUID: "owner",
		Participants:         []model.Participant{{UUID: "owner", Name: "Ada", IsOwner: true}},
	}
	var got model.CollaborativeStatus
	p := NewPoller("s1", fb, newLogSink(false), PollerConfig{
		OnStatus: func(st model.CollaborativeStatus) { got = st },
	})

	_, ok := p.Status()
	assert.False(t, ok)

	require.NoError(t, p.Poll(context.Background()))
	st, ok := p.Status()
	assert.True(t, ok)
	assert.True(t, st.IsOwner("owner"))
	assert.Equal(t, "Ada", got.Participants[0].Name)
}

func TestPoller_FailureKeepsState(t *testing.T) {
	fb := newFakeBackend()
	fb.statusErr = errors.New("unreachable")
	p := NewPoller("s1", fb, newLogSink(true), PollerConfig{})
	p.ObserveMessageID(5)

	assert.Error(t, p.Poll(context.Background()))
	assert.Equal(t, int64(5), p.LastMessageID())
	_, ok := p.Status()
	assert.False(t, ok)
}

func TestPoller_Loop(t *testing.T) {
	fb := newFakeBackend()
	fb.collabMsgs = [][]model.Message{{userMsg(1, "hi")}}
	sink := newLogSink(true)
	p := NewPoller("s1", fb, sink, PollerConfig{Interval: 10 * time.Millisecond})
	assert.Equal(t, 10*time.Millisecond, p.Interval())

	p.Start(context.Background())
	p.Start(context.Background()) // no-op
	assert.True(t, p.Running())

	waitFor(t, func() bool { return len(sink.messages()) == 1 })
	p.Stop()
	assert.False(t, p.Running())
	p.Stop()
}

// toggleBackend changes the collaborative mode while a status fetch is in
// flight.
type toggleBackend struct {
	*fakeBackend
	during func()
}

func (b *toggleBackend) GetCollaborativeStatus(ctx context.Context, session string) (model.CollaborativeStatus, error) {
	st, err := b.fakeBackend.GetCollaborativeStatus(ctx, session)
	if b.during != nil {
		b.during()
	}
	return st, err
}

func TestPoller_InvalidateDiscardsInFlightStatus(t *testing.T) {
	fb := newFakeBackend()
	fb.status = model.CollaborativeStatus{CollaborativeMode: true}
	tb := &toggleBackend{fakeBackend: fb}

	calls := 0
	p := NewPoller("s1", tb, newLogSink(false), PollerConfig{
		OnStatus: func(model.CollaborativeStatus) { calls++ },
	})
	tb.during = p.Invalidate

	require.NoError(t, p.Poll(context.Background()))
	assert.Zero(t, calls)
	_, ok := p.Status()
	assert.False(t, ok)

	tb.during = nil
	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestPoller_HaltFromStatusCallback(t *testing.T) {
	fb := newFakeBackend()
	var p *Poller
	p = NewPoller("s1", fb, newLogSink(false), PollerConfig{
		Interval: 5 * time.Millisecond,
		OnStatus: func(model.CollaborativeStatus) { p.Halt() },
	})

	p.Start(context.Background())
	waitFor(t, func() bool { return !p.Running() })
	p.Stop()
	p.Halt()
}

func TestPoller_DefaultInterval(t *testing.T) {
	p := NewPoller("s1", newFakeBackend(), newLogSink(false), PollerConfig{})
	assert.Equal(t, DefaultPollInterval, p.Interval())
	p.SetInterval(-time.Second)
	assert.Equal(t, DefaultPollInterval, p.Interval())
}
