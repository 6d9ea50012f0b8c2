// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/stream"
)

// DefaultSaveTimeout bounds the request that persists a user turn.
const DefaultSaveTimeout = 30 * time.Second

// Precondition errors.
var (
	ErrBusy           = errors.New("a response is already being generated")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrAlreadyStarted = errors.New("conversation already started")
	ErrClosed         = errors.New("chat engine closed")
)

// Transport is the slice of the surface client the engine needs.
type Transport interface {
	GetMessages(ctx context.Context, session string) ([]model.Message, error)
	SaveMessage(ctx context.Context, session, content string) (api.SaveAck, error)
	StartStream(ctx context.Context, session, apiKey string) *api.Stream
	RequestAIResponseStream(ctx context.Context, session, apiKey string) *api.Stream
}

// State is a snapshot of the engine for rendering.
type State struct {
	Surface  model.Surface
	Messages []model.Message
	Sending  bool
	Started  bool
	Err      error

	// Thinking is true while a reply is requested but has no content yet.
	Thinking bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOnChange registers a callback invoked after every state change. It is
// called without the engine lock held and may run on any goroutine.
func WithOnChange(fn func()) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithOnError registers a callback for request failures (never for
// cancellation). Called without the engine lock held.
func WithOnError(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSaveTimeout overrides DefaultSaveTimeout.
func WithSaveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.saveTimeout = d
		}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the chat state machine of one surface. Safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	surface   model.Surface
	transport Transport
	ctrl      *stream.Controller
	log       *model.Log

	sending   bool
	started   bool
	closed    bool
	err       error
	streamKey string // placeholder currently receiving chunks

	onChange    func()
	onError     func(error)
	logger      *zap.Logger
	saveTimeout time.Duration
	wg          sync.WaitGroup
}

// New creates an engine for surface.
func New(surface model.Surface, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		surface:     surface,
		transport:   transport,
		ctrl:        stream.NewController(),
		log:         model.NewLog(),
		logger:      zap.NewNop(),
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine").With(zap.String("surface", surface.String()))
	return e
}

// Surface returns the engine's surface.
func (e *Engine) Surface() model.Surface {
	return e.surface
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

func (e *Engine) fail(err error) {
	if e.onError != nil && err != nil && !errors.Is(err, api.ErrCanceled) {
		e.onError(err)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

// LoadHistory fetches the stored conversation and merges it into the log.
// A non-empty history marks the conversation as started.
func (e *Engine) LoadHistory(ctx context.Context, session string) error {
	msgs, err := e.transport.GetMessages(ctx, session)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		if !errors.Is(err, api.ErrCanceled) {
			e.err = err
		}
		e.mu.Unlock()
		e.notify()
		return err
	}
	for _, m := range msgs {
		if m.ServerID != 0 && e.log.HasServerID(m.ServerID) {
			continue
		}
		e.log.Append(m)
	}
	if e.log.Len() > 0 {
		e.started = true
	}
	count := e.log.Len()
	e.mu.Unlock()

	e.logger.Debug("history loaded", zap.Int("messages", count))
	e.notify()
	return nil
}

// =============================================================================
// STREAMING ACTIONS
// =============================================================================

// StartStream asks the backend to open the conversation and streams the
// opening assistant message.
func (e *Engine) StartStream(session, apiKey string, onComplete func()) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.started:
		e.mu.Unlock()
		return ErrAlreadyStarted
	case e.sending:
		e.mu.Unlock()
		return ErrBusy
	}
	e.err = nil
	e.sending = true
	e.started = true
	key := e.beginReply()
	ctx := e.ctrl.Signal()
	e.mu.Unlock()

	e.logger.Debug("starting conversation")
	e.notify()
	e.consume(ctx, key, e.transport.StartStream(ctx, session, apiKey), onComplete)
	return nil
}

// SendMessage appends a user turn, persists it, and streams the reply.
// A failed save keeps the user turn visible and sets the error.
func (e *Engine) SendMessage(session, text, apiKey string, onComplete func()) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.sending:
		e.mu.Unlock()
		return ErrBusy
	}
	e.err = nil
	e.sending = true
	e.started = true
	user := model.NewUserMessage(text)
	e.log.Append(user)
	ctx := e.ctrl.Signal()
	e.mu.Unlock()
	e.notify()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		// The save completes even when the reply is aborted; only the
		// follow-up is tied to the token.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.saveTimeout)
		ack, err := e.transport.SaveMessage(saveCtx, session, text)
		cancel()

		e.mu.Lock()
		if e.stale(ctx) {
			if err == nil && ack.MessageID != 0 && !e.closed {
				e.log.AssignServerID(user.Key, ack.MessageID)
			}
			e.mu.Unlock()
			return
		}
		if err != nil {
			e.err = err
			e.sending = false
			e.ctrl.Abort()
			e.mu.Unlock()
			e.logger.Warn("failed to save message", zap.Error(err))
			e.notify()
			e.fail(err)
			return
		}
		if ack.MessageID != 0 {
			e.log.AssignServerID(user.Key, ack.MessageID)
		}
		key := e.beginReply()
		e.mu.Unlock()
		e.notify()

		e.drain(ctx, key, e.transport.RequestAIResponseStream(ctx, session, apiKey), onComplete)
	}()
	return nil
}

// SaveFunc persists a user turn and returns its server id.
type SaveFunc func(ctx context.Context, content string) (int64, error)

// PostMessage appends a user turn and persists it through save without
// requesting a reply. Used for collaborative sends, where the reply is
// requested separately by the owner. Does not set the sending flag.
func (e *Engine) PostMessage(text string, save SaveFunc) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.err = nil
	e.started = true
	user := model.NewUserMessage(text)
	e.log.Append(user)
	e.mu.Unlock()
	e.notify()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
		id, err := save(ctx, text)
		cancel()

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		if err != nil {
			e.err = err
			e.mu.Unlock()
			e.logger.Warn("failed to post message", zap.Error(err))
			e.notify()
			e.fail(err)
			return
		}
		// A poll may already have delivered the row; then the local copy is dropped.
		assigned := id != 0 && e.log.AssignServerID(user.Key, id)
		e.mu.Unlock()
		if assigned {
			e.notify()
		}
	}()
	return nil
}

// RequestResponse streams an assistant reply to the conversation as it
// stands, without adding a user turn.
func (e *Engine) RequestResponse(session, apiKey string, onComplete func()) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.sending:
		e.mu.Unlock()
		return ErrBusy
	}
	e.err = nil
	e.sending = true
	e.started = true
	key := e.beginReply()
	ctx := e.ctrl.Signal()
	e.mu.Unlock()

	e.notify()
	e.consume(ctx, key, e.transport.RequestAIResponseStream(ctx, session, apiKey), onComplete)
	return nil
}

// beginReply appends the assistant placeholder. Caller holds e.mu.
func (e *Engine) beginReply() string {
	placeholder := model.NewPlaceholder()
	e.log.Append(placeholder)
	e.streamKey = placeholder.Key
	return placeholder.Key
}

// stale reports whether events carrying ctx must be discarded.
// Caller holds e.mu.
func (e *Engine) stale(ctx context.Context) bool {
	return e.closed || ctx.Err() != nil
}

// consume drains st on a new goroutine.
func (e *Engine) consume(ctx context.Context, key string, st *api.Stream, onComplete func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.drain(ctx, key, st, onComplete)
	}()
}

// drain applies the events of st to the placeholder key until the stream
// ends. A stream that closes without a terminal event was cancelled and is
// ignored.
func (e *Engine) drain(ctx context.Context, key string, st *api.Stream, onComplete func()) {
	for ev := range st.Events() {
		switch ev.Kind {
		case api.EventChunk:
			e.applyChunk(ctx, key, ev.Text)
		case api.EventDone:
			if e.finish(ctx, key, nil) && onComplete != nil {
				onComplete()
			}
			return
		case api.EventError:
			e.finish(ctx, key, ev.Err)
			return
		}
	}
}

func (e *Engine) applyChunk(ctx context.Context, key, text string) {
	e.mu.Lock()
	if e.stale(ctx) || key != e.streamKey {
		e.mu.Unlock()
		return
	}
	e.log.AppendContent(key, text)
	e.mu.Unlock()
	e.notify()
}

// finish ends the stream owning key and reports whether it was still
// current.
func (e *Engine) finish(ctx context.Context, key string, err error) bool {
	e.mu.Lock()
	if e.stale(ctx) || key != e.streamKey {
		e.mu.Unlock()
		return false
	}
	e.sending = false
	e.streamKey = ""
	if err != nil && !errors.Is(err, api.ErrCanceled) {
		e.err = err
		if msg, ok := e.log.Get(key); ok && msg.IsEmpty() {
			e.log.Remove(key)
		}
		// A failed opening can be retried.
		if e.log.Len() == 0 {
			e.started = false
		}
	}
	e.ctrl.Abort()
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("stream ended with error", zap.String("kind", api.Kind(err).String()), zap.Error(err))
	}
	e.notify()
	e.fail(err)
	return err == nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Abort cancels the running request. No event of the aborted stream mutates
// state after Abort returns. An empty placeholder is removed; partial
// content is kept.
func (e *Engine) Abort() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.abortLocked()
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) abortLocked() {
	e.ctrl.Abort()
	if e.streamKey != "" {
		if msg, ok := e.log.Get(e.streamKey); ok && msg.IsEmpty() {
			e.log.Remove(e.streamKey)
		}
		e.streamKey = ""
	}
	e.sending = false
}

// Reset aborts any request and clears the conversation.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.abortLocked()
	e.log.Clear()
	e.started = false
	e.err = nil
	e.mu.Unlock()
	e.notify()
}

// Close tears the engine down. After Close returns nothing mutates state and
// no change notification is sent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.ctrl.Close()
	e.sending = false
	e.streamKey = ""
}

// Wait blocks until background work has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ClearError drops the displayed error.
func (e *Engine) ClearError() {
	e.mu.Lock()
	if e.err == nil || e.closed {
		e.mu.Unlock()
		return
	}
	e.err = nil
	e.mu.Unlock()
	e.notify()
}

// =============================================================================
// COLLABORATIVE INSERTS
// =============================================================================

// InsertRemote appends a message that already exists on the server, such
// as the acknowledged row of a collaborative send. Returns false when it is
// already present.
func (e *Engine) InsertRemote(msg model.Message) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if msg.Key == "" {
		msg.Key = model.ServerKey(msg.ServerID)
	}
	ok := e.log.Append(msg)
	if ok {
		e.started = true
	}
	e.mu.Unlock()
	if ok {
		e.notify()
	}
	return ok
}

// MergeRemote merges polled messages into the log. See model.Log.MergeRemote.
func (e *Engine) MergeRemote(msgs []model.Message) (added int, maxID int64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, 0
	}
	added, maxID = e.log.MergeRemote(msgs)
	if e.log.Len() > 0 {
		e.started = true
	}
	e.mu.Unlock()
	if added > 0 {
		e.notify()
	}
	return added, maxID
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Snapshot returns a copy of the state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	thinking := false
	if e.sending {
		thinking = true
		if e.streamKey != "" {
			if msg, ok := e.log.Get(e.streamKey); ok && !msg.IsEmpty() {
				thinking = false
			}
		}
	}
	return State{
		Surface:  e.surface,
		Messages: e.log.Messages(),
		Sending:  e.sending,
		Started:  e.started,
		Err:      e.err,
		Thinking: thinking,
	}
}

// Sending reports whether a request is in flight.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// Started reports whether the conversation has begun.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Err returns the last error, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// CountNonSystem returns the number of user and assistant messages.
func (e *Engine) CountNonSystem() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.CountNonSystem()
}

// MaxServerID returns the greatest server id in the log.
func (e *Engine) MaxServerID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.MaxServerID()
}

// LastAssistant returns the most recent assistant message.
func (e *Engine) LastAssistant() (model.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.LastOf(model.RoleAssistant)
}
