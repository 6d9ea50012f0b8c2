// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/engine"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

// SummarizeMinMessages is the visible message count that enables
// summarizing.
const SummarizeMinMessages = 4

// Orchestrator errors.
var (
	ErrNotSupported     = errors.New("not supported on this surface")
	ErrNotOwner         = errors.New("only the session owner can do this")
	ErrTooFewMessages   = errors.New("not enough messages to summarize")
	ErrSummarizeRunning = errors.New("summary already in progress")
	ErrInvalidConfig    = errors.New("orchestrator needs a session, a surface and a backend")
)

// Backend is the surface client as the orchestrator uses it;
// *api.SurfaceClient implements it.
type Backend interface {
	engine.Transport
	IncrementalBackend
	CollaborativeBackend

	GetFindings(ctx context.Context, session string) (model.FindingSet, error)
	Extract(ctx context.Context, session, apiKey string) (api.ExtractResult, error)
	Reset(ctx context.Context, session string) error
	SetCollaborativeMode(ctx context.Context, session string, enabled bool) error
	SaveCollaborativeMessage(ctx context.Context, session, content, participantUUID string) (api.CollaborativeAck, error)
}

// ParticipantStore yields the local participant id of a session.
type ParticipantStore interface {
	ParticipantUUID(ctx context.Context, session string) (string, error)
}

// Config configures an Orchestrator.
type Config struct {
	Session string
	Surface model.Surface
	Backend Backend
	Gate    *apikey.Gate

	// Participants persists the local participant id; without it a random
	// id is used for the life of the process.
	Participants ParticipantStore

	// Personas enables the test-mode persona bridge when set.
	Personas     PersonaBackend
	PersonaPrefs PersonaPrefs

	Language            string
	ExtractionThreshold int
	ExtractionTimeout   time.Duration
	PollInterval        time.Duration

	Logger  *zap.Logger
	Metrics *telemetry.Metrics

	// OnChange is called after any state change, without locks held.
	OnChange func()
}

// State is a snapshot of one surface for rendering.
type State struct {
	Chat          engine.State
	Findings      model.FindingSet
	Topics        []Topic
	Participants  []model.Participant
	Collaborative bool
	IsOwner       bool
	Summarizing   bool
	Extracting    bool
	CanSummarize  bool
	AuthRejected  bool

	// Err is the most recent error to show, if any.
	Err error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator layers the key gate, findings extraction, topic coverage,
// collaborative polling and the persona bridge over one chat engine.
type Orchestrator struct {
	session string
	surface model.Surface
	backend Backend
	gate    *apikey.Gate
	store   ParticipantStore

	engine    *engine.Engine
	extractor *Extractor
	topics    *TopicTracker  // consultation only
	poller    *Poller        // consultation only
	persona   *PersonaBridge // nil without a persona backend

	extractionTimeout time.Duration
	onChange          func()
	logger            *zap.Logger

	mu            sync.Mutex
	collaborative bool
	participant   string
	summarizing   bool
	err           error
	authRejected  bool
	retryAction   apikey.Action
	retry         apikey.Thunk

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates the orchestrator of one surface.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Session == "" || cfg.Surface == "" || cfg.Backend == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.Gate == nil {
		cfg.Gate = apikey.NewGate(apikey.Default(), nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = DefaultExtractionTimeout
	}
	logger := cfg.Logger.With(zap.String("surface", cfg.Surface.String()), zap.String("session", cfg.Session))

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		session:           cfg.Session,
		surface:           cfg.Surface,
		backend:           cfg.Backend,
		gate:              cfg.Gate,
		store:             cfg.Participants,
		extractionTimeout: cfg.ExtractionTimeout,
		onChange:          cfg.OnChange,
		logger:            logger,
		ctx:               ctx,
		cancel:            cancel,
	}

	o.engine = engine.New(cfg.Surface, cfg.Backend,
		engine.WithLogger(logger),
		engine.WithOnChange(o.chatChanged),
		engine.WithOnError(o.requestFailed),
	)
	o.extractor = NewExtractor(cfg.Surface, cfg.Session, cfg.Backend, ExtractorConfig{
		Threshold: cfg.ExtractionThreshold,
		Timeout:   cfg.ExtractionTimeout,
		Logger:    logger,
		Metrics:   cfg.Metrics,
		OnUpdate:  func(model.FindingSet) { o.notify() },
	})
	if cfg.Surface.Collaborative() {
		o.topics = NewTopicTracker(cfg.Language)
		o.poller = NewPoller(cfg.Session, cfg.Backend, o.engine, PollerConfig{
			Interval: cfg.PollInterval,
			Logger:   logger,
			Metrics:  cfg.Metrics,
			OnStatus: o.statusChanged,
		})
	}
	if cfg.Personas != nil {
		o.persona = NewPersonaBridge(cfg.Session, cfg.Surface, cfg.Personas, cfg.PersonaPrefs, logger)
	}
	return o, nil
}

// Surface returns the orchestrated surface.
func (o *Orchestrator) Surface() model.Surface {
	return o.surface
}

// Session returns the session id.
func (o *Orchestrator) Session() string {
	return o.session
}

// Gate returns the API-key gate.
func (o *Orchestrator) Gate() *apikey.Gate {
	return o.gate
}

// Engine returns the underlying chat engine.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}

func (o *Orchestrator) notify() {
	if o.closed.Load() || o.onChange == nil {
		return
	}
	o.onChange()
}

func (o *Orchestrator) chatChanged() {
	if o.topics != nil {
		o.topics.Update(o.engine.Snapshot().Messages)
	}
	o.notify()
}

// requestFailed flags rejected keys so the UI can offer re-entry.
func (o *Orchestrator) requestFailed(err error) {
	if !api.IsAuth(err) {
		return
	}
	o.mu.Lock()
	o.authRejected = true
	o.mu.Unlock()
	o.logger.Info("API key rejected by backend")
	o.notify()
}

func (o *Orchestrator) setError(err error) {
	if err == nil || errors.Is(err, api.ErrCanceled) {
		return
	}
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
	o.requestFailed(err)
	o.notify()
}

func (o *Orchestrator) clearError() {
	o.mu.Lock()
	o.err = nil
	o.authRejected = false
	o.mu.Unlock()
}

// onComplete runs after every completed stream.
func (o *Orchestrator) onComplete() {
	if o.extractor.Observe(o.engine.CountNonSystem(), o.gate.Store().Get()) {
		o.notify()
	}
}

// gated runs fn with the API key, deferring it behind the key prompt when
// no key is set. An error of an immediate run is returned; an error of a
// deferred run is shown as the surface error.
func (o *Orchestrator) gated(action apikey.Action, fn func(key string) error) error {
	if o.closed.Load() {
		return engine.ErrClosed
	}

	var (
		mu       sync.Mutex
		deferred bool
		runErr   error
	)
	thunk := func(key string) {
		o.clearError()
		err := fn(key)
		mu.Lock()
		defer mu.Unlock()
		if deferred {
			o.setError(err)
			return
		}
		runErr = err
	}

	o.mu.Lock()
	o.retryAction, o.retry = action, thunk
	o.mu.Unlock()

	o.gate.Require(action, thunk)

	mu.Lock()
	deferred = true
	err := runErr
	mu.Unlock()
	return err
}

// =============================================================================
// LOADING
// =============================================================================

// LoadHistory restores the stored conversation and, on collaborative
// surfaces, the collaborative status.
func (o *Orchestrator) LoadHistory(ctx context.Context) error {
	if err := o.engine.LoadHistory(ctx, o.session); err != nil {
		return err
	}
	if o.poller == nil {
		return nil
	}
	o.poller.ObserveMessageID(o.engine.MaxServerID())

	if _, err := o.participantID(ctx); err != nil {
		o.logger.Warn("failed to resolve participant id", zap.Error(err))
	}
	st, err := o.backend.GetCollaborativeStatus(ctx, o.session)
	if err != nil {
		o.logger.Debug("collaborative status unavailable", zap.Error(err))
		return nil
	}
	o.poller.SetStatus(st)
	o.statusChanged(st)
	return nil
}

// LoadFindings fetches the stored finding set. A failure yields an empty set
// and is not an error.
func (o *Orchestrator) LoadFindings(ctx context.Context) model.FindingSet {
	fs, err := o.backend.GetFindings(ctx, o.session)
	if err != nil {
		o.logger.Debug("no findings loaded", zap.Error(err))
		fs = model.FindingSet{Surface: o.surface}
	}
	o.extractor.SetFindings(fs)
	o.notify()
	return o.extractor.Findings()
}

// =============================================================================
// CHAT ACTIONS
// =============================================================================

// Start opens the conversation with the assistant's first message.
func (o *Orchestrator) Start() error {
	return o.gated(apikey.ActionStartConversation, func(key string) error {
		return o.engine.StartStream(o.session, key, o.onComplete)
	})
}

// Send submits a user turn. In collaborative mode the turn is stored for
// the local participant and no reply is requested; otherwise the reply is
// streamed.
func (o *Orchestrator) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return engine.ErrEmptyMessage
	}
	if o.Collaborative() {
		o.clearError()
		participant, err := o.participantID(o.ctx)
		if err != nil {
			return err
		}
		return o.engine.PostMessage(text, func(ctx context.Context, content string) (int64, error) {
			ack, err := o.backend.SaveCollaborativeMessage(ctx, o.session, content, participant)
			return ack.MessageID, err
		})
	}
	return o.gated(apikey.ActionSendMessage, func(key string) error {
		return o.engine.SendMessage(o.session, text, key, o.onComplete)
	})
}

// RequestResponse streams an assistant reply to the conversation as it
// stands.
func (o *Orchestrator) RequestResponse() error {
	return o.gated(apikey.ActionRequestResponse, func(key string) error {
		return o.engine.RequestResponse(o.session, key, o.onComplete)
	})
}

// UseGeneratedResponse submits persona-generated text as the user's turn.
func (o *Orchestrator) UseGeneratedResponse(text string) error {
	return o.Send(text)
}

// Abort cancels the running chat stream and persona generation.
func (o *Orchestrator) Abort() {
	o.engine.Abort()
	if o.persona != nil {
		o.persona.Abort()
	}
}

// StartOver aborts any stream, deletes the conversation on the server and
// clears local state. When the server reset fails, local state is kept.
func (o *Orchestrator) StartOver(ctx context.Context) error {
	o.engine.Abort()
	if err := o.backend.Reset(ctx, o.session); err != nil {
		o.setError(err)
		return err
	}
	o.engine.Reset()
	o.extractor.Reset()
	if o.topics != nil {
		o.topics.Reset()
	}
	if o.poller != nil {
		o.poller.ResetMessageID()
	}
	o.clearError()
	o.logger.Info("conversation reset")
	o.notify()
	return nil
}

// ReenterKey reopens the key prompt after the backend rejected the key; the
// last gated action is retried on confirm.
func (o *Orchestrator) ReenterKey() {
	o.mu.Lock()
	action, retry := o.retryAction, o.retry
	o.authRejected = false
	o.mu.Unlock()

	if retry == nil {
		action, retry = apikey.ActionStartConversation, func(string) {}
	}
	o.gate.Prompt(action, retry)
}

// =============================================================================
// FINDINGS
// =============================================================================

// CanSummarize reports whether enough messages exist to summarize.
func (o *Orchestrator) CanSummarize() bool {
	return o.engine.CountNonSystem() >= SummarizeMinMessages
}

// Summarize runs a full extraction in the background and replaces the
// finding set with its result.
func (o *Orchestrator) Summarize() error {
	if !o.CanSummarize() {
		return ErrTooFewMessages
	}
	return o.gated(apikey.ActionSummarizeOrExtract, func(key string) error {
		o.mu.Lock()
		if o.summarizing {
			o.mu.Unlock()
			return ErrSummarizeRunning
		}
		o.summarizing = true
		o.mu.Unlock()
		o.notify()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			ctx, cancel := context.WithTimeout(o.ctx, o.extractionTimeout)
			res, err := o.backend.Extract(ctx, o.session, key)
			cancel()

			o.mu.Lock()
			o.summarizing = false
			o.mu.Unlock()
			if err != nil {
				o.logger.Warn("summarize failed", zap.Error(err))
				o.setError(err)
				return
			}
			o.extractor.SetFindings(res.Findings)
			o.notify()
		}()
		return nil
	})
}

// Findings returns the current finding set.
func (o *Orchestrator) Findings() model.FindingSet {
	return o.extractor.Findings()
}

// =============================================================================
// TOPICS
// =============================================================================

// Topics returns topic coverage; nil on surfaces without topics.
func (o *Orchestrator) Topics() []Topic {
	if o.topics == nil {
		return nil
	}
	return o.topics.Topics()
}

// SkipTopic marks a topic as covered.
func (o *Orchestrator) SkipTopic(key string) error {
	if o.topics == nil {
		return ErrNotSupported
	}
	if err := o.topics.Skip(key); err != nil {
		return err
	}
	o.notify()
	return nil
}

// =============================================================================
// COLLABORATION
// =============================================================================

// participantID returns the local participant id, resolving it once.
func (o *Orchestrator) participantID(ctx context.Context) (string, error) {
	o.mu.Lock()
	id := o.participant
	o.mu.Unlock()
	if id != "" {
		return id, nil
	}

	if o.store != nil {
		var err error
		id, err = o.store.ParticipantUUID(ctx, o.session)
		if err != nil {
			return "", err
		}
	} else {
		id = uuid.NewString()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.participant == "" {
		o.participant = id
	}
	return o.participant, nil
}

// ParticipantID returns the local participant id, or "" before it was
// resolved.
func (o *Orchestrator) ParticipantID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.participant
}

// statusChanged follows the collaborative mode reported by the server. It
// runs on the poll loop, so the loop is halted rather than stopped.
func (o *Orchestrator) statusChanged(st model.CollaborativeStatus) {
	o.mu.Lock()
	changed := st.CollaborativeMode != o.collaborative
	o.collaborative = st.CollaborativeMode
	o.mu.Unlock()

	if changed && o.poller != nil && !o.closed.Load() {
		if st.CollaborativeMode {
			o.poller.ObserveMessageID(o.engine.MaxServerID())
			o.poller.Start(o.ctx)
		} else {
			o.poller.Halt()
		}
		o.logger.Info("collaborative mode changed remotely", zap.Bool("enabled", st.CollaborativeMode))
	}
	o.notify()
}

// Collaborative reports whether collaborative mode is on.
func (o *Orchestrator) Collaborative() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.collaborative
}

// SetCollaborative turns collaborative mode on or off. Only the owner may
// toggle it once an owner is known.
func (o *Orchestrator) SetCollaborative(ctx context.Context, enabled bool) error {
	if o.poller == nil {
		return ErrNotSupported
	}
	if !o.IsOwner() {
		return ErrNotOwner
	}
	if _, err := o.participantID(ctx); err != nil {
		return err
	}
	o.poller.Invalidate()
	defer o.poller.Invalidate()
	if err := o.backend.SetCollaborativeMode(ctx, o.session, enabled); err != nil {
		o.setError(err)
		return err
	}

	o.mu.Lock()
	o.collaborative = enabled
	o.mu.Unlock()
	if enabled {
		o.poller.ObserveMessageID(o.engine.MaxServerID())
		o.poller.Start(o.ctx)
	} else {
		o.poller.Stop()
	}
	o.logger.Info("collaborative mode changed", zap.Bool("enabled", enabled))
	o.notify()
	return nil
}

// Participants returns the participants of the last status.
func (o *Orchestrator) Participants() []model.Participant {
	if o.poller == nil {
		return nil
	}
	st, _ := o.poller.Status()
	return st.Participants
}

// IsOwner reports whether the local participant owns the session. Without
// a known owner the local user is treated as owner.
func (o *Orchestrator) IsOwner() bool {
	if o.poller == nil {
		return true
	}
	st, ok := o.poller.Status()
	if !ok || st.OwnerParticipantUUID == "" {
		return true
	}
	return st.IsOwner(o.ParticipantID())
}

// SetPollInterval changes the collaborative poll period.
func (o *Orchestrator) SetPollInterval(d time.Duration) {
	if o.poller != nil {
		o.poller.SetInterval(d)
	}
}

// Poll runs one collaborative poll immediately.
func (o *Orchestrator) Poll(ctx context.Context) error {
	if o.poller == nil {
		return ErrNotSupported
	}
	return o.poller.Poll(ctx)
}

// LastMessageID returns the greatest collaborative message id observed.
func (o *Orchestrator) LastMessageID() int64 {
	if o.poller == nil {
		return 0
	}
	return o.poller.LastMessageID()
}

// =============================================================================
// PERSONAS
// =============================================================================

// Personas lists test-mode personas.
func (o *Orchestrator) Personas(ctx context.Context) ([]api.Persona, error) {
	if o.persona == nil {
		return nil, ErrNotSupported
	}
	return o.persona.Personas(ctx)
}

// LastPersona returns the remembered persona id.
func (o *Orchestrator) LastPersona(ctx context.Context) string {
	if o.persona == nil {
		return ""
	}
	return o.persona.LastPersona(ctx)
}

// GenerateResponse streams a persona's answer in the background. onChunk
// receives deltas; onDone receives the full text or the error. The text is
// not sent; pass it to UseGeneratedResponse.
func (o *Orchestrator) GenerateResponse(personaID string, onChunk func(string), onDone func(string, error)) error {
	if o.persona == nil {
		return ErrNotSupported
	}
	return o.gated(apikey.ActionGenerateResponse, func(key string) error {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			text, err := o.persona.Generate(o.ctx, personaID, key, onChunk)
			if err != nil && !errors.Is(err, api.ErrCanceled) {
				o.requestFailed(err)
			}
			if onDone != nil {
				onDone(text, err)
			}
		}()
		return nil
	})
}

// =============================================================================
// SNAPSHOT AND LIFECYCLE
// =============================================================================

// Snapshot returns the state for rendering.
func (o *Orchestrator) Snapshot() State {
	chat := o.engine.Snapshot()

	o.mu.Lock()
	st := State{
		Chat:          chat,
		Collaborative: o.collaborative,
		Summarizing:   o.summarizing,
		AuthRejected:  o.authRejected,
		Err:           o.err,
	}
	o.mu.Unlock()

	if st.Err == nil {
		st.Err = chat.Err
	}
	st.Findings = o.extractor.Findings()
	st.Extracting = o.extractor.Running()
	st.Topics = o.Topics()
	st.Participants = o.Participants()
	st.IsOwner = o.IsOwner()
	visible := 0
	for _, m := range chat.Messages {
		if m.Visible() {
			visible++
		}
	}
	st.CanSummarize = visible >= SummarizeMinMessages
	return st
}

// Wait blocks until background work of the orchestrator and its engine has
// finished.
func (o *Orchestrator) Wait() {
	o.engine.Wait()
	o.wg.Wait()
	o.extractor.Wait()
}

// Close tears the surface down. After Close returns no state changes and no
// notifications happen.
func (o *Orchestrator) Close() {
	if !o.closed.CompareAndSwap(false, true) {
		return
	}
	o.engine.Close()
	o.cancel()
	if o.poller != nil {
		o.poller.Stop()
	}
	o.extractor.Close()
	if o.persona != nil {
		o.persona.Close()
	}
	o.logger.Debug("orchestrator closed")
}
