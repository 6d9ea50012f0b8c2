// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

// DefaultPollInterval is the collaborative poll period.
const DefaultPollInterval = 3 * time.Second

// CollaborativeBackend fetches collaborative state.
type CollaborativeBackend interface {
	GetCollaborativeMessages(ctx context.Context, session string, sinceID int64) ([]model.Message, error)
	GetCollaborativeStatus(ctx context.Context, session string) (model.CollaborativeStatus, error)
}

// MessageSink receives polled messages; the chat engine implements it.
type MessageSink interface {
	MergeRemote(msgs []model.Message) (added int, maxID int64)
	Started() bool
}

// =============================================================================
// POLLER
// =============================================================================

// Poller converges the local transcript with the collaborative session.
//
// Each tick fetches the messages after the last seen id and the session
// status concurrently. Messages are merged by id, and the last seen id only
// ever grows. Failures are logged at debug level and retried on the next
// tick. A status fetched across an Invalidate call is discarded.
type Poller struct {
	backend CollaborativeBackend
	sink    MessageSink
	session string

	interval atomic.Int64 // nanoseconds
	epoch    atomic.Uint64

	mu       sync.Mutex
	lastID   int64
	status   model.CollaborativeStatus
	haveStat bool
	cancel   context.CancelFunc
	done     chan struct{}

	onStatus func(model.CollaborativeStatus)
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics

	// OnStatus is called after each successful status fetch.
	OnStatus func(model.CollaborativeStatus)
}

// NewPoller creates a stopped poller.
func NewPoller(session string, backend CollaborativeBackend, sink MessageSink, cfg PollerConfig) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &Poller{
		backend:  backend,
		sink:     sink,
		session:  session,
		onStatus: cfg.OnStatus,
		logger:   cfg.Logger.Named("poller"),
		metrics:  cfg.Metrics,
	}
	p.SetInterval(cfg.Interval)
	return p
}

// SetInterval changes the poll period; it applies from the next tick.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	p.interval.Store(int64(d))
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// Start runs the poll loop until Stop or ctx is done. Calling Start on a
// running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the poll loop and waits for it.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Halt ends the poll loop without waiting for it. Unlike Stop it may be
// called from OnStatus, which runs on the loop goroutine.
func (p *Poller) Halt() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Invalidate discards the status of any poll already in flight. Call it
// around a local change of collaborative mode.
func (p *Poller) Invalidate() {
	p.epoch.Add(1)
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Debug("collaborative poll failed", zap.Error(err))
			}
			timer.Reset(p.Interval())
		}
	}
}

// Poll performs one tick. Messages are only fetched once the conversation
// has started, locally or according to the last status.
func (p *Poller) Poll(ctx context.Context) error {
	epoch := p.epoch.Load()
	p.mu.Lock()
	since := p.lastID
	fetchMessages := p.sink.Started() || (p.haveStat && p.status.ConsultationStarted)
	p.mu.Unlock()

	var (
		msgs   []model.Message
		status model.CollaborativeStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	if fetchMessages {
		g.Go(func() error {
			var err error
			msgs, err = p.backend.GetCollaborativeMessages(gctx, p.session, since)
			return err
		})
	}
	g.Go(func() error {
		var err error
		status, err = p.backend.GetCollaborativeStatus(gctx, p.session)
		return err
	})
	if err := g.Wait(); err != nil {
		p.metrics.Poll(false)
		return err
	}
	p.metrics.Poll(true)

	var maxID int64
	if len(msgs) > 0 {
		var added int
		added, maxID = p.sink.MergeRemote(msgs)
		if added > 0 {
			p.logger.Debug("merged collaborative messages", zap.Int("added", added), zap.Int64("max_id", maxID))
		}
	}

	p.mu.Lock()
	if maxID > p.lastID {
		p.lastID = maxID
	}
	stale := ctx.Err() != nil || p.epoch.Load() != epoch
	if !stale {
		p.status = status
		p.haveStat = true
	}
	p.mu.Unlock()

	if stale {
		p.logger.Debug("discarded stale collaborative status")
		return ctx.Err()
	}
	if p.onStatus != nil {
		p.onStatus(status)
	}
	return nil
}

// LastMessageID returns the greatest message id observed.
func (p *Poller) LastMessageID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastID
}

// ObserveMessageID raises the last seen id, e.g. after loading history.
func (p *Poller) ObserveMessageID(id int64) {
	p.mu.Lock()
	if id > p.lastID {
		p.lastID = id
	}
	p.mu.Unlock()
}

// ResetMessageID forgets the last seen id after the conversation was reset.
func (p *Poller) ResetMessageID() {
	p.mu.Lock()
	p.lastID = 0
	p.mu.Unlock()
}

// Status returns the last fetched status; ok is false before the first
// successful poll.
func (p *Poller) Status() (model.CollaborativeStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.haveStat
}

// SetStatus records a status fetched outside the loop.
func (p *Poller) SetStatus(st model.CollaborativeStatus) {
	p.mu.Lock()
	p.status = st
	p.haveStat = true
	p.mu.Unlock()
}
