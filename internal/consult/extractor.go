// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

// Extraction defaults.
const (
	DefaultExtractionThreshold = 4
	DefaultExtractionTimeout   = 2 * time.Minute
)

// IncrementalBackend runs incremental extractions.
type IncrementalBackend interface {
	ExtractIncremental(ctx context.Context, session, apiKey string) (api.IncrementalResult, error)
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor keeps the finding set of one surface and refreshes it in the
// background as the conversation grows.
//
// After each completed stream the caller reports the non-system message
// count. An extraction fires when count >= threshold and at least threshold
// messages were added since the last one. It runs on its own goroutine with
// a timeout and never touches the chat engine; failures are logged and
// dropped.
type Extractor struct {
	surface   model.Surface
	session   string
	backend   IncrementalBackend
	threshold int
	timeout   time.Duration

	mu   sync.Mutex
	last int
	gen  uint64 // bumped by Reset; stale results are dropped

	findings atomic.Pointer[model.FindingSet]
	running  atomic.Int32

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *telemetry.Metrics

	onUpdate func(model.FindingSet)
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	Threshold int
	Timeout   time.Duration
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics

	// OnUpdate is called after the finding set was replaced.
	OnUpdate func(model.FindingSet)
}

// NewExtractor creates an extractor for one surface and session.
func NewExtractor(surface model.Surface, session string, backend IncrementalBackend, cfg ExtractorConfig) *Extractor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultExtractionThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExtractionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	x := &Extractor{
		surface:   surface,
		session:   session,
		backend:   backend,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
		ctx:       ctx,
		cancel:    cancel,
		logger:    cfg.Logger.Named("extractor"),
		metrics:   cfg.Metrics,
		onUpdate:  cfg.OnUpdate,
	}
	empty := model.FindingSet{Surface: surface}
	x.findings.Store(&empty)
	return x
}

// Observe reports the current non-system message count and starts an
// extraction when due. Returns true when one was started.
func (x *Extractor) Observe(count int, apiKey string) bool {
	if apiKey == "" || x.ctx.Err() != nil {
		return false
	}

	x.mu.Lock()
	if count < x.threshold || count-x.last < x.threshold {
		x.mu.Unlock()
		return false
	}
	x.last = count
	gen := x.gen
	x.mu.Unlock()

	x.logger.Debug("incremental extraction", zap.Int("count", count))
	x.wg.Add(1)
	x.running.Add(1)
	go func() {
		defer x.wg.Done()
		defer x.running.Add(-1)
		x.run(gen, apiKey)
	}()
	return true
}

func (x *Extractor) run(gen uint64, apiKey string) {
	ctx, cancel := context.WithTimeout(x.ctx, x.timeout)
	defer cancel()

	res, err := x.backend.ExtractIncremental(ctx, x.session, apiKey)
	if err != nil {
		if x.ctx.Err() == nil {
			x.logger.Warn("incremental extraction failed",
				zap.String("kind", api.Kind(err).String()),
				zap.Error(err),
			)
		}
		x.metrics.Extraction(x.surface.String(), "error")
		return
	}
	if !res.Updated {
		x.metrics.Extraction(x.surface.String(), "unchanged")
		return
	}

	x.mu.Lock()
	if gen != x.gen || x.ctx.Err() != nil {
		x.mu.Unlock()
		x.metrics.Extraction(x.surface.String(), "stale")
		return
	}
	fs := res.Findings
	fs.Surface = x.surface
	x.findings.Store(&fs)
	x.mu.Unlock()

	x.metrics.Extraction(x.surface.String(), "updated")
	if x.onUpdate != nil {
		x.onUpdate(fs)
	}
}

// Findings returns the current finding set.
func (x *Extractor) Findings() model.FindingSet {
	return *x.findings.Load()
}

// SetFindings replaces the finding set, e.g. after a load or a full
// summarize.
func (x *Extractor) SetFindings(fs model.FindingSet) {
	fs.Surface = x.surface
	x.mu.Lock()
	x.findings.Store(&fs)
	x.mu.Unlock()
}

// LastCount returns the message count of the last extraction.
func (x *Extractor) LastCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.last
}

// Running reports whether an extraction is in flight.
func (x *Extractor) Running() bool {
	return x.running.Load() > 0
}

// Reset forgets the counter and the finding set. Results of extractions
// already in flight are discarded.
func (x *Extractor) Reset() {
	x.mu.Lock()
	x.last = 0
	x.gen++
	empty := model.FindingSet{Surface: x.surface}
	x.findings.Store(&empty)
	x.mu.Unlock()
}

// Wait blocks until in-flight extractions finished.
func (x *Extractor) Wait() {
	x.wg.Wait()
}

// Close cancels in-flight extractions; their results are dropped.
func (x *Extractor) Close() {
	x.cancel()
}
