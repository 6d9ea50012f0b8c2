// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

func TestExtractor_FiresEveryThresholdMessages(t *testing.T) {
	fb := newFakeBackend()
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{})
	defer x.Close()

	var fired []int
	for _, count := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9} {
		if x.Observe(count, "key-12345678") {
			fired = append(fired, count)
		}
		x.Wait()
	}
	assert.Equal(t, []int{4, 8}, fired)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fb.incrementalN))
	assert.Equal(t, 8, x.LastCount())
}

func TestExtractor_SkippedCountsStillFire(t *testing.T) {
	fb := newFakeBackend()
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{Threshold: 4})
	defer x.Close()

	assert.True(t, x.Observe(5, "key-12345678"))
	assert.False(t, x.Observe(7, "key-12345678"))
	assert.True(t, x.Observe(10, "key-12345678"))
	x.Wait()
}

func TestExtractor_RequiresKey(t *testing.T) {
	fb := newFakeBackend()
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{})
	defer x.Close()

	assert.False(t, x.Observe(4, ""))
	assert.Zero(t, x.LastCount())
	assert.True(t, x.Observe(4, "key-12345678"))
	x.Wait()
	assert.Equal(t, "key-12345678", fb.incrementalKey)
}

func TestExtractor_UpdatedReplacesFindings(t *testing.T) {
	fb := newFakeBackend()
	fb.incremental = api.IncrementalResult{
		Updated:  true,
		Findings: model.NewFindingSet(model.SurfaceConsultation, map[string]string{"ai_goals": "Forecast demand"}, ""),
	}
	metrics := telemetry.New()
	updates := make(chan model.FindingSet, 1)
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{
		Metrics:  metrics,
		OnUpdate: func(fs model.FindingSet) { updates <- fs },
	})
	defer x.Close()

	require.True(t, x.Observe(4, "key-12345678"))
	select {
	case fs := <-updates:
		text, ok := fs.Section("ai_goals")
		assert.True(t, ok)
		assert.Equal(t, "Forecast demand", text)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}
	x.Wait()

	text, ok := x.Findings().Section("ai_goals")
	assert.True(t, ok)
	assert.Equal(t, "Forecast demand", text)
	assert.False(t, x.Running())
}

func TestExtractor_UnchangedAndErrorKeepFindings(t *testing.T) {
	fb := newFakeBackend()
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{})
	defer x.Close()

	prev := model.NewFindingSet(model.SurfaceConsultation, map[string]string{"project_plan": "Pilot in Q3"}, "")
	x.SetFindings(prev)

	fb.incremental = api.IncrementalResult{Updated: false}
	require.True(t, x.Observe(4, "key-12345678"))
	x.Wait()
	assert.Equal(t, prev.Sections, x.Findings().Sections)

	fb.incrementalErr = errors.New("boom")
	require.True(t, x.Observe(8, "key-12345678"))
	x.Wait()
	assert.Equal(t, prev.Sections, x.Findings().Sections)
}

func TestExtractor_ResetDropsInFlightResult(t *testing.T) {
	fb := newFakeBackend()
	fb.extractGate = make(chan struct{})
	fb.incremental = api.IncrementalResult{
		Updated:  true,
		Findings: model.NewFindingSet(model.SurfaceConsultation, map[string]string{"ai_goals": "stale"}, ""),
	}
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{})
	defer x.Close()

	require.True(t, x.Observe(4, "key-12345678"))
	waitFor(t, x.Running)

	x.Reset()
	close(fb.extractGate)
	x.Wait()

	assert.True(t, x.Findings().IsEmpty())
	assert.Zero(t, x.LastCount())
	// The counter restarts from zero.
	assert.True(t, x.Observe(4, "key-12345678"))
	x.Wait()
}

func TestExtractor_CloseStopsObserving(t *testing.T) {
	fb := newFakeBackend()
	x := NewExtractor(model.SurfaceConsultation, "s1", fb, ExtractorConfig{})
	x.Close()
	assert.False(t, x.Observe(4, "key-12345678"))
}
