// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	streams     *prometheus.CounterVec
	chunks      *prometheus.CounterVec
	firstChunk  *prometheus.HistogramVec
	extractions *prometheus.CounterVec
	polls       *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Name:      "streams_total",
			Help:      "Chat streams by surface and outcome (done, error, canceled).",
		}, []string{"surface", "outcome"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Name:      "stream_chunks_total",
			Help:      "Text deltas received by surface.",
		}, []string{"surface"}),
		firstChunk: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consult",
			Name:      "stream_first_chunk_seconds",
			Help:      "Time from stream start to first delta.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"surface"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Name:      "extractions_total",
			Help:      "Incremental extractions by surface and result (updated, unchanged, error).",
		}, []string{"surface", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Name:      "collaborative_polls_total",
			Help:      "Collaborative polls by result (ok, error).",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Name:      "http_requests_total",
			Help:      "Backend requests by method and status code.",
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(m.streams, m.chunks, m.firstChunk, m.extractions, m.polls, m.requests)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StreamFinished counts a finished stream.
func (m *Metrics) StreamFinished(surface, outcome string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(surface, outcome).Inc()
}

// Chunk counts a received delta.
func (m *Metrics) Chunk(surface string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(surface).Inc()
}

// FirstChunk observes the latency to the first delta.
func (m *Metrics) FirstChunk(surface string, d time.Duration) {
	if m == nil {
		return
	}
	m.firstChunk.WithLabelValues(surface).Observe(d.Seconds())
}

// Extraction counts an incremental extraction.
func (m *Metrics) Extraction(surface, result string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(surface, result).Inc()
}

// Poll counts a collaborative poll.
func (m *Metrics) Poll(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
}

// Request counts a backend request. code 0 means no response.
func (m *Metrics) Request(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// =============================================================================
// EXPOSITION
// =============================================================================

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
