// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/logging"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind discriminates stream events.
type EventKind int

const (
	// EventChunk carries a text delta.
	EventChunk EventKind = iota
	// EventDone terminates the stream gracefully.
	EventDone
	// EventError terminates the stream with Err.
	EventError
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a stream: a chunk, or one of the two terminators.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind != EventChunk
}

// streamBuffer is the event channel capacity.
const streamBuffer = 64

// Stream is a running SSE response.
//
// The channel yields chunks in arrival order followed by exactly one Done or
// Error event, then closes. When the request context is cancelled the channel
// closes without a terminal event.
type Stream struct {
	events <-chan Event
}

// NewStream wraps an event channel. The producer must follow the Stream
// contract: chunks, then one terminal event, then close.
func NewStream(events <-chan Event) *Stream {
	return &Stream{events: events}
}

// Events returns the event channel.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Dispatch drains the stream into the chunk/done/error callbacks and returns
// when the stream has ended. At most one of onDone and onError is called, and
// neither is called for a cancelled stream. Nil callbacks are skipped.
func (s *Stream) Dispatch(onChunk func(string), onDone func(), onError func(error)) {
	for ev := range s.events {
		switch ev.Kind {
		case EventChunk:
			if onChunk != nil {
				onChunk(ev.Text)
			}
		case EventDone:
			if onDone != nil {
				onDone()
			}
			return
		case EventError:
			if onError != nil {
				onError(ev.Err)
			}
			return
		}
	}
}

// Collect drains the stream and returns the concatenated text. A cancelled
// stream returns ErrCanceled.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for ev := range s.events {
		switch ev.Kind {
		case EventChunk:
			b.WriteString(ev.Text)
		case EventDone:
			return b.String(), nil
		case EventError:
			return b.String(), ev.Err
		}
	}
	return b.String(), ErrCanceled
}

// failedStream returns a stream that only carries err.
func failedStream(err error) *Stream {
	ch := make(chan Event, 1)
	ch <- Event{Kind: EventError, Err: err}
	close(ch)
	return &Stream{events: ch}
}

// =============================================================================
// STREAMING REQUESTS
// =============================================================================

// streamRequest describes an SSE request.
type streamRequest struct {
	name   string
	vars   Vars
	body   interface{}
	apiKey string
	label  string // metrics label, usually the surface
}

// openStream starts an SSE request and returns the stream immediately; the
// connection is opened on a goroutine owned by the stream.
func (c *Client) openStream(ctx context.Context, sr streamRequest) *Stream {
	var payload []byte
	if sr.body != nil {
		data, err := json.Marshal(sr.body)
		if err != nil {
			return failedStream(fmt.Errorf("failed to marshal request: %w", err))
		}
		payload = data
	} else {
		payload = []byte("{}")
	}

	req, err := c.newRequest(ctx, http.MethodPost, sr.name, sr.vars, nil, bytes.NewReader(payload), sr.apiKey)
	if err != nil {
		return failedStream(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	ch := make(chan Event, streamBuffer)
	go c.runStream(ctx, req, sr, ch)
	return &Stream{events: ch}
}

// runStream performs the request and pumps parsed events into ch.
func (c *Client) runStream(ctx context.Context, req *http.Request, sr streamRequest, ch chan<- Event) {
	defer close(ch)

	logger := c.logger.With(
		zap.String("endpoint", sr.name),
		zap.String("surface", sr.label),
		logging.Key(sr.apiKey),
	)
	start := time.Now()
	chunks := 0
	var partial strings.Builder

	// emit delivers ev unless the caller cancelled.
	emit := func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		if ctx.Err() != nil {
			c.metrics.StreamFinished(sr.label, "canceled")
			return
		}
		logger.Warn("stream failed", zap.String("kind", Kind(err).String()), zap.Error(err))
		c.metrics.StreamFinished(sr.label, "error")
		emit(Event{Kind: EventError, Err: err})
	}

	logger.Debug("stream opening", zap.String("path", req.URL.Path))
	resp, err := c.streamClient.Do(req)
	if err != nil {
		c.metrics.Request(req.Method, 0)
		fail(&NetworkError{Op: req.Method + " " + req.URL.Path, Err: err})
		return
	}
	defer resp.Body.Close()
	c.metrics.Request(req.Method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readResponse(resp)
		fail(handleErrorResponse(resp.StatusCode, body))
		return
	}

	var carry utf8Carry
	reader := NewSSEReader(resp.Body)
	for {
		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Close without a terminator counts as a graceful end.
				break
			}
			if ctx.Err() == nil {
				err = &StreamError{Partial: partial.String(), Err: err}
			}
			fail(err)
			return
		}

		if eventType == "error" {
			fail(&ServerError{Status: resp.StatusCode, Message: errorMessage(data)})
			return
		}
		if string(data) == DoneToken {
			break
		}

		text := carry.feed(data)
		if text == "" {
			continue
		}
		if chunks == 0 {
			c.metrics.FirstChunk(sr.label, time.Since(start))
		}
		chunks++
		c.metrics.Chunk(sr.label)
		partial.WriteString(text)
		if !emit(Event{Kind: EventChunk, Text: text}) {
			c.metrics.StreamFinished(sr.label, "canceled")
			return
		}
	}

	if tail := carry.flush(); tail != "" {
		if !emit(Event{Kind: EventChunk, Text: tail}) {
			c.metrics.StreamFinished(sr.label, "canceled")
			return
		}
	}
	if emit(Event{Kind: EventDone}) {
		c.metrics.StreamFinished(sr.label, "done")
		logger.Debug("stream done", zap.Int("chunks", chunks), zap.Duration("duration", time.Since(start)))
	} else {
		c.metrics.StreamFinished(sr.label, "canceled")
	}
}
