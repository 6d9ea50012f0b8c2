// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// SURFACE CLIENT
// =============================================================================

// SurfaceClient exposes the endpoints of one chat surface.
type SurfaceClient struct {
	c       *Client
	surface model.Surface
}

// SaveAck acknowledges a persisted user turn.
type SaveAck struct {
	MessageID int64 `json:"message_id"`
}

// ExtractResult is the outcome of a full extraction.
type ExtractResult struct {
	Findings model.FindingSet
	Summary  string
}

// IncrementalResult is the outcome of an incremental extraction. Findings is
// only meaningful when Updated is true.
type IncrementalResult struct {
	Updated  bool
	Findings model.FindingSet
}

// Surface returns the surface this client addresses.
func (s *SurfaceClient) Surface() model.Surface {
	return s.surface
}

func (s *SurfaceClient) vars(session string) Vars {
	return Vars{Surface: s.surface, Session: session}
}

// GetMessages fetches the stored conversation in server order.
func (s *SurfaceClient) GetMessages(ctx context.Context, session string) ([]model.Message, error) {
	var raw json.RawMessage
	if err := s.c.call(ctx, http.MethodGet, EndpointMessages, s.vars(session), nil, "", nil, &raw); err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

// SaveMessage persists a user turn.
func (s *SurfaceClient) SaveMessage(ctx context.Context, session, content string) (SaveAck, error) {
	var ack SaveAck
	body := map[string]string{"content": content}
	if err := s.c.call(ctx, http.MethodPost, EndpointSaveMessage, s.vars(session), nil, "", body, &ack); err != nil {
		return SaveAck{}, err
	}
	return ack, nil
}

// StartStream opens the stream that begins the conversation.
func (s *SurfaceClient) StartStream(ctx context.Context, session, apiKey string) *Stream {
	return s.c.openStream(ctx, streamRequest{
		name:   EndpointStartStream,
		vars:   s.vars(session),
		body:   s.c.streamBody(),
		apiKey: apiKey,
		label:  string(s.surface),
	})
}

// RequestAIResponseStream opens the stream answering the persisted turns.
func (s *SurfaceClient) RequestAIResponseStream(ctx context.Context, session, apiKey string) *Stream {
	return s.c.openStream(ctx, streamRequest{
		name:   EndpointRequestStream,
		vars:   s.vars(session),
		body:   s.c.streamBody(),
		apiKey: apiKey,
		label:  string(s.surface),
	})
}

// GetFindings fetches the current finding set.
func (s *SurfaceClient) GetFindings(ctx context.Context, session string) (model.FindingSet, error) {
	var raw json.RawMessage
	if err := s.c.call(ctx, http.MethodGet, EndpointFindings, s.vars(session), nil, "", nil, &raw); err != nil {
		return model.FindingSet{Surface: s.surface}, err
	}
	fs, _, err := decodeFindings(s.surface, raw)
	return fs, err
}

// Extract runs the summarize endpoint, rewriting the finding set.
func (s *SurfaceClient) Extract(ctx context.Context, session, apiKey string) (ExtractResult, error) {
	var raw json.RawMessage
	if err := s.c.call(ctx, http.MethodPost, EndpointSummarize, s.vars(session), nil, apiKey, s.c.streamBody(), &raw); err != nil {
		return ExtractResult{Findings: model.FindingSet{Surface: s.surface}}, err
	}
	fs, summary, err := decodeFindings(s.surface, raw)
	if err != nil {
		return ExtractResult{Findings: model.FindingSet{Surface: s.surface}}, err
	}
	return ExtractResult{Findings: fs, Summary: summary}, nil
}

// ExtractIncremental asks the backend to refresh findings if the transcript
// warrants it.
func (s *SurfaceClient) ExtractIncremental(ctx context.Context, session, apiKey string) (IncrementalResult, error) {
	var resp struct {
		Updated  bool            `json:"updated"`
		Findings json.RawMessage `json:"findings"`
		Summary  string          `json:"summary"`
	}
	if err := s.c.call(ctx, http.MethodPost, EndpointExtractIncremental, s.vars(session), nil, apiKey, s.c.streamBody(), &resp); err != nil {
		return IncrementalResult{}, err
	}
	if !resp.Updated {
		return IncrementalResult{}, nil
	}
	sections, err := decodeSections(resp.Findings)
	if err != nil {
		return IncrementalResult{}, err
	}
	return IncrementalResult{
		Updated:  true,
		Findings: model.NewFindingSet(s.surface, sections, resp.Summary),
	}, nil
}

// Reset deletes the server-side conversation and findings.
func (s *SurfaceClient) Reset(ctx context.Context, session string) error {
	return s.c.call(ctx, http.MethodPost, EndpointReset, s.vars(session), nil, "", nil, nil)
}

// streamBody is the JSON body of LLM-triggering requests.
func (c *Client) streamBody() map[string]string {
	if c.language == "" {
		return map[string]string{}
	}
	return map[string]string{"language": c.language}
}

// =============================================================================
// COLLABORATIVE MODE (CONSULTATION ONLY)
// =============================================================================

// CollaborativeAck is the stored row of a collaborative message.
type CollaborativeAck struct {
	MessageID       int64  `json:"message_id"`
	Content         string `json:"content"`
	ParticipantName string `json:"participant_name"`
}

func (s *SurfaceClient) requireCollaborative() error {
	if !s.surface.Collaborative() {
		return fmt.Errorf("%w: collaborative mode on %s", ErrNotSupported, s.surface)
	}
	return nil
}

// SetCollaborativeMode toggles collaborative mode for the session.
func (s *SurfaceClient) SetCollaborativeMode(ctx context.Context, session string, enabled bool) error {
	if err := s.requireCollaborative(); err != nil {
		return err
	}
	body := map[string]bool{"enabled": enabled}
	return s.c.call(ctx, http.MethodPost, EndpointCollaborativeMode, s.vars(session), nil, "", body, nil)
}

// GetCollaborativeStatus fetches mode, participants and owner.
func (s *SurfaceClient) GetCollaborativeStatus(ctx context.Context, session string) (model.CollaborativeStatus, error) {
	var st model.CollaborativeStatus
	if err := s.requireCollaborative(); err != nil {
		return st, err
	}
	err := s.c.call(ctx, http.MethodGet, EndpointCollaborativeStatus, s.vars(session), nil, "", nil, &st)
	return st, err
}

// GetCollaborativeMessages fetches messages with id greater than sinceID.
// sinceID 0 fetches everything.
func (s *SurfaceClient) GetCollaborativeMessages(ctx context.Context, session string, sinceID int64) ([]model.Message, error) {
	if err := s.requireCollaborative(); err != nil {
		return nil, err
	}
	var query url.Values
	if sinceID > 0 {
		query = url.Values{"since_id": {strconv.FormatInt(sinceID, 10)}}
	}
	var raw json.RawMessage
	if err := s.c.call(ctx, http.MethodGet, EndpointCollaborativeMessages, s.vars(session), query, "", nil, &raw); err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

// SaveCollaborativeMessage stores a user turn on behalf of a participant.
func (s *SurfaceClient) SaveCollaborativeMessage(ctx context.Context, session, content, participantUUID string) (CollaborativeAck, error) {
	var ack CollaborativeAck
	if err := s.requireCollaborative(); err != nil {
		return ack, err
	}
	body := map[string]string{
		"content":          content,
		"participant_uuid": participantUUID,
	}
	err := s.c.call(ctx, http.MethodPost, EndpointCollaborativeMessage, s.vars(session), nil, "", body, &ack)
	return ack, err
}

// =============================================================================
// FINDINGS DECODING
// =============================================================================

// decodeFindings accepts {"findings": {...}, "summary": "..."} or a bare
// section object.
func decodeFindings(surface model.Surface, data []byte) (model.FindingSet, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return model.FindingSet{Surface: surface, Sections: map[string]string{}}, "", nil
	}

	var env struct {
		Findings json.RawMessage `json:"findings"`
		Summary  string          `json:"summary"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return model.FindingSet{Surface: surface}, "", fmt.Errorf("failed to parse findings: %w", err)
	}

	raw := env.Findings
	if len(raw) == 0 {
		raw = trimmed
	}
	sections, err := decodeSections(raw)
	if err != nil {
		return model.FindingSet{Surface: surface}, "", err
	}
	return model.NewFindingSet(surface, sections, env.Summary), env.Summary, nil
}

// decodeSections reads a section object, skipping null and non-string values.
func decodeSections(raw json.RawMessage) (map[string]string, error) {
	out := make(map[string]string)
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse findings: %w", err)
	}
	for k, v := range fields {
		var text string
		if err := json.Unmarshal(v, &text); err == nil {
			out[k] = text
		}
	}
	return out, nil
}
