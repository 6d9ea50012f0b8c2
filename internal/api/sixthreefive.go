// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// 6-3-5 BRAINSTORMING
// =============================================================================

// IdeasPerRound is the number of ideas each participant writes per round.
const IdeasPerRound = 3

// SixThreeFiveStatus is the state of the brainstorming round.
type SixThreeFiveStatus struct {
	Status       string              `json:"status"`
	CurrentRound int                 `json:"current_round"`
	TotalRounds  int                 `json:"total_rounds"`
	Participants []model.Participant `json:"participants"`
	IdeaCount    int                 `json:"idea_count"`
}

// Idea is one brainstormed idea.
type Idea struct {
	ID              int64  `json:"id"`
	Content         string `json:"content"`
	ParticipantName string `json:"participant_name,omitempty"`
	Round           int    `json:"round_number"`
	SheetNumber     int    `json:"sheet_number"`
	IdeaNumber      int    `json:"idea_number"`
}

// IdeaSheet is the sheet a participant currently writes on.
type IdeaSheet struct {
	SheetID       int64  `json:"sheet_id"`
	SheetNumber   int    `json:"sheet_number"`
	CurrentRound  int    `json:"current_round"`
	PreviousIdeas []Idea `json:"previous_ideas"`
	Submitted     bool   `json:"has_submitted"`
}

// Join registers a participant. The returned participant carries the uuid to
// persist locally.
func (c *Client) Join(ctx context.Context, session, name, participantUUID string) (model.Participant, error) {
	var p model.Participant
	body := map[string]string{"name": name}
	if participantUUID != "" {
		body["participant_uuid"] = participantUUID
	}
	err := c.call(ctx, http.MethodPost, EndpointSixThreeFiveJoin, Vars{Session: session}, nil, "", body, &p)
	return p, err
}

// SixThreeFiveStatus fetches the round state.
func (c *Client) SixThreeFiveStatus(ctx context.Context, session string) (SixThreeFiveStatus, error) {
	var st SixThreeFiveStatus
	err := c.call(ctx, http.MethodGet, EndpointSixThreeFiveStatus, Vars{Session: session}, nil, "", nil, &st)
	return st, err
}

// StartSixThreeFive starts the brainstorming. The backend seeds AI
// participants, so the call is LLM-triggering.
func (c *Client) StartSixThreeFive(ctx context.Context, session, apiKey string) error {
	return c.call(ctx, http.MethodPost, EndpointSixThreeFiveStart, Vars{Session: session}, nil, apiKey, c.streamBody(), nil)
}

// GetMySheet fetches the participant's current sheet.
func (c *Client) GetMySheet(ctx context.Context, session, participantUUID string) (IdeaSheet, error) {
	var sheet IdeaSheet
	query := url.Values{"participant_uuid": {participantUUID}}
	err := c.call(ctx, http.MethodGet, EndpointSixThreeFiveSheet, Vars{Session: session}, query, "", nil, &sheet)
	return sheet, err
}

// SubmitIdeas submits this round's ideas for a sheet.
func (c *Client) SubmitIdeas(ctx context.Context, session, participantUUID string, sheetID int64, ideas []string) error {
	body := map[string]interface{}{
		"participant_uuid": participantUUID,
		"sheet_id":         sheetID,
		"ideas":            ideas,
	}
	return c.call(ctx, http.MethodPost, EndpointSixThreeFiveSubmit, Vars{Session: session}, nil, "", body, nil)
}

// AdvanceRound rotates the sheets. AI participants write during the
// rotation, so the call is LLM-triggering.
func (c *Client) AdvanceRound(ctx context.Context, session, apiKey string) (SixThreeFiveStatus, error) {
	var st SixThreeFiveStatus
	err := c.call(ctx, http.MethodPost, EndpointSixThreeFiveAdvance, Vars{Session: session}, nil, apiKey, c.streamBody(), &st)
	return st, err
}

// Skip skips the brainstorming step.
func (c *Client) Skip(ctx context.Context, session string) error {
	return c.call(ctx, http.MethodPost, EndpointSixThreeFiveSkip, Vars{Session: session}, nil, "", nil, nil)
}

// SubmitManualIdeas adds ideas collected outside the method.
func (c *Client) SubmitManualIdeas(ctx context.Context, session string, ideas []string) error {
	body := map[string][]string{"ideas": ideas}
	return c.call(ctx, http.MethodPost, EndpointSixThreeFiveManual, Vars{Session: session}, nil, "", body, nil)
}

// GetIdeas lists all ideas ordered by sheet, round and idea number.
func (c *Client) GetIdeas(ctx context.Context, session string) ([]Idea, error) {
	var ideas []Idea
	if err := c.call(ctx, http.MethodGet, EndpointSixThreeFiveIdeas, Vars{Session: session}, nil, "", nil, &ideas); err != nil {
		return nil, err
	}
	sort.SliceStable(ideas, func(i, j int) bool {
		a, b := ideas[i], ideas[j]
		if a.SheetNumber != b.SheetNumber {
			return a.SheetNumber < b.SheetNumber
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.IdeaNumber < b.IdeaNumber
	})
	return ideas, nil
}

// =============================================================================
// PRIORITIZATION
// =============================================================================

// PriorityResult is the aggregated score of one idea.
type PriorityResult struct {
	IdeaID      int64  `json:"idea_id"`
	Content     string `json:"content"`
	TotalPoints int    `json:"total_points"`
	VoteCount   int    `json:"vote_count"`
	Rank        int    `json:"rank"`
}

// Vote assigns points to one idea.
type Vote struct {
	IdeaID int64 `json:"idea_id"`
	Points int   `json:"points"`
}

// GetResults fetches the ranked prioritization results.
func (c *Client) GetResults(ctx context.Context, session string) ([]PriorityResult, error) {
	var env struct {
		Results []PriorityResult `json:"results"`
	}
	if err := c.call(ctx, http.MethodGet, EndpointPrioritizationResults, Vars{Session: session}, nil, "", nil, &env); err != nil {
		return nil, err
	}
	sort.SliceStable(env.Results, func(i, j int) bool {
		return env.Results[i].TotalPoints > env.Results[j].TotalPoints
	})
	return env.Results, nil
}

// CastVotes submits a participant's votes.
func (c *Client) CastVotes(ctx context.Context, session, participantUUID string, votes []Vote) error {
	body := map[string]interface{}{
		"participant_uuid": participantUUID,
		"votes":            votes,
	}
	return c.call(ctx, http.MethodPost, EndpointPrioritizationVote, Vars{Session: session}, nil, "", body, nil)
}
