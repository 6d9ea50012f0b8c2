// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apikey

import (
	"sync"
)

// Action names an operation that needs a key.
type Action string

// Gated actions.
const (
	ActionStartConversation  Action = "start_conversation"
	ActionSummarizeOrExtract Action = "summarize_or_extract"
	ActionGenerateSWOT       Action = "generate_swot"
	ActionGenerateBriefing   Action = "generate_briefing"
	ActionAdvanceRound       Action = "advance_round"
	ActionStartSixThreeFive  Action = "start_sixthreefive"
	ActionSendMessage        Action = "send_message"
	ActionRequestResponse    Action = "request_response"
	ActionGenerateResponse   Action = "generate_response"
)

// Label returns a human-readable description of the action.
func (a Action) Label() string {
	switch a {
	case ActionStartConversation:
		return "start the conversation"
	case ActionSummarizeOrExtract:
		return "summarize the findings"
	case ActionGenerateSWOT:
		return "generate the SWOT analysis"
	case ActionGenerateBriefing:
		return "generate the transition briefing"
	case ActionAdvanceRound:
		return "advance the round"
	case ActionStartSixThreeFive:
		return "start the 6-3-5 session"
	case ActionSendMessage:
		return "send the message"
	case ActionRequestResponse:
		return "request an AI response"
	case ActionGenerateResponse:
		return "generate a response"
	default:
		return string(a)
	}
}

// Thunk is a deferred action that receives the key.
type Thunk func(key string)

// Gate runs key-requiring actions, deferring them behind a prompt when no
// key is stored. It holds at most one pending action; a newer request
// replaces an older one.
type Gate struct {
	mu       sync.Mutex
	store    *Store
	onPrompt func(Action)

	pending       Thunk
	pendingAction Action
}

// NewGate creates a gate over store. onPrompt is called (outside the gate's
// lock) whenever the user must be asked for a key.
func NewGate(store *Store, onPrompt func(Action)) *Gate {
	if store == nil {
		store = Default()
	}
	return &Gate{store: store, onPrompt: onPrompt}
}

// Store returns the underlying key store.
func (g *Gate) Store() *Store {
	return g.store
}

// Require runs fn with the stored key, or parks it and prompts for a key.
// Returns true when fn ran immediately.
func (g *Gate) Require(action Action, fn Thunk) bool {
	if key := g.store.Get(); key != "" {
		fn(key)
		return true
	}
	g.park(action, fn)
	return false
}

// Prompt parks fn and prompts even though a key is stored; used after the
// backend rejected the current key.
func (g *Gate) Prompt(action Action, fn Thunk) {
	g.park(action, fn)
}

func (g *Gate) park(action Action, fn Thunk) {
	g.mu.Lock()
	g.pending = fn
	g.pendingAction = action
	g.mu.Unlock()

	if g.onPrompt != nil {
		g.onPrompt(action)
	}
}

// Confirm validates and stores key, then runs the pending action if any.
// On a validation error nothing is stored and the pending action stays.
func (g *Gate) Confirm(key string) error {
	if err := g.store.Set(key); err != nil {
		return err
	}

	g.mu.Lock()
	fn := g.pending
	g.pending = nil
	g.pendingAction = ""
	g.mu.Unlock()

	if fn != nil {
		fn(g.store.Get())
	}
	return nil
}

// Dismiss drops the pending action without running it.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	g.pending = nil
	g.pendingAction = ""
	g.mu.Unlock()
}

// Pending returns the parked action.
func (g *Gate) Pending() (Action, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingAction, g.pending != nil
}
