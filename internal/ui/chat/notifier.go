// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/consult-tui/internal/apikey"
)

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier carries signals from background goroutines into the Bubble Tea
// loop. Change signals are coalesced: any number of Changed calls between
// two frames produce a single StateChangedMsg, and frames are at least
// 1/maxFPS apart. Posted messages are delivered individually.
//
// Thread-safety: Changed, Post and Close may be called from any goroutine.
type Notifier struct {
	dirty chan struct{}
	msgs  chan tea.Msg
	done  chan struct{}

	closeOnce   sync.Once
	minInterval time.Duration

	mu        sync.Mutex
	lastFrame time.Time
}

// listenMsg wraps everything Listen delivers so the model knows to listen
// again.
type listenMsg struct {
	msg tea.Msg
}

// NewNotifier creates a notifier capped at maxFPS frames per second.
func NewNotifier(maxFPS int) *Notifier {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &Notifier{
		dirty:       make(chan struct{}, 1),
		msgs:        make(chan tea.Msg, 64),
		done:        make(chan struct{}),
		minInterval: time.Second / time.Duration(maxFPS),
	}
}

// Changed signals that some state changed. Never blocks.
func (n *Notifier) Changed() {
	select {
	case n.dirty <- struct{}{}:
	default:
	}
}

// Post delivers msg to the update loop. Never blocks; messages posted after
// Close are dropped.
func (n *Notifier) Post(msg tea.Msg) {
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.msgs <- msg:
	default:
		go func() {
			select {
			case n.msgs <- msg:
			case <-n.done:
			}
		}()
	}
}

// PromptFunc returns an apikey.Gate prompt callback that posts KeyPromptMsg.
func (n *Notifier) PromptFunc() func(apikey.Action) {
	return func(action apikey.Action) {
		n.Post(KeyPromptMsg{Action: action})
	}
}

// Listen waits for the next message or change signal.
func (n *Notifier) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-n.msgs:
			return listenMsg{msg: msg}
		case <-n.dirty:
			n.throttle()
			return listenMsg{msg: StateChangedMsg{}}
		case <-n.done:
			return nil
		}
	}
}

// throttle sleeps until the next frame is due.
func (n *Notifier) throttle() {
	n.mu.Lock()
	wait := n.minInterval - time.Since(n.lastFrame)
	n.mu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-n.done:
		}
	}
	n.mu.Lock()
	n.lastFrame = time.Now()
	n.mu.Unlock()
}

// Close stops delivery. Pending Listen commands return nil.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// =============================================================================
// GENERATION BUFFER
// =============================================================================

// generationBuffer accumulates persona deltas written from the generation
// goroutine and read by View.
type generationBuffer struct {
	mu      sync.Mutex
	persona string
	text    []byte
	active  bool
}

func (b *generationBuffer) begin(persona string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persona = persona
	b.text = b.text[:0]
	b.active = true
}

func (b *generationBuffer) write(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		b.text = append(b.text, delta...)
	}
}

func (b *generationBuffer) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = false
}

func (b *generationBuffer) snapshot() (persona, text string, active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persona, string(b.text), b.active
}
