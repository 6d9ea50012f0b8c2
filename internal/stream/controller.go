// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides single-flight cancellation for chat streams.
//
// A Controller owns at most one live cancellation token. Taking a new token
// cancels the previous one first, so two streams of one surface never run at
// the same time. Separate surfaces use separate controllers.
package stream

import (
	"context"
	"sync"
)

// =============================================================================
// STREAM CONTROLLER (THREAD-SAFE)
// =============================================================================

// Controller manages the cancellation token of the current stream.
// IMPORTANT: Use it as a pointer; copying would copy the mutex.
type Controller struct {
	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	closed bool
}

// NewController creates a controller whose tokens derive from
// context.Background.
func NewController() *Controller {
	return NewControllerWithParent(context.Background())
}

// NewControllerWithParent creates a controller whose tokens derive from parent.
func NewControllerWithParent(parent context.Context) *Controller {
	return &Controller{parent: parent}
}

// Signal cancels any existing token and returns a fresh one. The previous
// token is cancelled before Signal returns, i.e. before the caller can open
// the next connection. After Close, Signal returns an already-cancelled
// context.
func (c *Controller) Signal() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	ctx, cancel := context.WithCancel(c.parent)
	if c.closed {
		cancel()
		return ctx
	}
	c.cancel = cancel
	return ctx
}

// Abort cancels the current token if any. Safe to call multiple times.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Active reports whether a token is live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Close aborts the current token and disables the controller.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
