// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/consult-tui/internal/api"
)

func TestHintFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"auth", &api.AuthError{Status: http.StatusUnauthorized, Message: "invalid key"}, CategoryAuth},
		{"not found", &api.ServerError{Status: http.StatusNotFound, Message: "no session"}, CategoryServer},
		{"rate limited", &api.ServerError{Status: http.StatusTooManyRequests}, CategoryRate},
		{"stream", &api.StreamError{Err: errors.New("unexpected EOF")}, CategoryStream},
		{"stream timeout", &api.StreamError{Err: context.DeadlineExceeded}, CategoryTimeout},
		{"refused", &api.NetworkError{Op: "GET", Err: errors.New("dial tcp: connection refused")}, CategoryNetwork},
		{"plain", errors.New("something odd"), CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := HintFor(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, h.Category)
		})
	}
}

func TestHintFor_NilAndCanceled(t *testing.T) {
	_, ok := HintFor(nil)
	assert.False(t, ok)
	_, ok = HintFor(fmt.Errorf("wrapped: %w", api.ErrCanceled))
	assert.False(t, ok)
	assert.Empty(t, ErrorText(api.ErrCanceled))
}

func TestErrorText(t *testing.T) {
	err := &api.AuthError{Status: http.StatusUnauthorized, Message: "invalid key"}
	assert.Contains(t, ErrorText(err), "C-k to enter another key")
	assert.Equal(t, "something odd", ErrorText(errors.New("something odd")))
}
