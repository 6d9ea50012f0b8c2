// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
)

func TestPersonaBridge_Generate(t *testing.T) {
	fb := newFakeBackend()
	fb.personaEvs = []api.Event{chunk("We sell "), chunk("bikes."), done}
	prefs := &fakePrefs{}
	b := NewPersonaBridge("s1", model.SurfaceConsultation, fb, prefs, nil)

	var deltas []string
	text, err := b.Generate(context.Background(), "cfo", "key-12345678", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "We sell bikes.", text)
	assert.Equal(t, []string{"We sell ", "bikes."}, deltas)
	assert.Equal(t, "cfo", b.LastPersona(context.Background()))
}

func TestPersonaBridge_Error(t *testing.T) {
	fb := newFakeBackend()
	boom := &api.ServerError{Status: 500, Message: "boom"}
	fb.personaEvs = []api.Event{chunk("part"), {Kind: api.EventError, Err: boom}}
	b := NewPersonaBridge("s1", model.SurfaceConsultation, fb, nil, nil)

	text, err := b.Generate(context.Background(), "cfo", "key-12345678", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "part", text)
	assert.Empty(t, b.LastPersona(context.Background()))
}

func TestPersonaBridge_RequiresPersona(t *testing.T) {
	b := NewPersonaBridge("s1", model.SurfaceConsultation, newFakeBackend(), nil, nil)
	_, err := b.Generate(context.Background(), "", "key-12345678", nil)
	assert.ErrorIs(t, err, ErrNoPersona)
}

func TestPersonaBridge_Abort(t *testing.T) {
	fb := newFakeBackend() // streams block until cancelled
	b := NewPersonaBridge("s1", model.SurfaceConsultation, fb, nil, nil)

	result := make(chan error, 1)
	go func() {
		_, err := b.Generate(context.Background(), "cfo", "key-12345678", nil)
		result <- err
	}()

	// Abort may land before Generate signals; retry until it returns.
	deadline := time.After(2 * time.Second)
	for {
		b.Abort()
		select {
		case err := <-result:
			assert.True(t, errors.Is(err, api.ErrCanceled))
			return
		case <-deadline:
			t.Fatal("generation not aborted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPersonaBridge_Close(t *testing.T) {
	fb := newFakeBackend()
	b := NewPersonaBridge("s1", model.SurfaceConsultation, fb, nil, nil)
	b.Close()

	_, err := b.Generate(context.Background(), "cfo", "key-12345678", nil)
	assert.ErrorIs(t, err, api.ErrCanceled)
}
