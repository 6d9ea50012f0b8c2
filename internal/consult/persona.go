// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/stream"
)

// ErrNoPersona is returned when no persona was selected.
var ErrNoPersona = errors.New("no persona selected")

// PersonaBackend lists personas and streams their answers.
type PersonaBackend interface {
	GetPersonas(ctx context.Context) ([]api.Persona, error)
	GenerateResponseStream(ctx context.Context, session string, surface model.Surface, personaID, apiKey string) *api.Stream
}

// PersonaPrefs remembers the last selected persona.
type PersonaPrefs interface {
	LastPersona(ctx context.Context) (string, error)
	SetLastPersona(ctx context.Context, id string) error
}

// =============================================================================
// PERSONA BRIDGE
// =============================================================================

// PersonaBridge generates test-mode answers from a simulated company
// representative. Its stream runs on a controller of its own, so it never
// cancels or is cancelled by the chat stream.
type PersonaBridge struct {
	backend PersonaBackend
	prefs   PersonaPrefs
	session string
	surface model.Surface
	ctrl    *stream.Controller
	logger  *zap.Logger
}

// NewPersonaBridge creates a bridge. prefs may be nil.
func NewPersonaBridge(session string, surface model.Surface, backend PersonaBackend, prefs PersonaPrefs, logger *zap.Logger) *PersonaBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonaBridge{
		backend: backend,
		prefs:   prefs,
		session: session,
		surface: surface,
		ctrl:    stream.NewController(),
		logger:  logger.Named("persona"),
	}
}

// Personas lists the available personas.
func (b *PersonaBridge) Personas(ctx context.Context) ([]api.Persona, error) {
	return b.backend.GetPersonas(ctx)
}

// LastPersona returns the remembered persona id, or "".
func (b *PersonaBridge) LastPersona(ctx context.Context) string {
	if b.prefs == nil {
		return ""
	}
	id, err := b.prefs.LastPersona(ctx)
	if err != nil {
		b.logger.Debug("failed to load last persona", zap.Error(err))
		return ""
	}
	return id
}

// Generate streams the persona's answer to the current conversation,
// reporting each delta to onChunk, and returns the full text. A newer
// Generate or Abort cancels it with api.ErrCanceled.
func (b *PersonaBridge) Generate(ctx context.Context, personaID, apiKey string, onChunk func(string)) (string, error) {
	if personaID == "" {
		return "", ErrNoPersona
	}
	if b.prefs != nil {
		if err := b.prefs.SetLastPersona(ctx, personaID); err != nil {
			b.logger.Warn("failed to remember persona", zap.Error(err))
		}
	}

	token := b.ctrl.Signal()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(token, cancel)
	defer stop()

	b.logger.Debug("generating persona response", zap.String("persona", personaID))
	st := b.backend.GenerateResponseStream(ctx, b.session, b.surface, personaID, apiKey)

	var text strings.Builder
	var result error = api.ErrCanceled
	st.Dispatch(func(delta string) {
		text.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}, func() {
		result = nil
	}, func(err error) {
		result = err
	})
	return text.String(), result
}

// Abort cancels the running generation.
func (b *PersonaBridge) Abort() {
	b.ctrl.Abort()
}

// Close cancels the running generation and disables the bridge.
func (b *PersonaBridge) Close() {
	b.ctrl.Close()
}
