// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// TEST MODE PERSONAS
// =============================================================================

// personaTTL is how long the persona list is cached.
const personaTTL = 10 * time.Minute

const personaCacheKey = "personas"

// Persona is a simulated company representative that can answer in place of
// the user.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
}

// GetPersonas lists the test-mode personas. The list is cached.
func (c *Client) GetPersonas(ctx context.Context) ([]Persona, error) {
	if cached, ok := c.personas.Get(personaCacheKey); ok {
		return cached.([]Persona), nil
	}

	var env struct {
		Personas []Persona `json:"personas"`
	}
	if err := c.call(ctx, http.MethodGet, EndpointPersonas, Vars{}, nil, "", nil, &env); err != nil {
		return nil, err
	}
	c.personas.Set(personaCacheKey, env.Personas, cache.DefaultExpiration)
	return env.Personas, nil
}

// InvalidatePersonas drops the cached persona list.
func (c *Client) InvalidatePersonas() {
	c.personas.Delete(personaCacheKey)
}

// GenerateResponseStream streams a persona's answer to the current
// conversation of the given surface. It is independent from the surface's
// chat stream.
func (c *Client) GenerateResponseStream(ctx context.Context, session string, surface model.Surface, personaID, apiKey string) *Stream {
	body := c.streamBody()
	body["persona_id"] = personaID
	body["surface"] = string(surface)
	return c.openStream(ctx, streamRequest{
		name:   EndpointPersonaStream,
		vars:   Vars{Session: session},
		body:   body,
		apiKey: apiKey,
		label:  "persona",
	})
}
