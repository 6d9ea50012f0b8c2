// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP and SSE client for the consultation backend.
//
// Every endpoint family is a typed method on Client; the chat surfaces are
// reached through SurfaceClient. Streaming calls return a *Stream whose
// channel yields text deltas followed by exactly one terminal event.
//
// # Usage
//
//	client := api.New(cfg).WithLogger(logger)
//	surface := client.Surface(model.SurfaceConsultation)
//	stream := surface.StartStream(ctx, session, apiKey)
//	for ev := range stream.Events() {
//	    switch ev.Kind {
//	    case api.EventChunk:
//	        fmt.Print(ev.Text)
//	    case api.EventError:
//	        return ev.Err
//	    }
//	}
//
// # Security
//
// The API key travels only in the configured request header; it is never put
// into a URL and never logged (only its SHA-256 fingerprint).
package api
