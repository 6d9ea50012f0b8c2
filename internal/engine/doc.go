// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine implements the streaming chat engine of one surface.
//
// An Engine owns the message log, the sending/started flags, the last error
// and one stream controller. Transport goroutines deliver stream events; the
// engine applies each event under its mutex after checking that the event's
// cancellation token is still live and that its placeholder key is the one
// currently streaming. Change notifications are delivered after the mutex is
// released.
//
// Usage:
//
//	eng := engine.New(model.SurfaceConsultation, client.Surface(model.SurfaceConsultation),
//		engine.WithOnChange(func() { program.Send(ui.EngineChangedMsg{}) }))
//	if err := eng.StartStream(session, key, onComplete); err != nil {
//		// ErrBusy, ErrAlreadyStarted, ErrClosed
//	}
package engine
