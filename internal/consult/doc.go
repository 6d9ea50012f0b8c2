// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package consult orchestrates one consultation surface on top of the chat
// engine.
//
// An Orchestrator adds the API-key gate, background findings extraction,
// advisory topic coverage, collaborative polling and the test-mode persona
// bridge. Each of these runs on its own goroutine or controller and reaches
// the transcript only through the engine, so none of them can corrupt a
// running stream.
//
// Usage:
//
//	orch, err := consult.New(consult.Config{
//		Session: session,
//		Surface: model.SurfaceConsultation,
//		Backend: client.Surface(model.SurfaceConsultation),
//		Gate:    gate,
//		OnChange: func() { program.Send(ui.SurfaceChangedMsg{}) },
//	})
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//	_ = orch.LoadHistory(ctx)
//	_ = orch.Start()
package consult
