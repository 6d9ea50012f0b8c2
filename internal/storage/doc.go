// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local preference persistence for consult-tui.
//
// Preferences live in a small SQLite database (pure Go driver) and hold only
// non-secret client state: the participant UUID used for each session in
// collaborative mode, the last selected test-mode persona, and the list of
// recently opened sessions. The API key is never stored here.
//
// # Key Types
//
//   - Store: handle to the preferences database
//   - SessionRecord: a recently opened session
//
// # Usage
//
//	store, err := storage.Open(cfg.Storage.Path)
//	defer store.Close()
//	uuid, err := store.ParticipantUUID(ctx, session)
//
// # Storage Location
//
// The database defaults to ~/.consult-tui/prefs.db.
package storage
