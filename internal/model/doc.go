// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for consultation surfaces,
// messages and findings.
//
// # Key Types
//
//   - Surface: one of the LLM-backed conversations (consultation, business case, cost estimation)
//   - Message: single message with routing key, server id, role and content
//   - Log: ordered message list with an index from routing key to position
//   - FindingSet: immutable snapshot of the structured findings of a surface
//   - Participant, CollaborativeStatus: collaborative consultation state
//
// # Usage
//
// Route streamed deltas into a placeholder by key:
//
//	log := model.NewLog()
//	p := model.NewPlaceholder()
//	log.Append(p)
//	log.AppendContent(p.Key, "Hel")
//	log.AppendContent(p.Key, "lo")
//
// Merge a collaborative poll result:
//
//	added, maxID := log.MergeRemote(polled)
package model
