// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for consult-tui.
//
// Metrics live on a private registry and are only exposed when
// telemetry.metrics_addr is configured.
//
// # Key Types
//
//   - Metrics: counters and histograms for streams, extractions, polls and requests
//
// # Usage
//
//	m := telemetry.New()
//	m.StreamFinished("consultation", "done")
//	go m.Serve(ctx, "127.0.0.1:9464")
//
// # Privacy
//
// Metrics are local-only. Message content and API keys are never recorded,
// only counts, outcomes and durations.
package telemetry
