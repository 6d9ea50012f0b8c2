// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for consult-tui.
//
// Configuration is a TOML file with sensible defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, API key header, timeouts and rate limits
//   - CollaborationConfig: Collaborative polling interval
//   - ExtractionConfig: Incremental extraction cadence
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CONSULT_*)
//   - the file named by CONSULT_CONFIG, or ~/.consult-tui/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Watch for changes:
//
//	w, err := config.Watch(path, func(cfg *config.Config) { ... })
//	defer w.Close()
package config
