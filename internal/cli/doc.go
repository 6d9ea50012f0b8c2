// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the consult-tui command tree with cobra.
//
// The root command opens the TUI. The subcommands reach the rest of the
// consultation workflow against the same backend:
//
//	consult-tui                          open the TUI on the last session
//	consult-tui tui --new --test-mode    fresh session with persona answers
//	consult-tui findings --surface consultation
//	consult-tui export swot|briefing|pdf
//	consult-tui company list|add-text|upload|crawl|delete|profile|maturity
//	consult-tui ideas status|join|start|advance|skip|sheet|submit|manual|list|results
//	consult-tui vote 12=3 7=2
//	consult-tui personas --select cfo
//	consult-tui sessions
//	consult-tui config show|path|init
//
// Every command accepts --session (default: the last session opened in the
// TUI), --config and --json.
package cli
