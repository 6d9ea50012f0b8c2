// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/apikey"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	session    string
	jsonOut    bool
	verbose    bool

	keys *apikey.Store
}

// NewRootCommand builds the consult-tui command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(apikey.Default())
}

func newRootCommand(keys *apikey.Store) *cobra.Command {
	opts := &rootOptions{keys: keys}

	rootCmd := &cobra.Command{
		Use:   "consult-tui",
		Short: "Terminal client for AI-guided business consultations",
		Long: `consult-tui runs streaming AI consultations (consultation, business case,
cost estimation) against a consultation backend and gives command-line access
to the surrounding workflow: company information, 6-3-5 brainstorming,
prioritization votes and exported findings.

Running without a subcommand opens the terminal UI.`,
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: ~/.consult-tui/config.toml)")
	flags.StringVarP(&opts.session, "session", "s", "", "Session id (default: the last opened session)")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print machine-readable JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Echo warnings and errors to stderr")

	tuiCmd := NewTUICommand(opts)
	rootCmd.RunE = tuiCmd.RunE
	rootCmd.Flags().AddFlagSet(tuiCmd.Flags())

	rootCmd.AddCommand(
		tuiCmd,
		NewFindingsCommand(opts),
		NewExportCommand(opts),
		NewCompanyCommand(opts),
		NewIdeasCommand(opts),
		NewVoteCommand(opts),
		NewPersonasCommand(opts),
		NewSessionsCommand(opts),
		NewConfigCommand(opts),
	)

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
