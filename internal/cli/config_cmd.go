// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := loadConfig(root)
				if err != nil {
					return err
				}
				if root.jsonOut {
					return NewJSONResponse("config show", cfg).Print(cmd.OutOrStdout())
				}
				return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, path, err := loadConfig(root)
				if err != nil {
					return err
				}
				return printPath(cmd.OutOrStdout(), path)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := root.configPath
				if path == "" {
					if err := config.EnsureConfigDir(); err != nil {
						return err
					}
					p, err := config.ConfigPath()
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.SaveTOML(config.Default(), path); err != nil {
					return err
				}
				return printPath(cmd.OutOrStdout(), path)
			},
		},
	)
	return cmd
}

// loadConfig loads the configuration without opening any other resource.
func loadConfig(root *rootOptions) (*config.Config, string, error) {
	if root.configPath != "" {
		cfg, err := config.LoadFromPath(root.configPath)
		return cfg, root.configPath, err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load()
	return cfg, path, err
}

func printPath(w io.Writer, path string) error {
	_, err := fmt.Fprintln(w, path)
	return err
}
