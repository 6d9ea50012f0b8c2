// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/api"
)

// NewPersonasCommand creates the persona listing command.
func NewPersonasCommand(root *rootOptions) *cobra.Command {
	var selectID string
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List test-mode personas",
		Long: `List the simulated company representatives that can answer in your
place in test mode (consult-tui tui --test-mode). --select remembers the
persona the TUI uses by default.`,
		Args: cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			personas, err := a.client.GetPersonas(ctx)
			if err != nil {
				return fmt.Errorf("failed to list personas: %w", err)
			}
			if selectID != "" {
				if !hasPersona(personas, selectID) {
					return fmt.Errorf("unknown persona %q", selectID)
				}
				if err := a.store.SetLastPersona(ctx, selectID); err != nil {
					return err
				}
			}
			last, err := a.store.LastPersona(ctx)
			if err != nil {
				return err
			}
			data := map[string]interface{}{"personas": personas, "selected": last}
			return a.emit("personas", data, func(w io.Writer) {
				if len(personas) == 0 {
					fmt.Fprintln(w, "No personas available.")
					return
				}
				for _, p := range personas {
					mark := "  "
					if p.ID == last {
						mark = SuccessStyle.Render("* ")
					}
					line := p.Name
					if p.Role != "" {
						line += ", " + p.Role
					}
					if p.Company != "" {
						line += " (" + p.Company + ")"
					}
					fmt.Fprintf(w, "%s%s  %s\n", mark, RenderLabel(p.ID, 16), line)
				}
			})
		}),
	}
	cmd.Flags().StringVar(&selectID, "select", "", "Remember this persona as the default")
	return cmd
}

func hasPersona(ps []api.Persona, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}
