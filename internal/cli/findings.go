// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/findings"
	"github.com/jeranaias/consult-tui/internal/model"
)

// NewFindingsCommand creates the findings command.
func NewFindingsCommand(root *rootOptions) *cobra.Command {
	var surfaceNames []string
	var raw bool

	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Show the extracted findings of a session",
		Long: `Show the findings extracted from each surface's conversation. Cross
references are listed below each surface with the view they lead to.`,
		Example: `  # All surfaces of the last session
  consult-tui findings

  # Business case only, as markdown
  consult-tui findings --surface business_case --raw`,
		Args: cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			surfaces, err := parseSurfaces(surfaceNames)
			if err != nil {
				return err
			}
			return runFindings(ctx, a, surfaces, raw)
		}),
	}

	cmd.Flags().StringSliceVar(&surfaceNames, "surface", nil, "Surfaces to show (default: all)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")

	return cmd
}

// findingsView is the JSON shape of one surface's findings.
type findingsView struct {
	Surface  model.Surface     `json:"surface"`
	Sections map[string]string `json:"sections"`
	Summary  string            `json:"summary,omitempty"`
}

func runFindings(ctx context.Context, a *app, surfaces []model.Surface, raw bool) error {
	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	all, err := a.client.GetAllFindings(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load findings: %w", err)
	}

	var views []findingsView
	for _, s := range surfaces {
		fs, ok := all.Surfaces[s]
		if !ok || fs.IsEmpty() {
			continue
		}
		views = append(views, findingsView{Surface: s, Sections: fs.Sections, Summary: fs.Summary})
	}

	var renderErr error
	err = a.emit("findings", views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No findings yet.")
			return
		}
		renderErr = printFindings(w, all.Surfaces, surfaces, raw)
	})
	if err != nil {
		return err
	}
	return renderErr
}

func printFindings(w io.Writer, sets map[model.Surface]model.FindingSet, surfaces []model.Surface, raw bool) error {
	style := "dark"
	if !ColorsEnabled() {
		style = "notty"
	}
	r, err := findings.NewRenderer(nil, findings.WithWordWrap(GetTerminalWidth()-4), findings.WithStyle(style))
	if err != nil {
		return err
	}

	for _, s := range surfaces {
		fs, ok := sets[s]
		if !ok || fs.IsEmpty() {
			continue
		}
		fmt.Fprintln(w, TitleStyle.Render(s.Title()))
		if raw {
			fmt.Fprintln(w, fs.Markdown())
			continue
		}
		out, err := r.RenderSet(fs)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out.Text)
		for i, link := range out.Links {
			fmt.Fprintf(w, "  [%d] %s -> %s\n", i+1, findings.Label(link.Target), link.Dest.Tab)
		}
	}
	return nil
}
