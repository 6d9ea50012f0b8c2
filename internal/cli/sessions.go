// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSessionsCommand lists recently opened sessions.
func NewSessionsCommand(root *rootOptions) *cobra.Command {
	var limit int
	var forget string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recently opened sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			if forget != "" {
				if err := a.store.ForgetParticipant(ctx, forget); err != nil {
					return err
				}
			}
			recs, err := a.store.RecentSessions(ctx, limit)
			if err != nil {
				return err
			}
			return a.emit("sessions", recs, func(w io.Writer) {
				if len(recs) == 0 {
					fmt.Fprintln(w, "No sessions yet.")
					return
				}
				for _, r := range recs {
					fmt.Fprintf(w, "%s  %-18s %s\n", r.SessionID, r.Surface,
						DimStyle.Render(r.LastOpened.Local().Format("2006-01-02 15:04")))
				}
			})
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list")
	cmd.Flags().StringVar(&forget, "forget", "", "Forget the local participant id of a session")
	return cmd
}
