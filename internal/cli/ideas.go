// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/util"
)

// NewIdeasCommand creates the 6-3-5 brainstorming command group.
func NewIdeasCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ideas",
		Short: "Take part in 6-3-5 brainstorming",
		Long: `6-3-5 brainstorming: six participants write three ideas per round on
rotating sheets. AI participants fill empty seats, so starting and advancing
rounds need the LLM API key.`,
	}
	cmd.AddCommand(
		newIdeasStatusCommand(root),
		newIdeasJoinCommand(root),
		newIdeasKeyedCommand(root, "start", "Start the brainstorming", func(ctx context.Context, a *app, session, key string) error {
			return a.client.StartSixThreeFive(ctx, session, key)
		}),
		newIdeasKeyedCommand(root, "advance", "Rotate the sheets to the next round", func(ctx context.Context, a *app, session, key string) error {
			_, err := a.client.AdvanceRound(ctx, session, key)
			return err
		}),
		newIdeasSkipCommand(root),
		newIdeasSheetCommand(root),
		newIdeasSubmitCommand(root),
		newIdeasManualCommand(root),
		newIdeasListCommand(root),
		newIdeasResultsCommand(root),
	)
	return cmd
}

func newIdeasStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the round state",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			return printIdeasStatus(ctx, a, session, "ideas status")
		}),
	}
}

func printIdeasStatus(ctx context.Context, a *app, session, command string) error {
	st, err := a.client.SixThreeFiveStatus(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load status: %w", err)
	}
	return a.emit(command, st, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Status"), RenderStatus(st.Status))
		fmt.Fprintf(w, "%s %d / %d\n", RenderLabel("Round"), st.CurrentRound, st.TotalRounds)
		fmt.Fprintf(w, "%s %d\n", RenderLabel("Ideas"), st.IdeaCount)
		fmt.Fprintln(w, SectionStyle.Render("Participants"))
		for _, p := range st.Participants {
			name := p.Name
			if p.IsAI {
				name += DimStyle.Render(" (AI)")
			}
			fmt.Fprintf(w, "  %s\n", name)
		}
	})
}

func newIdeasJoinCommand(root *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the brainstorming as a participant",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			uuid, err := a.participant(ctx, session)
			if err != nil {
				return err
			}
			p, err := a.client.Join(ctx, session, strings.TrimSpace(name), uuid)
			if err != nil {
				return fmt.Errorf("failed to join: %w", err)
			}
			return a.emit("ideas join", p, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Joined as "+p.Name))
			})
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

type keyedIdeasFunc func(ctx context.Context, a *app, session, key string) error

func newIdeasKeyedCommand(root *rootOptions, use, short string, run keyedIdeasFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			key, err := a.key()
			if err != nil {
				return err
			}
			if err := run(ctx, a, session, key); err != nil {
				return fmt.Errorf("failed to %s: %w", use, err)
			}
			return printIdeasStatus(ctx, a, session, "ideas "+use)
		}),
	}
}

func newIdeasSkipCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Skip the brainstorming step",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			if err := a.client.Skip(ctx, session); err != nil {
				return fmt.Errorf("failed to skip: %w", err)
			}
			return a.emit("ideas skip", nil, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Brainstorming skipped"))
			})
		}),
	}
}

func newIdeasSheetCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sheet",
		Short: "Show your current sheet",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			uuid, err := a.participant(ctx, session)
			if err != nil {
				return err
			}
			sheet, err := a.client.GetMySheet(ctx, session, uuid)
			if err != nil {
				return fmt.Errorf("failed to load sheet: %w", err)
			}
			return a.emit("ideas sheet", sheet, func(w io.Writer) {
				fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Sheet %d, round %d", sheet.SheetNumber, sheet.CurrentRound)))
				for _, idea := range sheet.PreviousIdeas {
					fmt.Fprintf(w, "  r%d.%d  %s\n", idea.Round, idea.IdeaNumber, idea.Content)
				}
				if sheet.Submitted {
					fmt.Fprintln(w, DimStyle.Render("Submitted for this round."))
				}
			})
		}),
	}
}

func newIdeasSubmitCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [idea...]",
		Short: fmt.Sprintf("Submit up to %d ideas for this round (one per line on stdin without args)", api.IdeasPerRound),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			ideas, err := collectIdeas(a, args)
			if err != nil {
				return err
			}
			if len(ideas) > api.IdeasPerRound {
				return fmt.Errorf("at most %d ideas per round, got %d", api.IdeasPerRound, len(ideas))
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			uuid, err := a.participant(ctx, session)
			if err != nil {
				return err
			}
			sheet, err := a.client.GetMySheet(ctx, session, uuid)
			if err != nil {
				return fmt.Errorf("failed to load sheet: %w", err)
			}
			if sheet.Submitted {
				return fmt.Errorf("already submitted for round %d", sheet.CurrentRound)
			}
			if err := a.client.SubmitIdeas(ctx, session, uuid, sheet.SheetID, ideas); err != nil {
				return fmt.Errorf("failed to submit: %w", err)
			}
			return a.emit("ideas submit", ideas, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Submitted %d ideas on sheet %d", len(ideas), sheet.SheetNumber)))
			})
		}),
	}
}

func newIdeasManualCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "manual [idea...]",
		Short: "Add ideas collected outside the method",
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			ideas, err := collectIdeas(a, args)
			if err != nil {
				return err
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			if err := a.client.SubmitManualIdeas(ctx, session, ideas); err != nil {
				return fmt.Errorf("failed to add ideas: %w", err)
			}
			return a.emit("ideas manual", ideas, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Added %d ideas", len(ideas))))
			})
		}),
	}
}

func newIdeasListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all ideas",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			ideas, err := a.client.GetIdeas(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to list ideas: %w", err)
			}
			return a.emit("ideas list", ideas, func(w io.Writer) {
				if len(ideas) == 0 {
					fmt.Fprintln(w, "No ideas yet.")
					return
				}
				for _, idea := range ideas {
					fmt.Fprintf(w, "%6d  s%d r%d  %s\n", idea.ID, idea.SheetNumber, idea.Round,
						util.TruncateWidth(idea.Content, GetTerminalWidth()-20))
				}
			})
		}),
	}
}

func newIdeasResultsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show the prioritization ranking",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			results, err := a.client.GetResults(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to load results: %w", err)
			}
			return a.emit("ideas results", results, func(w io.Writer) {
				if len(results) == 0 {
					fmt.Fprintln(w, "No votes yet.")
					return
				}
				for i, r := range results {
					fmt.Fprintf(w, "%3d. %4d pts  %s\n", i+1, r.TotalPoints,
						util.TruncateWidth(r.Content, GetTerminalWidth()-16))
				}
			})
		}),
	}
}

// NewVoteCommand creates the prioritization vote command.
func NewVoteCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <idea-id>=<points>...",
		Short: "Distribute prioritization points over ideas",
		Example: `  # Three points to idea 12, two to idea 7
  consult-tui vote 12=3 7=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			votes, err := parseVotes(args)
			if err != nil {
				return err
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			uuid, err := a.participant(ctx, session)
			if err != nil {
				return err
			}
			if err := a.client.CastVotes(ctx, session, uuid, votes); err != nil {
				return fmt.Errorf("failed to vote: %w", err)
			}
			return a.emit("vote", votes, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Cast %d votes", len(votes))))
			})
		}),
	}
}

// parseVotes parses "id=points" arguments.
func parseVotes(args []string) ([]api.Vote, error) {
	seen := make(map[int64]bool)
	var votes []api.Vote
	for _, arg := range args {
		idStr, ptsStr, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid vote %q, want <idea-id>=<points>", arg)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid idea id in %q", arg)
		}
		pts, err := strconv.Atoi(strings.TrimSpace(ptsStr))
		if err != nil || pts <= 0 {
			return nil, fmt.Errorf("invalid points in %q", arg)
		}
		if seen[id] {
			return nil, fmt.Errorf("idea %d voted twice", id)
		}
		seen[id] = true
		votes = append(votes, api.Vote{IdeaID: id, Points: pts})
	}
	return votes, nil
}

// collectIdeas takes ideas from args, or one per line from stdin.
func collectIdeas(a *app, args []string) ([]string, error) {
	var ideas []string
	if len(args) > 0 {
		for _, arg := range args {
			if s := strings.TrimSpace(arg); s != "" {
				ideas = append(ideas, s)
			}
		}
	} else {
		lines, err := readLines(a.in)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		ideas = lines
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("no ideas given")
	}
	return ideas, nil
}
