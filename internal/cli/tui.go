// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/config"
	"github.com/jeranaias/consult-tui/internal/consult"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/ui/chat"
	"github.com/jeranaias/consult-tui/internal/ui/styles"
)

// maxFPS caps UI redraws caused by streaming chunks.
const maxFPS = 30

type tuiOptions struct {
	surfaces []string
	newSess  bool
	testMode bool
	persona  string
}

// NewTUICommand creates the interactive consultation command.
func NewTUICommand(root *rootOptions) *cobra.Command {
	var opts tuiOptions

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the consultation TUI",
		Long: `Open the interactive consultation view. Each surface is a tab; the
assistant answer streams in as it is generated. The LLM API key is asked for
the first time an action needs it unless ` + apikey.EnvVar + ` is set.`,
		Example: `  # Continue the last session
  consult-tui

  # Open a specific session with only the consultation tab
  consult-tui tui --session 2f1c... --surface consultation

  # Start a fresh session with the persona helper enabled
  consult-tui tui --new --test-mode`,
		Args: cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			return runTUI(ctx, a, opts)
		}),
	}

	cmd.Flags().StringSliceVar(&opts.surfaces, "surface", nil, "Surfaces to open as tabs (default: all)")
	cmd.Flags().BoolVar(&opts.newSess, "new", false, "Start a new session")
	cmd.Flags().BoolVar(&opts.testMode, "test-mode", false, "Enable persona-generated answers")
	cmd.Flags().StringVar(&opts.persona, "persona", "", "Persona used for generated answers")

	return cmd
}

// parseSurfaces resolves surface names, defaulting to every surface.
func parseSurfaces(names []string) ([]model.Surface, error) {
	if len(names) == 0 {
		return append([]model.Surface(nil), model.Surfaces...), nil
	}
	seen := make(map[model.Surface]bool)
	var out []model.Surface
	for _, n := range names {
		s, err := model.ParseSurface(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// tuiSession picks the session the TUI opens.
func tuiSession(ctx context.Context, a *app, fresh bool) (string, error) {
	if fresh {
		return uuid.NewString(), nil
	}
	s, err := a.session(ctx)
	if errors.Is(err, errNoSession) {
		return uuid.NewString(), nil
	}
	return s, err
}

// buildOrchestrators creates one orchestrator per surface.
func buildOrchestrators(a *app, session string, surfaces []model.Surface, gate *apikey.Gate, notifier *chat.Notifier, testMode bool) ([]*consult.Orchestrator, error) {
	var out []*consult.Orchestrator
	for _, s := range surfaces {
		cfg := consult.Config{
			Session:             session,
			Surface:             s,
			Backend:             a.client.Surface(s),
			Gate:                gate,
			Participants:        a.store,
			Language:            a.cfg.UI.Language,
			ExtractionThreshold: a.cfg.Extraction.Threshold,
			ExtractionTimeout:   a.cfg.Extraction.Timeout(),
			PollInterval:        a.cfg.Collaboration.PollInterval(),
			Logger:              a.logger.Named("consult"),
			Metrics:             a.metrics,
			OnChange:            notifier.Changed,
		}
		if testMode {
			cfg.Personas = a.client
			cfg.PersonaPrefs = a.store
		}
		o, err := consult.New(cfg)
		if err != nil {
			for _, prev := range out {
				prev.Close()
			}
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func runTUI(ctx context.Context, a *app, opts tuiOptions) error {
	if !IsTTY() {
		return &TTYRequiredError{Operation: "open the TUI"}
	}
	surfaces, err := parseSurfaces(opts.surfaces)
	if err != nil {
		return err
	}
	session, err := tuiSession(ctx, a, opts.newSess)
	if err != nil {
		return err
	}
	if err := a.store.TouchSession(ctx, session, surfaces[0].String()); err != nil {
		a.logger.Warn("failed to record session", zap.Error(err))
	}
	a.logger.Info("opening session", zap.String("session", session), zap.Int("surfaces", len(surfaces)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	notifier := chat.NewNotifier(maxFPS)
	defer notifier.Close()
	gate := apikey.NewGate(a.keys, notifier.PromptFunc())

	orchs, err := buildOrchestrators(a, session, surfaces, gate, notifier, opts.testMode)
	if err != nil {
		return err
	}
	defer func() {
		for _, o := range orchs {
			o.Close()
		}
	}()

	if a.cfgPath != "" {
		w, err := config.Watch(a.cfgPath, a.logger.Named("config"), func(c *config.Config) {
			for _, o := range orchs {
				o.SetPollInterval(c.Collaboration.PollInterval())
			}
		})
		if err != nil {
			a.logger.Debug("config watch disabled", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	m, err := chat.New(chat.Options{
		Title:         "consult " + shortID(session),
		Orchestrators: orchs,
		Gate:          gate,
		Notifier:      notifier,
		Theme:         styles.NewTheme(),
		Logger:        a.logger.Named("ui"),
		WordWrap:      a.cfg.UI.WordWrap,
		Persona:       opts.persona,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	fmt.Fprintf(a.errOut, "Session %s\n", session)
	return nil
}

// shortID shortens a session id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
