// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/apikey"
	"github.com/jeranaias/consult-tui/internal/config"
	"github.com/jeranaias/consult-tui/internal/logging"
	"github.com/jeranaias/consult-tui/internal/storage"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

// errNoSession is returned when a command needs a session and none is known.
var errNoSession = errors.New("no session: pass --session or open one in the TUI first")

// app holds what a command run needs: configuration, logger, backend client
// and the local preferences store.
type app struct {
	opts    *rootOptions
	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger
	metrics *telemetry.Metrics
	client  *api.Client
	store   *storage.Store
	keys    *apikey.Store

	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

// newApp loads the configuration and opens the shared resources.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfgPath := opts.configPath
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
		cfgPath, _ = config.ConfigPath()
	}
	if err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)

	logger, err := logging.New(cfg.Logging, logging.Options{Stderr: opts.verbose})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	metrics := telemetry.New()
	client := api.New(cfg).WithLogger(logger.Named("api")).WithMetrics(metrics)

	return &app{
		opts:    opts,
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		metrics: metrics,
		client:  client,
		store:   store,
		keys:    opts.keys,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		in:      cmd.InOrStdin(),
	}, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// session resolves the session id from the flag or the last opened session.
func (a *app) session(ctx context.Context) (string, error) {
	if a.opts.session != "" {
		return a.opts.session, nil
	}
	last, err := a.store.LastSession(ctx)
	if err != nil {
		return "", err
	}
	if last == "" {
		return "", errNoSession
	}
	return last, nil
}

// participant returns the local participant id of a session.
func (a *app) participant(ctx context.Context, session string) (string, error) {
	return a.store.ParticipantUUID(ctx, session)
}

// key returns the LLM API key, asking for it when needed.
func (a *app) key() (string, error) {
	return requireKey(a.keys, a.errOut)
}

// emit prints data as a JSON envelope with --json, or through human otherwise.
func (a *app) emit(command string, data interface{}, human func(w io.Writer)) error {
	if a.opts.jsonOut {
		return NewJSONResponse(command, data).Print(a.out)
	}
	human(a.out)
	return nil
}

// withApp wraps a command body with app setup and teardown.
func withApp(opts *rootOptions, run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, args)
	}
}
