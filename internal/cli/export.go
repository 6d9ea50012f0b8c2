// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/consult-tui/internal/export"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/util"
)

// NewExportCommand creates the export command group.
func NewExportCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Generate and export session documents",
	}
	cmd.AddCommand(
		newGeneratedDocCommand(root, "swot", "Generate the SWOT analysis",
			func(ctx context.Context, a *app, session, key string) (string, error) {
				return a.client.GenerateSWOT(ctx, session, key)
			}),
		newGeneratedDocCommand(root, "briefing", "Generate the transition briefing",
			func(ctx context.Context, a *app, session, key string) (string, error) {
				return a.client.GenerateBriefing(ctx, session, key)
			}),
		newPDFCommand(root),
		newTranscriptCommand(root),
	)
	return cmd
}

type generateFunc func(ctx context.Context, a *app, session, key string) (string, error)

func newGeneratedDocCommand(root *rootOptions, name, short string, generate generateFunc) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   name,
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
			text, err := generate(ctx, a, session, key)
			if err != nil {
				return fmt.Errorf("failed to generate %s: %w", name, err)
			}
			if output != "" {
				if err := util.AtomicWriteFile(output, []byte(text), 0644); err != nil {
					return err
				}
				a.logger.Info("document exported", zap.String("kind", name), zap.String("path", output))
			}
			return a.emit("export "+name, map[string]string{"content": text, "path": output}, func(w io.Writer) {
				if output != "" {
					fmt.Fprintln(w, SuccessStyle.Render("Written to "+output))
					return
				}
				fmt.Fprintln(w, text)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newPDFCommand(root *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Download the PDF report",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			if output == "" {
				output = "consult-" + shortID(session) + ".pdf"
			}
			var buf bytes.Buffer
			n, err := a.client.GeneratePDF(ctx, session, &buf)
			if err != nil {
				return fmt.Errorf("failed to export PDF: %w", err)
			}
			if err := util.AtomicWriteFile(output, buf.Bytes(), 0644); err != nil {
				return err
			}
			return a.emit("export pdf", map[string]interface{}{"path": output, "bytes": n}, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Written %d bytes to %s", n, output)))
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: consult-<session>.pdf)")
	return cmd
}

func newTranscriptCommand(root *rootOptions) *cobra.Command {
	var (
		surfaceName string
		format      string
		dir         string
		noFindings  bool
	)
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Export a surface conversation as Markdown or JSON",
		Example: `  # Business case conversation as Markdown into ./exports
  consult-tui export transcript --surface business_case --dir exports`,
		Args: cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			surface, err := model.ParseSurface(surfaceName)
			if err != nil {
				return err
			}
			exp, err := export.ForFormat(format, &export.Options{
				IncludeTimestamps: true,
				IncludeFindings:   !noFindings,
			})
			if err != nil {
				return err
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}

			sc := a.client.Surface(surface)
			msgs, err := sc.GetMessages(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to load messages: %w", err)
			}
			t := &export.Transcript{
				Session:    session,
				Surface:    surface,
				Messages:   msgs,
				ExportedAt: time.Now(),
			}
			if !noFindings {
				if t.Findings, err = sc.GetFindings(ctx, session); err != nil {
					a.logger.Warn("findings unavailable for transcript", zap.Error(err))
				}
			}

			path, err := export.ToFile(t, exp, dir)
			if err != nil {
				return err
			}
			return a.emit("export transcript", map[string]string{"path": path, "mime": exp.MimeType()}, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Written to "+path))
			})
		}),
	}
	cmd.Flags().StringVar(&surfaceName, "surface", string(model.SurfaceConsultation), "Surface to export")
	cmd.Flags().StringVar(&format, "format", "md", "Output format (md or json)")
	cmd.Flags().StringVar(&dir, "dir", ".", "Output directory")
	cmd.Flags().BoolVar(&noFindings, "no-findings", false, "Leave out the findings")
	return cmd
}
