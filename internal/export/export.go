// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes surface transcripts to Markdown and JSON.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/util"
)

// ErrEmptyTranscript is returned for a transcript without visible messages.
var ErrEmptyTranscript = errors.New("transcript has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Transcript is one surface conversation with its findings.
type Transcript struct {
	Session    string           `json:"session"`
	Surface    model.Surface    `json:"surface"`
	Messages   []model.Message  `json:"messages"`
	Findings   model.FindingSet `json:"-"`
	ExportedAt time.Time        `json:"exported_at"`
}

// Visible returns the messages that are shown in the chat.
func (t *Transcript) Visible() []model.Message {
	var out []model.Message
	for _, m := range t.Messages {
		if m.Visible() {
			out = append(out, m)
		}
	}
	return out
}

// Exporter converts a transcript to a file format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// IncludeFindings appends the finding sections.
	IncludeFindings bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeTimestamps: true,
		IncludeFindings:   true,
	}
}

// ForFormat returns the exporter of a format name ("md", "markdown", "json").
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use md or json)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports t into dir and returns the written path.
func ToFile(t *Transcript, exp Exporter, dir string) (string, error) {
	content, err := exp.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	path := filepath.Join(dir, Filename(t, exp))
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Filename builds "<surface>_<session>_<timestamp><ext>".
func Filename(t *Transcript, exp Exporter) string {
	ts := t.ExportedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%s_%s_%s%s",
		sanitizeFilename(t.Surface.String()),
		sanitizeFilename(t.Session),
		ts.Format("20060102_150405"),
		exp.FileExtension(),
	)
}

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 40
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "transcript"
	}
	return string(out)
}
