// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown with YAML frontmatter.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	msgs := t.Visible()
	if len(msgs) == 0 {
		return nil, ErrEmptyTranscript
	}
	exported := t.ExportedAt
	if exported.IsZero() {
		exported = time.Now()
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "session: %s\n", t.Session)
	fmt.Fprintf(&sb, "surface: %s\n", t.Surface)
	fmt.Fprintf(&sb, "messages: %d\n", len(msgs))
	fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
	sb.WriteString("generator: consult-tui\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s\n\n", t.Surface.Title())

	for i, msg := range msgs {
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", roleLabel(msg), msg.CreatedAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg))
		}
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if e.options.IncludeFindings && !t.Findings.IsEmpty() {
		sb.WriteString("\n# Findings\n\n")
		sb.WriteString(t.Findings.Markdown())
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

func roleLabel(msg model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		if msg.ParticipantName != "" {
			return "[" + msg.ParticipantName + "]"
		}
		return "[User]"
	case model.RoleAssistant:
		return "[Consultant]"
	case model.RoleSystem:
		return "[System]"
	default:
		return "[" + msg.Author() + "]"
	}
}
