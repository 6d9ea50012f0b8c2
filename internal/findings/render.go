// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package findings

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/consult-tui/internal/model"
)

// Navigator is called when a link is followed.
type Navigator func(tab Tab, subTarget string)

// DefaultWordWrap is the wrap width when none is configured.
const DefaultWordWrap = 80

// RendererOption configures a Renderer.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	width      int
	style      string
	autoDetect bool
}

// WithWordWrap sets the wrap width.
func WithWordWrap(width int) RendererOption {
	return func(c *rendererConfig) {
		if width > 0 {
			c.width = width
		}
	}
}

// WithStyle selects a glamour standard style ("dark", "light", "notty").
// The default follows the terminal background.
func WithStyle(name string) RendererOption {
	return func(c *rendererConfig) { c.style = name }
}

// WithoutAutoDetect disables phrase detection.
func WithoutAutoDetect() RendererOption {
	return func(c *rendererConfig) { c.autoDetect = false }
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer renders finding markdown for the terminal. Links become numbered
// markers; Rendered.Navigate follows them.
type Renderer struct {
	glam       *glamour.TermRenderer
	navigate   Navigator
	autoDetect bool
}

// NewRenderer creates a renderer that reports followed links to nav.
func NewRenderer(nav Navigator, opts ...RendererOption) (*Renderer, error) {
	cfg := rendererConfig{width: DefaultWordWrap, autoDetect: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	styleOpt := glamour.WithAutoStyle()
	if cfg.style != "" {
		styleOpt = glamour.WithStandardStyle(cfg.style)
	}
	glam, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(cfg.width))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &Renderer{glam: glam, navigate: nav, autoDetect: cfg.autoDetect}, nil
}

// Rendered is the output of a render pass.
type Rendered struct {
	// Text is the terminal output.
	Text string
	// Links holds the link segments; marker [n] refers to Links[n-1].
	Links []Segment
	// Anchors maps "finding-<section>" to the first line of that section.
	Anchors map[string]int

	navigate Navigator
}

// Navigate follows link number n (1-based). Returns false for an unknown
// number.
func (r Rendered) Navigate(n int) bool {
	if n < 1 || n > len(r.Links) {
		return false
	}
	if r.navigate != nil {
		link := r.Links[n-1]
		r.navigate(link.Dest.Tab, link.Dest.SubTarget)
	}
	return true
}

// Line returns the line of an anchor.
func (r Rendered) Line(anchor string) (int, bool) {
	line, ok := r.Anchors[anchor]
	return line, ok
}

// Render renders one markdown text.
func (r *Renderer) Render(markdown string) (Rendered, error) {
	out := Rendered{Anchors: map[string]int{}, navigate: r.navigate}
	text, err := r.renderInto(&out, "", markdown)
	if err != nil {
		return Rendered{}, err
	}
	out.Text = text
	return out, nil
}

// RenderSet renders every present section of a finding set under its own
// heading and records an anchor per section.
func (r *Renderer) RenderSet(set model.FindingSet) (Rendered, error) {
	out := Rendered{Anchors: map[string]int{}, navigate: r.navigate}
	var b strings.Builder
	line := 0
	for _, key := range set.Present() {
		body, _ := set.Section(key)
		text, err := r.renderInto(&out, "## "+model.SectionTitle(key)+"\n\n", body)
		if err != nil {
			return Rendered{}, err
		}
		out.Anchors["finding-"+key] = line
		b.WriteString(text)
		line += strings.Count(text, "\n")
	}
	out.Text = b.String()
	return out, nil
}

// renderInto annotates markdown, numbers its links after those already in
// out, and renders it below the verbatim heading.
func (r *Renderer) renderInto(out *Rendered, heading, markdown string) (string, error) {
	var detectors []Detector
	if r.autoDetect {
		detectors = append(detectors, AutoDetect)
	}

	var b strings.Builder
	b.WriteString(heading)
	for _, seg := range Annotate(markdown, detectors...) {
		switch seg.Kind {
		case SegmentMarkdown:
			b.WriteString(seg.Text)
		case SegmentInert:
			b.WriteString(escapeMarkdown(seg.Text))
		case SegmentLink:
			out.Links = append(out.Links, seg)
			fmt.Fprintf(&b, "*%s* \\[%d\\]", escapeMarkdown(seg.Text), len(out.Links))
		}
	}

	rendered, err := r.glam.Render(b.String())
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
