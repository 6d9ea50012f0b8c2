// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package findings

import (
	"regexp"
)

// SegmentKind discriminates annotated segments.
type SegmentKind int

const (
	// SegmentMarkdown is markdown rendered as-is.
	SegmentMarkdown SegmentKind = iota
	// SegmentLink is a resolved navigation link.
	SegmentLink
	// SegmentInert is the display text of a link whose target is unknown.
	SegmentInert
)

// Segment is one piece of annotated finding text.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Target string
	Dest   Destination
}

// Markdown returns a markdown segment.
func Markdown(text string) Segment {
	return Segment{Kind: SegmentMarkdown, Text: text}
}

// Link returns a link segment for a known target; unknown targets yield an
// inert segment.
func Link(target, text string) Segment {
	d, ok := Resolve(target)
	if !ok {
		return Segment{Kind: SegmentInert, Text: text, Target: target}
	}
	return Segment{Kind: SegmentLink, Text: text, Target: target, Dest: d}
}

// Detector rewrites markdown before link extraction, typically wrapping
// phrases in [[target|text]].
type Detector func(markdown string) string

// wikiLinkRegex matches [[target]] and [[target|display]].
var wikiLinkRegex = regexp.MustCompile(`\[\[([^\[\]|\n]+)(?:\|([^\[\]\n]+))?\]\]`)

// Annotate splits markdown into markdown and link segments. Detectors run
// first, in order; then every wiki-link is resolved through the link table.
// Adjacent markdown is never split, so the result alternates between
// markdown and link-like segments.
func Annotate(markdown string, detectors ...Detector) []Segment {
	for _, d := range detectors {
		if d != nil {
			markdown = d(markdown)
		}
	}

	var segs []Segment
	last := 0
	for _, m := range wikiLinkRegex.FindAllStringSubmatchIndex(markdown, -1) {
		if m[0] > last {
			segs = append(segs, Markdown(markdown[last:m[0]]))
		}
		target := markdown[m[2]:m[3]]
		text := Label(target)
		if m[4] >= 0 {
			text = markdown[m[4]:m[5]]
		}
		segs = append(segs, Link(target, text))
		last = m[1]
	}
	if last < len(markdown) {
		segs = append(segs, Markdown(markdown[last:]))
	}
	return segs
}

// Links returns only the link segments.
func Links(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Kind == SegmentLink {
			out = append(out, s)
		}
	}
	return out
}
