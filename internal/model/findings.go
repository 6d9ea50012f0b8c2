// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// FINDING SET
// =============================================================================

// FindingSet is the structured summary extracted from a surface transcript.
//
// A FindingSet is a snapshot: re-extraction replaces the whole value, it is
// never patched section by section. Treat it as immutable once built.
type FindingSet struct {
	Surface  Surface
	Sections map[string]string
	Summary  string
}

// NewFindingSet builds a finding set from raw sections, keeping only the
// section keys known for the surface and dropping blank texts.
func NewFindingSet(surface Surface, raw map[string]string, summary string) FindingSet {
	fs := FindingSet{
		Surface:  surface,
		Sections: make(map[string]string, len(raw)),
		Summary:  summary,
	}
	for k, v := range raw {
		if !surface.HasSection(k) || strings.TrimSpace(v) == "" {
			continue
		}
		fs.Sections[k] = v
	}
	return fs
}

// Section returns the text of a section and whether it is present.
func (f FindingSet) Section(key string) (string, bool) {
	v, ok := f.Sections[key]
	return v, ok
}

// IsEmpty returns true when no section is present.
func (f FindingSet) IsEmpty() bool {
	return len(f.Sections) == 0
}

// Present returns the present section keys in display order.
func (f FindingSet) Present() []string {
	var out []string
	for _, k := range f.Surface.Sections() {
		if _, ok := f.Sections[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Markdown renders all present sections as one markdown document. Section
// headings carry the anchor id used by wiki-link navigation.
func (f FindingSet) Markdown() string {
	var b strings.Builder
	for _, k := range f.Present() {
		b.WriteString("## ")
		b.WriteString(SectionTitle(k))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(f.Sections[k]))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
