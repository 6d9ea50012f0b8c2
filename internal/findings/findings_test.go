// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package findings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// LINK TABLE
// =============================================================================

func TestResolve(t *testing.T) {
	tests := []struct {
		target string
		want   Destination
		ok     bool
	}{
		{"business_case_pitch", Destination{Tab: TabBusinessCase, SubTarget: "pitch"}, true},
		{"cost_estimation_tco", Destination{Tab: TabCostEstimation, SubTarget: "tco"}, true},
		{"consultation_plan", Destination{Tab: TabConsultation, SubTarget: "plan"}, true},
		{"management_pitch", Destination{Tab: TabBusinessCase, SubTarget: "pitch"}, true},
		{"swot", Destination{Tab: TabSWOT}, true},
		{"company_profile", Destination{Tab: TabCompanyProfile}, true},
		{"nonexistent", Destination{}, false},
		{"Business_Case_Pitch", Destination{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, ok := Resolve(tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSectionAnchor(t *testing.T) {
	anchor, ok := SectionAnchor(Destination{Tab: TabBusinessCase, SubTarget: "pitch"})
	require.True(t, ok)
	assert.Equal(t, "finding-management_pitch", anchor)

	anchor, ok = SectionAnchor(Destination{Tab: TabCostEstimation, SubTarget: "roi"})
	require.True(t, ok)
	assert.Equal(t, "finding-roi_analysis", anchor)

	_, ok = SectionAnchor(Destination{Tab: TabSWOT})
	assert.False(t, ok)
	_, ok = SectionAnchor(Destination{Tab: TabBusinessCase, SubTarget: "unknown"})
	assert.False(t, ok)
}

// Every sub-target points at a real finding section of its surface.
func TestSubTargetsMatchSurfaceSections(t *testing.T) {
	for tab, subs := range subTargets {
		surface, err := model.ParseSurface(string(tab))
		require.NoError(t, err)
		for sub, key := range subs {
			assert.True(t, surface.HasSection(key), "%s/%s -> %s", tab, sub, key)
		}
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Management Pitch", Label("business_case_pitch"))
	assert.Equal(t, "SWOT Analysis", Label("swot"))
	assert.Equal(t, "Business Case", Label("business_case"))
	assert.Equal(t, "mystery", Label("mystery"))
}

// =============================================================================
// ANNOTATE
// =============================================================================

func TestAnnotate(t *testing.T) {
	segs := Annotate("See [[business_case_pitch|the pitch]] and [[swot]].")
	require.Len(t, segs, 5)

	assert.Equal(t, Markdown("See "), segs[0])
	assert.Equal(t, SegmentLink, segs[1].Kind)
	assert.Equal(t, "the pitch", segs[1].Text)
	assert.Equal(t, Destination{Tab: TabBusinessCase, SubTarget: "pitch"}, segs[1].Dest)
	assert.Equal(t, Markdown(" and "), segs[2])
	assert.Equal(t, SegmentLink, segs[3].Kind)
	assert.Equal(t, "SWOT Analysis", segs[3].Text)
	assert.Equal(t, Markdown("."), segs[4])
}

func TestAnnotate_UnknownTargetIsInert(t *testing.T) {
	segs := Annotate("[[atlantis|the lost city]]")
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentInert, segs[0].Kind)
	assert.Equal(t, "the lost city", segs[0].Text)
	assert.Empty(t, Links(segs))
}

func TestAnnotate_Malformed(t *testing.T) {
	tests := []string{
		"[[]]",
		"[[swot",
		"[swot]",
		"[[swot\n]]",
		"[[|text]]",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			segs := Annotate(in)
			assert.Empty(t, Links(segs))
			var b strings.Builder
			for _, s := range segs {
				b.WriteString(s.Text)
			}
			assert.Equal(t, in, b.String(), "malformed input passes through")
		})
	}
}

func TestAnnotate_DetectorsRunFirst(t *testing.T) {
	upper := func(s string) string { return strings.ReplaceAll(s, "pitch", "[[business_case_pitch|pitch]]") }
	segs := Annotate("the pitch", upper)
	require.Len(t, Links(segs), 1)
}

// =============================================================================
// AUTO-DETECT
// =============================================================================

func TestAutoDetect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"english phrase",
			"Review the management pitch today.",
			"Review the [[business_case_pitch|management pitch]] today.",
		},
		{
			"case preserved",
			"The SWOT Analysis shows risks.",
			"The [[swot|SWOT Analysis]] shows risks.",
		},
		{
			"german phrase",
			"Die Gesamtbetriebskosten sinken.",
			"Die [[cost_estimation_tco|Gesamtbetriebskosten]] sinken.",
		},
		{
			"german umlaut",
			"Siehe Übergabe-Briefing.",
			"Siehe [[transition_briefing|Übergabe-Briefing]].",
		},
		{
			"longest phrase wins",
			"Our total cost of ownership is low.",
			"Our [[cost_estimation_tco|total cost of ownership]] is low.",
		},
		{
			"already linked",
			"See [[business_case_pitch|the management pitch]].",
			"See [[business_case_pitch|the management pitch]].",
		},
		{
			"inside code",
			"Run `project plan` now.",
			"Run `project plan` now.",
		},
		{
			"embedded in word",
			"Reprioritization matters.",
			"Reprioritization matters.",
		},
		{
			"all occurrences",
			"project plan vs. Project Plan",
			"[[consultation_plan|project plan]] vs. [[consultation_plan|Project Plan]]",
		},
		{
			"no phrases",
			"Nothing to see here.",
			"Nothing to see here.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoDetect(tt.in))
		})
	}
}

func TestAutoDetect_Idempotent(t *testing.T) {
	in := "The business case and the cost drivers."
	once := AutoDetect(in)
	assert.Equal(t, once, AutoDetect(once))
}

// =============================================================================
// RENDERER
// =============================================================================

// A finding links to the business case pitch; following the link reports
// tab business_case, sub-target pitch, which scrolls finding-management_pitch.
func TestRenderer_WikiLinkNavigation(t *testing.T) {
	var gotTab Tab
	var gotSub string
	r, err := NewRenderer(func(tab Tab, sub string) {
		gotTab, gotSub = tab, sub
	}, WithStyle("notty"), WithWordWrap(120), WithoutAutoDetect())
	require.NoError(t, err)

	out, err := r.Render("Strengthen [[business_case_pitch|the pitch]] before the board meeting.")
	require.NoError(t, err)
	require.Len(t, out.Links, 1)
	assert.Contains(t, out.Text, "the pitch")
	assert.Contains(t, out.Text, "[1]")

	require.True(t, out.Navigate(1))
	assert.Equal(t, TabBusinessCase, gotTab)
	assert.Equal(t, "pitch", gotSub)

	anchor, ok := SectionAnchor(out.Links[0].Dest)
	require.True(t, ok)
	assert.Equal(t, "finding-management_pitch", anchor)

	assert.False(t, out.Navigate(0))
	assert.False(t, out.Navigate(2))
}

func TestRenderer_UnknownTargetNotNumbered(t *testing.T) {
	r, err := NewRenderer(nil, WithStyle("notty"), WithWordWrap(120))
	require.NoError(t, err)

	out, err := r.Render("Ask [[oracle|the oracle]].")
	require.NoError(t, err)
	assert.Empty(t, out.Links)
	assert.Contains(t, out.Text, "the oracle")
	assert.NotContains(t, out.Text, "[[")
}

func TestRenderer_RenderSetAnchors(t *testing.T) {
	r, err := NewRenderer(nil, WithStyle("notty"), WithWordWrap(120))
	require.NoError(t, err)

	set := model.NewFindingSet(model.SurfaceBusinessCase, map[string]string{
		"classification":   "Efficiency project.",
		"management_pitch": "Pitch it as a [[cost_estimation_tco|cost win]].",
	}, "")
	out, err := r.RenderSet(set)
	require.NoError(t, err)

	first, ok := out.Line("finding-classification")
	require.True(t, ok)
	second, ok := out.Line("finding-management_pitch")
	require.True(t, ok)
	assert.Equal(t, 0, first)
	assert.Greater(t, second, first)
	assert.Contains(t, out.Text, "Management Pitch")
	require.Len(t, out.Links, 1)
	assert.Equal(t, TabCostEstimation, out.Links[0].Dest.Tab)
}
