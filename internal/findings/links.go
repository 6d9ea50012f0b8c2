// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package findings

import (
	"sort"

	"github.com/jeranaias/consult-tui/internal/model"
)

// Tab names a view a link can navigate to.
type Tab string

// Navigation tabs.
const (
	TabCompanyProfile     Tab = "company_profile"
	TabMaturity           Tab = "maturity"
	TabConsultation       Tab = "consultation"
	TabBusinessCase       Tab = "business_case"
	TabCostEstimation     Tab = "cost_estimation"
	TabSixThreeFive       Tab = "six_three_five"
	TabPrioritization     Tab = "prioritization"
	TabSWOT               Tab = "swot"
	TabTransitionBriefing Tab = "transition_briefing"
)

// Destination is where a link target leads.
type Destination struct {
	Tab       Tab
	SubTarget string // "" for the tab itself
}

// =============================================================================
// SUB-TARGETS
// =============================================================================

// subTargets maps each tab's sub-targets to the finding section they scroll
// to.
var subTargets = map[Tab]map[string]string{
	TabConsultation: {
		"objectives": "business_objectives",
		"situation":  "situation_assessment",
		"goals":      "ai_goals",
		"plan":       "project_plan",
	},
	TabBusinessCase: {
		"classification": "classification",
		"calculation":    "calculation",
		"validation":     "validation_questions",
		"pitch":          "management_pitch",
	},
	TabCostEstimation: {
		"complexity":   "complexity",
		"investment":   "initial_investment",
		"recurring":    "recurring_costs",
		"maintenance":  "maintenance",
		"tco":          "tco",
		"drivers":      "cost_drivers",
		"optimization": "optimization",
		"roi":          "roi_analysis",
	},
}

// SectionAnchor returns the element id a destination scrolls to, e.g.
// "finding-management_pitch". False when the destination has no section.
func SectionAnchor(d Destination) (string, bool) {
	key, ok := SectionKey(d)
	if !ok {
		return "", false
	}
	return "finding-" + key, true
}

// SectionKey returns the finding section key of a destination.
func SectionKey(d Destination) (string, bool) {
	if d.SubTarget == "" {
		return "", false
	}
	key, ok := subTargets[d.Tab][d.SubTarget]
	return key, ok
}

// Surface returns the chat surface behind the destination's tab, if any.
func (d Destination) Surface() (model.Surface, bool) {
	s, err := model.ParseSurface(string(d.Tab))
	if err != nil {
		return "", false
	}
	return s, true
}

// =============================================================================
// LINK TABLE
// =============================================================================

// linkTable is the closed vocabulary of link targets.
var linkTable = buildLinkTable()

func buildLinkTable() map[string]Destination {
	t := map[string]Destination{
		"company_profile":     {Tab: TabCompanyProfile},
		"company_info":        {Tab: TabCompanyProfile},
		"maturity":            {Tab: TabMaturity},
		"maturity_assessment": {Tab: TabMaturity},
		"six_three_five":      {Tab: TabSixThreeFive},
		"ideas":               {Tab: TabSixThreeFive},
		"prioritization":      {Tab: TabPrioritization},
		"swot":                {Tab: TabSWOT},
		"transition_briefing": {Tab: TabTransitionBriefing},
		"consultation":        {Tab: TabConsultation},
		"business_case":       {Tab: TabBusinessCase},
		"cost_estimation":     {Tab: TabCostEstimation},
	}
	for tab, subs := range subTargets {
		for sub, section := range subs {
			d := Destination{Tab: tab, SubTarget: sub}
			t[string(tab)+"_"+sub] = d
			// The section key itself is accepted as a target as well.
			if _, taken := t[section]; !taken {
				t[section] = d
			}
		}
	}
	return t
}

// Resolve looks up a link target.
func Resolve(target string) (Destination, bool) {
	d, ok := linkTable[target]
	return d, ok
}

// Targets returns all known targets, sorted.
func Targets() []string {
	out := make([]string, 0, len(linkTable))
	for k := range linkTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Label returns a display label for a bare [[target]] link.
func Label(target string) string {
	d, ok := Resolve(target)
	if !ok {
		return target
	}
	if key, ok := SectionKey(d); ok {
		return model.SectionTitle(key)
	}
	switch d.Tab {
	case TabSWOT:
		return "SWOT Analysis"
	case TabSixThreeFive:
		return "6-3-5 Ideas"
	}
	return model.SectionTitle(string(d.Tab))
}
