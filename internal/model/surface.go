// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// SURFACE TYPE
// =============================================================================

// Surface identifies one LLM-backed conversation of a session.
type Surface string

const (
	SurfaceConsultation   Surface = "consultation"
	SurfaceBusinessCase   Surface = "business_case"
	SurfaceCostEstimation Surface = "cost_estimation"
)

// Surfaces lists all surfaces in workflow order.
var Surfaces = []Surface{SurfaceConsultation, SurfaceBusinessCase, SurfaceCostEstimation}

// Section keys per surface. The order is the display order of the findings tabs.
var sectionKeys = map[Surface][]string{
	SurfaceConsultation: {
		"business_objectives",
		"situation_assessment",
		"ai_goals",
		"project_plan",
	},
	SurfaceBusinessCase: {
		"classification",
		"calculation",
		"validation_questions",
		"management_pitch",
	},
	SurfaceCostEstimation: {
		"complexity",
		"initial_investment",
		"recurring_costs",
		"maintenance",
		"tco",
		"cost_drivers",
		"optimization",
		"roi_analysis",
	},
}

// ParseSurface converts a name into a Surface. Dashes and case are ignored.
func ParseSurface(s string) (Surface, error) {
	norm := Surface(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, sf := range Surfaces {
		if sf == norm {
			return sf, nil
		}
	}
	return "", fmt.Errorf("unknown surface %q", s)
}

// String returns the string representation of the surface.
func (s Surface) String() string {
	return string(s)
}

// Title returns a display title.
func (s Surface) Title() string {
	switch s {
	case SurfaceConsultation:
		return "Consultation"
	case SurfaceBusinessCase:
		return "Business Case"
	case SurfaceCostEstimation:
		return "Cost Estimation"
	default:
		return string(s)
	}
}

// PathSegment returns the URL path segment of the surface.
func (s Surface) PathSegment() string {
	return strings.ReplaceAll(string(s), "_", "-")
}

// Sections returns the fixed finding section keys of the surface.
func (s Surface) Sections() []string {
	keys := sectionKeys[s]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// HasSection reports whether key is a finding section of the surface.
func (s Surface) HasSection(key string) bool {
	for _, k := range sectionKeys[s] {
		if k == key {
			return true
		}
	}
	return false
}

// Collaborative reports whether the surface supports collaborative mode.
func (s Surface) Collaborative() bool {
	return s == SurfaceConsultation
}

// SectionTitle turns a section key into a heading ("roi_analysis" -> "ROI Analysis").
func SectionTitle(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		switch w {
		case "ai", "roi", "tco":
			words[i] = strings.ToUpper(w)
		default:
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}
