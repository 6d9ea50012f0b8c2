// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// ENDPOINT TABLE
// =============================================================================

// Endpoint names. Surface endpoints use the {surface} placeholder and can be
// overridden per surface as "<surface>_<name>" in the [endpoints] section.
const (
	EndpointMessages           = "messages"
	EndpointSaveMessage        = "save_message"
	EndpointStartStream        = "start_stream"
	EndpointRequestStream      = "request_stream"
	EndpointFindings           = "findings"
	EndpointSummarize          = "summarize"
	EndpointExtractIncremental = "extract_incremental"
	EndpointReset              = "reset"

	EndpointCollaborativeMode     = "collaborative_mode"
	EndpointCollaborativeStatus   = "collaborative_status"
	EndpointCollaborativeMessages = "collaborative_messages"
	EndpointCollaborativeMessage  = "collaborative_message"

	EndpointCompanyInfo       = "company_info"
	EndpointCompanyInfoText   = "company_info_text"
	EndpointCompanyInfoUpload = "company_info_upload"
	EndpointCompanyInfoCrawl  = "company_info_crawl"
	EndpointCompanyInfoItem   = "company_info_item"

	EndpointMaturity       = "maturity"
	EndpointProfile        = "profile"
	EndpointProfileExtract = "profile_extract"

	EndpointSixThreeFiveStatus  = "sixthreefive_status"
	EndpointSixThreeFiveJoin    = "sixthreefive_join"
	EndpointSixThreeFiveStart   = "sixthreefive_start"
	EndpointSixThreeFiveSheet   = "sixthreefive_sheet"
	EndpointSixThreeFiveSubmit  = "sixthreefive_submit"
	EndpointSixThreeFiveAdvance = "sixthreefive_advance"
	EndpointSixThreeFiveSkip    = "sixthreefive_skip"
	EndpointSixThreeFiveManual  = "sixthreefive_manual"
	EndpointSixThreeFiveIdeas   = "sixthreefive_ideas"

	EndpointPrioritizationResults = "prioritization_results"
	EndpointPrioritizationVote    = "prioritization_vote"

	EndpointAllFindings = "all_findings"

	EndpointExportSWOT     = "export_swot"
	EndpointExportBriefing = "export_briefing"
	EndpointExportPDF      = "export_pdf"

	EndpointPersonas      = "personas"
	EndpointPersonaStream = "persona_stream"
)

// defaultPaths maps endpoint names to path templates.
var defaultPaths = map[string]string{
	EndpointMessages:           "/api/sessions/{session}/{surface}/messages",
	EndpointSaveMessage:        "/api/sessions/{session}/{surface}/message",
	EndpointStartStream:        "/api/sessions/{session}/{surface}/start/stream",
	EndpointRequestStream:      "/api/sessions/{session}/{surface}/message/stream",
	EndpointFindings:           "/api/sessions/{session}/{surface}/findings",
	EndpointSummarize:          "/api/sessions/{session}/{surface}/summarize",
	EndpointExtractIncremental: "/api/sessions/{session}/{surface}/extract-incremental",
	EndpointReset:              "/api/sessions/{session}/{surface}/reset",

	EndpointCollaborativeMode:     "/api/sessions/{session}/consultation/collaborative-mode",
	EndpointCollaborativeStatus:   "/api/sessions/{session}/consultation/collaborative-status",
	EndpointCollaborativeMessages: "/api/sessions/{session}/consultation/collaborative-messages",
	EndpointCollaborativeMessage:  "/api/sessions/{session}/consultation/collaborative-message",

	EndpointCompanyInfo:       "/api/sessions/{session}/company-info",
	EndpointCompanyInfoText:   "/api/sessions/{session}/company-info/text",
	EndpointCompanyInfoUpload: "/api/sessions/{session}/company-info/upload",
	EndpointCompanyInfoCrawl:  "/api/sessions/{session}/company-info/crawl",
	EndpointCompanyInfoItem:   "/api/sessions/{session}/company-info/{id}",

	EndpointMaturity:       "/api/sessions/{session}/maturity",
	EndpointProfile:        "/api/sessions/{session}/company-profile",
	EndpointProfileExtract: "/api/sessions/{session}/company-profile/extract",

	EndpointSixThreeFiveStatus:  "/api/sessions/{session}/six-three-five/status",
	EndpointSixThreeFiveJoin:    "/api/sessions/{session}/six-three-five/join",
	EndpointSixThreeFiveStart:   "/api/sessions/{session}/six-three-five/start",
	EndpointSixThreeFiveSheet:   "/api/sessions/{session}/six-three-five/my-sheet",
	EndpointSixThreeFiveSubmit:  "/api/sessions/{session}/six-three-five/ideas",
	EndpointSixThreeFiveAdvance: "/api/sessions/{session}/six-three-five/advance",
	EndpointSixThreeFiveSkip:    "/api/sessions/{session}/six-three-five/skip",
	EndpointSixThreeFiveManual:  "/api/sessions/{session}/six-three-five/manual-ideas",
	EndpointSixThreeFiveIdeas:   "/api/sessions/{session}/six-three-five/ideas",

	EndpointPrioritizationResults: "/api/sessions/{session}/prioritization/results",
	EndpointPrioritizationVote:    "/api/sessions/{session}/prioritization/vote",

	EndpointAllFindings: "/api/sessions/{session}/findings",

	EndpointExportSWOT:     "/api/sessions/{session}/export/swot",
	EndpointExportBriefing: "/api/sessions/{session}/export/transition-briefing",
	EndpointExportPDF:      "/api/sessions/{session}/export/pdf",

	EndpointPersonas:      "/api/test-mode/personas",
	EndpointPersonaStream: "/api/sessions/{session}/test-mode/generate/stream",
}

// Vars are the values substituted into a path template.
type Vars struct {
	Surface model.Surface
	Session string
	ID      string
}

// Endpoints resolves endpoint names to request paths.
type Endpoints struct {
	overrides map[string]string
}

// NewEndpoints creates a resolver with the given overrides.
func NewEndpoints(overrides map[string]string) Endpoints {
	o := make(map[string]string, len(overrides))
	for k, v := range overrides {
		o[strings.ToLower(k)] = v
	}
	return Endpoints{overrides: o}
}

// Template returns the path template for name on the given surface.
// Lookup order: "<surface>_<name>" override, "<name>" override, default.
func (e Endpoints) Template(name string, surface model.Surface) (string, error) {
	if surface != "" {
		if t, ok := e.overrides[string(surface)+"_"+name]; ok {
			return t, nil
		}
	}
	if t, ok := e.overrides[name]; ok {
		return t, nil
	}
	if t, ok := defaultPaths[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
}

// Path resolves name into a request path with escaped placeholders.
func (e Endpoints) Path(name string, v Vars) (string, error) {
	tmpl, err := e.Template(name, v.Surface)
	if err != nil {
		return "", err
	}
	if strings.Contains(tmpl, "{session}") && v.Session == "" {
		return "", fmt.Errorf("endpoint %s requires a session", name)
	}
	r := strings.NewReplacer(
		"{session}", url.PathEscape(v.Session),
		"{surface}", url.PathEscape(v.Surface.PathSegment()),
		"{id}", url.PathEscape(v.ID),
	)
	return r.Replace(tmpl), nil
}

// Names returns all known endpoint names in sorted order.
func Names() []string {
	names := make([]string, 0, len(defaultPaths))
	for k := range defaultPaths {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
