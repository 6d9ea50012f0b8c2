// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/consult-tui/internal/model"
)

// =============================================================================
// FINDINGS AGGREGATE
// =============================================================================

// AllFindings holds every surface's finding set plus the generated documents.
type AllFindings struct {
	Surfaces map[model.Surface]model.FindingSet
	SWOT     string
	Briefing string
}

// GetAllFindings fetches the finding sets of all surfaces at once.
func (c *Client) GetAllFindings(ctx context.Context, session string) (AllFindings, error) {
	var raw map[string]json.RawMessage
	out := AllFindings{Surfaces: make(map[model.Surface]model.FindingSet)}
	if err := c.call(ctx, http.MethodGet, EndpointAllFindings, Vars{Session: session}, nil, "", nil, &raw); err != nil {
		return out, err
	}

	for _, s := range model.Surfaces {
		body, ok := raw[string(s)]
		if !ok {
			continue
		}
		fs, _, err := decodeFindings(s, body)
		if err != nil {
			return out, err
		}
		out.Surfaces[s] = fs
	}
	out.SWOT = jsonString(raw["swot_analysis"])
	out.Briefing = jsonString(raw["transition_briefing"])
	return out, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// generatedDocument is the response of the document generators.
type generatedDocument struct {
	Content  string `json:"content"`
	Analysis string `json:"analysis"`
	Briefing string `json:"briefing"`
}

func (d generatedDocument) text() string {
	for _, s := range []string{d.Content, d.Analysis, d.Briefing} {
		if s != "" {
			return s
		}
	}
	return ""
}

// GenerateSWOT generates the SWOT analysis (markdown). LLM-triggering.
func (c *Client) GenerateSWOT(ctx context.Context, session, apiKey string) (string, error) {
	var doc generatedDocument
	err := c.call(ctx, http.MethodPost, EndpointExportSWOT, Vars{Session: session}, nil, apiKey, c.streamBody(), &doc)
	return doc.text(), err
}

// GenerateBriefing generates the transition briefing (markdown). LLM-triggering.
func (c *Client) GenerateBriefing(ctx context.Context, session, apiKey string) (string, error) {
	var doc generatedDocument
	err := c.call(ctx, http.MethodPost, EndpointExportBriefing, Vars{Session: session}, nil, apiKey, c.streamBody(), &doc)
	return doc.text(), err
}

// GeneratePDF downloads the PDF report into w and returns the byte count.
func (c *Client) GeneratePDF(ctx context.Context, session string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, EndpointExportPDF, Vars{Session: session}, nil, nil, "")
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		return 0, handleErrorResponse(resp.StatusCode, body)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, MaxPDFSize+1))
	if err != nil {
		return n, c.transportError(req, err)
	}
	if n > MaxPDFSize {
		return n, fmt.Errorf("PDF exceeded maximum size of %d bytes", MaxPDFSize)
	}
	return n, nil
}

// jsonString decodes a JSON string value; anything else yields "".
func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
