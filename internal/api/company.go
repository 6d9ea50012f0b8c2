// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
)

// =============================================================================
// COMPANY INFO
// =============================================================================

// CompanyInfo is one item of collected company information.
type CompanyInfo struct {
	ID        int64  `json:"id"`
	InfoType  string `json:"info_type"`
	Content   string `json:"content"`
	FileName  string `json:"file_name,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Source returns the most specific origin of the item.
func (ci CompanyInfo) Source() string {
	switch {
	case ci.FileName != "":
		return ci.FileName
	case ci.SourceURL != "":
		return ci.SourceURL
	default:
		return ci.InfoType
	}
}

// ListCompanyInfo lists the collected company information.
func (c *Client) ListCompanyInfo(ctx context.Context, session string) ([]CompanyInfo, error) {
	var items []CompanyInfo
	err := c.call(ctx, http.MethodGet, EndpointCompanyInfo, Vars{Session: session}, nil, "", nil, &items)
	return items, err
}

// SubmitText stores free text about the company.
func (c *Client) SubmitText(ctx context.Context, session, content string) (CompanyInfo, error) {
	var item CompanyInfo
	body := map[string]string{"content": content, "info_type": "text"}
	err := c.call(ctx, http.MethodPost, EndpointCompanyInfoText, Vars{Session: session}, nil, "", body, &item)
	return item, err
}

// UploadFile uploads a document as multipart form field "file".
func (c *Client) UploadFile(ctx context.Context, session, name string, r io.Reader) (CompanyInfo, error) {
	var item CompanyInfo

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return item, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(r, MaxResponseSize+1)); err != nil {
		return item, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return item, fmt.Errorf("failed to finish form: %w", err)
	}
	if buf.Len() > MaxResponseSize {
		return item, fmt.Errorf("file %s exceeds %d bytes", name, MaxResponseSize)
	}

	req, err := c.newRequest(ctx, http.MethodPost, EndpointCompanyInfoUpload, Vars{Session: session}, nil, &buf, "")
	if err != nil {
		return item, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.send(req, &item)
	return item, err
}

// CrawlURL asks the backend to crawl a company web site.
func (c *Client) CrawlURL(ctx context.Context, session, pageURL string) (CompanyInfo, error) {
	var item CompanyInfo
	body := map[string]string{"url": pageURL}
	err := c.call(ctx, http.MethodPost, EndpointCompanyInfoCrawl, Vars{Session: session}, nil, "", body, &item)
	return item, err
}

// DeleteCompanyInfo removes one item.
func (c *Client) DeleteCompanyInfo(ctx context.Context, session string, id int64) error {
	v := Vars{Session: session, ID: strconv.FormatInt(id, 10)}
	return c.call(ctx, http.MethodDelete, EndpointCompanyInfoItem, v, nil, "", nil, nil)
}

// =============================================================================
// MATURITY ASSESSMENT AND COMPANY PROFILE
// =============================================================================

// Document is a free-form JSON object owned by the backend.
type Document map[string]interface{}

// GetMaturity fetches the maturity assessment.
func (c *Client) GetMaturity(ctx context.Context, session string) (Document, error) {
	var doc Document
	err := c.call(ctx, http.MethodGet, EndpointMaturity, Vars{Session: session}, nil, "", nil, &doc)
	return doc, err
}

// SaveMaturity stores the maturity assessment.
func (c *Client) SaveMaturity(ctx context.Context, session string, doc Document) error {
	return c.call(ctx, http.MethodPost, EndpointMaturity, Vars{Session: session}, nil, "", doc, nil)
}

// GetProfile fetches the structured company profile.
func (c *Client) GetProfile(ctx context.Context, session string) (Document, error) {
	var doc Document
	err := c.call(ctx, http.MethodGet, EndpointProfile, Vars{Session: session}, nil, "", nil, &doc)
	return doc, err
}

// ExtractProfile derives the company profile from the collected information.
// It triggers an LLM call.
func (c *Client) ExtractProfile(ctx context.Context, session, apiKey string) (Document, error) {
	var doc Document
	err := c.call(ctx, http.MethodPost, EndpointProfileExtract, Vars{Session: session}, nil, apiKey, c.streamBody(), &doc)
	return doc, err
}

// SaveProfile stores an edited company profile.
func (c *Client) SaveProfile(ctx context.Context, session string, doc Document) error {
	return c.call(ctx, http.MethodPut, EndpointProfile, Vars{Session: session}, nil, "", doc, nil)
}

// DeleteProfile removes the company profile.
func (c *Client) DeleteProfile(ctx context.Context, session string) error {
	return c.call(ctx, http.MethodDelete, EndpointProfile, Vars{Session: session}, nil, "", nil, nil)
}
