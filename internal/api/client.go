// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/consult-tui/internal/config"
	"github.com/jeranaias/consult-tui/internal/model"
	"github.com/jeranaias/consult-tui/internal/telemetry"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// MaxPDFSize is the maximum accepted PDF export size.
	MaxPDFSize = 50 * 1024 * 1024

	userAgent = "consult-tui/1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// sharedTransport is used by both the request and the streaming client.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the consultation backend.
//
// Non-streaming requests use a client with a timeout and pass through a rate
// limiter; streams use a client without timeout, controlled by their context.
type Client struct {
	baseURL   string
	keyHeader string
	language  string

	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	endpoints    Endpoints
	personas     *cache.Cache

	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// New creates a client from the configuration.
func New(cfg *config.Config) *Client {
	timeout := cfg.Backend.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	header := cfg.Backend.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.Backend.URL, "/"),
		keyHeader:    header,
		language:     cfg.UI.Language,
		httpClient:   &http.Client{Transport: sharedTransport, Timeout: timeout},
		streamClient: &http.Client{Transport: sharedTransport},
		endpoints:    NewEndpoints(cfg.Endpoints),
		personas:     cache.New(personaTTL, 2*personaTTL),
		logger:       zap.NewNop(),
	}
	if cfg.Backend.RequestsPerSecond > 0 {
		burst := cfg.Backend.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Backend.RequestsPerSecond), burst)
	}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger.Named("api")
	}
	return c
}

// WithMetrics sets the metrics sink.
func (c *Client) WithMetrics(m *telemetry.Metrics) *Client {
	c.metrics = m
	return c
}

// WithHTTPClient replaces both underlying HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoints returns the path resolver.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Surface returns the client for one chat surface.
func (c *Client) Surface(s model.Surface) *SurfaceClient {
	return &SurfaceClient{c: c, surface: s}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// newRequest builds a request for a named endpoint. The API key, when
// present, travels only in the configured header.
func (c *Client) newRequest(ctx context.Context, method, name string, v Vars, query url.Values, body io.Reader, apiKey string) (*http.Request, error) {
	path, err := c.endpoints.Path(name, v)
	if err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if apiKey != "" {
		req.Header.Set(c.keyHeader, apiKey)
	}
	return req, nil
}

// do sends a non-streaming request through the rate limiter.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.transportError(req, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Request(req.Method, 0)
		return nil, c.transportError(req, err)
	}
	c.metrics.Request(req.Method, resp.StatusCode)
	c.logger.Debug("api response",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// transportError maps a client failure to ErrCanceled or a NetworkError.
func (c *Client) transportError(req *http.Request, err error) error {
	if errors.Is(req.Context().Err(), context.Canceled) {
		return ErrCanceled
	}
	return &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
}

// call performs a JSON request and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, name string, v Vars, query url.Values, apiKey string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, name, v, query, body, apiKey)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send performs req and decodes the JSON response into out.
func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return c.transportError(req, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// WIRE HELPERS
// =============================================================================

// wireMessage is a message row as the backend sends it.
type wireMessage struct {
	ID              int64  `json:"id"`
	Role            string `json:"role"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at"`
	ParticipantName string `json:"participant_name"`
}

func (w wireMessage) toModel() model.Message {
	msg := model.NewServerMessage(w.ID, model.ParseRole(w.Role), w.Content, parseTime(w.CreatedAt))
	msg.ParticipantName = w.ParticipantName
	if w.ID == 0 {
		msg.Key = model.NewKey()
	}
	return msg
}

// decodeMessages accepts {"messages": [...]} or a bare array.
func decodeMessages(data []byte) ([]model.Message, error) {
	trimmed := bytes.TrimSpace(data)
	var rows []wireMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}
	} else if len(trimmed) > 0 {
		var env struct {
			Messages []wireMessage `json:"messages"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}
		rows = env.Messages
	}

	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	model.SortByServerOrder(out)
	return out, nil
}

// timeLayouts are the timestamp formats the backend is known to emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTime parses a backend timestamp; unparseable values yield zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
