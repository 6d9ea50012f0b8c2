// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// ERROR VALUES
// =============================================================================

var (
	// ErrCanceled is returned when the caller cancelled the request.
	// It is never shown to the user.
	ErrCanceled = errors.New("request canceled")

	// ErrNotSupported indicates an operation the surface does not offer.
	ErrNotSupported = errors.New("operation not supported on this surface")

	// ErrUnknownEndpoint indicates a path template name with no default.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// NetworkError indicates the transport failed before or during an exchange.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError indicates the server rejected the API key.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "API key rejected: " + e.Message
	}
	return "API key rejected"
}

// ServerError is a structured failure reported by the backend. Message is
// surfaced verbatim.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error (HTTP %d)", e.Status)
}

// StreamError represents an SSE parse failure or truncation, preserving any
// partial content received before the error.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorKind classifies errors for logging, metrics and UI decisions.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindCanceled
	KindNetwork
	KindAuth
	KindServer
	KindStream
	KindOther
)

// String returns the label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCanceled:
		return "canceled"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	case KindStream:
		return "stream"
	default:
		return "other"
	}
}

// Kind classifies err.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindAuth
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return KindStream
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return KindServer
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindOther
}

// IsAuth reports whether err is an API key rejection.
func IsAuth(err error) bool {
	return Kind(err) == KindAuth
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Status == http.StatusNotFound
}

// =============================================================================
// RESPONSE ERROR PARSING
// =============================================================================

// errorBody covers the error shapes the backend emits.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

// handleErrorResponse converts an HTTP error response to an AuthError or
// ServerError carrying the most specific message available.
func handleErrorResponse(statusCode int, body []byte) error {
	msg := errorMessage(body)
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Status: statusCode, Message: msg}
	default:
		return &ServerError{Status: statusCode, Message: msg}
	}
}

// errorMessage extracts detail, error or message (first non-empty) from a JSON
// body, falling back to the trimmed raw body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(trimmed, &eb); err == nil {
		for _, raw := range []json.RawMessage{eb.Detail, eb.Error, eb.Message} {
			if s := rawText(raw); s != "" {
				return s
			}
		}
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return ""
	}
	return string(trimmed)
}

// rawText renders a JSON value as message text: strings verbatim, objects
// by their own message field, lists of validation errors joined.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Msg != "" {
			return obj.Msg
		}
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		var parts []string
		for _, item := range list {
			if item.Msg != "" {
				parts = append(parts, item.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
