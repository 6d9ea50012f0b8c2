// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jeranaias/consult-tui/internal/api"
)

// =============================================================================
// ERROR CATEGORIES
// =============================================================================

// ErrorCategory represents the type of error for display.
type ErrorCategory string

const (
	CategoryNetwork ErrorCategory = "Network"
	CategoryAuth    ErrorCategory = "Auth"
	CategoryServer  ErrorCategory = "Server"
	CategoryStream  ErrorCategory = "Stream"
	CategoryTimeout ErrorCategory = "Timeout"
	CategoryRate    ErrorCategory = "RateLimit"
	CategoryUnknown ErrorCategory = "Error"
)

// ErrorHint is a short title and a next step for an error.
type ErrorHint struct {
	Category   ErrorCategory
	Title      string
	Suggestion string
}

// =============================================================================
// ERROR PATTERNS
// =============================================================================

// errorPattern matches error text when the error kind alone is not enough.
type errorPattern struct {
	keywords []string
	hint     ErrorHint
}

var errorPatterns = []errorPattern{
	{
		keywords: []string{"deadline exceeded", "timeout", "timed out"},
		hint:     ErrorHint{CategoryTimeout, "Request timed out", "C-r asks for the answer again"},
	},
	{
		keywords: []string{"rate limit", "too many requests", "quota"},
		hint:     ErrorHint{CategoryRate, "Rate limited", "wait a moment before retrying"},
	},
	{
		keywords: []string{"connection refused", "no such host", "network is unreachable"},
		hint:     ErrorHint{CategoryNetwork, "Backend unreachable", "check backend.url in the config"},
	},
}

// HintFor classifies err. Returns false for nil and canceled errors.
func HintFor(err error) (ErrorHint, bool) {
	switch api.Kind(err) {
	case api.KindNone, api.KindCanceled:
		return ErrorHint{}, false
	case api.KindAuth:
		return ErrorHint{CategoryAuth, "API key rejected", "C-k to enter another key"}, true
	case api.KindServer:
		var se *api.ServerError
		if errors.As(err, &se) {
			switch {
			case se.Status == http.StatusNotFound:
				return ErrorHint{CategoryServer, "Not found", "the session may have been deleted"}, true
			case se.Status == http.StatusTooManyRequests:
				return ErrorHint{CategoryRate, "Rate limited", "wait a moment before retrying"}, true
			}
		}
	case api.KindStream:
		if h, ok := matchPattern(err); ok {
			return h, true
		}
		return ErrorHint{CategoryStream, "Answer interrupted", "C-r asks for the answer again"}, true
	}
	if h, ok := matchPattern(err); ok {
		return h, true
	}
	if api.Kind(err) == api.KindNetwork {
		return ErrorHint{CategoryNetwork, "Backend unreachable", "check backend.url in the config"}, true
	}
	return ErrorHint{Category: CategoryUnknown, Title: "Error"}, true
}

func matchPattern(err error) (ErrorHint, bool) {
	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(msg, kw) {
				return p.hint, true
			}
		}
	}
	return ErrorHint{}, false
}

// ErrorText formats err for a toast, with the hint's next step appended.
func ErrorText(err error) string {
	h, ok := HintFor(err)
	if !ok {
		return ""
	}
	if h.Suggestion == "" {
		return err.Error()
	}
	return err.Error() + " (" + h.Suggestion + ")"
}
