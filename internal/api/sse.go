// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// SSE CONSTANTS
// =============================================================================

// MaxLineSize is the maximum allowed size for a single SSE line (64KB).
const MaxLineSize = 64 * 1024

// DoneToken is the data payload that terminates a stream.
const DoneToken = "[DONE]"

// ErrLineTooLong is returned when an SSE line exceeds MaxLineSize.
var ErrLineTooLong = fmt.Errorf("SSE line exceeds %d bytes", MaxLineSize)

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return &SSEReader{scanner: s}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, the data payload and any error.
// Returns io.EOF when the stream ends.
//
// Multiple data lines are joined with "\n". Exactly one space after "data:"
// is stripped; any other whitespace belongs to the payload, since deltas
// such as "lo " are significant.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	hasData := false

	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")

		// Empty line signals end of event
		if len(line) == 0 {
			if hasData {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			eventType = ""
			continue
		}

		// Comment
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch string(field) {
		case "event":
			eventType = string(value)
		case "data":
			// Copy: the scanner reuses its buffer.
			dataLines = append(dataLines, append([]byte(nil), value...))
			hasData = true
		}
		// Ignore other fields (id:, retry:)
	}

	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", nil, ErrLineTooLong
		}
		return "", nil, err
	}

	// If we have data, return it before EOF
	if hasData {
		return eventType, bytes.Join(dataLines, []byte("\n")), nil
	}
	return "", nil, io.EOF
}

// =============================================================================
// UTF-8 BOUNDARY CARRY
// =============================================================================

// utf8Carry holds the bytes of an incomplete trailing code point until the
// rest arrives, so text is only ever emitted on code point boundaries.
type utf8Carry struct {
	pending []byte
}

// feed returns the longest complete prefix of the pending bytes plus b and
// keeps an incomplete trailing code point for the next call.
func (c *utf8Carry) feed(b []byte) string {
	buf := make([]byte, 0, len(c.pending)+len(b))
	buf = append(buf, c.pending...)
	buf = append(buf, b...)

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}

	c.pending = append(c.pending[:0], buf[cut:]...)
	return string(buf[:cut])
}

// flush returns any dangling partial code point as U+FFFD.
func (c *utf8Carry) flush() string {
	if len(c.pending) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(c.pending), string(utf8.RuneError))
	c.pending = c.pending[:0]
	return out
}
