// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for consultation surfaces,
// messages and findings.
package model

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Consultant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts a wire role into a Role. Unknown roles map to system so
// they never count as conversation turns.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser
	case RoleAssistant:
		return RoleAssistant
	default:
		return RoleSystem
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a surface conversation.
type Message struct {
	// Key routes stream deltas and UI updates to this message. Local messages
	// carry a client-generated UUID, server rows carry "srv-<id>".
	Key string `json:"key"`

	// ServerID is the authoritative server id, 0 until the server assigned one.
	ServerID int64 `json:"id"`

	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// ParticipantName is set in collaborative mode.
	ParticipantName string `json:"participant_name,omitempty"`
}

// NewUserMessage creates a locally keyed user message.
func NewUserMessage(content string) Message {
	return Message{
		Key:       NewKey(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewPlaceholder creates an empty assistant message that stream deltas are
// appended to.
func NewPlaceholder() Message {
	return Message{
		Key:       NewKey(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
}

// NewServerMessage creates a message from a server row.
func NewServerMessage(id int64, role Role, content string, createdAt time.Time) Message {
	return Message{
		Key:       ServerKey(id),
		ServerID:  id,
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// ServerKey returns the routing key used for a server-assigned id.
func ServerKey(id int64) string {
	return "srv-" + strconv.FormatInt(id, 10)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// IsPlaceholder returns true for an assistant message that has not received
// any content yet.
func (m Message) IsPlaceholder() bool {
	return m.Role == RoleAssistant && m.IsEmpty()
}

// Visible reports whether the message counts as a conversation turn.
func (m Message) Visible() bool {
	return m.Role != RoleSystem
}

// Author returns the label shown next to the message.
func (m Message) Author() string {
	if m.ParticipantName != "" {
		return m.ParticipantName
	}
	return m.Role.DisplayName()
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// SortByServerOrder orders server rows by id, then by creation time.
func SortByServerOrder(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].ServerID != msgs[j].ServerID {
			return msgs[i].ServerID < msgs[j].ServerID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// NewKey creates a unique client-side routing key.
func NewKey() string {
	return uuid.NewString()
}
