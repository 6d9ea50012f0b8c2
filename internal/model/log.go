// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// MESSAGE LOG
// =============================================================================

// Log is the ordered message list of one surface conversation.
//
// Messages are appended and addressed by key through an index map, never by
// position, so collaborative inserts between two deltas cannot redirect a
// delta to the wrong message. Log is not safe for concurrent use; the chat
// engine serialises access.
type Log struct {
	messages []Message
	index    map[string]int
	servers  map[int64]struct{}
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		messages: make([]Message, 0),
		index:    make(map[string]int),
		servers:  make(map[int64]struct{}),
	}
}

// Append adds a message at the end. A message whose key or server id is
// already present is ignored and false is returned.
func (l *Log) Append(msg Message) bool {
	if _, ok := l.index[msg.Key]; ok {
		return false
	}
	if msg.ServerID != 0 {
		if _, ok := l.servers[msg.ServerID]; ok {
			return false
		}
		l.servers[msg.ServerID] = struct{}{}
	}
	l.index[msg.Key] = len(l.messages)
	l.messages = append(l.messages, msg)
	return true
}

// AppendContent appends a stream delta to the message with the given key.
// Returns false when the key is unknown.
func (l *Log) AppendContent(key, delta string) bool {
	pos, ok := l.index[key]
	if !ok {
		return false
	}
	l.messages[pos].Content += delta
	return true
}

// Get returns the message with the given key.
func (l *Log) Get(key string) (Message, bool) {
	pos, ok := l.index[key]
	if !ok {
		return Message{}, false
	}
	return l.messages[pos], true
}

// Remove deletes the message with the given key and reindexes the rest.
func (l *Log) Remove(key string) bool {
	pos, ok := l.index[key]
	if !ok {
		return false
	}
	if id := l.messages[pos].ServerID; id != 0 {
		delete(l.servers, id)
	}
	l.messages = append(l.messages[:pos], l.messages[pos+1:]...)
	l.reindex()
	return true
}

// AssignServerID records the authoritative id of a locally created message.
// A message that already carries a server id keeps it. When a poll has
// already delivered the row with that id, the local copy is the duplicate
// and is removed. Returns true when the log changed.
func (l *Log) AssignServerID(key string, id int64) bool {
	pos, ok := l.index[key]
	if !ok || id == 0 || l.messages[pos].ServerID != 0 {
		return false
	}
	if _, taken := l.servers[id]; taken {
		return l.Remove(key)
	}
	l.messages[pos].ServerID = id
	l.servers[id] = struct{}{}
	return true
}

// HasServerID reports whether a message with the given server id is present.
func (l *Log) HasServerID(id int64) bool {
	_, ok := l.servers[id]
	return ok
}

// MergeRemote merges polled server messages into the log.
//
// Messages whose server id is already present are dropped. A remote
// assistant message whose content equals a locally streamed reply without a
// server id adopts that reply instead of being appended. User rows are never
// matched by content: local sends get their id from the save acknowledgement.
// Everything else is appended in the given order.
// Returns the number of appended messages and the greatest server id seen.
func (l *Log) MergeRemote(remote []Message) (added int, maxID int64) {
	for _, msg := range remote {
		if msg.ServerID > maxID {
			maxID = msg.ServerID
		}
		if msg.ServerID == 0 || l.HasServerID(msg.ServerID) {
			continue
		}
		if key, ok := l.findEcho(msg); ok {
			l.AssignServerID(key, msg.ServerID)
			if msg.ParticipantName != "" {
				l.messages[l.index[key]].ParticipantName = msg.ParticipantName
			}
			continue
		}
		if msg.Key == "" {
			msg.Key = ServerKey(msg.ServerID)
		}
		if l.Append(msg) {
			added++
		}
	}
	return added, maxID
}

// findEcho returns the oldest unconfirmed local reply matching msg.
func (l *Log) findEcho(msg Message) (string, bool) {
	if msg.Role != RoleAssistant {
		return "", false
	}
	for _, m := range l.messages {
		if m.ServerID == 0 && m.Role == msg.Role && m.Content == msg.Content && !m.IsEmpty() {
			return m.Key, true
		}
	}
	return "", false
}

// Messages returns a copy of all messages in order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// CountNonSystem returns the number of user and assistant messages.
func (l *Log) CountNonSystem() int {
	n := 0
	for _, m := range l.messages {
		if m.Visible() {
			n++
		}
	}
	return n
}

// EmptyAssistantCount returns the number of assistant messages without content.
func (l *Log) EmptyAssistantCount() int {
	n := 0
	for _, m := range l.messages {
		if m.IsPlaceholder() {
			n++
		}
	}
	return n
}

// LastOf returns the most recent message with the given role.
func (l *Log) LastOf(role Role) (Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == role {
			return l.messages[i], true
		}
	}
	return Message{}, false
}

// MaxServerID returns the greatest server id in the log.
func (l *Log) MaxServerID() int64 {
	var max int64
	for id := range l.servers {
		if id > max {
			max = id
		}
	}
	return max
}

// Clear removes all messages.
func (l *Log) Clear() {
	l.messages = make([]Message, 0)
	l.index = make(map[string]int)
	l.servers = make(map[int64]struct{})
}

func (l *Log) reindex() {
	l.index = make(map[string]int, len(l.messages))
	for i, m := range l.messages {
		l.index[m.Key] = i
	}
}
