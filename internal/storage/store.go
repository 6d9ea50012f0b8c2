// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrEmptySession is returned for a blank session id.
var ErrEmptySession = errors.New("session id is empty")

// Setting keys.
const (
	settingLastPersona = "last_persona"
	settingLastSession = "last_session"
)

// schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS participants (
	session_id TEXT PRIMARY KEY,
	uuid       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	surface     TEXT NOT NULL DEFAULT '',
	last_opened INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_opened ON sessions(last_opened DESC);
`

// =============================================================================
// STORE
// =============================================================================

// Store is the preferences database. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// SessionRecord is a recently opened session.
type SessionRecord struct {
	SessionID  string
	Surface    string
	LastOpened time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("storage path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// ParticipantUUID returns the local participant id for session, creating
// and persisting a new one on first use.
func (s *Store) ParticipantUUID(ctx context.Context, session string) (string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return "", ErrEmptySession
	}

	id := uuid.NewString()
	// INSERT OR IGNORE keeps an existing id; the SELECT returns the winner.
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO participants (session_id, uuid, created_at) VALUES (?, ?, ?)",
		session, id, s.now().Unix()); err != nil {
		return "", fmt.Errorf("failed to store participant: %w", err)
	}

	var stored string
	if err := s.db.QueryRowContext(ctx,
		"SELECT uuid FROM participants WHERE session_id = ?", session).Scan(&stored); err != nil {
		return "", fmt.Errorf("failed to load participant: %w", err)
	}
	return stored, nil
}

// ForgetParticipant removes the participant id of session.
func (s *Store) ForgetParticipant(ctx context.Context, session string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM participants WHERE session_id = ?", session)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting returns a stored value; ok is false when unset.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// LastPersona returns the last selected test-mode persona id, or "".
func (s *Store) LastPersona(ctx context.Context) (string, error) {
	v, _, err := s.Setting(ctx, settingLastPersona)
	return v, err
}

// SetLastPersona records the selected persona id.
func (s *Store) SetLastPersona(ctx context.Context, id string) error {
	return s.SetSetting(ctx, settingLastPersona, id)
}

// =============================================================================
// SESSIONS
// =============================================================================

// TouchSession records that session was opened now on surface.
func (s *Store) TouchSession(ctx context.Context, session, surface string) error {
	session = strings.TrimSpace(session)
	if session == "" {
		return ErrEmptySession
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, surface, last_opened) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET surface = excluded.surface, last_opened = excluded.last_opened`,
		session, surface, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return s.SetSetting(ctx, settingLastSession, session)
}

// LastSession returns the most recently opened session id, or "".
func (s *Store) LastSession(ctx context.Context) (string, error) {
	v, _, err := s.Setting(ctx, settingLastSession)
	return v, err
}

// RecentSessions lists sessions, most recently opened first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, surface, last_opened FROM sessions ORDER BY last_opened DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var ts int64
		if err := rows.Scan(&rec.SessionID, &rec.Surface, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.LastOpened = time.Unix(0, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}
