// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apikey holds the user's AI-provider key for the life of the process
// and gates key-requiring actions behind a prompt.
//
// The key lives in memory only. It is never written to the config file, the
// preferences database or the logs; logs carry logging.KeyFingerprint at most.
package apikey

import (
	"errors"
	"os"
	"strings"
	"sync"
	"unicode"
)

// EnvVar seeds the default store at startup.
const EnvVar = "CONSULT_API_KEY"

// MinLength is the shortest key accepted.
const MinLength = 8

// Validation errors.
var (
	ErrEmpty      = errors.New("API key is empty")
	ErrWhitespace = errors.New("API key must not contain whitespace")
	ErrTooShort   = errors.New("API key is too short")
)

// Validate performs a format check on a key before it is stored.
func Validate(key string) error {
	if key == "" {
		return ErrEmpty
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return ErrWhitespace
		}
	}
	if len(key) < MinLength {
		return ErrTooShort
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Store is the process-wide key record. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	key string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// Default returns the process-wide store, seeded from CONSULT_API_KEY when
// that holds a valid key.
func Default() *Store {
	defaultStoreOnce.Do(func() {
		defaultStore = NewStore()
		if key := strings.TrimSpace(os.Getenv(EnvVar)); Validate(key) == nil {
			defaultStore.key = key
		}
	})
	return defaultStore
}

// Get returns the key, or "" when unset.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Set validates and stores key.
func (s *Store) Set(key string) error {
	key = strings.TrimSpace(key)
	if err := Validate(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	return nil
}

// Clear forgets the key.
func (s *Store) Clear() {
	s.mu.Lock()
	s.key = ""
	s.mu.Unlock()
}

// IsSet reports whether a key is stored.
func (s *Store) IsSet() bool {
	return s.Get() != ""
}
