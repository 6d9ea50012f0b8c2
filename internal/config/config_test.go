// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()
	t.Setenv("CONSULT_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.SetDefaults()
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
	ResetGlobalForTesting()
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.Collaboration.PollInterval())
	assert.Equal(t, "X-API-Key", cfg.Backend.APIKeyHeader)
	assert.Equal(t, 4, cfg.Extraction.Threshold)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[backend]
url = "https://consult.example.com"
api_key_header = "X-LLM-Key"

[endpoints]
consultation_messages = "/v2/sessions/{session}/consultation/messages"

[collaboration]
poll_interval = 1.5

[ui]
language = "de"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://consult.example.com", cfg.Backend.URL)
	assert.Equal(t, "X-LLM-Key", cfg.Backend.APIKeyHeader)
	assert.Equal(t, 1500*time.Millisecond, cfg.Collaboration.PollInterval())
	assert.Equal(t, "de", cfg.UI.Language)
	assert.Equal(t, "/v2/sessions/{session}/consultation/messages", cfg.Endpoints["consultation_messages"])
	// Unset values keep their defaults.
	assert.Equal(t, 60, cfg.Backend.TimeoutSecs)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONSULT_BACKEND_URL", "http://10.0.0.1:9000")
	t.Setenv("CONSULT_LANGUAGE", "DE")
	t.Setenv("CONSULT_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://10.0.0.1:9000", cfg.Backend.URL)
	assert.Equal(t, "de", cfg.UI.Language)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Backend.URL = "localhost" }, "backend.url"},
		{"bad header", func(c *Config) { c.Backend.APIKeyHeader = "X Key" }, "backend.api_key_header"},
		{"poll too fast", func(c *Config) { c.Collaboration.PollIntervalSecs = 0.1 }, "collaboration.poll_interval"},
		{"language", func(c *Config) { c.UI.Language = "fr" }, "ui.language"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"endpoint", func(c *Config) { c.Endpoints = map[string]string{"x": "api/x"} }, "endpoints.x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.SetDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.SetDefaults()
	cfg.Backend.URL = "http://backend:8000"

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000", loaded.Backend.URL)
}

func TestClone_DeepCopiesEndpoints(t *testing.T) {
	cfg := Default()
	cfg.Endpoints = map[string]string{"a": "/a"}
	clone := cfg.Clone()
	clone.Endpoints["a"] = "/b"
	assert.Equal(t, "/a", cfg.Endpoints["a"])
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[collaboration]\npoll_interval = 3\n"), 0600))

	got := make(chan *Config, 4)
	w, err := Watch(path, nil, func(c *Config) { got <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[collaboration]\npoll_interval = 5\n"), 0600))

	select {
	case cfg := <-got:
		assert.Equal(t, 5*time.Second, cfg.Collaboration.PollInterval())
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
