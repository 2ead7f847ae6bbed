// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFile(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := Config{LogLevel: "debug", LogFormat: "json", BufferSize: 250, Project: "sales"}
	require.NoError(t, SaveTo(path, want))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFromInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	c, err := LoadFrom(path)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PBIEXPORT_LOG_LEVEL":   "warn",
		"PBIEXPORT_BUFFER_SIZE": "50",
		"PBIEXPORT_API_URL":     "https://api.powerbigov.us/v1.0/myorg",
	}
	c := Defaults()
	c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, DefaultLogFormat, c.LogFormat)
	assert.Equal(t, 50, c.BufferSize)
	assert.Equal(t, "https://api.powerbigov.us/v1.0/myorg", c.APIBaseURL)
}

func TestApplyEnvIgnoresBadBufferSize(t *testing.T) {
	c := Defaults()
	c.ApplyEnv(func(k string) (string, bool) {
		if k == "PBIEXPORT_BUFFER_SIZE" {
			return "-3", true
		}
		return "", false
	})
	assert.Equal(t, DefaultBufferSize, c.BufferSize)
}
