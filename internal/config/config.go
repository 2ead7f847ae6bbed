// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads CLI settings and export jobs.
//
// Settings live in config.json in the XDG config dir and hold only non-secret
// defaults. A Job describes one export and is built from flags or a YAML file.
// Tokens go to the OS keychain, never to these files.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/xdg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PBIEXPORT_"

const (
	DefaultBufferSize = 1000
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	BufferSize int    `json:"buffer_size"`
	// APIBaseURL and TokenURL are empty for the public cloud endpoints.
	APIBaseURL string `json:"api_base_url,omitempty"`
	TokenURL   string `json:"token_url,omitempty"`
	// Project is the keychain project used when a job does not name one.
	Project string `json:"project,omitempty"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() Config {
	return Config{
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		BufferSize: DefaultBufferSize,
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file and applies environment overrides. A missing file yields defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Defaults(), err
	}
	c, err := LoadFrom(p)
	if err != nil {
		return c, err
	}
	c.ApplyEnv(os.LookupEnv)
	return c, nil
}

// LoadFrom reads config from path without environment overrides.
func LoadFrom(path string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, goerr.Wrap(err, "failed to read config", goerr.V("path", path))
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Defaults(), goerr.Wrap(err, "invalid config file", goerr.V("path", path))
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c, nil
}

// ApplyEnv overrides settings from PBIEXPORT_LOG_LEVEL, PBIEXPORT_LOG_FORMAT,
// PBIEXPORT_BUFFER_SIZE, PBIEXPORT_API_URL, PBIEXPORT_TOKEN_URL and PBIEXPORT_PROJECT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup(EnvPrefix + "BUFFER_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BufferSize = n
		}
	}
	if v, ok := lookup(EnvPrefix + "API_URL"); ok && v != "" {
		c.APIBaseURL = v
	}
	if v, ok := lookup(EnvPrefix + "TOKEN_URL"); ok && v != "" {
		c.TokenURL = v
	}
	if v, ok := lookup(EnvPrefix + "PROJECT"); ok && v != "" {
		c.Project = v
	}
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(p, c)
}

func SaveTo(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
