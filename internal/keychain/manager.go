// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores Power BI access tokens in the OS credential store.
// Tokens are saved per project by the token command and read back by the
// keychain auth context during an export.
package keychain

import (
	"encoding/json"
	"errors"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("secret not found in keychain")

// Manager provides thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	backend backend
}

// backend is a minimal string store. The macOS security command and the
// keyring library both satisfy it.
type backend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "pbiexport"

const (
	tokenKeyPrefix = "powerbi_token/"
	// keyProjects holds the JSON list of projects with a stored token.
	keyProjects = "powerbi_projects"
)

// TokenKey returns the keychain key of a project's access token.
func TokenKey(project string) string {
	return tokenKeyPrefix + strings.TrimSpace(project)
}

// NewManager opens the platform keychain.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		b, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: b}, nil
		}
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an already opened keyring, e.g. keyring.NewArrayKeyring in tests.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{backend: ringBackend{ring: ring}}
}

// GetManager returns the process-wide manager, opening it on first use.
// A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

// openRing opens the OS keyring with native backends only. There is no
// encrypted-file fallback.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// pass is the fallback where Keychain access is blocked
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS (macOS, Windows and Linux only)")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// SaveToken stores a project's access token and records the project.
func (m *Manager) SaveToken(project, token string) error {
	project = strings.TrimSpace(project)
	if project == "" {
		return errors.New("project name is required")
	}
	if token == "" {
		return errors.New("refusing to store an empty token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backend.Set(TokenKey(project), token); err != nil {
		return err
	}
	projects, _ := m.projects()
	if !slices.Contains(projects, project) {
		projects = append(projects, project)
	}
	return m.saveProjects(projects)
}

// LoadToken returns a project's stored access token or ErrNotFound.
func (m *Manager) LoadToken(project string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, err := m.backend.Get(TokenKey(project))
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// ClearToken removes a project's token. Removing an absent token is not an error.
func (m *Manager) ClearToken(project string) error {
	project = strings.TrimSpace(project)
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.backend.Delete(TokenKey(project))
	projects, _ := m.projects()
	projects = slices.DeleteFunc(projects, func(p string) bool { return p == project })
	return m.saveProjects(projects)
}

// Projects lists the projects that have a stored token, sorted by name.
func (m *Manager) Projects() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects()
}

// ClearAll removes every stored token.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	projects, _ := m.projects()
	for _, p := range projects {
		_ = m.backend.Delete(TokenKey(p))
	}
	_ = m.backend.Delete(keyProjects)
	return nil
}

func (m *Manager) projects() ([]string, error) {
	raw, err := m.backend.Get(keyProjects)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	if raw == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) saveProjects(projects []string) error {
	if len(projects) == 0 {
		_ = m.backend.Delete(keyProjects)
		return nil
	}
	b, err := json.Marshal(projects)
	if err != nil {
		return err
	}
	return m.backend.Set(keyProjects, string(b))
}

// ringBackend adapts keyring.Keyring to backend.
type ringBackend struct {
	ring keyring.Keyring
}

func (r ringBackend) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Label: ServiceName + " " + key, Data: []byte(value)})
}

func (r ringBackend) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(it.Data), nil
}

func (r ringBackend) Delete(key string) error {
	err := r.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
