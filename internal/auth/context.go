// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/keychain"
)

// Context is a read-only key-value store holding previously issued tokens.
// Lookup reports found=false when the key is absent.
type Context interface {
	Lookup(ctx context.Context, key string) (value any, found bool, err error)
}

// MapContext is an in-memory context. Keys may be dotted paths into nested maps.
type MapContext map[string]any

func (m MapContext) Lookup(_ context.Context, key string) (any, bool, error) {
	v, ok := lookupPath(map[string]any(m), key)
	return v, ok, nil
}

// lookupPath resolves key in root. An exact key wins over a dotted path, so
// "a.b" matches root["a.b"] before root["a"]["b"].
func lookupPath(root map[string]any, key string) (any, bool) {
	if v, ok := root[key]; ok {
		return v, true
	}
	// longest dotted prefix first
	for i := len(key) - 1; i > 0; i-- {
		if key[i] != '.' {
			continue
		}
		if child, ok := root[key[:i]].(map[string]any); ok {
			if v, ok := lookupPath(child, key[i+1:]); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// FileContext reads a JSON object from a file, such as a project variables file.
// The file is read once on first lookup.
type FileContext struct {
	path string
	once sync.Once
	data map[string]any
	err  error
}

func NewFileContext(path string) *FileContext {
	return &FileContext{path: path}
}

func (f *FileContext) Lookup(_ context.Context, key string) (any, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return nil, false, f.err
	}
	v, ok := lookupPath(f.data, key)
	return v, ok, nil
}

func (f *FileContext) load() {
	b, err := os.ReadFile(f.path)
	if err != nil {
		f.err = goerr.Wrap(err, "failed to read context file", goerr.V("path", f.path))
		return
	}
	if err := json.Unmarshal(b, &f.data); err != nil {
		f.err = goerr.Wrap(err, "context file is not a JSON object", goerr.V("path", f.path))
	}
}

// EnvContext reads keys from environment variables. A key is upper-cased, every
// character other than letters and digits becomes '_', and Prefix is prepended:
// "powerbi_connection.ms-oauth_credentials" with prefix "PBIEXPORT_" reads
// PBIEXPORT_POWERBI_CONNECTION_MS_OAUTH_CREDENTIALS. Values holding a JSON object
// are returned as maps.
type EnvContext struct {
	Prefix string
	// Getenv defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

// EnvName returns the variable name read for key.
func (e EnvContext) EnvName(key string) string {
	var b strings.Builder
	b.WriteString(e.Prefix)
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e EnvContext) Lookup(_ context.Context, key string) (any, bool, error) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}
	v, ok := getenv(e.EnvName(key))
	if !ok {
		return nil, false, nil
	}
	if s := strings.TrimSpace(v); strings.HasPrefix(s, "{") {
		var obj map[string]any
		if json.Unmarshal([]byte(s), &obj) == nil {
			return obj, true, nil
		}
	}
	return v, true, nil
}

// TokenStore loads tokens saved per project. *keychain.Manager implements it.
type TokenStore interface {
	LoadToken(project string) (string, error)
}

// KeychainContext reads tokens saved by the token command. The lookup key is the project name.
type KeychainContext struct {
	Store TokenStore
}

func (k KeychainContext) Lookup(_ context.Context, key string) (any, bool, error) {
	tok, err := k.Store.LoadToken(key)
	if err != nil {
		if errors.Is(err, keychain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to read token from keychain", goerr.V("project", key))
	}
	return tok, true, nil
}

// ChainContext returns the first hit among its contexts.
type ChainContext []Context

func (c ChainContext) Lookup(ctx context.Context, key string) (any, bool, error) {
	for _, inner := range c {
		v, ok, err := inner.Lookup(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}
