// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbiexport/cli/internal/auth"
	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/keychain"
)

func TestMapContextLookup(t *testing.T) {
	ctx := context.Background()
	m := auth.MapContext{
		"flat.key": "flat",
		"powerbi_connection": map[string]any{
			"ms-oauth_credentials": "nested",
		},
	}

	v, ok, err := m.Lookup(ctx, "flat.key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "flat", v)

	v, ok, _ = m.Lookup(ctx, auth.DefaultContextKey)
	assert.True(t, ok)
	assert.Equal(t, "nested", v)

	_, ok, _ = m.Lookup(ctx, "powerbi_connection.missing")
	assert.False(t, ok)
}

func TestFileContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variables.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"powerbi_connection":{"ms-oauth_credentials":"tok-file"}}`), 0o600))

	v, ok, err := auth.NewFileContext(path).Lookup(context.Background(), auth.DefaultContextKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-file", v)

	_, _, err = auth.NewFileContext(filepath.Join(t.TempDir(), "missing.json")).Lookup(context.Background(), "x")
	assert.Error(t, err)
}

func TestEnvContext(t *testing.T) {
	env := map[string]string{
		"PBIEXPORT_POWERBI_CONNECTION_MS_OAUTH_CREDENTIALS": "tok-env",
		"PBIEXPORT_PRESET": `{"client_id":"abc"}`,
	}
	e := auth.EnvContext{
		Prefix: "PBIEXPORT_",
		Getenv: func(k string) (string, bool) { v, ok := env[k]; return v, ok },
	}

	assert.Equal(t, "PBIEXPORT_POWERBI_CONNECTION_MS_OAUTH_CREDENTIALS", e.EnvName(auth.DefaultContextKey))

	v, ok, err := e.Lookup(context.Background(), auth.DefaultContextKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-env", v)

	v, ok, _ = e.Lookup(context.Background(), "preset")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"client_id": "abc"}, v)

	_, ok, _ = e.Lookup(context.Background(), "absent")
	assert.False(t, ok)
}

func TestKeychainContext(t *testing.T) {
	m := keychain.NewWithKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, m.SaveToken("sales", "tok-kc"))
	k := auth.KeychainContext{Store: m}

	v, ok, err := k.Lookup(context.Background(), "sales")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-kc", v)

	_, ok, err = k.Lookup(context.Background(), "finance")
	require.NoError(t, err)
	assert.False(t, ok)
}

type brokenStore struct{}

func (brokenStore) LoadToken(string) (string, error) { return "", errors.New("keychain locked") }

func TestContextTokenProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		store   auth.Context
		want    string
		wantErr string
	}{
		{
			name:  "scalar token",
			store: auth.MapContext{auth.DefaultContextKey: " tok-1 "},
			want:  "tok-1",
		},
		{
			name:    "absent key",
			store:   auth.MapContext{},
			wantErr: "no access token found",
		},
		{
			name:    "empty value",
			store:   auth.MapContext{auth.DefaultContextKey: "  "},
			wantErr: "is empty",
		},
		{
			name:    "structured value",
			store:   auth.MapContext{auth.DefaultContextKey: map[string]any{"client_id": "abc"}},
			wantErr: "OAuth settings cannot be used inline",
		},
		{
			name:    "lookup failure",
			store:   auth.KeychainContext{Store: brokenStore{}},
			wantErr: "keychain locked",
		},
		{
			name: "chain falls through",
			store: auth.ChainContext{
				auth.MapContext{},
				auth.MapContext{auth.DefaultContextKey: "tok-2"},
			},
			want: "tok-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := auth.NewContextTokenProvider(tt.store, "", nil).Credential(ctx)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errs.HasKind(err, errs.Authentication))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred.Token)
			assert.Equal(t, "context:"+auth.DefaultContextKey, cred.Source)
			assert.False(t, cred.IssuedAt.IsZero())
			assert.True(t, cred.ExpiresAt().IsZero())
		})
	}
}
