// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))

	_, err := m.LoadToken("sales")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveToken("sales", "tok-1"))
	require.NoError(t, m.SaveToken("finance", "tok-2"))
	require.NoError(t, m.SaveToken("sales", "tok-3"))

	tok, err := m.LoadToken("sales")
	require.NoError(t, err)
	assert.Equal(t, "tok-3", tok)

	projects, err := m.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "sales"}, projects)

	require.NoError(t, m.ClearToken("sales"))
	_, err = m.LoadToken("sales")
	assert.ErrorIs(t, err, ErrNotFound)

	projects, err = m.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, projects)
}

func TestSaveTokenRejectsEmpty(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))
	assert.Error(t, m.SaveToken("", "tok"))
	assert.Error(t, m.SaveToken("sales", ""))
}

func TestClearAll(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, m.SaveToken("a", "1"))
	require.NoError(t, m.SaveToken("b", "2"))

	require.NoError(t, m.ClearAll())

	projects, err := m.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)
	_, err = m.LoadToken("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenKey(t *testing.T) {
	assert.Equal(t, "powerbi_token/sales", TokenKey(" sales "))
}
