// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/logging"
)

func TestNewRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelInfo, logging.FormatJSON)

	logger.Info("token exchange",
		slog.String("secret_key", "xxx"),
		slog.String("password", "hunter2"),
		slog.String("client_secret", "s3cr3t"),
		slog.String("Authorization", "Bearer abc"),
		slog.String("username", "ann@example.com"),
	)

	out := buf.String()
	assert.NotContains(t, out, "xxx")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, "ann@example.com")
}

func TestNewRedactsTaggedStructFields(t *testing.T) {
	type credential struct {
		Source string
		Value  string `masq:"secret"`
	}

	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelInfo, logging.FormatJSON)
	logger.Info("resolved", slog.Any("credential", credential{Source: "context", Value: "tok-123"}))

	assert.NotContains(t, buf.String(), "tok-123")
	assert.Contains(t, buf.String(), "context")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelWarn, logging.FormatJSON)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatJSON, f)

	f, err = logging.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatConsole, f)

	_, err = logging.ParseFormat("xml")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("bogus"))
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want logging.APIErrorType
	}{
		{"authentication kind", errs.New(errs.Authentication, "no token"), logging.APIErrorAuth},
		{"401 status", errs.API("listing groups", 401, ""), logging.APIErrorAuth},
		{"403 status", errs.API("pushing rows", 403, ""), logging.APIErrorForbidden},
		{"missing dataset", errs.New(errs.NoExistingDataset, "Sales"), logging.APIErrorNotFound},
		{"duplicate dataset", errs.New(errs.DatasetAlreadyExists, "Sales"), logging.APIErrorConflict},
		{"throttled", fmt.Errorf("open: %w", errs.API("creating dataset", 429, "")), logging.APIErrorThrottled},
		{"server error", errs.API("refresh", 503, ""), logging.APIErrorUnavailable},
		{"plain", fmt.Errorf("boom"), logging.APIErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ClassifyAPIError(tt.err))
		})
	}
}

func TestFormatAPIErrorMasksDetails(t *testing.T) {
	out := logging.FormatAPIError(errs.API("token exchange", 400, `{"password":"hunter2"}`))
	assert.Contains(t, out, "Export failed")
	assert.NotContains(t, out, "hunter2")
}
