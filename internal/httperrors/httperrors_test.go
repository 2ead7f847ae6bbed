// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"deadline", fmt.Errorf("push: %w", context.DeadlineExceeded), Timeout},
		{"dns", &url.Error{Op: "Get", URL: "https://api.powerbi.com", Err: &net.DNSError{Name: "api.powerbi.com", Err: "no such host"}}, DNS},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ConnectionRefused},
		{"tls", errors.New("x509: certificate signed by unknown authority"), TLS},
		{"server", errors.New("remote_api: listing groups (status 503): busy"), Server},
		{"other", errors.New("unexpected EOF"), Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	assert.False(t, IsNetworkError(nil))
	assert.True(t, IsNetworkError(&url.Error{Op: "Post", URL: "https://login.microsoftonline.com", Err: errors.New("EOF")}))
	assert.False(t, IsNetworkError(errors.New("dataset name is required")))
}

func TestFormatNetworkErrorWraps(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := FormatNetworkError(cause, "api.powerbi.com", "listing datasets")
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, FormatNetworkError(nil, "", ""))
}

func TestExtractHostFromURL(t *testing.T) {
	assert.Equal(t, "api.powerbi.com", ExtractHostFromURL("https://api.powerbi.com/v1.0/myorg"))
	assert.Equal(t, "server", ExtractHostFromURL("::bad"))
}
