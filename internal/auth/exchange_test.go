// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbiexport/cli/internal/auth"
	errs "pbiexport/cli/internal/errors"
)

var testCreds = auth.Credentials{
	Username:     "ann@example.com",
	Password:     "hunter2",
	ClientID:     "app-id",
	ClientSecret: "s3cr3t",
}

func tokenServer(t *testing.T, status int, body string, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			*seen, _ = url.ParseQuery(string(b))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchangeProviderIssuesToken(t *testing.T) {
	var form url.Values
	srv := tokenServer(t, 200, `{"token_type":"Bearer","expires_in":"3599","access_token":"eyJ.tok"}`, &form)

	p := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL), auth.WithHTTPClient(srv.Client()))
	cred, err := p.Credential(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "eyJ.tok", cred.Token)
	assert.Equal(t, "exchange", cred.Source)
	assert.Equal(t, 3599*time.Second, cred.ExpiresIn)
	assert.Equal(t, cred.IssuedAt.Add(3599*time.Second), cred.ExpiresAt())

	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, auth.PowerBIResource, form.Get("resource"))
	assert.Equal(t, "openid", form.Get("scope"))
	assert.Equal(t, "ann@example.com", form.Get("username"))
	assert.Equal(t, "hunter2", form.Get("password"))
	assert.Equal(t, "app-id", form.Get("client_id"))
	assert.Equal(t, "s3cr3t", form.Get("client_secret"))
}

func TestExchangeProviderNumericExpiry(t *testing.T) {
	srv := tokenServer(t, 200, `{"access_token":"tok","expires_in":60}`, nil)
	cred, err := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL)).Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cred.ExpiresIn)
}

func TestExchangeProviderRejected(t *testing.T) {
	srv := tokenServer(t, 400, `{"error":"invalid_grant"}`, nil)

	_, err := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL)).Credential(context.Background())
	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Authentication, e.Kind)
	assert.Equal(t, 400, e.Status)
	assert.Equal(t, `{"error":"invalid_grant"}`, e.Body)
}

func TestExchangeProviderMissingToken(t *testing.T) {
	srv := tokenServer(t, 200, `{"token_type":"Bearer"}`, nil)

	_, err := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL)).Credential(context.Background())
	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Authentication, e.Kind)
	assert.Equal(t, `{"token_type":"Bearer"}`, e.Body)
}

func TestExchangeProviderNonJSONResponse(t *testing.T) {
	srv := tokenServer(t, 200, `<html>proxy login</html>`, nil)

	_, err := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL)).Credential(context.Background())
	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Authentication, e.Kind)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, `<html>proxy login</html>`, e.Body)
	require.Error(t, e.Err)
	assert.Contains(t, err.Error(), "failed to decode token response")

	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestExchangeProviderValidates(t *testing.T) {
	creds := testCreds
	creds.ClientSecret = ""

	_, err := auth.NewExchangeProvider(creds).Credential(context.Background())
	assert.True(t, errs.HasKind(err, errs.InvalidConfig))
}

func TestExchangeProviderTransportFailure(t *testing.T) {
	srv := tokenServer(t, 200, `{}`, nil)
	srv.Close()

	_, err := auth.NewExchangeProvider(testCreds, auth.WithTokenURL(srv.URL)).Credential(context.Background())
	assert.True(t, errs.HasKind(err, errs.Authentication))
}
