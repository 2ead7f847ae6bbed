// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth obtains the bearer token used to call the Power BI API.
//
// Two flows are supported. ContextTokenProvider reads a token that was issued
// earlier and stored in a key-value context (a variables file, the environment,
// the OS keychain or an in-memory map supplied by a host). ExchangeProvider trades
// an account's username and password plus an application's client id and secret
// for a token at the Azure AD endpoint.
//
// Providers never persist the token. A session asks for one credential and
// keeps it for its lifetime.
package auth

import (
	"context"
	"time"
)

// Credential is a bearer token and what is known about its issuance.
type Credential struct {
	Token string `masq:"secret"`
	// Source describes where the token came from, e.g. "context:sales" or "exchange".
	Source   string
	IssuedAt time.Time
	// ExpiresIn is zero when the issuer did not say.
	ExpiresIn time.Duration
}

// ExpiresAt returns the expiry time, or the zero time when unknown.
func (c Credential) ExpiresAt() time.Time {
	if c.ExpiresIn <= 0 || c.IssuedAt.IsZero() {
		return time.Time{}
	}
	return c.IssuedAt.Add(c.ExpiresIn)
}

// Provider produces a credential.
type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// Method selects a Provider.
type Method string

const (
	// MethodOAuth reads a previously issued token from a context.
	MethodOAuth Method = "oauth"
	// MethodCredentials exchanges account and application credentials for a token.
	MethodCredentials Method = "credentials"
)

// DefaultContextKey is where hosts store the token obtained through their OAuth preset.
const DefaultContextKey = "powerbi_connection.ms-oauth_credentials"
