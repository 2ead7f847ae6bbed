// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/logging"
)

// ContextTokenProvider reads a previously issued token from a Context.
type ContextTokenProvider struct {
	store  Context
	key    string
	logger *slog.Logger
	now    func() time.Time
}

// NewContextTokenProvider reads key from store. An empty key means DefaultContextKey.
func NewContextTokenProvider(store Context, key string, logger *slog.Logger) *ContextTokenProvider {
	if key == "" {
		key = DefaultContextKey
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ContextTokenProvider{store: store, key: key, logger: logger, now: time.Now}
}

func (p *ContextTokenProvider) Credential(ctx context.Context) (Credential, error) {
	v, found, err := p.store.Lookup(ctx, p.key)
	if err != nil {
		return Credential{}, errs.Wrap(errs.Authentication, fmt.Sprintf("reading %q from context", p.key), err)
	}
	if !found || v == nil {
		return Credential{}, errs.Newf(errs.Authentication, "no access token found under %q", p.key)
	}

	var token string
	switch x := v.(type) {
	case string:
		token = strings.TrimSpace(x)
	case map[string]any, []any:
		return Credential{}, errs.Newf(errs.Authentication,
			"OAuth settings cannot be used inline under %q. Define a credentials preset and reference it instead", p.key)
	default:
		token = strings.TrimSpace(fmt.Sprint(x))
	}
	if token == "" {
		return Credential{}, errs.Newf(errs.Authentication, "access token under %q is empty", p.key)
	}

	p.logger.Debug("access token read from context", slog.String("key", p.key))
	return Credential{Token: token, Source: "context:" + p.key, IssuedAt: p.now()}, nil
}
