// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/logging"
)

const (
	// DefaultTokenURL is the Azure AD v1 token endpoint for any tenant.
	DefaultTokenURL = "https://login.microsoftonline.com/common/oauth2/token"
	// PowerBIResource is the audience of Power BI API tokens.
	PowerBIResource = "https://analysis.windows.net/powerbi/api"
)

// Credentials are the account and application secrets for the password grant.
type Credentials struct {
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password" masq:"secret"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret" masq:"secret"`
}

// Validate reports the first missing field.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.Username) == "":
		return errs.New(errs.InvalidConfig, "username is required for credential exchange")
	case c.Password == "":
		return errs.New(errs.InvalidConfig, "password is required for credential exchange")
	case strings.TrimSpace(c.ClientID) == "":
		return errs.New(errs.InvalidConfig, "client id is required for credential exchange")
	case c.ClientSecret == "":
		return errs.New(errs.InvalidConfig, "client secret is required for credential exchange")
	}
	return nil
}

// ExchangeProvider trades Credentials for a token with a form-encoded password grant.
type ExchangeProvider struct {
	creds    Credentials
	tokenURL string
	resource string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

type ExchangeOption func(*ExchangeProvider)

func WithTokenURL(u string) ExchangeOption {
	return func(p *ExchangeProvider) { p.tokenURL = u }
}

func WithHTTPClient(c *http.Client) ExchangeOption {
	return func(p *ExchangeProvider) { p.client = c }
}

func WithLogger(l *slog.Logger) ExchangeOption {
	return func(p *ExchangeProvider) { p.logger = l }
}

// WithResource overrides the token audience, e.g. for sovereign clouds.
func WithResource(r string) ExchangeOption {
	return func(p *ExchangeProvider) { p.resource = r }
}

func NewExchangeProvider(creds Credentials, opts ...ExchangeOption) *ExchangeProvider {
	p := &ExchangeProvider{
		creds:    creds,
		tokenURL: DefaultTokenURL,
		resource: PowerBIResource,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ExchangeProvider) Credential(ctx context.Context) (Credential, error) {
	if err := p.creds.Validate(); err != nil {
		return Credential{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("resource", p.resource)
	form.Set("scope", "openid")
	form.Set("username", p.creds.Username)
	form.Set("password", p.creds.Password)
	form.Set("client_id", p.creds.ClientID)
	form.Set("client_secret", p.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, errs.Wrap(errs.Authentication, "building token request",
			goerr.Wrap(err, "invalid token endpoint", goerr.V("url", p.tokenURL)))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	issued := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, errs.Wrap(errs.Authentication, "token exchange failed",
			goerr.Wrap(err, "token request failed", goerr.V("url", p.tokenURL)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, errs.Wrap(errs.Authentication, "token exchange failed",
			goerr.Wrap(err, "failed to read token response", goerr.V("status", resp.StatusCode)))
	}
	raw := strings.TrimSpace(string(body))

	if resp.StatusCode >= 400 {
		return Credential{}, &errs.E{
			Kind:    errs.Authentication,
			Message: "token exchange rejected",
			Status:  resp.StatusCode,
			Body:    raw,
		}
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return Credential{}, &errs.E{
			Kind:    errs.Authentication,
			Message: "token response is not a JSON object",
			Status:  resp.StatusCode,
			Body:    raw,
			Err:     goerr.Wrap(err, "failed to decode token response", goerr.V("url", p.tokenURL)),
		}
	}
	token, _ := out["access_token"].(string)
	if strings.TrimSpace(token) == "" {
		return Credential{}, &errs.E{
			Kind:    errs.Authentication,
			Message: "token response has no access_token",
			Status:  resp.StatusCode,
			Body:    raw,
		}
	}

	cred := Credential{
		Token:     token,
		Source:    "exchange",
		IssuedAt:  issued,
		ExpiresIn: parseExpiresIn(out["expires_in"]),
	}
	p.logger.Info("access token issued",
		slog.String("username", p.creds.Username),
		slog.Duration("expires_in", cred.ExpiresIn),
	)
	return cred, nil
}

// parseExpiresIn accepts seconds as a JSON number or a numeric string; Azure AD v1 sends a string.
func parseExpiresIn(v any) time.Duration {
	switch x := v.(type) {
	case float64:
		return time.Duration(x) * time.Second
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
