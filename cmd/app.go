// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/pterm/pterm"

	"pbiexport/cli/internal/auth"
	"pbiexport/cli/internal/config"
	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/httperrors"
	"pbiexport/cli/internal/keychain"
	"pbiexport/cli/internal/logging"
	"pbiexport/cli/internal/powerbi"
)

// providerFor builds the credential provider selected by the job.
func providerFor(job config.Job) (auth.Provider, error) {
	switch job.Auth.Method {
	case auth.MethodCredentials:
		if job.Auth.Credentials == nil {
			return nil, errs.New(errs.InvalidConfig, "credentials are required for auth method credentials")
		}
		opts := []auth.ExchangeOption{auth.WithLogger(logger)}
		if settings.TokenURL != "" {
			opts = append(opts, auth.WithTokenURL(settings.TokenURL))
		}
		return auth.NewExchangeProvider(*job.Auth.Credentials, opts...), nil

	case auth.MethodOAuth, "":
		o := job.Auth.OAuth
		if o == nil {
			o = &config.OAuthConfig{}
		}
		switch {
		case o.Token != "":
			return auth.NewContextTokenProvider(auth.MapContext{auth.DefaultContextKey: o.Token}, "", logger), nil
		case o.Project != "":
			km, err := keychain.GetManager()
			if err != nil {
				return nil, errs.Wrap(errs.Authentication, "secure storage is not available", err)
			}
			return auth.NewContextTokenProvider(auth.KeychainContext{Store: km}, o.Project, logger), nil
		case o.ContextFile != "":
			return auth.NewContextTokenProvider(auth.NewFileContext(o.ContextFile), o.Key, logger), nil
		default:
			return auth.NewContextTokenProvider(auth.EnvContext{Prefix: config.EnvPrefix}, o.Key, logger), nil
		}
	}
	return nil, errs.Newf(errs.InvalidConfig, "unknown auth method %q", job.Auth.Method)
}

// connect obtains a token from provider and returns a client for the Power BI API.
func connect(ctx context.Context, provider auth.Provider) (*powerbi.Client, error) {
	cred, err := provider.Credential(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("credential obtained",
		slog.String("source", cred.Source),
		slog.Time("expires_at", cred.ExpiresAt()),
	)

	opts := []powerbi.Option{powerbi.WithLogger(logger)}
	if settings.APIBaseURL != "" {
		opts = append(opts, powerbi.WithBaseURL(settings.APIBaseURL))
	}
	return powerbi.New(cred.Token, opts...), nil
}

// apiHost is the Power BI host named in network error messages.
func apiHost() string {
	if settings.APIBaseURL != "" {
		return httperrors.ExtractHostFromURL(settings.APIBaseURL)
	}
	return httperrors.ExtractHostFromURL(powerbi.DefaultBaseURL)
}

// present prints a friendly explanation of err and marks it as shown.
func present(err error, context string) error {
	if err == nil {
		return nil
	}
	logger.Debug("command failed", logging.ErrAttr(err))

	var e *errs.E
	answered := errors.As(err, &e) && e.Status > 0

	switch kind := errs.KindOf(err); {
	case kind == errs.InvalidConfig:
		pterm.Error.Println(logging.Mask(err.Error()))
	case !answered && httperrors.IsNetworkError(err):
		_ = httperrors.FormatNetworkError(err, apiHost(), context)
	case kind != "":
		logging.PresentAPIError(err)
	default:
		pterm.Error.Println(logging.PresentError(context, err))
	}
	return presentedError{err}
}

// loadJob reads a job file or starts from an empty job, then applies defaults
// and environment overrides.
func loadJob(path string) (config.Job, error) {
	var job config.Job
	if path != "" {
		j, err := config.LoadJob(path)
		if err != nil {
			return job, err
		}
		job = j
	}
	return job, nil
}

func finishJob(job *config.Job) {
	job.ApplyDefaults(settings)
	job.ApplyEnv(os.LookupEnv)
}
