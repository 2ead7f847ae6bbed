// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"pbiexport/cli/internal/auth"
	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/export"
	"pbiexport/cli/internal/powerbi"
	"pbiexport/cli/internal/source"
)

// Job is one export: where rows come from, which dataset receives them and how
// to authenticate.
type Job struct {
	Dataset    string `yaml:"dataset"`
	Workspace  string `yaml:"workspace"`
	Table      string `yaml:"table"`
	BufferSize int    `yaml:"buffer_size"`
	Policy     string `yaml:"policy"`
	Refresh    bool   `yaml:"refresh"`

	Auth   AuthConfig  `yaml:"auth"`
	Source source.Spec `yaml:"source"`
}

// AuthConfig selects the credential flow. Exactly one of OAuth and Credentials
// applies, depending on Method.
type AuthConfig struct {
	Method      auth.Method       `yaml:"method"`
	OAuth       *OAuthConfig      `yaml:"oauth,omitempty"`
	Credentials *auth.Credentials `yaml:"credentials,omitempty"`
}

// OAuthConfig says where a previously issued token is read from. Project reads
// the keychain entry written by the token command, ContextFile reads a JSON
// variables file, Token is used as is. With none set the token is read from
// the environment.
type OAuthConfig struct {
	Project     string `yaml:"project"`
	ContextFile string `yaml:"context_file"`
	// Key is the lookup key in the variables file or environment.
	Key   string `yaml:"key"`
	Token string `yaml:"token" masq:"secret"`
}

// LoadJob reads a YAML job file. Unknown fields are rejected.
func LoadJob(path string) (Job, error) {
	var j Job
	b, err := os.ReadFile(path)
	if err != nil {
		return j, goerr.Wrap(err, "failed to read job file", goerr.V("path", path))
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		return j, errs.Wrap(errs.InvalidConfig, "invalid job file "+path, err)
	}
	return j, nil
}

// ApplyDefaults fills empty fields from cfg.
func (j *Job) ApplyDefaults(cfg Config) {
	if j.Table == "" {
		j.Table = powerbi.DefaultTable
	}
	if j.BufferSize == 0 {
		j.BufferSize = cfg.BufferSize
	}
	if j.Policy == "" {
		j.Policy = string(export.CreateNew)
	}
	if j.Auth.Method == "" {
		if j.Auth.Credentials != nil {
			j.Auth.Method = auth.MethodCredentials
		} else {
			j.Auth.Method = auth.MethodOAuth
		}
	}
	if j.Auth.Method == auth.MethodOAuth && j.Auth.OAuth == nil && cfg.Project != "" {
		j.Auth.OAuth = &OAuthConfig{Project: cfg.Project}
	}
}

// ApplyEnv fills missing credential fields from PBIEXPORT_USERNAME,
// PBIEXPORT_PASSWORD, PBIEXPORT_CLIENT_ID and PBIEXPORT_CLIENT_SECRET so that
// secrets can stay out of job files.
func (j *Job) ApplyEnv(lookup func(string) (string, bool)) {
	if j.Auth.Method != auth.MethodCredentials {
		return
	}
	if j.Auth.Credentials == nil {
		j.Auth.Credentials = &auth.Credentials{}
	}
	c := j.Auth.Credentials
	for name, field := range map[string]*string{
		"USERNAME":      &c.Username,
		"PASSWORD":      &c.Password,
		"CLIENT_ID":     &c.ClientID,
		"CLIENT_SECRET": &c.ClientSecret,
	} {
		if *field != "" {
			continue
		}
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}
}

// Validate checks the job before any network call is made.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Dataset) == "" {
		return errs.New(errs.InvalidConfig, "dataset name is required")
	}
	if j.BufferSize < 1 {
		return errs.Newf(errs.InvalidConfig, "buffer size must be positive, got %d", j.BufferSize)
	}
	if _, err := export.ParsePolicy(j.Policy); err != nil {
		return err
	}
	if strings.TrimSpace(j.Source.Location) == "" {
		return errs.New(errs.InvalidConfig, "a source location is required")
	}

	switch j.Auth.Method {
	case auth.MethodOAuth:
		if j.Auth.Credentials != nil {
			return errs.New(errs.InvalidConfig, "credentials are set but auth method is oauth")
		}
	case auth.MethodCredentials:
		if j.Auth.OAuth != nil {
			return errs.New(errs.InvalidConfig, "oauth settings are set but auth method is credentials")
		}
		if j.Auth.Credentials == nil {
			return errs.New(errs.InvalidConfig, "credentials are required for auth method credentials")
		}
		return j.Auth.Credentials.Validate()
	default:
		return errs.Newf(errs.InvalidConfig, "unknown auth method %q (use oauth or credentials)", j.Auth.Method)
	}
	return nil
}

// SessionOptions converts the job into export options. Call Validate first.
func (j Job) SessionOptions() export.Options {
	policy, _ := export.ParsePolicy(j.Policy)
	return export.Options{
		Dataset:    j.Dataset,
		Workspace:  j.Workspace,
		Table:      j.Table,
		BufferSize: j.BufferSize,
		Policy:     policy,
		Refresh:    j.Refresh,
	}
}
