// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure the export engine raises carries a machine-readable Kind so the
// CLI can decide how to present it, and remote API failures keep the HTTP status
// and response body verbatim for operator diagnosis.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Authentication indicates no usable bearer token could be obtained.
	Authentication Kind = "authentication"
	// WorkspaceNotFound indicates the configured workspace has no match among the account's groups.
	WorkspaceNotFound Kind = "workspace_not_found"
	// DatasetAlreadyExists indicates a create-new export found a dataset with the same name.
	DatasetAlreadyExists Kind = "dataset_already_exists"
	// NoExistingDataset indicates an append or overwrite export found nothing to bind to.
	NoExistingDataset Kind = "no_existing_dataset"
	// DatasetCreation indicates the service accepted a create request but returned no identifier.
	DatasetCreation Kind = "dataset_creation"
	// RemoteAPI indicates an HTTP status >= 400 on a structural call.
	RemoteAPI Kind = "remote_api"
	// InvalidState indicates lifecycle misuse of an export session.
	InvalidState Kind = "invalid_state"
	// InvalidConfig indicates the export job failed validation.
	InvalidConfig Kind = "invalid_config"
)

// E wraps an error with kind and human-friendly message.
// Status and Body are set for errors produced from an HTTP response.
type E struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *E) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *E) Unwrap() error { return e.Err }

// Is matches any *E of the same kind, so errors.Is(err, &E{Kind: NoExistingDataset}) works.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	return ok && t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// API builds a RemoteAPI error from a failed HTTP exchange.
func API(msg string, status int, body string) *E {
	return &E{Kind: RemoteAPI, Message: msg, Status: status, Body: body}
}

// KindOf returns the Kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether err's chain contains an *E of the given kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
