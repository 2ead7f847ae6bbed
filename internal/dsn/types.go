// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn recognizes the source locations accepted by the export command
// and normalizes them into connection strings the drivers accept.
package dsn

import "fmt"

// Kind is the type of source a location points at.
type Kind string

const (
	KindPostgreSQL Kind = "postgresql"
	KindSQLite     Kind = "sqlite"
	KindCSV        Kind = "csv"
	KindUnknown    Kind = "unknown"
)

// Info is a parsed source location.
type Info struct {
	Kind     Kind
	Host     string
	Port     string
	User     string
	Password string `masq:"secret"`
	Database string
	// Path is the file path for SQLite and CSV sources.
	Path     string
	Params   map[string]string
	Original string `masq:"secret"`
}

// ParseError describes why a location was rejected and how to fix it.
type ParseError struct {
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid source: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid source: %s", e.Reason)
}

func newParseError(reason, hint string) *ParseError {
	return &ParseError{Reason: reason, Hint: hint}
}
