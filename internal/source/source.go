// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package source reads the rows the export command sends to Power BI.
// CSV files, PostgreSQL queries and SQLite queries are supported; each source
// reports a schema in the source type vocabulary understood by powerbi.MapType.
package source

import (
	"context"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/dsn"
	"pbiexport/cli/internal/powerbi"
)

// Reader yields rows in schema column order. Next returns io.EOF after the last row.
type Reader interface {
	Schema() powerbi.Schema
	Next(ctx context.Context) ([]any, error)
	Close() error
}

// Spec describes where rows come from.
type Spec struct {
	// Location is a postgres:// DSN, a SQLite file or URI, or a CSV file.
	Location string `yaml:"location" masq:"secret"`
	// Query is the SQL to run. Table is used when Query is empty.
	Query string `yaml:"query"`
	Table string `yaml:"table"`
	// Types assigns source types to CSV columns; unlisted columns are strings.
	Types     map[string]string `yaml:"types"`
	Delimiter string            `yaml:"delimiter"`
	NoHeader  bool              `yaml:"no_header"`
	// Limit stops after that many rows when positive.
	Limit int `yaml:"limit"`
}

// Open parses spec.Location and opens the matching reader.
func Open(ctx context.Context, spec Spec) (Reader, error) {
	info, err := dsn.Parse(spec.Location)
	if err != nil {
		return nil, err
	}
	conn, err := dsn.Normalize(info)
	if err != nil {
		return nil, err
	}

	var r Reader
	switch info.Kind {
	case dsn.KindCSV:
		r, err = openCSV(conn, spec)
	case dsn.KindPostgreSQL:
		r, err = openPostgres(ctx, conn, spec)
	case dsn.KindSQLite:
		r, err = openSQLite(ctx, conn, spec)
	default:
		return nil, goerr.New("unsupported source", goerr.V("kind", info.Kind))
	}
	if err != nil {
		return nil, err
	}
	if spec.Limit > 0 {
		r = &limitReader{Reader: r, left: spec.Limit}
	}
	return r, nil
}

// selectStatement returns spec.Query, or a SELECT of every column of spec.Table.
func selectStatement(spec Spec, quote func(string) string) (string, error) {
	if q := strings.TrimSpace(spec.Query); q != "" {
		return q, nil
	}
	if strings.TrimSpace(spec.Table) == "" {
		return "", goerr.New("a query or a table is required for SQL sources")
	}
	return "SELECT * FROM " + quote(spec.Table), nil
}

type limitReader struct {
	Reader
	left int
}

func (l *limitReader) Next(ctx context.Context) ([]any, error) {
	if l.left <= 0 {
		return nil, io.EOF
	}
	row, err := l.Reader.Next(ctx)
	if err == nil {
		l.left--
	}
	return row, err
}
