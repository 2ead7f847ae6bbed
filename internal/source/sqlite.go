// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package source

import (
	"context"
	"database/sql"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"pbiexport/cli/internal/powerbi"
)

type sqliteReader struct {
	db     *sql.DB
	rows   *sql.Rows
	schema powerbi.Schema
}

func openSQLite(ctx context.Context, path string, spec Spec) (*sqliteReader, error) {
	query, err := selectStatement(spec, func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	})
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open SQLite database", goerr.V("path", path))
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "query failed", goerr.V("query", query))
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, goerr.Wrap(err, "failed to read column types")
	}
	cols := make([]powerbi.Column, len(types))
	for i, ct := range types {
		cols[i] = powerbi.Column{Name: ct.Name(), SourceType: sqliteSourceType(ct.DatabaseTypeName())}
	}
	return &sqliteReader{db: db, rows: rows, schema: powerbi.NewSchema(cols...)}, nil
}

func (s *sqliteReader) Schema() powerbi.Schema { return s.schema }

func (s *sqliteReader) Next(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to read row")
		}
		return nil, io.EOF
	}

	values := make([]any, s.schema.Len())
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, goerr.Wrap(err, "failed to scan row")
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

func (s *sqliteReader) Close() error {
	s.rows.Close()
	return s.db.Close()
}

// sqliteSourceType maps a declared column type using SQLite's affinity rules,
// with DATE and BOOLEAN declarations recognized first.
func sqliteSourceType(declared string) string {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case t == "":
		return "string"
	case strings.Contains(t, "BOOL"):
		return "boolean"
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return "date"
	case strings.Contains(t, "INT"):
		return "bigint"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return "double"
	default:
		return "string"
	}
}
