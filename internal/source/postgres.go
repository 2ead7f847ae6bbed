// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/powerbi"
)

type postgresReader struct {
	conn   *pgx.Conn
	rows   pgx.Rows
	schema powerbi.Schema
}

func openPostgres(ctx context.Context, connString string, spec Spec) (*postgresReader, error) {
	query, err := selectStatement(spec, func(name string) string {
		return pgx.Identifier{name}.Sanitize()
	})
	if err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to PostgreSQL")
	}

	rows, err := conn.Query(ctx, query)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, goerr.Wrap(err, "query failed", goerr.V("query", query))
	}

	fields := rows.FieldDescriptions()
	cols := make([]powerbi.Column, len(fields))
	for i, fd := range fields {
		cols[i] = powerbi.Column{Name: fd.Name, SourceType: pgSourceType(fd.DataTypeOID)}
	}
	return &postgresReader{conn: conn, rows: rows, schema: powerbi.NewSchema(cols...)}, nil
}

func (p *postgresReader) Schema() powerbi.Schema { return p.schema }

func (p *postgresReader) Next(ctx context.Context) ([]any, error) {
	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to read row")
		}
		return nil, io.EOF
	}
	values, err := p.rows.Values()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode row")
	}
	for i, v := range values {
		values[i] = pgValue(v)
	}
	return values, nil
}

func (p *postgresReader) Close() error {
	p.rows.Close()
	return p.conn.Close(context.Background())
}

// pgSourceType names a PostgreSQL type in the source vocabulary.
func pgSourceType(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "boolean"
	case pgtype.Int2OID:
		return "smallint"
	case pgtype.Int4OID:
		return "int"
	case pgtype.Int8OID:
		return "bigint"
	case pgtype.Float4OID:
		return "float"
	case pgtype.Float8OID, pgtype.NumericOID:
		return "double"
	case pgtype.DateOID, pgtype.TimestampOID, pgtype.TimestamptzOID:
		return "date"
	case pgtype.JSONOID, pgtype.JSONBOID:
		return "object"
	case pgtype.BoolArrayOID, pgtype.Int2ArrayOID, pgtype.Int4ArrayOID, pgtype.Int8ArrayOID,
		pgtype.TextArrayOID, pgtype.VarcharArrayOID, pgtype.Float4ArrayOID, pgtype.Float8ArrayOID,
		pgtype.UUIDArrayOID, pgtype.JSONBArrayOID:
		return "array"
	default:
		return "string"
	}
}

// pgValue converts driver values into values the serializer understands.
func pgValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int16, int32, int64, float32, float64, string, time.Time:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case netip.Prefix:
		return x.String()
	case []byte:
		return string(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
