// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/powerbi"
)

var csvDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// csvReader streams records from a CSV file and converts fields by column type.
type csvReader struct {
	f      *os.File
	r      *csv.Reader
	schema powerbi.Schema
	// first holds the first record when the file has no header row.
	first []string
	line  int
}

func openCSV(path string, spec Spec) (*csvReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open CSV file", goerr.V("path", path))
	}

	r := csv.NewReader(f)
	if d := spec.Delimiter; d != "" {
		if d == `\t` {
			d = "\t"
		}
		r.Comma = []rune(d)[0]
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	// rows may be shorter or longer than the header
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, goerr.New("empty CSV file", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read CSV header", goerr.V("path", path))
	}

	c := &csvReader{f: f, r: r, line: 1}
	names := header
	if spec.NoHeader {
		c.first = header
		names = make([]string, len(header))
		for i := range names {
			names[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	cols := make([]powerbi.Column, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		typ := spec.Types[n]
		if typ == "" {
			typ = "string"
		}
		cols[i] = powerbi.Column{Name: n, SourceType: typ}
	}
	c.schema = powerbi.NewSchema(cols...)
	return c, nil
}

func (c *csvReader) Schema() powerbi.Schema { return c.schema }

func (c *csvReader) Next(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec []string
	if c.first != nil {
		rec, c.first = c.first, nil
	} else {
		var err error
		rec, err = c.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, goerr.Wrap(err, "failed to read CSV record", goerr.V("line", c.line+1))
		}
		c.line++
	}

	row := make([]any, c.schema.Len())
	for i, col := range c.schema.Columns {
		if i < len(rec) {
			row[i] = convertCSV(col.SourceType, rec[i])
		}
	}
	return row, nil
}

func (c *csvReader) Close() error { return c.f.Close() }

// convertCSV parses s according to sourceType. Empty fields become nil and
// fields that do not parse are kept as text.
func convertCSV(sourceType, s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	switch powerbi.MapType(sourceType) {
	case powerbi.Int64:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case powerbi.Double:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case powerbi.Boolean:
		switch strings.ToLower(s) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
	case powerbi.DateTime:
		for _, layout := range csvDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return s
}
