// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package export

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"pbiexport/cli/internal/powerbi"
)

// Row is one source record with values in schema column order.
type Row []any

// WireRow is a row keyed by column name, ready for JSON encoding.
type WireRow map[string]any

// notATime is the textual missing-date marker some sources emit.
const notATime = "NaT"

// dateLayouts are tried in order when a date column holds a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Serializer converts rows of one schema into wire rows and push bodies.
type Serializer struct {
	schema   powerbi.Schema
	integers []bool
	dates    []bool
	hasDates bool
}

func NewSerializer(schema powerbi.Schema) *Serializer {
	s := &Serializer{
		schema:   schema,
		integers: make([]bool, schema.Len()),
		dates:    make([]bool, schema.Len()),
	}
	for i, c := range schema.Columns {
		s.integers[i] = powerbi.IsIntegerType(c.SourceType)
		s.dates[i] = c.Type() == powerbi.DateTime
		s.hasDates = s.hasDates || s.dates[i]
	}
	return s
}

// Serialize pairs row values with column names. Integer columns are coerced to
// int64 and values that cannot be coerced become nil. Values beyond the schema
// are dropped and missing trailing values become nil.
func (s *Serializer) Serialize(row Row) WireRow {
	out := make(WireRow, s.schema.Len())
	for i, c := range s.schema.Columns {
		var v any
		if i < len(row) {
			v = row[i]
		}
		if s.integers[i] {
			v = toInt64(v)
		}
		out[c.Name] = v
	}
	return out
}

// toInt64 returns an int64 or nil.
func toInt64(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return nil
		}
		return int64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case json.Number:
		return stringToInt64(x.String())
	case string:
		return stringToInt64(x)
	case []byte:
		return stringToInt64(string(x))
	default:
		return nil
	}
}

func floatToInt64(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	return int64(f)
}

func stringToInt64(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt64(f)
	}
	return nil
}

// Encode renders rows as a push body, a JSON array of row objects. Date columns are written as
// RFC 3339 strings and missing dates as null. Non-finite floats become null.
// rows is not modified.
func (s *Serializer) Encode(rows []WireRow) ([]byte, error) {
	out := make([]WireRow, len(rows))
	for i, r := range rows {
		cp := make(WireRow, len(r))
		for k, v := range r {
			cp[k] = finite(v)
		}
		if s.hasDates {
			for j, c := range s.schema.Columns {
				if s.dates[j] {
					if v, ok := cp[c.Name]; ok {
						cp[c.Name] = formatDate(v)
					}
				}
			}
		}
		out[i] = cp
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode rows", goerr.V("rows", len(rows)))
	}
	return b, nil
}

func finite(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	}
	return v
}

// formatDate renders a date value. Strings that parse as a date are normalized;
// other strings are sent as is.
func formatDate(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == notATime {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(time.RFC3339Nano)
			}
		}
		return x
	default:
		return v
	}
}
