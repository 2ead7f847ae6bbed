// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Detect returns the kind of source loc points at.
func Detect(loc string) Kind {
	lower := strings.ToLower(strings.TrimSpace(loc))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgreSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "sqlite:"), strings.HasPrefix(lower, "file:"):
		return KindSQLite
	case strings.HasPrefix(lower, "csv:"):
		return KindCSV
	}

	switch filepath.Ext(lower) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	case ".csv":
		return KindCSV
	}
	return KindUnknown
}

// Parse detects and parses loc.
func Parse(loc string) (*Info, error) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return nil, newParseError("empty source", "pass a postgres:// DSN, a SQLite file or a CSV file")
	}

	switch Detect(loc) {
	case KindPostgreSQL:
		return parsePostgres(loc)
	case KindSQLite:
		return parseFile(KindSQLite, loc, "sqlite://", "sqlite:", "file:")
	case KindCSV:
		return parseFile(KindCSV, loc, "csv://", "csv:")
	default:
		return nil, newParseError("unknown source type", "use postgres://, sqlite://, a .db/.sqlite file or a .csv file")
	}
}

// Normalize returns the connection string handed to the driver.
func Normalize(info *Info) (string, error) {
	if info == nil {
		return "", newParseError("nil source info", "")
	}
	switch info.Kind {
	case KindPostgreSQL:
		return normalizePostgres(info), nil
	case KindSQLite:
		if len(info.Params) == 0 {
			return info.Path, nil
		}
		return "file:" + info.Path + "?" + encodeParams(info.Params), nil
	case KindCSV:
		return info.Path, nil
	}
	return "", newParseError("unknown source type", "")
}

func parseFile(kind Kind, loc string, prefixes ...string) (*Info, error) {
	path := loc
	lower := strings.ToLower(loc)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			path = loc[len(p):]
			break
		}
	}
	// keep SQLite URI parameters out of the path
	params := map[string]string{}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		for _, kv := range strings.Split(path[i+1:], "&") {
			if k, v, ok := strings.Cut(kv, "="); ok {
				params[k] = v
			}
		}
		path = path[:i]
	}
	if path == "" {
		return nil, newParseError("missing file path", "e.g. sqlite://./data.db or ./rows.csv")
	}
	return &Info{Kind: kind, Path: path, Params: params, Original: loc}, nil
}

// encodeParams renders params as a query string with sorted keys.
func encodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(q, "&")
}
