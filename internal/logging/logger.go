// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/clog/hooks"
	"github.com/m-mizutani/masq"
)

// Format selects the log handler.
type Format int

const (
	FormatConsole Format = iota + 1
	FormatJSON
)

// SecretFields is the deny list of attribute and struct field names whose values
// never reach a log sink.
var SecretFields = []string{
	"Authorization",
	"access_token",
	"token",
	"Token",
	"password",
	"Password",
	"client_secret",
	"client-secret",
	"ClientSecret",
	"ms-oauth_credentials",
	"dsn",
	"DSN",
}

// newFilter builds the ReplaceAttr hook shared by every handler.
// Struct fields tagged `masq:"secret"` and attributes prefixed with secret_ are
// redacted in addition to SecretFields.
func newFilter() func(groups []string, a slog.Attr) slog.Attr {
	opts := []masq.Option{
		masq.WithTag("secret"),
		masq.WithFieldPrefix("secret_"),
	}
	for _, name := range SecretFields {
		opts = append(opts, masq.WithFieldName(name))
	}
	return masq.New(opts...)
}

// New creates a structured logger writing to w. Console output is colourised
// through clog, JSON output uses the standard library handler.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	filter := newFilter()

	var handler slog.Handler
	switch format {
	case FormatConsole:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithAttrHook(hooks.GoErr()),
			clog.WithColorMap(&clog.ColorMap{
				Level: map[slog.Level]*color.Color{
					slog.LevelDebug: color.New(color.FgGreen, color.Bold),
					slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
					slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
					slog.LevelError: color.New(color.FgRed, color.Bold),
				},
				LevelDefault: color.New(color.FgBlue, color.Bold),
				Time:         color.New(color.FgWhite),
				Message:      color.New(color.FgHiWhite),
				AttrKey:      color.New(color.FgHiCyan),
				AttrValue:    color.New(color.FgHiWhite),
			}),
		)

	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: filter,
		})

	default:
		panic("Unsupported log format: " + fmt.Sprintf("%d", format))
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ParseLevel converts a config string into a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts a config string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "console", "text":
		return FormatConsole, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unsupported log format %q (use console or json)", s)
	}
}

func ErrAttr(err error) slog.Attr { return slog.Any("error", err) }
