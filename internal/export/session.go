// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package export streams rows from a source into a Power BI push dataset.
//
// A Session binds a schema and a dataset at Open, serializes each written row,
// buffers rows into batches and pushes them, and drains the buffer at Close.
// Dataset resolution follows one of three policies:
//
//	new_dataset  create a dataset, fail if one with the same name exists
//	overwrite    empty the first dataset with the name and keep its id
//	append       add rows to the first dataset with the name
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/logging"
	"pbiexport/cli/internal/powerbi"
)

// Policy selects how Open binds a dataset.
type Policy string

const (
	CreateNew Policy = "new_dataset"
	Overwrite Policy = "overwrite"
	Append    Policy = "append"
)

// Policies lists every accepted policy.
var Policies = []Policy{CreateNew, Overwrite, Append}

// PolicyNames returns the accepted policy names joined by ", ".
func PolicyNames() string {
	names := make([]string, len(Policies))
	for i, p := range Policies {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// ParsePolicy accepts a policy name, case-insensitively. "new" is an alias of new_dataset.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CreateNew), "new", "create":
		return CreateNew, nil
	case string(Overwrite):
		return Overwrite, nil
	case string(Append):
		return Append, nil
	}
	return "", errs.Newf(errs.InvalidConfig, "unknown export policy %q (use one of %s)", s, PolicyNames())
}

// RemoteClient is the part of the Power BI client a session uses.
type RemoteClient interface {
	Pusher
	ResolveGroupID(ctx context.Context, workspace string) (string, error)
	SetGroupID(id string)
	GroupID() string
	ListDatasetIDsByName(ctx context.Context, name string) ([]string, error)
	CreateDataset(ctx context.Context, name, table string, schema powerbi.Schema) (powerbi.DatasetRef, error)
	DeleteRows(ctx context.Context, id, table string) error
	RefreshDataset(ctx context.Context, id string) error
}

// Options configures a Session.
type Options struct {
	Dataset   string
	Workspace string
	Table     string
	// BufferSize is the row count a batch may reach before it is pushed.
	BufferSize int
	Policy     Policy
	Refresh    bool
}

type state int

const (
	unopened state = iota
	open
	closed
)

func (s state) String() string {
	switch s {
	case unopened:
		return "unopened"
	case open:
		return "open"
	default:
		return "closed"
	}
}

// Session exports one schema to one dataset. It is not safe for concurrent use.
type Session struct {
	id      string
	client  RemoteClient
	opts    Options
	logger  *slog.Logger
	state   state
	started time.Time

	schema     powerbi.Schema
	dataset    powerbi.DatasetRef
	serializer *Serializer
	buffer     *Buffer
	written    int
	report     *Report
}

// NewSession validates opts and returns an unopened session.
func NewSession(client RemoteClient, opts Options, logger *slog.Logger) (*Session, error) {
	if client == nil {
		return nil, errs.New(errs.InvalidConfig, "no Power BI client")
	}
	if strings.TrimSpace(opts.Dataset) == "" {
		return nil, errs.New(errs.InvalidConfig, "dataset name is required")
	}
	if opts.BufferSize < 1 {
		return nil, errs.Newf(errs.InvalidConfig, "buffer size must be positive, got %d", opts.BufferSize)
	}
	if opts.Table == "" {
		opts.Table = powerbi.DefaultTable
	}
	if opts.Policy == "" {
		opts.Policy = CreateNew
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		client: client,
		opts:   opts,
		logger: logger.With(slog.String("session_id", id), slog.String("dataset", opts.Dataset)),
	}, nil
}

func (s *Session) ID() string { return s.id }

// Dataset returns the bound dataset. It is zero before Open succeeds.
func (s *Session) Dataset() powerbi.DatasetRef { return s.dataset }

// Open binds schema, resolves the workspace and applies the export policy.
// No rows can be written until Open succeeds.
func (s *Session) Open(ctx context.Context, schema powerbi.Schema) error {
	if s.state != unopened {
		return errs.Newf(errs.InvalidState, "cannot open a session that is %s", s.state)
	}

	if s.opts.Workspace != "" {
		gid, err := s.client.ResolveGroupID(ctx, s.opts.Workspace)
		if err != nil {
			return err
		}
		s.client.SetGroupID(gid)
	}

	ids, err := s.client.ListDatasetIDsByName(ctx, s.opts.Dataset)
	if err != nil {
		return err
	}

	ref := powerbi.DatasetRef{Name: s.opts.Dataset, GroupID: s.client.GroupID()}
	switch s.opts.Policy {
	case CreateNew:
		if len(ids) > 0 {
			return errs.Newf(errs.DatasetAlreadyExists, "a dataset named %q already exists (%s)", s.opts.Dataset, ids[0])
		}
		ref, err = s.client.CreateDataset(ctx, s.opts.Dataset, s.opts.Table, schema)
		if err != nil {
			return err
		}

	case Overwrite:
		if len(ids) == 0 {
			return errs.Newf(errs.NoExistingDataset, "no dataset named %q to overwrite", s.opts.Dataset)
		}
		ref.ID = ids[0]
		if err := s.client.DeleteRows(ctx, ref.ID, s.opts.Table); err != nil {
			return err
		}
		s.logger.Info("existing rows deleted", slog.String("dataset_id", ref.ID), slog.String("table", s.opts.Table))

	case Append:
		if len(ids) == 0 {
			return errs.Newf(errs.NoExistingDataset, "no dataset named %q to append to", s.opts.Dataset)
		}
		ref.ID = ids[0]
	}
	if len(ids) > 1 {
		s.logger.Warn("several datasets share this name, using the first",
			slog.Any("dataset_ids", ids), slog.String("dataset_id", ref.ID))
	}

	s.schema = schema
	s.dataset = ref
	s.serializer = NewSerializer(schema)
	s.buffer = NewBuffer(s.client, s.serializer, ref.ID, s.opts.Table, s.opts.BufferSize, s.logger)
	s.state = open
	s.started = time.Now()

	s.logger.Info("export session opened",
		slog.String("dataset_id", ref.ID),
		slog.String("group_id", ref.GroupID),
		slog.String("policy", string(s.opts.Policy)),
		slog.Int("columns", schema.Len()),
	)
	return nil
}

// WriteRow serializes row and buffers it, pushing a batch when the buffer is full.
// Push failures do not surface here; they are counted in the close report.
func (s *Session) WriteRow(ctx context.Context, row Row) error {
	if s.state != open {
		return errs.Newf(errs.InvalidState, "cannot write to a session that is %s", s.state)
	}
	s.buffer.Append(ctx, s.serializer.Serialize(row))
	s.written++
	return nil
}

// Written returns the number of rows accepted by WriteRow.
func (s *Session) Written() int { return s.written }

// Close pushes the remaining rows, refreshes the dataset when configured and
// returns the report. Calling Close again returns the same report.
func (s *Session) Close(ctx context.Context) (*Report, error) {
	switch s.state {
	case unopened:
		return nil, errs.New(errs.InvalidState, "cannot close a session that was never opened")
	case closed:
		return s.report, nil
	}

	s.buffer.Drain(ctx)
	s.state = closed

	stats := s.buffer.Stats()
	s.report = &Report{
		SessionID:     s.id,
		Dataset:       s.dataset,
		URL:           s.dataset.URL(),
		Table:         s.opts.Table,
		Policy:        s.opts.Policy,
		Rows:          s.written,
		PushedRows:    stats.Rows,
		Flushes:       stats.Flushes,
		FailedFlushes: stats.FailedFlushes,
		FailedRows:    stats.FailedRows,
		LastError:     stats.LastError,
		Duration:      time.Since(s.started),
	}

	if s.opts.Refresh {
		if err := s.client.RefreshDataset(ctx, s.dataset.ID); err != nil {
			s.logger.Error("dataset refresh failed", logging.ErrAttr(err))
			return s.report, err
		}
		s.report.Refreshed = true
	}

	level := slog.LevelInfo
	if stats.FailedFlushes > 0 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "export session closed",
		slog.String("dataset_id", s.dataset.ID),
		slog.Int("rows", s.written),
		slog.Int("flushes", stats.Flushes),
		slog.Int("failed_flushes", stats.FailedFlushes),
	)
	return s.report, nil
}

// Report summarizes a closed session.
type Report struct {
	SessionID     string
	Dataset       powerbi.DatasetRef
	URL           string
	Table         string
	Policy        Policy
	Rows          int
	PushedRows    int
	Flushes       int
	FailedFlushes int
	FailedRows    int
	LastError     string
	Refreshed     bool
	Duration      time.Duration
}

// OK reports whether every pushed batch was accepted.
func (r *Report) OK() bool { return r.FailedFlushes == 0 }

// Summary is a one-paragraph description for terminals and host status messages.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows written to Power BI dataset %q (%s) in %d batches.",
		r.Rows, r.Dataset.Name, r.Dataset.ID, r.Flushes)
	if r.FailedFlushes > 0 {
		fmt.Fprintf(&b, " %d batches (%d rows) were rejected, last error: %s.",
			r.FailedFlushes, r.FailedRows, r.LastError)
	}
	if r.Refreshed {
		b.WriteString(" Refresh requested.")
	}
	fmt.Fprintf(&b, "\nVisit %s to see the dataset.", r.URL)
	return b.String()
}

// Schema returns the schema bound at Open.
func (s *Session) Schema() powerbi.Schema { return s.schema }
