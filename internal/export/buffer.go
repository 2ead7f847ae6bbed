// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package export

import (
	"context"
	"fmt"
	"log/slog"

	"pbiexport/cli/internal/logging"
	"pbiexport/cli/internal/powerbi"
)

// Pusher sends one encoded batch to a dataset table.
type Pusher interface {
	PushRows(ctx context.Context, datasetID, table string, body []byte, rows int) powerbi.PushResult
}

// Encoder turns a batch of wire rows into a request body.
type Encoder interface {
	Encode(rows []WireRow) ([]byte, error)
}

// Stats counts what a buffer has sent.
type Stats struct {
	// Rows accepted by the service.
	Rows int
	// Flushes is the number of push attempts.
	Flushes       int
	FailedFlushes int
	FailedRows    int
	// LastError describes the most recent failed flush.
	LastError string
}

// Buffer accumulates wire rows and pushes them once more than threshold rows
// are held. A failed push is logged and counted and the rows are dropped.
type Buffer struct {
	pusher    Pusher
	encoder   Encoder
	datasetID string
	table     string
	threshold int
	rows      []WireRow
	stats     Stats
	logger    *slog.Logger
}

// maxPreallocRows caps the up-front allocation; larger batches grow on append.
const maxPreallocRows = 1024

// NewBuffer creates a buffer that pushes to datasetID/table. A threshold below 1 is treated as 1.
func NewBuffer(pusher Pusher, encoder Encoder, datasetID, table string, threshold int, logger *slog.Logger) *Buffer {
	if threshold < 1 {
		threshold = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	capacity := maxPreallocRows
	if threshold < maxPreallocRows {
		capacity = threshold + 1
	}
	return &Buffer{
		pusher:    pusher,
		encoder:   encoder,
		datasetID: datasetID,
		table:     table,
		threshold: threshold,
		rows:      make([]WireRow, 0, capacity),
		logger:    logger,
	}
}

// Append adds row and flushes when the buffer holds more than threshold rows.
func (b *Buffer) Append(ctx context.Context, row WireRow) {
	b.rows = append(b.rows, row)
	if len(b.rows) > b.threshold {
		b.flush(ctx)
	}
}

// Drain flushes whatever is buffered. It makes no call when the buffer is empty.
func (b *Buffer) Drain(ctx context.Context) {
	if len(b.rows) == 0 {
		return
	}
	b.flush(ctx)
}

func (b *Buffer) Len() int { return len(b.rows) }

func (b *Buffer) Stats() Stats { return b.stats }

func (b *Buffer) flush(ctx context.Context) {
	n := len(b.rows)
	defer func() { b.rows = b.rows[:0] }()

	b.stats.Flushes++
	body, err := b.encoder.Encode(b.rows)
	if err != nil {
		b.fail(n, err.Error())
		b.logger.Error("batch encoding failed", slog.Int("rows", n), logging.ErrAttr(err))
		return
	}

	res := b.pusher.PushRows(ctx, b.datasetID, b.table, body, n)
	if !res.OK() {
		msg := res.Body
		if res.Err != nil {
			msg = res.Err.Error()
		}
		if res.Status != 0 {
			msg = fmt.Sprintf("status %d: %s", res.Status, msg)
		}
		b.fail(n, msg)
		return
	}
	b.stats.Rows += n
}

func (b *Buffer) fail(rows int, msg string) {
	b.stats.FailedFlushes++
	b.stats.FailedRows += rows
	b.stats.LastError = msg
}
