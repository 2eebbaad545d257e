// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package trigger accumulates dead-letter records into batches and hands a
// batch to its handler when it reaches the configured size or age. The
// handler is the backup pipeline's Store; the trigger knows nothing about
// what happens to a batch after hand-off.
package trigger

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veltmq/backup"
)

// Handler receives a ready batch and takes ownership of the slice; the
// trigger never touches it again.
type Handler func(batch []backup.Record)

// Trigger is a size/time batch accumulator. Safe for concurrent Add calls.
type Trigger struct {
	handler  Handler
	logger   *slog.Logger
	interval time.Duration

	batchSize atomic.Int32

	mu     sync.Mutex
	buf    []backup.Record
	closed bool

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a trigger flushing at batchSize records or every interval,
// whichever comes first, and starts its flush loop.
func New(batchSize int, interval time.Duration, handler Handler, logger *slog.Logger) *Trigger {
	if batchSize < 1 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trigger{
		handler:  handler,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.batchSize.Store(int32(batchSize))

	go t.flushLoop()
	return t
}

// Add appends one record, flushing if the batch is full. Records added
// after Close are dropped with a warning.
func (t *Trigger) Add(rec backup.Record) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Warn("batch trigger closed, dropping record",
			slog.String("subject", rec.Subject),
			slog.String("message_id", rec.MessageID))
		return
	}
	t.buf = append(t.buf, rec)
	var ready []backup.Record
	if len(t.buf) >= int(t.batchSize.Load()) {
		ready = t.take()
	}
	t.mu.Unlock()

	if ready != nil {
		t.handler(ready)
	}
}

// Flush hands off the current batch regardless of size.
func (t *Trigger) Flush() {
	t.mu.Lock()
	ready := t.take()
	t.mu.Unlock()

	if ready != nil {
		t.handler(ready)
	}
}

// SetBatchSize changes the flush size at runtime.
func (t *Trigger) SetBatchSize(n int) {
	if n > 0 {
		t.batchSize.Store(int32(n))
	}
}

// Close stops the flush loop and hands off any buffered records; that final
// hand-off runs on the caller's goroutine. Idempotent.
func (t *Trigger) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ready := t.take()
	t.mu.Unlock()

	close(t.stopCh)
	<-t.done

	if ready != nil {
		t.handler(ready)
	}
	return nil
}

// take detaches the buffered batch. Caller holds t.mu.
func (t *Trigger) take() []backup.Record {
	if len(t.buf) == 0 {
		return nil
	}
	ready := t.buf
	t.buf = nil
	return ready
}

func (t *Trigger) flushLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Flush()
		case <-t.stopCh:
			return
		}
	}
}
