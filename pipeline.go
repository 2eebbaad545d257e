// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"github.com/veltmq/backup/keygen"
	"github.com/veltmq/backup/store"
)

// RecordTypeDead tags the batch-store timer for dead-letter records.
const RecordTypeDead = "deadRecord"

// Defaults for pipeline options.
const (
	DefaultWorkers      = 4
	DefaultQueueSize    = 1024
	DefaultRetryCeiling = 3
	DefaultMaxBatchSize = 100
	DefaultDrainTimeout = 5 * time.Second
)

// Options configures a Pipeline. Zero fields take the package defaults.
type Options struct {
	Workers      int
	QueueSize    int
	RetryCeiling int
	MaxBatchSize int
	DrainTimeout time.Duration

	Keys    keygen.KeyGenerator
	Metrics MetricsSink
	Logger  *slog.Logger

	// Breaker settings for the bulk-write circuit breaker. Disabled breaker
	// means every batch goes straight to the store.
	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerResetTimeout     time.Duration
}

// Pipeline is the dead-letter record backup pipeline. Store never blocks on
// the write path and never returns an error: every failure terminates in a
// retry re-submission, a counted discard, or a log line.
type Pipeline struct {
	recordStore store.KVStore
	encoder     *Encoder
	dispatcher  *Dispatcher
	metrics     MetricsSink
	logger      *slog.Logger
	breaker     *gobreaker.CircuitBreaker

	retryCeiling atomic.Int32
	maxBatch     atomic.Int32
	drainTimeout time.Duration
	closed       atomic.Bool

	now func() time.Time
}

// NewPipeline creates and starts a backup pipeline writing to recordStore.
// The pipeline owns the store handle and closes it on Close.
func NewPipeline(recordStore store.KVStore, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.RetryCeiling <= 0 {
		opts.RetryCeiling = DefaultRetryCeiling
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Pipeline{
		recordStore:  recordStore,
		encoder:      NewEncoder(opts.Keys),
		dispatcher:   NewDispatcher(opts.Workers, opts.QueueSize, opts.Logger),
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		drainTimeout: opts.DrainTimeout,
		now:          time.Now,
	}
	p.retryCeiling.Store(int32(opts.RetryCeiling))
	p.maxBatch.Store(int32(opts.MaxBatchSize))

	if opts.BreakerEnabled {
		threshold := opts.BreakerFailureThreshold
		if threshold == 0 {
			threshold = 5
		}
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dead-record-store",
			MaxRequests: 1,
			Timeout:     opts.BreakerResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				opts.Logger.Warn("record store circuit breaker state changed",
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}

	return p
}

// Store submits a batch of dead-letter records for asynchronous archival.
// Batches above the configured size ceiling are split. Errors are fully
// absorbed; the caller's hot path is never affected.
func (p *Pipeline) Store(batch []Record) {
	if len(batch) == 0 {
		return
	}
	if p.closed.Load() {
		p.logger.Warn("backup pipeline closed, dropping batch", slog.Int("count", len(batch)))
		return
	}

	max := int(p.maxBatch.Load())
	for len(batch) > 0 {
		n := min(len(batch), max)
		p.submit(batch[:n])
		batch = batch[n:]
	}
}

// submit hands one chunk to the dispatcher. A saturated dispatcher routes
// the whole chunk through retry, same handling as a store failure but
// counted separately.
func (p *Pipeline) submit(chunk []Record) {
	err := p.dispatcher.Submit(func() { p.run(chunk) })
	switch {
	case err == nil:
	case errors.Is(err, ErrOverloaded):
		p.logger.Error("dead record backup rejected", slog.Int("count", len(chunk)))
		p.metrics.RecordStoreReject()
		p.retryBatch(chunk)
	default:
		p.logger.Warn("dead record backup submitted after stop, dropping batch",
			slog.Int("count", len(chunk)))
	}
}

// run executes one batch-store attempt in worker context. Failures of any
// kind, panics included, route the batch to retry and never crash the worker.
func (p *Pipeline) run(records []Record) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dead record backup panicked", slog.Any("panic", r))
			p.metrics.RecordStoreFailure()
			p.retryBatch(records)
		}
	}()

	if err := p.storeBatch(records); err != nil {
		p.logger.Error("dead record backup store failed", slog.String("error", err.Error()))
		p.metrics.RecordStoreFailure()
		p.retryBatch(records)
	}
}

// storeBatch encodes every record independently and bulk-writes the
// surviving pairs. Records whose encoding fails are counted and dropped
// without aborting the rest; their key slots stay nil and are skipped by the
// store. The timer covers encode plus write and reports on every exit path.
func (p *Pipeline) storeBatch(records []Record) error {
	start := p.now()
	defer func() {
		p.metrics.RecordStoreDuration(RecordTypeDead, p.now().Sub(start))
	}()

	keys := make([][]byte, len(records))
	values := make([][][]byte, len(records))
	for i, rec := range records {
		key, value, err := p.encoder.Encode(rec)
		if err != nil {
			p.logger.Error("dead record encode failed",
				slog.String("subject", rec.Subject),
				slog.String("message_id", rec.MessageID),
				slog.String("error", err.Error()))
			p.metrics.RecordEncodeError(rec.Subject)
			continue
		}
		keys[i] = key
		values[i] = [][]byte{value}
	}

	if p.breaker != nil {
		_, err := p.breaker.Execute(func() (any, error) {
			return nil, p.recordStore.BatchSave(keys, values)
		})
		return err
	}
	return p.recordStore.BatchSave(keys, values)
}

// retryBatch decides retry-or-discard per record. A bulk-write failure is
// treated as batch-wide: the store's contract exposes no per-key outcomes.
// Retryable records are re-submitted together as one batch to limit the
// volume amplification of per-record re-submission under sustained overload.
func (p *Pipeline) retryBatch(records []Record) {
	ceiling := int(p.retryCeiling.Load())
	resubmit := make([]Record, 0, len(records))

	for _, rec := range records {
		if rec.BackupRetryTimes < ceiling {
			p.metrics.RecordStoreRetry(rec.Subject)
			resubmit = append(resubmit, rec.WithRetry())
		} else {
			p.metrics.RecordStoreDiscard(rec.Subject)
			p.logger.Warn("dead record backup discarded",
				slog.String("subject", rec.Subject),
				slog.String("message_id", rec.MessageID),
				slog.Int("retry_times", rec.BackupRetryTimes))
		}
	}

	if len(resubmit) > 0 {
		p.Store(resubmit)
	}
}

// SetRetryCeiling changes the retry ceiling at runtime.
func (p *Pipeline) SetRetryCeiling(n int) {
	if n >= 0 {
		p.retryCeiling.Store(int32(n))
	}
}

// SetMaxBatchSize changes the per-invocation batch size ceiling at runtime.
func (p *Pipeline) SetMaxBatchSize(n int) {
	if n > 0 {
		p.maxBatch.Store(int32(n))
	}
}

// Resize changes the dispatcher worker count at runtime.
func (p *Pipeline) Resize(workers int) {
	p.dispatcher.Resize(workers)
}

// Close drains in-flight work for the configured interval, then releases the
// store handle. Work still running after the drain is abandoned. Idempotent;
// never returns an error.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.logger.Info("shutting down dead record backup")
	p.dispatcher.Stop(p.drainTimeout)

	if err := p.recordStore.Close(); err != nil {
		p.logger.Error("close record store failed", slog.String("error", err.Error()))
	}
	return nil
}
