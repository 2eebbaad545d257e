// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import "time"

// MetricsSink receives pipeline observability events. Implementations must
// be safe for concurrent use; all methods are called from worker goroutines.
type MetricsSink interface {
	// RecordStoreRetry counts a record re-submitted after a failed attempt.
	RecordStoreRetry(subject string)

	// RecordStoreDiscard counts a record dropped at the retry ceiling.
	RecordStoreDiscard(subject string)

	// RecordEncodeError counts a record whose encoding failed. Such records
	// are lost permanently, not retried.
	RecordEncodeError(subject string)

	// RecordStoreReject counts a batch turned away by a saturated dispatcher.
	RecordStoreReject()

	// RecordStoreFailure counts a batch whose bulk write failed.
	RecordStoreFailure()

	// RecordStoreDuration reports the elapsed time of one batch-store
	// invocation (encode plus bulk write), on every exit path.
	RecordStoreDuration(recordType string, elapsed time.Duration)
}

// NopMetrics discards all events.
type NopMetrics struct{}

var _ MetricsSink = NopMetrics{}

func (NopMetrics) RecordStoreRetry(string) {}

func (NopMetrics) RecordStoreDiscard(string) {}

func (NopMetrics) RecordEncodeError(string) {}

func (NopMetrics) RecordStoreReject() {}

func (NopMetrics) RecordStoreFailure() {}

func (NopMetrics) RecordStoreDuration(string, time.Duration) {}
