// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package backup implements the asynchronous batch persistence pipeline for
// dead-letter records. Once a consumer group exhausts retries on a message
// the broker hands the resulting record to this pipeline, which archives it
// to a key/value store off the hot path.
package backup

// Record is one dead-letter decision: a message some consumer group has
// permanently failed to process. Records are value types; a retry attempt
// produces a fresh copy with an incremented counter rather than mutating a
// shared record.
type Record struct {
	// Subject is the retry subject the message was consumed from, in the
	// "%RETRY%<subject>%<group>" form.
	Subject string

	// MessageID identifies the message across retries.
	MessageID string

	// Sequence is the message's position in the source log.
	Sequence int64

	// BackupRetryTimes counts how often this record has been re-submitted
	// to the pipeline after a failed store attempt.
	BackupRetryTimes int
}

// WithRetry returns a copy of the record with the retry counter incremented.
func (r Record) WithRetry() Record {
	r.BackupRetryTimes++
	return r
}
