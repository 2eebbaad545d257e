// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package otelmetrics exports backup pipeline metrics through OpenTelemetry.
package otelmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/veltmq/backup"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics implements backup.MetricsSink on OpenTelemetry instruments.
type Metrics struct {
	meter metric.Meter

	// Counters
	storeRetry   metric.Int64Counter
	storeDiscard metric.Int64Counter
	encodeError  metric.Int64Counter
	storeReject  metric.Int64Counter
	storeFailure metric.Int64Counter

	// Histograms
	storeDuration metric.Float64Histogram
}

var _ backup.MetricsSink = (*Metrics)(nil)

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("backup-pipeline"),
	}

	var err error

	m.storeRetry, err = m.meter.Int64Counter(
		"dead_record_backup_store_retry",
		metric.WithDescription("Records re-submitted after a failed store attempt"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storeRetry counter: %w", err)
	}

	m.storeDiscard, err = m.meter.Int64Counter(
		"dead_record_backup_store_discard",
		metric.WithDescription("Records discarded at the retry ceiling"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storeDiscard counter: %w", err)
	}

	m.encodeError, err = m.meter.Int64Counter(
		"dead_record_store_error",
		metric.WithDescription("Records lost to encoding failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encodeError counter: %w", err)
	}

	m.storeReject, err = m.meter.Int64Counter(
		"dead_record_backup_store_reject",
		metric.WithDescription("Batches rejected by a saturated dispatcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storeReject counter: %w", err)
	}

	m.storeFailure, err = m.meter.Int64Counter(
		"dead_record_backup_store_failure",
		metric.WithDescription("Batches whose bulk write failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storeFailure counter: %w", err)
	}

	m.storeDuration, err = m.meter.Float64Histogram(
		"BatchBackup.Store.Timer",
		metric.WithDescription("Batch store duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storeDuration histogram: %w", err)
	}

	return m, nil
}

// RecordStoreRetry counts a record re-submission, tagged by subject.
func (m *Metrics) RecordStoreRetry(subject string) {
	m.storeRetry.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("subject", subject),
	))
}

// RecordStoreDiscard counts a record discard, tagged by subject.
func (m *Metrics) RecordStoreDiscard(subject string) {
	m.storeDiscard.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("subject", subject),
	))
}

// RecordEncodeError counts a per-record encoding failure, tagged by subject.
func (m *Metrics) RecordEncodeError(subject string) {
	m.encodeError.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("subject", subject),
	))
}

// RecordStoreReject counts a batch turned away by the dispatcher.
func (m *Metrics) RecordStoreReject() {
	m.storeReject.Add(context.Background(), 1)
}

// RecordStoreFailure counts a failed bulk write.
func (m *Metrics) RecordStoreFailure() {
	m.storeFailure.Add(context.Background(), 1)
}

// RecordStoreDuration reports one batch-store invocation, tagged by record type.
func (m *Metrics) RecordStoreDuration(recordType string, elapsed time.Duration) {
	m.storeDuration.Record(context.Background(), float64(elapsed.Milliseconds()), metric.WithAttributes(
		attribute.String("recordType", recordType),
	))
}
