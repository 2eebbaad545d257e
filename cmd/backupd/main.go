// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veltmq/backup"
	"github.com/veltmq/backup/config"
	"github.com/veltmq/backup/otelmetrics"
	"github.com/veltmq/backup/store"
	badgerstore "github.com/veltmq/backup/store/badger"
	"github.com/veltmq/backup/store/memory"
	"github.com/veltmq/backup/trigger"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	slog.Info("Starting backup pipeline", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"workers", cfg.Backup.Workers,
		"retry_ceiling", cfg.Backup.RetryCeiling,
		"batch_size", cfg.Backup.BatchSize,
		"storage_type", cfg.Storage.Type,
		"log_level", cfg.Log.Level)

	// Metrics sink
	var sink backup.MetricsSink = backup.NopMetrics{}
	if cfg.Otel.Enabled {
		shutdown, err := otelmetrics.InitProvider(otelmetrics.ProviderConfig{
			Endpoint:       cfg.Otel.Endpoint,
			ServiceName:    cfg.Otel.ServiceName,
			ServiceVersion: cfg.Otel.ServiceVersion,
			Interval:       cfg.Otel.ExportInterval,
		})
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Error("OpenTelemetry shutdown failed", "error", err)
			}
		}()

		m, err := otelmetrics.NewMetrics()
		if err != nil {
			slog.Error("Failed to create metrics", "error", err)
			os.Exit(1)
		}
		sink = m
		slog.Info("OpenTelemetry metrics enabled", "endpoint", cfg.Otel.Endpoint)
	}

	// Record store backend
	var recordStore store.KVStore
	switch cfg.Storage.Type {
	case "memory":
		recordStore = memory.New()
		slog.Info("Using in-memory record store")
	case "badger":
		bs, err := badgerstore.New(badgerstore.Config{
			Dir:        cfg.Storage.BadgerDir,
			SyncWrites: cfg.Storage.SyncWrites,
		})
		if err != nil {
			slog.Error("Failed to initialize BadgerDB record store", "error", err)
			os.Exit(1)
		}
		recordStore = bs
		slog.Info("Using BadgerDB record store", "dir", cfg.Storage.BadgerDir)
	default:
		slog.Error("Unknown storage type", "type", cfg.Storage.Type)
		os.Exit(1)
	}

	// The pipeline owns recordStore and closes it on Close.
	pipeline := backup.NewPipeline(recordStore, backup.Options{
		Workers:                 cfg.Backup.Workers,
		QueueSize:               cfg.Backup.QueueSize,
		RetryCeiling:            cfg.Backup.RetryCeiling,
		MaxBatchSize:            cfg.Backup.BatchSize,
		DrainTimeout:            cfg.Backup.DrainTimeout,
		Metrics:                 sink,
		Logger:                  logger,
		BreakerEnabled:          cfg.Backup.Breaker.Enabled,
		BreakerFailureThreshold: cfg.Backup.Breaker.FailureThreshold,
		BreakerResetTimeout:     cfg.Backup.Breaker.ResetTimeout,
	})

	// The batcher is the ingress the broker-side dead-letter detector feeds.
	batcher := trigger.New(cfg.Backup.BatchSize, cfg.Backup.FlushInterval, pipeline.Store, logger)

	// SIGHUP reloads the dynamic config subset without restart.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			next, err := config.Load(*configFile)
			if err != nil {
				slog.Error("Config reload failed", "error", err)
				continue
			}
			pipeline.SetRetryCeiling(next.Backup.RetryCeiling)
			pipeline.SetMaxBatchSize(next.Backup.BatchSize)
			pipeline.Resize(next.Backup.Workers)
			batcher.SetBatchSize(next.Backup.BatchSize)
			slog.Info("Configuration reloaded",
				"workers", next.Backup.Workers,
				"retry_ceiling", next.Backup.RetryCeiling,
				"batch_size", next.Backup.BatchSize)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	signal.Stop(reload)
	close(reload)

	if err := batcher.Close(); err != nil {
		slog.Error("Trigger shutdown failed", "error", err)
	}
	if err := pipeline.Close(); err != nil {
		slog.Error("Pipeline shutdown failed", "error", err)
	}
	slog.Info("Shutdown complete")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
