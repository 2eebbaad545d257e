// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package badger provides a BadgerDB-backed KVStore for backup records.
package badger

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/veltmq/backup/store"
)

var _ store.KVStore = (*Store)(nil)

// Store is a BadgerDB-backed bulk-write key/value store.
type Store struct {
	db *badger.DB

	gcStopCh chan struct{}
	gcDone   chan struct{}
	closed   bool
	mu       sync.Mutex
}

// Config holds BadgerDB configuration.
type Config struct {
	Dir string // Directory for BadgerDB data

	// SyncWrites forces an fsync per write batch. Backup records are the
	// durable copy of already-dead messages, so the default is true.
	SyncWrites bool
}

// New opens a BadgerDB-backed store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's internal logging
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1
	opts.NumCompactors = 2

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Dir, err)
	}

	s := &Store{
		db:       db,
		gcStopCh: make(chan struct{}),
		gcDone:   make(chan struct{}),
	}

	// Background value log GC
	go s.runGC()

	return s, nil
}

// BatchSave writes all key/value pairs through a single WriteBatch. Nil key
// slots are skipped. Safe for concurrent use.
func (s *Store) BatchSave(keys [][]byte, values [][][]byte) error {
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", store.ErrBatchShape, len(keys), len(values))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	s.mu.Unlock()

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, key := range keys {
		if key == nil {
			continue
		}
		if err := wb.Set(key, encodeSlots(values[i])); err != nil {
			return fmt.Errorf("batch set: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("batch flush: %w", err)
	}
	return nil
}

// Get returns the value slots stored under key.
func (s *Store) Get(key []byte) ([][]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeSlots(raw)
}

// Close gracefully closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStopCh)
	<-s.gcDone

	return s.db.Close()
}

// runGC runs BadgerDB's value log garbage collection periodically.
func (s *Store) runGC() {
	defer close(s.gcDone)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// May return an error if no GC was needed, which is fine
			_ = s.db.RunValueLogGC(0.5)
		case <-s.gcStopCh:
			return
		}
	}
}

// encodeSlots packs value slots as a uvarint count followed by
// length-prefixed slot bytes.
func encodeSlots(slots [][]byte) []byte {
	size := binary.MaxVarintLen64
	for _, slot := range slots {
		size += binary.MaxVarintLen64 + len(slot)
	}
	buf := make([]byte, 0, size)
	buf = binary.AppendUvarint(buf, uint64(len(slots)))
	for _, slot := range slots {
		buf = binary.AppendUvarint(buf, uint64(len(slot)))
		buf = append(buf, slot...)
	}
	return buf
}

func decodeSlots(raw []byte) ([][]byte, error) {
	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, fmt.Errorf("corrupt value: bad slot count")
	}
	raw = raw[n:]
	slots := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		length, n := binary.Uvarint(raw)
		if n <= 0 || uint64(len(raw)-n) < length {
			return nil, fmt.Errorf("corrupt value: bad slot %d", i)
		}
		raw = raw[n:]
		slot := make([]byte, length)
		copy(slot, raw[:length])
		slots = append(slots, slot)
		raw = raw[length:]
	}
	return slots, nil
}
