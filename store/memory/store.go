// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package memory provides an in-memory KVStore for tests and development.
package memory

import (
	"fmt"
	"sync"

	"github.com/veltmq/backup/store"
)

var _ store.KVStore = (*Store)(nil)

// Store keeps all key/value pairs in a map. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   map[string][][]byte
	closed bool

	// FailNext makes the next BatchSave calls return failErr. Used to
	// exercise the pipeline's retry path in tests.
	failNext int
	failErr  error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][][]byte)}
}

// FailNext arranges for the next n BatchSave calls to fail with err.
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

// BatchSave stores all pairs. Nil key slots are skipped.
func (s *Store) BatchSave(keys [][]byte, values [][][]byte) error {
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", store.ErrBatchShape, len(keys), len(values))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}

	for i, key := range keys {
		if key == nil {
			continue
		}
		slots := make([][]byte, len(values[i]))
		for j, slot := range values[i] {
			cp := make([]byte, len(slot))
			copy(cp, slot)
			slots[j] = cp
		}
		s.data[string(key)] = slots
	}
	return nil
}

// Get returns the value slots stored under key, or nil if absent.
func (s *Store) Get(key []byte) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[string(key)]
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close marks the store closed. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
