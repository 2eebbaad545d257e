// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package store defines the key/value store contract consumed by the backup
// pipeline. Implementations must accept concurrent BatchSave calls.
package store

import "errors"

// Common errors.
var (
	ErrClosed     = errors.New("store is closed")
	ErrBatchShape = errors.New("keys and values length mismatch")
)

// KVStore is a bulk-write key/value store. Each key maps to an ordered list
// of byte-sequences; the backup pipeline always supplies exactly one per key.
type KVStore interface {
	// BatchSave writes all key/value pairs in one operation. keys and values
	// must be the same length; a nil key slot is skipped together with its
	// value slot. Any failure applies to the batch as a whole.
	BatchSave(keys [][]byte, values [][][]byte) error

	// Close releases underlying resources. Safe to call more than once.
	Close() error
}
