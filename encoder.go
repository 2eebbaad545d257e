// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/veltmq/backup/keygen"
	"github.com/veltmq/backup/subject"
)

// Encoded value layout, all integers big-endian:
//
//	offset 0, 8 bytes:  sequence
//	offset 8, 8 bytes:  create time, epoch millis at encode time
//	offset 16, rest:    consumer group, UTF-8
const valuePrefixLen = 16

// Encoder turns one dead-letter record into a (key, value) byte pair. It is
// stateless apart from its collaborators and safe for concurrent use.
type Encoder struct {
	keys keygen.KeyGenerator
	now  func() time.Time
}

// NewEncoder creates an encoder deriving keys from gen. A nil gen selects
// the default digest scheme.
func NewEncoder(gen keygen.KeyGenerator) *Encoder {
	if gen == nil {
		gen = keygen.Default{}
	}
	return &Encoder{keys: gen, now: time.Now}
}

// Encode derives the store key and value for one record. The record's
// subject must be a retry subject; anything else is a per-item failure that
// the caller counts and drops without aborting the rest of the batch.
func (e *Encoder) Encode(rec Record) (key, value []byte, err error) {
	realSubject, group, err := subject.ParseRetrySubject(rec.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("encode dead record %s: %w", rec.MessageID, err)
	}

	deadRetrySubject := subject.BuildDeadRetrySubject(realSubject, group)
	key = e.keys.DeadRecordKey(deadRetrySubject, rec.MessageID, group)

	groupBytes := []byte(group)
	value = make([]byte, valuePrefixLen+len(groupBytes))
	binary.BigEndian.PutUint64(value[0:8], uint64(rec.Sequence))
	binary.BigEndian.PutUint64(value[8:16], uint64(e.now().UnixMilli()))
	copy(value[valuePrefixLen:], groupBytes)

	return key, value, nil
}

// DecodeValue splits an encoded value back into its fields. Used by query
// tooling and tests.
func DecodeValue(value []byte) (sequence int64, createTime time.Time, group string, err error) {
	if len(value) < valuePrefixLen {
		return 0, time.Time{}, "", fmt.Errorf("dead record value too short: %d bytes", len(value))
	}
	sequence = int64(binary.BigEndian.Uint64(value[0:8]))
	createTime = time.UnixMilli(int64(binary.BigEndian.Uint64(value[8:16])))
	group = string(value[valuePrefixLen:])
	return sequence, createTime, group, nil
}
