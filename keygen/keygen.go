// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package keygen produces the fixed-width keys under which backup records are
// stored. Keys are deterministic so that a re-store of the same record
// overwrites the previous one.
package keygen

import "crypto/md5"

// KeyGenerator derives store keys for backup records.
type KeyGenerator interface {
	// DeadRecordKey derives the key for a dead-letter record. Two calls with
	// the same arguments return the same key.
	DeadRecordKey(deadRetrySubject, messageID, consumerGroup string) []byte
}

// DeadRecordKeyLen is the byte length of every dead-record key.
const DeadRecordKeyLen = 3 * md5.Size

// Default is the digest-based key scheme: md5(subject) || md5(group) ||
// md5(messageID), 48 bytes. The subject digest leads so that records of one
// subject are contiguous under range scans.
type Default struct{}

var _ KeyGenerator = Default{}

// DeadRecordKey implements KeyGenerator.
func (Default) DeadRecordKey(deadRetrySubject, messageID, consumerGroup string) []byte {
	key := make([]byte, 0, DeadRecordKeyLen)
	for _, part := range []string{deadRetrySubject, consumerGroup, messageID} {
		sum := md5.Sum([]byte(part))
		key = append(key, sum[:]...)
	}
	return key
}
