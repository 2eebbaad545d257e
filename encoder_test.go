// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veltmq/backup/keygen"
	"github.com/veltmq/backup/subject"
)

func TestEncode_ValueLayout(t *testing.T) {
	enc := NewEncoder(nil)
	fixed := time.UnixMilli(1700000000000)
	enc.now = func() time.Time { return fixed }

	rec := Record{
		Subject:   subject.BuildRetrySubject("order.created", "g1"),
		MessageID: "msg-1",
		Sequence:  42,
	}

	_, value, err := enc.Encode(rec)
	require.NoError(t, err)

	// 8 bytes sequence + 8 bytes create time + 2 bytes group
	require.Len(t, value, 18)
	assert.Equal(t, uint64(42), binary.BigEndian.Uint64(value[0:8]))
	assert.Equal(t, uint64(1700000000000), binary.BigEndian.Uint64(value[8:16]))
	assert.Equal(t, "g1", string(value[16:18]))
}

func TestEncode_CreateTimeCloseToNow(t *testing.T) {
	enc := NewEncoder(nil)

	rec := Record{
		Subject:   subject.BuildRetrySubject("order.created", "g1"),
		MessageID: "msg-1",
		Sequence:  1,
	}

	before := time.Now()
	_, value, err := enc.Encode(rec)
	require.NoError(t, err)
	after := time.Now()

	createMillis := int64(binary.BigEndian.Uint64(value[8:16]))
	assert.GreaterOrEqual(t, createMillis, before.UnixMilli())
	assert.LessOrEqual(t, createMillis, after.UnixMilli())
}

func TestEncode_Deterministic(t *testing.T) {
	enc := NewEncoder(nil)
	fixed := time.UnixMilli(1700000000000)
	enc.now = func() time.Time { return fixed }

	rec := Record{
		Subject:   subject.BuildRetrySubject("order.created", "billing"),
		MessageID: "msg-7",
		Sequence:  99,
	}

	key1, value1, err := enc.Encode(rec)
	require.NoError(t, err)
	key2, value2, err := enc.Encode(rec)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, value1, value2)

	// Key matches the generator applied to the dead-retry subject.
	want := keygen.Default{}.DeadRecordKey(
		subject.BuildDeadRetrySubject("order.created", "billing"), "msg-7", "billing")
	assert.Equal(t, want, key1)
}

func TestEncode_RetryCounterDoesNotAffectKey(t *testing.T) {
	enc := NewEncoder(nil)

	rec := Record{
		Subject:   subject.BuildRetrySubject("order.created", "g1"),
		MessageID: "msg-1",
		Sequence:  5,
	}

	key1, _, err := enc.Encode(rec)
	require.NoError(t, err)
	key2, _, err := enc.Encode(rec.WithRetry())
	require.NoError(t, err)

	// Re-stores of the same message overwrite: last write wins.
	assert.Equal(t, key1, key2)
}

func TestEncode_InvalidSubject(t *testing.T) {
	enc := NewEncoder(nil)

	_, _, err := enc.Encode(Record{Subject: "order.created", MessageID: "msg-1"})
	assert.ErrorIs(t, err, subject.ErrNotRetrySubject)
}

func TestDecodeValue(t *testing.T) {
	enc := NewEncoder(nil)

	rec := Record{
		Subject:   subject.BuildRetrySubject("order.created", "billing"),
		MessageID: "msg-1",
		Sequence:  1234,
	}

	_, value, err := enc.Encode(rec)
	require.NoError(t, err)

	seq, createTime, group, err := DecodeValue(value)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), seq)
	assert.Equal(t, "billing", group)
	assert.WithinDuration(t, time.Now(), createTime, time.Minute)
}

func TestDecodeValue_TooShort(t *testing.T) {
	_, _, _, err := DecodeValue(make([]byte, 15))
	assert.Error(t, err)
}
