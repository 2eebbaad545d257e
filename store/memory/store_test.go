// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veltmq/backup/store"
)

func TestStore_BatchSaveAndGet(t *testing.T) {
	s := New()

	require.NoError(t, s.BatchSave(
		[][]byte{[]byte("key-1"), nil, []byte("key-2")},
		[][][]byte{{[]byte("v1")}, nil, {[]byte("v2")}},
	))

	assert.Equal(t, 2, s.Len())
	got := s.Get([]byte("key-2"))
	require.Len(t, got, 1)
	assert.Equal(t, []byte("v2"), got[0])
	assert.Nil(t, s.Get([]byte("absent")))
}

func TestStore_ShapeMismatch(t *testing.T) {
	s := New()
	err := s.BatchSave([][]byte{[]byte("k")}, nil)
	assert.ErrorIs(t, err, store.ErrBatchShape)
}

func TestStore_FailNext(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailNext(2, boom)

	keys := [][]byte{[]byte("k")}
	values := [][][]byte{{[]byte("v")}}

	assert.ErrorIs(t, s.BatchSave(keys, values), boom)
	assert.ErrorIs(t, s.BatchSave(keys, values), boom)
	assert.NoError(t, s.BatchSave(keys, values))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Close(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.BatchSave([][]byte{[]byte("k")}, [][][]byte{{[]byte("v")}})
	assert.ErrorIs(t, err, store.ErrClosed)
}
