// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SubmitRuns(t *testing.T) {
	d := NewDispatcher(2, 10, nil)
	defer d.Stop(time.Second)

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := d.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
		require.NoError(t, err)
	}

	wg.Wait()
	assert.Equal(t, int32(5), count.Load())
}

func TestDispatcher_Overload(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	defer d.Stop(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	require.NoError(t, d.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// Fill the admission queue.
	require.NoError(t, d.Submit(func() {}))

	// Saturated: rejected synchronously, never blocks.
	err := d.Submit(func() {})
	assert.ErrorIs(t, err, ErrOverloaded)

	close(release)
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	d.Stop(time.Second)

	err := d.Submit(func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_StopDrainBound(t *testing.T) {
	d := NewDispatcher(1, 1, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, d.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// Stop must return within the drain bound even though the task hangs.
	done := make(chan struct{})
	go func() {
		d.Stop(200 * time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within drain bound")
	}
}

func TestDispatcher_StopDrainsQueuedTasks(t *testing.T) {
	d := NewDispatcher(1, 16, nil)

	started := make(chan struct{})
	release := make(chan struct{})

	// Hold the single worker so the following tasks stay queued.
	require.NoError(t, d.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(func() { ran.Add(1) }))
	}

	// Free the worker shortly after Stop begins; with the drain window
	// wide open, every queued task must still run.
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(release)
	}()
	d.Stop(5 * time.Second)

	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcher_StopIdempotent(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	d.Stop(time.Second)
	d.Stop(time.Second) // must not panic or block
}

func TestDispatcher_Resize(t *testing.T) {
	d := NewDispatcher(1, 16, nil)
	defer d.Stop(time.Second)

	d.Resize(4)
	assert.Equal(t, 4, d.Workers())

	// Growing must add real capacity: four blocking tasks all start.
	var started sync.WaitGroup
	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		started.Add(1)
		require.NoError(t, d.Submit(func() {
			started.Done()
			<-release
		}))
	}

	done := make(chan struct{})
	go func() {
		started.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resized pool did not run tasks concurrently")
	}
	close(release)

	d.Resize(2)
	assert.Equal(t, 2, d.Workers())
}
