// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher errors returned by Submit.
var (
	// ErrOverloaded signals a saturated admission queue. The caller routes
	// the whole batch through retry instead of blocking.
	ErrOverloaded = errors.New("dispatcher overloaded")

	// ErrStopped signals a dispatcher that no longer accepts work.
	ErrStopped = errors.New("dispatcher stopped")
)

// Dispatcher runs submitted tasks on a fixed set of worker goroutines fed by
// a bounded admission queue. Submission never blocks: a full queue is
// surfaced as ErrOverloaded.
type Dispatcher struct {
	tasks    chan func()
	stopCh   chan struct{}
	retireCh chan struct{}
	logger   *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	workers int
	stopped bool
}

// NewDispatcher creates a dispatcher with the given worker count and
// admission queue capacity and starts its workers.
func NewDispatcher(workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		tasks:    make(chan func(), queueSize),
		stopCh:   make(chan struct{}),
		retireCh: make(chan struct{}),
		logger:   logger,
		workers:  workers,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Submit queues a task for asynchronous execution. Returns ErrOverloaded
// when the admission queue is full and ErrStopped after Stop.
func (d *Dispatcher) Submit(task func()) error {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	select {
	case d.tasks <- task:
		return nil
	default:
		return ErrOverloaded
	}
}

// Workers returns the current worker count.
func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workers
}

// Resize adjusts the worker count at runtime. Growing spawns workers
// immediately; shrinking retires workers as they become idle. Queue capacity
// is fixed at construction.
func (d *Dispatcher) Resize(n int) {
	if n < 1 {
		n = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || n == d.workers {
		return
	}

	for ; d.workers < n; d.workers++ {
		d.wg.Add(1)
		go d.worker()
	}
	for ; d.workers > n; d.workers-- {
		// Delivered to exactly one idle worker.
		go func() {
			select {
			case d.retireCh <- struct{}{}:
			case <-d.stopCh:
			}
		}()
	}

	d.logger.Info("dispatcher resized", slog.Int("workers", n))
}

// Stop transitions the dispatcher to stopped: no new submissions are
// accepted, and in-flight plus already-queued tasks are given drain to
// finish. Tasks still pending when drain elapses are abandoned, not killed.
// Idempotent.
func (d *Dispatcher) Stop(drain time.Duration) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stopCh)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drain):
		d.logger.Warn("dispatcher drain timed out, abandoning in-flight work",
			slog.Duration("drain", drain),
			slog.Int("queued", len(d.tasks)))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			// Submissions are already refused; run down whatever is
			// queued so the drain timeout is the only abandonment path.
			d.drainQueued()
			return
		case <-d.retireCh:
			return
		case task := <-d.tasks:
			task()
		}
	}
}

func (d *Dispatcher) drainQueued() {
	for {
		select {
		case task := <-d.tasks:
			task()
		default:
			return
		}
	}
}
