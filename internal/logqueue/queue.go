// Package logqueue implements the fire-and-forget ClaimLog writer: a
// bounded background queue that never blocks the request path, dropping
// the oldest pending entry on overflow rather than applying backpressure.
package logqueue

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ramaverify/backend/internal/docstore"
)

// DefaultCapacity is Q_LOG from the concurrency model: the queue drops the
// oldest pending write once this many entries are buffered.
const DefaultCapacity = 1024

// Queue buffers ClaimLog writes off the request path. A single worker
// goroutine drains it into the document store; enqueuing never blocks.
type Queue struct {
	ch      chan docstore.ClaimLog
	docs    *docstore.Store
	log     *slog.Logger
	dropped atomic.Int64
	done    chan struct{}
}

func New(docs *docstore.Store, capacity int, log *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		ch:   make(chan docstore.ClaimLog, capacity),
		docs: docs,
		log:  log,
		done: make(chan struct{}),
	}
}

// Enqueue buffers a ClaimLog for asynchronous persistence. If the buffer
// is full, the oldest pending entry is dropped to make room — a claim log
// write must never block or fail the request that produced it.
func (q *Queue) Enqueue(entry docstore.ClaimLog) {
	select {
	case q.ch <- entry:
	default:
		select {
		case <-q.ch:
			q.dropped.Add(1)
			q.log.Warn("logqueue: buffer full, dropped oldest entry")
		default:
		}
		select {
		case q.ch <- entry:
		default:
			q.dropped.Add(1)
			q.log.Warn("logqueue: buffer full, dropped incoming entry")
		}
	}
}

// Dropped returns the number of log entries dropped for capacity so far.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Run drains the queue until ctx is cancelled, then drains whatever
// remains buffered before returning, so a clean shutdown does not lose
// entries that were already accepted.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case entry := <-q.ch:
			q.write(ctx, entry)
		case <-ctx.Done():
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case entry := <-q.ch:
			q.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (q *Queue) write(ctx context.Context, entry docstore.ClaimLog) {
	if err := q.docs.InsertClaimLog(ctx, entry); err != nil {
		q.log.Error("logqueue: failed to persist claim log", "error", err)
	}
}

// Done returns a channel closed once Run has fully drained and returned,
// so callers can wait for a clean shutdown without a sleep.
func (q *Queue) Done() <-chan struct{} { return q.done }
