// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultQueueCapacity = 1024

// LogSink receives drained claim log entries. *MongoStore satisfies it.
type LogSink interface {
	AppendClaimLog(ctx context.Context, doc ClaimLogDoc) error
}

var _ LogSink = (*MongoStore)(nil)

// LogQueue buffers claim log writes so verification responses never wait
// on MongoDB. When the buffer is full the oldest entry is dropped.
type LogQueue struct {
	sink     LogSink
	buf      chan ClaimLogDoc
	onDrop   func()
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	writeTTL time.Duration
}

// NewLogQueue creates a queue and starts its writer goroutine. capacity
// <= 0 uses the default. onDrop may be nil; it is called once per dropped
// entry.
func NewLogQueue(sink LogSink, capacity int, onDrop func()) *LogQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	q := &LogQueue{
		sink:     sink,
		buf:      make(chan ClaimLogDoc, capacity),
		onDrop:   onDrop,
		writeTTL: 10 * time.Second,
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

// Enqueue adds an entry without blocking. If the buffer is full the oldest
// entry is evicted to make room. Entries offered after Close are dropped.
func (q *LogQueue) Enqueue(doc ClaimLogDoc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.drop(doc)
		return
	}
	select {
	case q.buf <- doc:
		return
	default:
	}
	// Full: evict the oldest entry, then retry once. The writer may have
	// consumed an entry in between, which is fine either way.
	select {
	case old := <-q.buf:
		q.drop(old)
	default:
	}
	select {
	case q.buf <- doc:
	default:
		q.drop(doc)
	}
}

func (q *LogQueue) drop(doc ClaimLogDoc) {
	slog.Warn("Dropping claim log entry, queue is full", "claim_id", doc.ClaimID)
	if q.onDrop != nil {
		q.onDrop()
	}
}

func (q *LogQueue) drain() {
	defer q.wg.Done()
	for doc := range q.buf {
		ctx, cancel := context.WithTimeout(context.Background(), q.writeTTL)
		if err := q.sink.AppendClaimLog(ctx, doc); err != nil {
			slog.Error("Failed to persist claim log entry", "claim_id", doc.ClaimID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting entries and blocks until the buffer is drained.
func (q *LogQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.buf)
	q.mu.Unlock()
	q.wg.Wait()
}
