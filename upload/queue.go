// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package upload implements the resumable, chunked segment-upload
// pipeline (spec §4.D/E/F): a bounded FIFO queue of sealed segments, a
// fixed-size chunker with per-chunk SHA-256 fingerprints, a retrying
// uploader that resumes from UploadState, and a sync daemon that drives
// all of it from a single owner goroutine.
package upload

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/immutable"

	"github.com/edgewal/recorder/types"
)

// DefaultMaxQueueDepth is the queue capacity applied when the caller
// doesn't override it via WithMaxDepth (spec §9 "Unbounded upload
// queue" SHOULD-fix: sync.max_queue_depth, default 10,000).
const DefaultMaxQueueDepth = 10_000

// Entry is one sealed segment awaiting upload.
type Entry struct {
	Seq     uint64
	Segment string
}

// Queue is a bounded FIFO of sealed segments. State is held as an
// immutable.SortedMap swapped atomically so readers (daemon status
// reporting) never block on the mutation path, matching the teacher's
// atomic-state-swap discipline (wal.go's segmentState pattern) applied
// to a simpler queue instead of an indexed log.
type Queue struct {
	maxDepth uint64
	onShed   func(Entry)

	mu      sync.Mutex
	nextSeq uint64
	state   atomic.Value // *immutable.SortedMap[uint64, Entry]
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithMaxDepth overrides DefaultMaxQueueDepth.
func WithMaxDepth(n uint64) Option {
	return func(q *Queue) { q.maxDepth = n }
}

// WithOverflowHook is invoked (under the queue's lock) with the oldest
// unstarted entry that gets shed when a full queue receives another
// Push. Callers use this to log an OverflowWarning and bump a metric
// (spec §9).
func WithOverflowHook(fn func(Entry)) Option {
	return func(q *Queue) { q.onShed = fn }
}

// NewQueue constructs an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{maxDepth: DefaultMaxQueueDepth}
	for _, opt := range opts {
		opt(q)
	}
	q.state.Store(&immutable.SortedMap[uint64, Entry]{})
	return q
}

func (q *Queue) load() *immutable.SortedMap[uint64, Entry] {
	return q.state.Load().(*immutable.SortedMap[uint64, Entry])
}

// Push enqueues segmentPath. If the queue is already at capacity, the
// oldest entry is shed to make room (spec §9: bounded with overflow
// warning, rather than growing without bound).
func (q *Queue) Push(segmentPath string) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := q.load()
	if uint64(m.Len()) >= q.maxDepth {
		it := m.Iterator()
		it.First()
		if oldestSeq, oldestEntry, ok := it.Next(); ok {
			m = m.Delete(oldestSeq)
			if q.onShed != nil {
				q.onShed(oldestEntry)
			}
		}
	}

	seq := q.nextSeq
	q.nextSeq++
	entry := Entry{Seq: seq, Segment: segmentPath}
	m = m.Set(seq, entry)
	q.state.Store(m)
	return entry
}

// Pop removes and returns the oldest entry, or ok=false if empty.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := q.load()
	it := m.Iterator()
	it.First()
	seq, entry, ok := it.Next()
	if !ok {
		return Entry{}, false
	}
	q.state.Store(m.Delete(seq))
	return entry, true
}

// Len returns the current queue depth. Safe to call concurrently with
// Push/Pop without taking the mutation lock.
func (q *Queue) Len() int {
	return q.load().Len()
}

// Snapshot returns every queued entry in FIFO order, for diagnostics.
func (q *Queue) Snapshot() []Entry {
	m := q.load()
	out := make([]Entry, 0, m.Len())
	it := m.Iterator()
	it.First()
	for {
		_, entry, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, entry)
	}
	return out
}
