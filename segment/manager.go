// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"fmt"
	"sync"

	"github.com/edgewal/recorder/checkpoint"
	"github.com/edgewal/recorder/types"
)

// DefaultMaxSegmentSize is the reference 16 MiB bound (spec §4.B). Unlike
// the reference implementation this spec corrects (§9 "Configured vs
// hardcoded segment size"), callers are expected to override this from
// storage.wal_segment_size; it is a default, not a hardcoded ceiling.
const DefaultMaxSegmentSize = 16 << 20

// safetySlack covers estimation error between a frame's raw length and
// its contribution to the segment size bound.
const safetySlack = 100

// Manager owns the current segment file: its index, its size, and the
// single mutex that serializes every append across the whole log root
// (spec §5: the lock is held across open+write+fsync of an appended
// frame to guarantee per-record durability ordering).
type Manager struct {
	root           string
	maxSegmentSize uint64

	mu                 sync.Mutex
	currentSegment     uint64
	currentSegmentSize uint64
	writer             *Writer
	onRotate           func(closedSegment uint64, path string)
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithMaxSegmentSize overrides DefaultMaxSegmentSize.
func WithMaxSegmentSize(n uint64) Option {
	return func(m *Manager) { m.maxSegmentSize = n }
}

// WithRotateHook registers a callback invoked synchronously every time a
// segment is sealed by rotation, receiving the segment index that was
// just closed and its path. The log store uses this to enqueue the
// segment for upload.
func WithRotateHook(fn func(closedSegment uint64, path string)) Option {
	return func(m *Manager) { m.onRotate = fn }
}

// Open recovers the manager's state from root: it reads the checkpoint
// (defaulting to segment 0 if absent), then corrects the in-memory size
// counter against the actual on-disk size of that segment rather than
// assuming 0 (spec §9 "Segment-size tracking across restart" — the
// reference implementation's bug is not reproduced here).
func Open(root string, opts ...Option) (*Manager, error) {
	m := &Manager{root: root, maxSegmentSize: DefaultMaxSegmentSize}
	for _, opt := range opts {
		opt(m)
	}

	cp, err := checkpoint.Read(root)
	if err != nil {
		// Degrade to segment 0 rather than fail to open (spec §7:
		// CheckpointUnreadable).
		cp = types.Checkpoint{}
	}

	// The checkpoint names the last *rotated* segment; the active writer
	// target is the one after it, unless no rotation has ever happened
	// (fresh root), in which case we start at 0.
	current := cp.CurrentSegment
	if current != 0 || checkpointExists(root) {
		current = cp.CurrentSegment + 1
	}

	size, err := Size(Path(root, current))
	if err != nil {
		return nil, err
	}

	w, err := OpenWriter(Path(root, current))
	if err != nil {
		return nil, err
	}

	m.currentSegment = current
	m.currentSegmentSize = uint64(size)
	m.writer = w
	return m, nil
}

func checkpointExists(root string) bool {
	cp, err := checkpoint.Read(root)
	if err != nil {
		return false
	}
	return cp.Timestamp != 0
}

// CurrentSegment returns the index of the segment currently accepting
// appends.
func (m *Manager) CurrentSegment() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSegment
}

// Append writes frameBytes to the current segment, rotating first if
// the projected size would exceed the bound. A frame that alone (with
// slack) exceeds the bound fails with ErrRecordTooLarge rather than
// rotating forever into empty segments (spec §4.B tie-break).
func (m *Manager) Append(frameBytes []byte) error {
	frameLen := uint64(len(frameBytes))
	if frameLen+safetySlack > m.maxSegmentSize {
		return types.ErrRecordTooLarge
	}

	m.mu.Lock()
	projected := m.currentSegmentSize + frameLen + safetySlack
	if projected > m.maxSegmentSize {
		m.mu.Unlock()
		if err := m.Rotate(); err != nil {
			return err
		}
		m.mu.Lock()
	}

	if err := m.writer.Append(frameBytes); err != nil {
		m.mu.Unlock()
		return err
	}
	m.currentSegmentSize += frameLen
	m.mu.Unlock()
	return nil
}

// Rotate closes the current segment, writes the checkpoint naming it,
// and opens segment N+1 as the new write target. It always advances the
// segment index by exactly one, even if called with room left in the
// current segment (used to force-close a segment for prompt upload).
func (m *Manager) Rotate() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sealed := m.currentSegment
	sealedPath := Path(m.root, sealed)

	if err := checkpoint.Write(m.root, sealed); err != nil {
		return fmt.Errorf("writing checkpoint for segment %d: %w", sealed, err)
	}

	if m.writer != nil {
		if err := m.writer.Close(); err != nil {
			return fmt.Errorf("closing segment %d: %w", sealed, err)
		}
	}

	next := sealed + 1
	if err := Touch(Path(m.root, next)); err != nil {
		return fmt.Errorf("creating segment %d: %w", next, err)
	}
	w, err := OpenWriter(Path(m.root, next))
	if err != nil {
		return err
	}

	m.currentSegment = next
	m.currentSegmentSize = 0
	m.writer = w

	if m.onRotate != nil {
		m.onRotate(sealed, sealedPath)
	}
	return nil
}

// Close closes the current segment's file handle without rotating.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer == nil {
		return nil
	}
	return m.writer.Close()
}
