// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package types holds the data model shared between the frame codec, the
// segment manager, the log store and the upload pipeline. Centralizing
// these shapes here (rather than letting each package define its own)
// mirrors the teacher's own types package referenced throughout wal.go.
package types

import (
	"fmt"
	"time"
)

// Magic is the 4-byte little-endian sentinel that opens every frame.
const Magic uint32 = 0xDEADBEEF

// Timestamp is an unsigned 128-bit millisecond-since-epoch value, split
// into high and low 64-bit words since Go has no native uint128. Hi is
// zero for any timestamp that fits in 64 bits, which is every wall-clock
// value for the foreseeable lifetime of this format.
type Timestamp struct {
	Hi uint64
	Lo uint64
}

// TimestampFromUnixMilli builds a Timestamp from an ordinary signed
// milliseconds-since-epoch value, the common case for callers.
func TimestampFromUnixMilli(ms int64) Timestamp {
	return Timestamp{Hi: 0, Lo: uint64(ms)}
}

// UnixMilli returns the low 64 bits interpreted as milliseconds since the
// epoch. Callers that need the full 128 bits should read Hi/Lo directly.
func (t Timestamp) UnixMilli() int64 {
	return int64(t.Lo)
}

// Time converts the timestamp to a time.Time, dropping any value that
// doesn't fit in the low word.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// Record is one immutable, appended message: a tagged binary payload
// bound to a topic and namespace at a caller-supplied timestamp.
type Record struct {
	Topic     string
	Namespace string
	Timestamp Timestamp
	Payload   []byte
}

// Checkpoint names the most recently rotated segment so that recovery
// knows where to resume. Persisted as a small structured text file; see
// package checkpoint.
type Checkpoint struct {
	CurrentSegment uint64 `json:"current_segment"`
	Timestamp      uint64 `json:"timestamp"`
}

// UploadedChunk records one chunk that has already been durably
// transferred to the remote store for a given segment.
type UploadedChunk struct {
	ChunkIndex     int    `json:"chunk_index"`
	ChunkSize      int    `json:"chunk_size"`
	SHA256         string `json:"sha256"`
	RemoteUploadID string `json:"remote_upload_id,omitempty"`
}

// UploadState is the per-segment upload progress record. It is created
// when a segment is queued and mutated only by the uploader that owns it.
type UploadState struct {
	SegmentPath      string          `json:"segment_path"`
	SegmentSHA256    string          `json:"segment_sha256"`
	ChunksUploaded   []UploadedChunk `json:"chunks_uploaded"`
	EnqueueTimestamp int64           `json:"enqueue_timestamp"`
	Errors           int             `json:"errors"`
}

// HasChunk reports whether chunk idx has already completed, so a resumed
// upload can skip it.
func (s *UploadState) HasChunk(idx int) bool {
	for _, c := range s.ChunksUploaded {
		if c.ChunkIndex == idx {
			return true
		}
	}
	return false
}

// SyncStatus is the process-wide observable snapshot of the sync daemon.
type SyncStatus struct {
	IsSyncing           bool       `json:"is_syncing"`
	LastSyncTime        *time.Time `json:"last_sync_time,omitempty"`
	UploadErrors        int        `json:"upload_errors"`
	TotalSegmentsSynced int        `json:"total_segments_synced"`
}

func (s Timestamp) String() string {
	return fmt.Sprintf("%d:%020d", s.Hi, s.Lo)
}
