// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recorder's error taxonomy (spec §7). Centralizing
// them here, rather than in each package that can raise them, follows the
// teacher's own pattern of re-exporting ErrNotFound/ErrCorrupt/ErrSealed
// from a single types package.
var (
	// ErrRecordTooLarge is returned from AppendRecord when a record's frame
	// would exceed the segment size bound even in a freshly rotated,
	// otherwise-empty segment.
	ErrRecordTooLarge = errors.New("record too large for a segment")

	// ErrTruncatedFrame indicates a short read inside a frame: the stream
	// ended partway through the magic, the metadata length prefix, the
	// metadata or the payload.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrEncoding indicates the metadata blob failed to decode into valid
	// fields (e.g. a length prefix pointing past the blob itself).
	ErrEncoding = errors.New("frame metadata encoding error")

	// ErrCheckpointUnreadable indicates a malformed .checkpoint file.
	// Recovery degrades to current_segment = 0 rather than failing to
	// open, trading fidelity for availability.
	ErrCheckpointUnreadable = errors.New("checkpoint file is unreadable")

	// ErrClosed names the error of using a store after Close. No function
	// in this module returns it: an append after Close fails with the
	// error of the closed segment file instead.
	ErrClosed = errors.New("store is closed")

	// ErrUploadFatal indicates a permanent upload failure: the head
	// segment should be dropped from the queue rather than retried.
	ErrUploadFatal = errors.New("fatal upload error")

	// ErrQueueOverflow is not a failure of any single call; it marks that
	// the upload queue shed its oldest unstarted entry to stay within its
	// configured bound.
	ErrQueueOverflow = errors.New("upload queue overflow, oldest entry dropped")
)

// PayloadCorruptError reports a CRC mismatch on replay. It carries both
// the expected and actual checksum so callers can log a precise diagnosis.
type PayloadCorruptError struct {
	Expected uint32
	Actual   uint32
}

func (e *PayloadCorruptError) Error() string {
	return fmt.Sprintf("payload corrupt: expected crc32 %08x, got %08x", e.Expected, e.Actual)
}

// UploadTransientError wraps a retryable remote failure (timeout, 5xx,
// connection reset) so the sync daemon's backoff loop can distinguish it
// from ErrUploadFatal via errors.As.
type UploadTransientError struct {
	Cause error
}

func (e *UploadTransientError) Error() string {
	return fmt.Sprintf("transient upload error: %v", e.Cause)
}

func (e *UploadTransientError) Unwrap() error {
	return e.Cause
}
