// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"os"
)

// Writer appends frame bytes to one segment file, fsyncing every append
// before it returns so that a caller-visible success implies durability
// (spec §4.B step 3). A Writer is not safe for concurrent use; callers
// serialize access to it (the log store's single mutex).
type Writer struct {
	f *os.File
}

// OpenWriter opens (creating if necessary) the segment file at path for
// appending.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f}, nil
}

// Append writes b to the segment and fsyncs before returning. The fsync
// is not optional: it is what makes a returned nil error mean the frame
// survives a crash.
func (w *Writer) Append(b []byte) error {
	if _, err := w.f.Write(b); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close closes the underlying file handle without an additional sync;
// callers that need a final durability guarantee should have already
// synced via the last Append.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Touch creates path if it doesn't already exist, used when rotating to
// a fresh, empty segment.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Size returns the current on-disk size of path, or 0 if it doesn't
// exist. Used during recovery to correct current_segment_size against
// an unrotated tail segment left over from a prior process (spec §9).
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}
