// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"bufio"
	"os"

	"github.com/edgewal/recorder/frame"
	"github.com/edgewal/recorder/types"
)

// Reader sequentially decodes frames from a segment file, the read half
// of the append-only contract Writer provides. Shaped after the
// teacher's segment.Reader, but decoding this spec's frame format
// instead of raft-wal's indexed log entries.
type Reader struct {
	f *os.File
	r *bufio.Reader
}

// OpenReader opens path read-only for sequential replay.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f, r: bufio.NewReader(f)}, nil
}

// Next returns the next record in the segment, or ok=false at a clean
// end of stream (including a best-effort stop at an uninitialized or
// corrupt tail, per frame.DecodeOne's magic-guard policy). A non-nil
// error means replay must stop: the caller decides whether to accept the
// prefix already read.
func (r *Reader) Next() (types.Record, bool, error) {
	return frame.DecodeOne(r.r)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReplayAll decodes every frame in path in order. It stops and returns
// an error on TruncatedFrame, PayloadCorrupt or an encoding error,
// leaving it to the caller whether to accept the partial result.
func ReplayAll(path string) ([]types.Record, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []types.Record
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
