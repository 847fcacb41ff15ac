// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// CompressSegment applies zstd to a segment's raw bytes before chunking
// (storage.compress, spec §3 supplement). The on-disk segment itself is
// never touched; this only affects what goes over the wire, so
// segment_checksum and direct replay remain valid against the original
// file regardless of whether upload-time compression is enabled.
func CompressSegment(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressSegment reverses CompressSegment, recovering the original
// segment bytes from what was transmitted.
func DecompressSegment(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
