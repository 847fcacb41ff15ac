// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/segment"
	"github.com/edgewal/recorder/types"
)

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

// S1: append N records, restart, replay recovers exactly N records in order.
func TestScenarioAppendRestartReplay(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ts := types.TimestampFromUnixMilli(int64(1000 + i))
		require.NoError(t, s.AppendRecord("sensors.temp", "plant-a", []byte("reading"), ts))
	}
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	segments, err := s2.ListSegments()
	require.NoError(t, err)
	require.Len(t, segments, 1)

	recs, err := s2.ReplaySegment(segments[0])
	require.NoError(t, err)
	require.Len(t, recs, 10)
	for i, r := range recs {
		require.Equal(t, "sensors.temp", r.Topic)
		require.Equal(t, int64(1000+i), r.Timestamp.UnixMilli())
	}
}

// Invariant #2: rotation produces a new, independently checksummable segment.
func TestRotationProducesIndependentSegment(t *testing.T) {
	s, _ := openTestStore(t, WithMaxSegmentSize(10_000))
	require.NoError(t, s.AppendRecord("t", "ns", []byte("a"), types.TimestampFromUnixMilli(1)))

	sealedPath, err := s.RotateSegment()
	require.NoError(t, err)

	sum1, err := s.SegmentChecksum(sealedPath)
	require.NoError(t, err)
	require.NotEmpty(t, sum1)

	require.NoError(t, s.AppendRecord("t", "ns", []byte("b"), types.TimestampFromUnixMilli(2)))
	segs, err := s.ListSegments()
	require.NoError(t, err)
	require.Len(t, segs, 2)

	// The sealed segment's checksum must be stable: no further appends
	// land in it once rotated.
	sum2, err := s.SegmentChecksum(sealedPath)
	require.NoError(t, err)
	require.Equal(t, sum1, sum2)
}

// Invariant #5: rotation is triggered by size, not by record count.
func TestAppendRotatesOnSizeNotCount(t *testing.T) {
	s, dir := openTestStore(t, WithMaxSegmentSize(300))

	payload := make([]byte, 100)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendRecord("t", "ns", payload, types.TimestampFromUnixMilli(int64(i))))
	}

	segs, err := s.ListSegments()
	require.NoError(t, err)
	require.True(t, len(segs) >= 2, "expected at least one rotation once size bound was exceeded, root=%s", dir)
}

// Invariant #6 (record too large): a single record larger than the bound
// is rejected, not silently split or infinitely rotated around.
func TestAppendRejectsOversizeRecord(t *testing.T) {
	s, _ := openTestStore(t, WithMaxSegmentSize(200))
	err := s.AppendRecord("t", "ns", make([]byte, 10_000), types.TimestampFromUnixMilli(1))
	require.ErrorIs(t, err, types.ErrRecordTooLarge)
}

// Invariant #9: segment listing is numerically ordered even when names
// would sort lexicographically out of order (segment-10 vs segment-2).
func TestListSegmentsNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []uint64{0, 1, 2, 9, 10, 11} {
		require.NoError(t, segment.Touch(segment.Path(dir, n)))
	}
	// Remove the checkpoint so Open doesn't try to treat dir as already
	// containing a rotated tail; we only want ListSegments here.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, ".checkpoint")))

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	segs, err := s.ListSegments()
	require.NoError(t, err)
	want := []string{"segment-0.log", "segment-1.log", "segment-2.log", "segment-9.log", "segment-10.log", "segment-11.log"}
	require.Len(t, segs, len(want))
	for i, w := range want {
		require.Equal(t, w, filepath.Base(segs[i]))
	}
}

func TestRotateHookFires(t *testing.T) {
	dir := t.TempDir()
	var gotSeg uint64 = 99
	s, err := Open(dir, WithRotateHook(func(seg uint64, path string) { gotSeg = seg }))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendRecord("t", "ns", []byte("x"), types.TimestampFromUnixMilli(1)))
	_, err = s.RotateSegment()
	require.NoError(t, err)
	require.Equal(t, uint64(0), gotSeg)
}
