// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/upload"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := upload.NewQueue()
	q.Push("segment-0.log")
	q.Push("segment-1.log")
	q.Push("segment-2.log")

	for _, want := range []string{"segment-0.log", "segment-1.log", "segment-2.log"} {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, got.Segment)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestQueueShedsOldestOnOverflow(t *testing.T) {
	var shed []upload.Entry
	q := upload.NewQueue(
		upload.WithMaxDepth(2),
		upload.WithOverflowHook(func(e upload.Entry) { shed = append(shed, e) }),
	)

	q.Push("segment-0.log")
	q.Push("segment-1.log")
	q.Push("segment-2.log") // should shed segment-0.log

	require.Len(t, shed, 1)
	require.Equal(t, "segment-0.log", shed[0].Segment)
	require.Equal(t, 2, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "segment-1.log", got.Segment)
}

func TestQueueSnapshotIsFIFOOrdered(t *testing.T) {
	q := upload.NewQueue()
	q.Push("a")
	q.Push("b")
	snap := q.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "a", snap[0].Segment)
	require.Equal(t, "b", snap[1].Segment)
}
