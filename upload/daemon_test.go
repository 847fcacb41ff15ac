// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/types"
	"github.com/edgewal/recorder/upload"
)

// fakeRemote records every chunk it's asked to upload and can be told
// to fail the first N attempts per chunk with a transient error.
type fakeRemote struct {
	mu         sync.Mutex
	uploaded   map[string]int // segmentSHA256/chunkIndex -> times called
	failFirstN int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{uploaded: make(map[string]int)}
}

func (f *fakeRemote) key(sha string, idx int) string {
	return sha + "/" + string(rune('0'+idx))
}

func (f *fakeRemote) UploadChunk(ctx context.Context, segmentSHA256 string, chunkIndex int, data []byte, chunkSHA256 string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(segmentSHA256, chunkIndex)
	f.uploaded[k]++
	if f.uploaded[k] <= f.failFirstN {
		return "", &types.UploadTransientError{Cause: os.ErrDeadlineExceeded}
	}
	return "remote-" + k, nil
}

func (f *fakeRemote) callsFor(sha string, idx int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploaded[f.key(sha, idx)]
}

func writeTestSegment(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "segment-0.log")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUploaderResumesFromExistingState(t *testing.T) {
	dir := t.TempDir()
	path := writeTestSegment(t, dir, 10_000)

	remote := newFakeRemote()
	u := upload.NewUploader(remote, upload.Config{ChunkSize: 4096}, nil, nil)

	state := &types.UploadState{
		SegmentPath:   path,
		SegmentSHA256: "fixed-sha-for-test",
		ChunksUploaded: []types.UploadedChunk{
			{ChunkIndex: 0, ChunkSize: 4096, SHA256: "irrelevant"},
		},
	}

	require.NoError(t, u.UploadSegment(context.Background(), path, state))

	// Chunk 0 was already marked uploaded, so the remote should never
	// see it; chunks 1 and 2 (the tail) are new.
	require.Equal(t, 0, remote.callsFor(state.SegmentSHA256, 0))
	require.Equal(t, 1, remote.callsFor(state.SegmentSHA256, 1))
	require.Equal(t, 1, remote.callsFor(state.SegmentSHA256, 2))
	require.Len(t, state.ChunksUploaded, 3)
}

func TestDaemonUploadsEnqueuedSegmentAndRecordsSuccess(t *testing.T) {
	dir := t.TempDir()
	writeTestSegment(t, dir, 2000)

	remote := newFakeRemote()
	u := upload.NewUploader(remote, upload.Config{ChunkSize: 1024}, nil, nil)
	q := upload.NewQueue()
	d := upload.NewDaemon(q, u, upload.WithRetryBudget(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	d.Enqueue(filepath.Join(dir, "segment-0.log"))

	require.Eventually(t, func() bool {
		return d.Status().TotalSegmentsSynced == 1
	}, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, d.Shutdown(shutdownCtx))
}

func TestDaemonDropsSegmentAfterExhaustingRetryBudget(t *testing.T) {
	dir := t.TempDir()
	writeTestSegment(t, dir, 500)

	remote := newFakeRemote()
	remote.failFirstN = 100 // always fail transiently
	u := upload.NewUploader(remote, upload.Config{ChunkSize: 1024}, nil, nil)
	q := upload.NewQueue()

	var dropped []string
	dl := &recordingDeadLetterStore{}
	d := upload.NewDaemon(q, u, upload.WithRetryBudget(2), upload.WithDeadLetterStore(dl))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	segPath := filepath.Join(dir, "segment-0.log")
	d.Enqueue(segPath)

	require.Eventually(t, func() bool {
		dl.mu.Lock()
		defer dl.mu.Unlock()
		dropped = append([]string(nil), dl.recorded...)
		return len(dropped) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, segPath, dropped[0])
}

type recordingDeadLetterStore struct {
	mu       sync.Mutex
	recorded []string
}

func (r *recordingDeadLetterStore) Record(segmentPath string, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, segmentPath)
	return nil
}
