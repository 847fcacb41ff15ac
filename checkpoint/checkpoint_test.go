// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/checkpoint"
	"github.com/edgewal/recorder/types"
)

func TestReadMissingIsZeroValue(t *testing.T) {
	dir := t.TempDir()
	cp, err := checkpoint.Read(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(0), cp.CurrentSegment)
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, checkpoint.Write(dir, 7))

	cp, err := checkpoint.Read(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(7), cp.CurrentSegment)
	require.NotZero(t, cp.Timestamp)

	_, err = os.Stat(filepath.Join(dir, ".checkpoint.tmp"))
	require.True(t, os.IsNotExist(err), "tmp file must not survive a completed write")
}

func TestReadMalformedDegradesWithError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".checkpoint"), []byte("not json"), 0o600))

	_, err := checkpoint.Read(dir)
	require.ErrorIs(t, err, types.ErrCheckpointUnreadable)
}

func TestWriteOverwritesPreviousAtomically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, checkpoint.Write(dir, 1))
	require.NoError(t, checkpoint.Write(dir, 2))

	cp, err := checkpoint.Read(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(2), cp.CurrentSegment)
}
