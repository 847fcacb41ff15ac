// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockRootRejectsSecondHolder(t *testing.T) {
	dir := t.TempDir()

	l1, err := LockRoot(dir)
	require.NoError(t, err)
	defer l1.Unlock()

	_, err = LockRoot(dir)
	require.Error(t, err)
}

func TestLockRootReleasedAfterUnlock(t *testing.T) {
	dir := t.TempDir()

	l1, err := LockRoot(dir)
	require.NoError(t, err)
	require.NoError(t, l1.Unlock())

	l2, err := LockRoot(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Unlock())
}
