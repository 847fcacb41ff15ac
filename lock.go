// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"os"
	"path/filepath"

	"github.com/coreos/etcd/pkg/fileutil"
)

// RootLock is an advisory single-writer lock over a store's root
// directory (spec §5: "at most one writer process may hold the log root
// open at a time; an advisory lock on the root directory is
// recommended"). It is held for the lifetime of the writer process, not
// per-append.
type RootLock struct {
	f *fileutil.LockedFile
}

// LockRoot acquires the advisory lock for dir, failing immediately
// rather than blocking if another process already holds it.
func LockRoot(dir string) (*RootLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := fileutil.TryLockFile(filepath.Join(dir, ".lock"), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	return &RootLock{f: f}, nil
}

// Unlock releases the lock and closes the underlying file handle.
func (l *RootLock) Unlock() error {
	return l.f.Close()
}
