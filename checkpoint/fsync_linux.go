// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

//go:build linux

package checkpoint

import "golang.org/x/sys/unix"

// fsyncDir fsyncs the directory entry for root so a rename over
// .checkpoint is durable, not just the renamed file's contents. This is
// the classic "fsync the parent directory after rename" requirement for
// crash-safe file replacement on Linux filesystems.
func fsyncDir(root string) error {
	fd, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
