// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package checkpoint

import "os"

// fsyncDir best-effort fsyncs the directory on platforms where opening a
// directory for fsync isn't reliably supported via golang.org/x/sys/unix
// (the primary deployment target for this recorder is Linux edge
// devices; this path exists so the package still builds elsewhere).
func fsyncDir(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
