// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package checkpoint persists the single small file that names the most
// recently rotated segment, so recovery knows where to resume without
// replaying the whole log. Grounded on the checkpoint read/write pair in
// ashita-ai-akashi/internal/service/trace/wal.go (loadCheckpoint/
// saveCheckpoint: JSON body, write-to-tmp, fsync, rename), which in turn
// matches original_source/src/storage.rs's write_checkpoint/
// recover_checkpoint (serde_json to ".checkpoint"/".checkpoint.tmp").
//
// encoding/json is used deliberately rather than a third-party
// marshaling library: no config/serialization library in the retrieved
// pack targets a small flat struct like this one, and the spec requires
// only "a structured text encoding", which json already is.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgewal/recorder/types"
)

const (
	fileName    = ".checkpoint"
	tmpFileName = ".checkpoint.tmp"
)

func path(root string) string    { return filepath.Join(root, fileName) }
func tmpPath(root string) string { return filepath.Join(root, tmpFileName) }

// Read loads the checkpoint under root. A missing file is not an error:
// it reports a zero-value checkpoint (current_segment 0). A malformed
// file is reported via types.ErrCheckpointUnreadable; callers should
// degrade to starting at segment 0 rather than fail to open (spec §7).
func Read(root string) (types.Checkpoint, error) {
	data, err := os.ReadFile(path(root))
	if errors.Is(err, os.ErrNotExist) {
		return types.Checkpoint{}, nil
	}
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("%w: %v", types.ErrCheckpointUnreadable, err)
	}

	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return types.Checkpoint{}, fmt.Errorf("%w: %v", types.ErrCheckpointUnreadable, err)
	}
	return cp, nil
}

// Write persists segment as the current_segment, crash-atomically: the
// body is written to .checkpoint.tmp, fsynced, and then renamed over
// .checkpoint. The rename is atomic on any POSIX filesystem, so a kill at
// any point during Write leaves either the old checkpoint fully intact
// or the new one fully intact, never a torn file.
func Write(root string, segment uint64) error {
	cp := types.Checkpoint{
		CurrentSegment: segment,
		Timestamp:      uint64(time.Now().UnixMilli()),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}

	tmp := tmpPath(root)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	f, err := os.OpenFile(tmp, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp, path(root)); err != nil {
		return err
	}

	// fsync the directory entry itself so the rename survives a crash,
	// not just the file contents (see fsync_linux.go / fsync_other.go).
	return fsyncDir(root)
}
