// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package segment owns the on-disk representation of a single WAL
// segment file: naming, listing, sequential writing and sequential
// reading. Grounded on the teacher's segment/reader.go for the general
// shape of a segment-scoped reader, rewritten against this spec's own
// frame format instead of raft-wal's indexed log entries.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	filePrefix = "segment-"
	fileSuffix = ".log"
)

// Path returns the on-disk path for segment index n under root.
func Path(root string, n uint64) string {
	return filepath.Join(root, fmt.Sprintf("%s%d%s", filePrefix, n, fileSuffix))
}

// ParseIndex extracts the numeric segment index from a segment file's
// basename, or ok=false if name doesn't match the segment-{N}.log shape.
func ParseIndex(name string) (n uint64, ok bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	numPart := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	parsed, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// List returns every segment file under root, sorted by parsed numeric
// suffix. The reference implementation this spec is modeled on sorts
// lexicographically, which silently misorders segment-10.log before
// segment-2.log; that bug is not reproduced here (spec §9).
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		path string
		n    uint64
	}
	var found []indexed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := ParseIndex(e.Name())
		if !ok {
			continue
		}
		found = append(found, indexed{path: filepath.Join(root, e.Name()), n: n})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// Highest returns the largest segment index present under root, and
// whether any segment file was found at all.
func Highest(root string) (n uint64, found bool, err error) {
	paths, err := List(root)
	if err != nil {
		return 0, false, err
	}
	if len(paths) == 0 {
		return 0, false, nil
	}
	last, _ := ParseIndex(filepath.Base(paths[len(paths)-1]))
	return last, true, nil
}
