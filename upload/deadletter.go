// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"time"

	"go.etcd.io/bbolt"
)

var deadLetterBucket = []byte("dead_letters")

// BoltDeadLetterStore persists dropped segments to a bbolt database so
// they survive a restart instead of vanishing with the in-memory queue.
// bbolt is a teacher dependency (go.mod requires go.etcd.io/bbolt for
// its metaDB) that didn't survive into the filtered wal.go/reader.go
// pair we started from; this gives it a concrete home (spec §2.K).
type BoltDeadLetterStore struct {
	db *bbolt.DB
}

// OpenBoltDeadLetterStore opens (creating if necessary) a bbolt database
// at path with the dead-letter bucket pre-created.
func OpenBoltDeadLetterStore(path string) (*BoltDeadLetterStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(deadLetterBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDeadLetterStore{db: db}, nil
}

// Record stores segmentPath keyed by itself, with reason's message as
// the value, overwriting any previous record for the same segment.
func (s *BoltDeadLetterStore) Record(segmentPath string, reason error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		msg := "unknown error"
		if reason != nil {
			msg = reason.Error()
		}
		return b.Put([]byte(segmentPath), []byte(msg))
	})
}

// List returns every currently dead-lettered segment path and its
// recorded reason.
func (s *BoltDeadLetterStore) List() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// Forget removes segmentPath from the dead-letter store, used once an
// operator has manually re-driven or discarded it.
func (s *BoltDeadLetterStore) Forget(segmentPath string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(deadLetterBucket).Delete([]byte(segmentPath))
	})
}

// Close closes the underlying bbolt database.
func (s *BoltDeadLetterStore) Close() error {
	return s.db.Close()
}
