// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/edgewal/recorder/types"
)

// RemoteUploader is the external upload primitive (spec §6): transfer
// one fingerprinted chunk of a segment to the remote object store.
// Implementations must be idempotent per (segmentSHA256, chunkIndex):
// re-uploading a chunk that already landed must not corrupt remote
// state, since a cancelled transfer or a process restart can cause
// exactly that replay.
type RemoteUploader interface {
	UploadChunk(ctx context.Context, segmentSHA256 string, chunkIndex int, data []byte, chunkSHA256 string) (remoteUploadID string, err error)
}

// Config controls chunking, compression, and encryption for an Uploader.
type Config struct {
	ChunkSize     int
	Compress      bool
	EncryptionKey []byte // nil disables per-chunk encryption

	// MaxChunksPerSecond throttles how fast chunks are handed to the
	// RemoteUploader, independent of how many retries a given chunk
	// needs. Zero disables throttling.
	MaxChunksPerSecond float64
}

// Uploader drives the chunked, resumable transfer of one segment at a
// time. It resumes from a supplied types.UploadState so a retry after a
// failed attempt re-sends only the chunks that never completed (spec §8
// invariant #8). The state lives in memory only: after a process
// restart a segment's upload starts again from chunk 0.
type Uploader struct {
	remote  RemoteUploader
	cfg     Config
	logger  log.Logger
	metrics *Metrics
	limiter *rate.Limiter
}

// NewUploader constructs an Uploader. A zero-value Config uses
// DefaultChunkSize and disables compression/encryption/throttling.
func NewUploader(remote RemoteUploader, cfg Config, logger log.Logger, metrics *Metrics) *Uploader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	u := &Uploader{remote: remote, cfg: cfg, logger: logger, metrics: metrics}
	if cfg.MaxChunksPerSecond > 0 {
		u.limiter = rate.NewLimiter(rate.Limit(cfg.MaxChunksPerSecond), 1)
	}
	return u
}

// UploadSegment transfers every chunk of the segment at path that isn't
// already recorded as uploaded in state, mutating state in place as
// each chunk completes so a caller can checkpoint progress between
// chunks. It returns nil once every chunk is recorded in state, or the
// first error met, leaving the chunks completed so far in state.
func (u *Uploader) UploadSegment(ctx context.Context, path string, state *types.UploadState) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading segment for upload: %w", err)
	}

	data := raw
	if u.cfg.Compress {
		data, err = CompressSegment(raw)
		if err != nil {
			return fmt.Errorf("compressing segment: %w", err)
		}
	}

	chunks := Split(data, u.cfg.ChunkSize)
	for _, c := range chunks {
		if state.HasChunk(c.Index) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		payload := c.Data
		if u.cfg.EncryptionKey != nil {
			payload, err = EncryptChunk(u.cfg.EncryptionKey, c.Data)
			if err != nil {
				return fmt.Errorf("encrypting chunk %d: %w", c.Index, err)
			}
		}

		remoteID, err := u.remote.UploadChunk(ctx, state.SegmentSHA256, c.Index, payload, c.SHA256)
		if err != nil {
			level.Warn(u.logger).Log("msg", "chunk upload failed", "segment", path, "chunk", c.Index, "err", err)
			return err
		}

		state.ChunksUploaded = append(state.ChunksUploaded, types.UploadedChunk{
			ChunkIndex:     c.Index,
			ChunkSize:      len(c.Data),
			SHA256:         c.SHA256,
			RemoteUploadID: remoteID,
		})
		u.metrics.BytesUploaded.Add(float64(len(payload)))
		level.Debug(u.logger).Log("msg", "chunk uploaded", "segment", path, "chunk", c.Index, "of", len(chunks))
	}
	return nil
}
