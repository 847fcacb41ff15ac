// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgewal/recorder/types"
)

// DefaultRetryBudget is the number of upload attempts a segment gets
// while its failures are transient; when the last of them fails the
// segment is dead-lettered and dropped (spec §4.F).
const DefaultRetryBudget = 7

// MaxBackoff bounds the exponential backoff delay between retries.
const MaxBackoff = 120 * time.Second

type command struct {
	kind    commandKind
	segment string // enqueue
	done    chan error
}

type commandKind int

const (
	cmdEnqueue commandKind = iota
	cmdShutdown
)

// DeadLetterStore records segments that exhausted their retry budget or
// hit a fatal upload error, so they're discoverable after a restart
// instead of silently vanishing from an in-memory queue (spec §9 "dead
// letter path" MAY, backed by the K component).
type DeadLetterStore interface {
	Record(segmentPath string, reason error) error
}

// Daemon owns the upload pipeline's lifecycle: a single goroutine reads
// a command channel (only Shutdown sends on it; Enqueue pushes straight
// onto the queue, which the goroutine polls) and drives the
// retry/backoff loop for whichever segment is at the head of the queue. This replaces the teacher's cooperative
// task-with-cancellation pattern with owner-goroutine-plus-channel,
// per spec §9's redesign of "control-flow patterns needing redesign".
type Daemon struct {
	queue       *Queue
	uploader    *Uploader
	deadLetter  DeadLetterStore
	retryBudget int
	logger      log.Logger
	metrics     *Metrics

	cmds   chan command
	status sync.Mutex
	ss     types.SyncStatus

	wg sync.WaitGroup
}

// DaemonOption configures a Daemon at construction.
type DaemonOption func(*Daemon)

// WithRetryBudget overrides DefaultRetryBudget.
func WithRetryBudget(n int) DaemonOption {
	return func(d *Daemon) { d.retryBudget = n }
}

// WithDeadLetterStore attaches a DeadLetterStore; segments that exhaust
// retries or hit ErrUploadFatal are recorded there before being dropped.
func WithDeadLetterStore(dl DeadLetterStore) DaemonOption {
	return func(d *Daemon) { d.deadLetter = dl }
}

// WithDaemonLogger attaches a go-kit logger.
func WithDaemonLogger(l log.Logger) DaemonOption {
	return func(d *Daemon) { d.logger = l }
}

// WithDaemonMetrics attaches a Metrics registry.
func WithDaemonMetrics(m *Metrics) DaemonOption {
	return func(d *Daemon) { d.metrics = m }
}

// NewDaemon constructs a Daemon around queue and uploader. Call Run to
// start its owner goroutine.
func NewDaemon(queue *Queue, uploader *Uploader, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		queue:       queue,
		uploader:    uploader,
		retryBudget: DefaultRetryBudget,
		logger:      log.NewNopLogger(),
		// A fresh registry by default: promauto registration panics on a
		// name collision, and nothing should stop a process from running
		// more than one Daemon against prometheus.DefaultRegisterer.
		metrics: NewMetrics(prometheus.NewRegistry()),
		cmds:    make(chan command, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts the owner goroutine; it exits when ctx is cancelled or
// Shutdown is called. Run itself does not block.
func (d *Daemon) Run(ctx context.Context) {
	d.wg.Add(1)
	go d.loop(ctx)
}

// Enqueue pushes segmentPath onto the upload queue. It is safe to call
// from any goroutine.
func (d *Daemon) Enqueue(segmentPath string) {
	entry := d.queue.Push(segmentPath)
	d.metrics.QueueDepth.Set(float64(d.queue.Len()))
	level.Debug(d.logger).Log("msg", "segment enqueued", "segment", segmentPath, "seq", entry.Seq)
}

// Shutdown requests the owner goroutine stop and waits for it to exit.
// The request is read only between segments: a segment upload already
// in progress, including its retries and backoff waits, finishes first.
// Cancelling the context given to Run is what interrupts an upload; it
// is checked between chunks and passed on to the RemoteUploader.
func (d *Daemon) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case d.cmds <- command{kind: cmdShutdown, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		d.wg.Wait()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the daemon's current sync status.
func (d *Daemon) Status() types.SyncStatus {
	d.status.Lock()
	defer d.status.Unlock()
	return d.ss
}

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	for {
		// Drain any pending commands first (non-blocking), then fall
		// through to draining the queue if there's work.
		select {
		case cmd := <-d.cmds:
			if cmd.kind == cmdShutdown {
				cmd.done <- nil
				return
			}
		case <-ctx.Done():
			return
		default:
		}

		entry, ok := d.queue.Pop()
		if !ok {
			select {
			case cmd := <-d.cmds:
				if cmd.kind == cmdShutdown {
					cmd.done <- nil
					return
				}
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		d.metrics.QueueDepth.Set(float64(d.queue.Len()))
		d.uploadWithRetry(ctx, entry)
	}
}

// uploadWithRetry drives one segment's full upload, retrying transient
// failures with exponential backoff up to retryBudget attempts before
// giving up and recording the segment as dead-lettered. A fatal error
// short-circuits straight to dead-lettering (spec §7: ErrUploadFatal is
// not retryable).
func (d *Daemon) uploadWithRetry(ctx context.Context, entry Entry) {
	d.setSyncing(true)
	defer d.setSyncing(false)

	sha, err := segmentSHA256(entry.Segment)
	if err != nil {
		level.Error(d.logger).Log("msg", "cannot checksum segment, dropping", "segment", entry.Segment, "err", err)
		return
	}
	state := &types.UploadState{SegmentPath: entry.Segment, SegmentSHA256: sha, EnqueueTimestamp: time.Now().Unix()}

	backoff := time.Second
	for attempt := 0; ; attempt++ {
		err := d.uploader.UploadSegment(ctx, entry.Segment, state)
		if err == nil {
			d.recordSuccess()
			return
		}
		if ctx.Err() != nil {
			return
		}

		var transient *types.UploadTransientError
		if !errors.As(err, &transient) {
			// Fatal: not retryable.
			d.dropSegment(entry.Segment, err)
			return
		}

		state.Errors++
		d.metrics.ChunkRetries.Inc()
		d.status.Lock()
		d.ss.UploadErrors++
		d.status.Unlock()
		if attempt+1 >= d.retryBudget {
			d.dropSegment(entry.Segment, err)
			return
		}

		level.Warn(d.logger).Log("msg", "transient upload failure, retrying", "segment", entry.Segment, "attempt", attempt+1, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}
}

func (d *Daemon) dropSegment(segmentPath string, cause error) {
	d.metrics.SegmentsDropped.Inc()
	level.Error(d.logger).Log("msg", "segment upload failed permanently or exhausted retry budget, dead-lettering", "segment", segmentPath, "err", cause)
	if d.deadLetter != nil {
		if err := d.deadLetter.Record(segmentPath, cause); err != nil {
			level.Error(d.logger).Log("msg", "failed to record dead letter", "segment", segmentPath, "err", err)
		}
	}
}

func (d *Daemon) recordSuccess() {
	d.metrics.SegmentsSynced.Inc()
	d.status.Lock()
	d.ss.TotalSegmentsSynced++
	now := time.Now()
	d.ss.LastSyncTime = &now
	d.status.Unlock()
}

func (d *Daemon) setSyncing(v bool) {
	d.status.Lock()
	d.ss.IsSyncing = v
	d.status.Unlock()
}

func segmentSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
