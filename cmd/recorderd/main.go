// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Command recorderd runs the crash-safe local recorder as a long-lived
// daemon: it locks and opens the log store, re-queues segments sealed in
// an earlier run, serves metrics, and drives the upload pipeline against
// the configured remote object store. It has no ingest surface of its
// own; records are appended through the wal package's API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wal "github.com/edgewal/recorder"
	"github.com/edgewal/recorder/config"
	"github.com/edgewal/recorder/upload"
)

var version = "dev"

const syncShutdownGrace = 30 * time.Second

func main() {
	os.Exit(run0())
}

func run0() int {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		level.Error(logger).Log("msg", "fatal error", "err", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger log.Logger) error {
	// Load .env file if present; non-fatal, mirrors the teacher pack's
	// own best-effort .env loading in cmd/akashi/main.go.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	allow := level.AllowInfo()
	switch cfg.LogLevel {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	}
	logger = level.NewFilter(logger, allow)
	logger = log.With(logger, "log_level", cfg.LogLevel)
	level.Info(logger).Log("msg", "recorderd starting", "version", version, "storage_path", cfg.StoragePath)

	reg := prometheus.NewRegistry()
	walMetrics := wal.NewMetrics(reg)
	uploadMetrics := upload.NewMetrics(reg)

	lock, err := wal.LockRoot(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("acquiring root lock: %w", err)
	}
	defer lock.Unlock()

	queue := upload.NewQueue(upload.WithMaxDepth(cfg.MaxQueueDepth))

	store, err := wal.Open(cfg.StoragePath,
		wal.WithMaxSegmentSize(cfg.WALSegmentSize),
		wal.WithLogger(log.With(logger, "component", "wal")),
		wal.WithMetrics(walMetrics),
		wal.WithRotateHook(func(_ uint64, path string) { queue.Push(path) }),
	)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	var remote upload.RemoteUploader
	if cfg.SyncEndpoint != "" {
		remote = upload.NewHTTPUploader(cfg.SyncEndpoint, cfg.SyncBucket)
	}

	if remote != nil {
		uploader := upload.NewUploader(remote, upload.Config{
			ChunkSize:     cfg.SyncChunkSize,
			Compress:      cfg.Compress,
			EncryptionKey: cfg.EncryptionKey,
		}, log.With(logger, "component", "uploader"), uploadMetrics)

		deadLetterPath := cfg.StoragePath + "/.deadletters.bbolt"
		deadLetter, err := upload.OpenBoltDeadLetterStore(deadLetterPath)
		if err != nil {
			return fmt.Errorf("opening dead letter store: %w", err)
		}
		defer deadLetter.Close()

		daemon := upload.NewDaemon(queue, uploader,
			upload.WithRetryBudget(cfg.SyncMaxRetries),
			upload.WithDeadLetterStore(deadLetter),
			upload.WithDaemonLogger(log.With(logger, "component", "sync")),
			upload.WithDaemonMetrics(uploadMetrics),
		)
		daemon.Run(ctx)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), syncShutdownGrace)
			defer cancel()
			_ = daemon.Shutdown(shutdownCtx)
		}()
	} else {
		level.Warn(logger).Log("msg", "no sync endpoint configured, segments will only accumulate locally")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "metrics server error", "err", err)
		}
	}()
	defer srv.Close()

	queueInjectFromExisting(store, queue, logger)

	<-ctx.Done()
	level.Info(logger).Log("msg", "recorderd shutting down")
	return nil
}

// queueInjectFromExisting enqueues any already-rotated segment that
// isn't the current write target, covering segments that were sealed in
// a prior process lifetime but never finished uploading (spec §4.G
// recovery: the upload pipeline must pick these back up, not just newly
// rotated ones).
func queueInjectFromExisting(store *wal.Store, queue *upload.Queue, logger log.Logger) {
	segments, err := store.ListSegments()
	if err != nil {
		level.Warn(logger).Log("msg", "could not list existing segments for recovery", "err", err)
		return
	}
	// The last segment in numeric order is the active write target;
	// everything before it is sealed and eligible for upload.
	for i := 0; i < len(segments)-1; i++ {
		queue.Push(segments[i])
	}
}
