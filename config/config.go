// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package config loads the recorder's configuration from environment
// variables, in the style of ashita-ai-akashi/internal/config: collect
// every parse error instead of stopping at the first one, apply
// defaults for anything unset, and validate afterward.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the recorder's full configuration surface (spec §6).
type Config struct {
	StoragePath     string
	WALSegmentSize  uint64
	SyncEndpoint    string
	SyncBucket      string
	SyncChunkSize   int
	SyncMaxRetries  int
	MaxQueueDepth   uint64
	Compress        bool
	EncryptionKey   []byte // decoded from base64; nil disables encryption
	LogLevel        string
	MetricsAddr     string
}

// Load reads configuration from the environment (after attempting to
// apply a .env file via github.com/joho/godotenv in the caller, the same
// non-fatal, best-effort pattern cmd/akashi/main.go uses) with sensible
// defaults; malformed values, and settings that Validate finds
// inconsistent, are rejected.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		StoragePath:  envStr("RECORDER_STORAGE_PATH", "./data"),
		SyncEndpoint: envStr("RECORDER_SYNC_ENDPOINT", ""),
		SyncBucket:   envStr("RECORDER_SYNC_BUCKET", ""),
		LogLevel:     envStr("RECORDER_LOG_LEVEL", "info"),
		MetricsAddr:  envStr("RECORDER_METRICS_ADDR", ":9090"),
	}

	cfg.WALSegmentSize, errs = collectUint64(errs, "RECORDER_WAL_SEGMENT_SIZE", 16<<20)
	cfg.SyncChunkSize, errs = collectInt(errs, "RECORDER_SYNC_CHUNK_SIZE", 4<<20)
	cfg.SyncMaxRetries, errs = collectInt(errs, "RECORDER_SYNC_MAX_RETRIES", 7)
	cfg.MaxQueueDepth, errs = collectUint64(errs, "RECORDER_SYNC_MAX_QUEUE_DEPTH", 10_000)
	cfg.Compress, errs = collectBool(errs, "RECORDER_SYNC_COMPRESS", false)

	if raw := os.Getenv("RECORDER_SYNC_ENCRYPTION_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECORDER_SYNC_ENCRYPTION_KEY is not valid base64: %w", err))
		} else {
			cfg.EncryptionKey = key
		}
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return Config{}, fmt.Errorf("config: invalid environment variables:\n  %s", strings.Join(msgs, "\n  "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration is internally consistent.
func (c Config) Validate() error {
	var errs []error

	if c.StoragePath == "" {
		errs = append(errs, errors.New("config: RECORDER_STORAGE_PATH is required"))
	}
	if c.WALSegmentSize == 0 {
		errs = append(errs, errors.New("config: RECORDER_WAL_SEGMENT_SIZE must be positive"))
	}
	if c.SyncChunkSize <= 0 {
		errs = append(errs, errors.New("config: RECORDER_SYNC_CHUNK_SIZE must be positive"))
	}
	if c.SyncMaxRetries <= 0 {
		errs = append(errs, errors.New("config: RECORDER_SYNC_MAX_RETRIES must be positive"))
	}
	if c.EncryptionKey != nil && len(c.EncryptionKey) != 32 {
		errs = append(errs, fmt.Errorf("config: RECORDER_SYNC_ENCRYPTION_KEY must decode to 32 bytes for AES-256, got %d", len(c.EncryptionKey)))
	}
	if c.SyncEndpoint != "" && c.SyncBucket == "" {
		errs = append(errs, errors.New("config: RECORDER_SYNC_BUCKET is required when RECORDER_SYNC_ENDPOINT is set"))
	}

	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func collectInt(errs []error, key string, fallback int) (int, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s=%q is not a valid integer", key, v))
	}
	return n, errs
}

func collectUint64(errs []error, key string, fallback uint64) (uint64, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s=%q is not a valid unsigned integer", key, v))
	}
	return n, errs
}

func collectBool(errs []error, key string, fallback bool) (bool, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, append(errs, fmt.Errorf("%s=%q is not a valid boolean", key, v))
	}
	return b, errs
}
