// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package config_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"RECORDER_STORAGE_PATH", "RECORDER_WAL_SEGMENT_SIZE", "RECORDER_SYNC_ENDPOINT",
		"RECORDER_SYNC_BUCKET", "RECORDER_SYNC_CHUNK_SIZE", "RECORDER_SYNC_MAX_RETRIES",
		"RECORDER_SYNC_MAX_QUEUE_DEPTH", "RECORDER_SYNC_COMPRESS", "RECORDER_SYNC_ENCRYPTION_KEY",
		"RECORDER_LOG_LEVEL", "RECORDER_METRICS_ADDR",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.StoragePath)
	require.Equal(t, uint64(16<<20), cfg.WALSegmentSize)
	require.Equal(t, 7, cfg.SyncMaxRetries)
	require.False(t, cfg.Compress)
	require.Nil(t, cfg.EncryptionKey)
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDER_SYNC_CHUNK_SIZE", "not-a-number")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadDecodesEncryptionKey(t *testing.T) {
	clearEnv(t)
	key := make([]byte, 32)
	t.Setenv("RECORDER_SYNC_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(key))
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Len(t, cfg.EncryptionKey, 32)
}

func TestLoadRejectsWrongLengthEncryptionKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDER_SYNC_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRequiresBucketWhenEndpointSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDER_SYNC_ENDPOINT", "https://example.com")
	_, err := config.Load()
	require.Error(t, err)
}
