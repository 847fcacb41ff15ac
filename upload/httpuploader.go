// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edgewal/recorder/types"
)

// HTTPUploader is a reference RemoteUploader over plain net/http: no
// third-party HTTP client library appears anywhere in the retrieved
// pack, so this one boundary is built on the standard library's client
// directly (see DESIGN.md).
type HTTPUploader struct {
	Endpoint string
	Bucket   string
	Client   *http.Client
}

// NewHTTPUploader constructs an HTTPUploader with a bounded-timeout
// client suitable for edge-network conditions.
func NewHTTPUploader(endpoint, bucket string) *HTTPUploader {
	return &HTTPUploader{
		Endpoint: endpoint,
		Bucket:   bucket,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type chunkUploadResponse struct {
	RemoteUploadID string `json:"remote_upload_id"`
}

// UploadChunk PUTs one chunk to {endpoint}/{bucket}/{segmentSHA256}/{chunkIndex}.
// A non-2xx, non-retryable status is reported as types.ErrUploadFatal;
// connection failures and 5xx/429 responses are reported wrapped in
// types.UploadTransientError so the daemon's backoff loop retries them
// (spec §4.F, §7).
func (h *HTTPUploader) UploadChunk(ctx context.Context, segmentSHA256 string, chunkIndex int, data []byte, chunkSHA256 string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/%d", h.Endpoint, h.Bucket, segmentSHA256, chunkIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUploadFatal, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Chunk-SHA256", chunkSHA256)

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", &types.UploadTransientError{Cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out chunkUploadResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("%w: decoding response: %v", types.ErrUploadFatal, err)
		}
		return out.RemoteUploadID, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return "", &types.UploadTransientError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	default:
		return "", fmt.Errorf("%w: status %d: %s", types.ErrUploadFatal, resp.StatusCode, body)
	}
}
