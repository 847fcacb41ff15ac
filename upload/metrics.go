// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the upload pipeline's Prometheus instrumentation,
// mirroring the same promauto-per-field pattern as the root package's
// Metrics (spec §2.J).
type Metrics struct {
	QueueDepth      prometheus.Gauge
	SegmentsSynced  prometheus.Counter
	SegmentsDropped prometheus.Counter
	ChunkRetries    prometheus.Counter
	BytesUploaded   prometheus.Counter
}

// NewMetrics registers the upload pipeline's collectors against reg. A
// nil reg creates the collectors without registering them anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recorder",
			Subsystem: "upload",
			Name:      "queue_depth",
			Help:      "Current number of segments awaiting upload.",
		}),
		SegmentsSynced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "upload",
			Name:      "segments_synced_total",
			Help:      "Total segments successfully uploaded in full.",
		}),
		SegmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "upload",
			Name:      "segments_dropped_total",
			Help:      "Total segments dead-lettered after exhausting retries or a fatal error.",
		}),
		ChunkRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "upload",
			Name:      "chunk_retries_total",
			Help:      "Total transient chunk upload failures, including a final one that led to dead-lettering.",
		}),
		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "upload",
			Name:      "bytes_uploaded_total",
			Help:      "Total chunk bytes successfully transferred.",
		}),
	}
}
