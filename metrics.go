// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Store's Prometheus instrumentation, mirroring the
// teacher's walMetrics pattern (one promauto-constructed collector per
// struct field, all under a shared namespace) but covering this spec's
// operations instead of raft-wal's.
type Metrics struct {
	AppendsTotal     prometheus.Counter
	BytesWritten     prometheus.Counter
	SegmentRotations prometheus.Counter
	RecordTooLarge   prometheus.Counter
	ReplayErrors     prometheus.Counter
	CheckpointWrites prometheus.Counter
}

// NewMetrics registers the Store's collectors against reg. A nil reg
// creates the collectors without registering them anywhere, as
// promauto.With(nil) does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AppendsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "appends_total",
			Help:      "Total records successfully appended to the log.",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "bytes_written_total",
			Help:      "Total encoded frame bytes written to segment files.",
		}),
		SegmentRotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "segment_rotations_total",
			Help:      "Total segment rotations performed.",
		}),
		RecordTooLarge: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "record_too_large_total",
			Help:      "Total appends rejected for exceeding the segment size bound.",
		}),
		ReplayErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "replay_errors_total",
			Help:      "Total replay operations that returned a non-nil error.",
		}),
		CheckpointWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recorder",
			Subsystem: "wal",
			Name:      "checkpoint_writes_total",
			Help:      "Total checkpoint files written.",
		}),
	}
}
