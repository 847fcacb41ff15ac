// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Command bench drives sustained-rate append load against a wal.Store
// and reports latency percentiles, the same purpose the teacher's
// bench/bench_test.go served for raft-wal's StoreLogs path but rebuilt
// around github.com/benmathews/bench's request-rate harness instead of
// a raw testing.B loop, since this benchmark cares about latency
// distribution under a fixed rate rather than raw throughput.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/benmathews/bench"
	hdrwriter "github.com/benmathews/hdrhistogram-writer"

	"github.com/edgewal/recorder/types"
	wal "github.com/edgewal/recorder"
)

func main() {
	var (
		dir         = flag.String("dir", "", "storage root (default: a temp dir)")
		requestRate = flag.Uint64("rate", 1000, "appends per second to sustain")
		count       = flag.Uint64("count", 100_000, "total appends to issue")
		payloadSize = flag.Int("payload-size", 256, "payload size in bytes")
		outFile     = flag.String("out", "append-latency.hgrm", "HDR histogram distribution output file")
	)
	flag.Parse()

	root := *dir
	if root == "" {
		tmp, err := os.MkdirTemp("", "recorder-bench-*")
		if err != nil {
			log.Fatalf("creating temp dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		root = tmp
	}

	store, err := wal.Open(root)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	factory := &appendRequesterFactory{store: store, payloadSize: *payloadSize}
	hist := bench.Benchmark(factory, *requestRate, *count, time.Second)

	fmt.Printf("appends=%d rate=%d/s p50=%dus p95=%dus p99=%dus p999=%dus max=%dus\n",
		*count, *requestRate,
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(95),
		hist.ValueAtQuantile(99), hist.ValueAtQuantile(99.9),
		hist.Max())

	if err := hdrwriter.WriteDistributionFile(hist, []float64{50, 75, 90, 95, 99, 99.9, 99.99}, 1.0, *outFile); err != nil {
		log.Fatalf("writing histogram distribution: %v", err)
	}
}

type appendRequesterFactory struct {
	store       *wal.Store
	payloadSize int
}

func (f *appendRequesterFactory) GetRequester(number uint64) bench.Requester {
	return &appendRequester{
		store:   f.store,
		payload: make([]byte, f.payloadSize),
	}
}

type appendRequester struct {
	store   *wal.Store
	payload []byte
	n       int64
}

func (r *appendRequester) Setup() error { return nil }

func (r *appendRequester) Request() error {
	r.n++
	return r.store.AppendRecord("bench.topic", "bench-ns", r.payload, types.TimestampFromUnixMilli(time.Now().UnixMilli()))
}

func (r *appendRequester) Teardown() error { return nil }
