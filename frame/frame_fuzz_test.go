// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package frame_test

import (
	"bytes"
	"testing"

	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/edgewal/recorder/frame"
	"github.com/edgewal/recorder/types"
)

// TestFuzzRoundTrip exercises Encode/DecodeOne against randomly generated
// topics, namespaces, timestamps and payloads, the same role gofuzz plays
// for the teacher's metadata decoding in the upstream raft-wal project.
func TestFuzzRoundTrip(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(0, 256)

	for i := 0; i < 200; i++ {
		var topic, ns string
		var payload []byte
		var tsLo uint64
		f.Fuzz(&topic)
		f.Fuzz(&ns)
		f.Fuzz(&payload)
		f.Fuzz(&tsLo)

		if len(topic) > 0xFFFF {
			topic = topic[:0xFFFF]
		}
		if len(ns) > 0xFFFF {
			ns = ns[:0xFFFF]
		}

		rec := types.Record{
			Topic:     topic,
			Namespace: ns,
			Timestamp: types.Timestamp{Lo: tsLo},
			Payload:   payload,
		}

		encoded, err := frame.Encode(rec)
		require.NoError(t, err)

		got, ok, err := frame.DecodeOne(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rec.Topic, got.Topic)
		require.Equal(t, rec.Namespace, got.Namespace)
		require.Equal(t, rec.Timestamp, got.Timestamp)
		require.True(t, bytes.Equal(rec.Payload, got.Payload))
	}
}
