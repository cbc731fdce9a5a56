// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracetest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/tracequery/archive"
	"github.com/stretchr/testify/require"
)

func TestRandomArchive(t *testing.T) {
	cfg := DefaultRandomConfig
	for seed := int64(0); seed < 10; seed++ {
		ch := make(chan *archive.Archive, 1)
		go func() {
			ch <- RandomArchive(rand.New(rand.NewSource(seed)), cfg)
		}()
		var a *archive.Archive
		select {
		case a = <-ch:
		case <-time.After(10 * time.Second):
			t.Fatalf("seed %d: RandomArchive did not return", seed)
		}
		require.GreaterOrEqual(t, a.Len(), cfg.Records)
		for i := 1; i < a.Len(); i++ {
			require.LessOrEqual(t, a.At(i-1).Time, a.At(i).Time)
		}
	}
}
