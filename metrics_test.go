// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"testing"
	"time"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/stretchr/testify/require"
)

func TestMetricsFormat(t *testing.T) {
	var m Metrics
	m.Archive.Records = 1
	m.Archive.Keys = 2
	m.Archive.Appended = 3
	m.Archive.Dropped = 4
	m.Archive.Generation = 5
	m.Builder.Strategy = builder.StrategyNaive
	m.Builder.Hits = 6
	m.Builder.Misses = 7
	m.Builder.Fallbacks = 8
	m.Builder.SlotIndexes = 9
	m.Eval.Count = 10
	m.Eval.Errors = 11
	m.Eval.InvTasks = 12
	m.Eval.Duration = 2 * time.Second

	s := m.String()
	for _, want := range []string{
		"archive: 1 records, 2 keys, 3 appended, 4 dropped, generation 5\n",
		"builder: naive, 6 hits, 7 misses, 8 fallbacks, 9 slot indexes\n",
		"eval: 10 evaluations, 11 errors, 12 inv tasks, 2s\n",
	} {
		require.Contains(t, s, want)
	}
	require.Contains(t, string(redact.Sprint(&m).Redact()), "builder: naive,")
}

func TestMetricsHistogram(t *testing.T) {
	a := tracetest.MustLoad("0 assign field=x value=1\n")
	m := newEngineMetrics(a, builder.NewDiff(a, builder.DiffOptions{}))
	m.evalLatency.Observe(float64(time.Millisecond))
	m.evalLatency.Observe(float64(2 * time.Millisecond))
	require.Equal(t, 3*time.Millisecond, histogramSum(m.evalLatency))

	m.invTasks.Add(4)
	m.invTasks.Inc()
	require.Equal(t, uint64(5), counterValue(m.invTasks))

	// The archive counters are read when collected.
	require.Equal(t, uint64(1), counterValue(m.appended))
	a.PauseRecord()
	require.NoError(t, tracetest.Load(a, "1 assign field=x value=2\n"))
	require.Equal(t, uint64(1), counterValue(m.appended))
	require.Equal(t, uint64(1), counterValue(m.dropped))
}
