// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds metrics for various subsystems of the engine.
type Metrics struct {
	Archive struct {
		// The number of records held.
		Records int
		// The number of distinct keys.
		Keys int
		// The number of records appended, and the number of appends dropped
		// while recording was paused, since the engine was created.
		Appended uint64
		Dropped  uint64
		// The number of resets.
		Generation uint64
	}

	Builder struct {
		Strategy builder.Strategy
		// The cache counters of the diff builder. They stay zero with the
		// naive strategy.
		builder.Stats
	}

	Eval struct {
		// The number of evaluations, and the number that returned an error.
		Count  uint64
		Errors uint64
		// The number of Inv intervals dispatched to workers.
		InvTasks uint64
		// The total time spent evaluating.
		Duration time.Duration
	}
}

func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("archive: %s records, %s keys, %s appended, %s dropped, generation %d\n",
		crhumanize.Count(uint64(m.Archive.Records), crhumanize.Compact),
		crhumanize.Count(uint64(m.Archive.Keys), crhumanize.Compact),
		crhumanize.Count(m.Archive.Appended, crhumanize.Compact),
		crhumanize.Count(m.Archive.Dropped, crhumanize.Compact),
		redact.Safe(m.Archive.Generation))
	w.Printf("builder: %s, %s hits, %s misses, %s fallbacks, %d slot indexes\n",
		redact.SafeString(m.Builder.Strategy.String()),
		crhumanize.Count(m.Builder.Hits, crhumanize.Compact),
		crhumanize.Count(m.Builder.Misses, crhumanize.Compact),
		crhumanize.Count(m.Builder.Fallbacks, crhumanize.Compact),
		redact.Safe(m.Builder.SlotIndexes))
	w.Printf("eval: %s evaluations, %s errors, %s inv tasks, %s\n",
		crhumanize.Count(m.Eval.Count, crhumanize.Compact),
		crhumanize.Count(m.Eval.Errors, crhumanize.Compact),
		crhumanize.Count(m.Eval.InvTasks, crhumanize.Compact),
		redact.Safe(m.Eval.Duration))
}

// engineMetrics holds the prometheus collectors of an engine. The archive and
// builder cache counters are read from their sources when collected.
type engineMetrics struct {
	appended         prometheus.CounterFunc
	dropped          prometheus.CounterFunc
	builderHits      prometheus.CounterFunc
	builderMisses    prometheus.CounterFunc
	evals            prometheus.Counter
	evalErrors       prometheus.Counter
	invTasks         prometheus.Counter
	builderFallbacks prometheus.Counter
	// evalLatency is in nanoseconds.
	evalLatency prometheus.Histogram
}

func newEngineMetrics(a *archive.Archive, d *builder.Diff) *engineMetrics {
	return &engineMetrics{
		appended: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracequery_records_appended_total",
			Help: "Number of records appended to the archive.",
		}, func() float64 { return float64(a.Stats().Appended) }),
		dropped: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracequery_records_dropped_total",
			Help: "Number of appends dropped while recording was paused.",
		}, func() float64 { return float64(a.Stats().Dropped) }),
		builderHits: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracequery_builder_hits_total",
			Help: "Number of container states extended from the diff builder cache.",
		}, func() float64 { return float64(d.Stats().Hits) }),
		builderMisses: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracequery_builder_misses_total",
			Help: "Number of container states replayed with nothing cached.",
		}, func() float64 { return float64(d.Stats().Misses) }),
		evals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracequery_evals_total",
			Help: "Number of operator evaluations.",
		}),
		evalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracequery_eval_errors_total",
			Help: "Number of operator evaluations that returned an error.",
		}),
		invTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracequery_inv_tasks_total",
			Help: "Number of Inv intervals dispatched to workers.",
		}),
		builderFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracequery_builder_fallbacks_total",
			Help: "Number of full container replays by the diff builder.",
		}),
		evalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracequery_eval_latency_nanos",
			Help:    "Latency of operator evaluations.",
			Buckets: prometheus.ExponentialBuckets(1e3, 10, 8),
		}),
	}
}

func (m *engineMetrics) register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.appended, m.dropped, m.builderHits, m.builderMisses,
		m.evals, m.evalErrors, m.invTasks, m.builderFallbacks, m.evalLatency,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func counterValue(c prometheus.Metric) uint64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return uint64(metric.GetCounter().GetValue())
}

func histogramSum(h prometheus.Histogram) time.Duration {
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		return 0
	}
	return time.Duration(metric.GetHistogram().GetSampleSum())
}
