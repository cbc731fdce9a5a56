// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tracequery implements a trace-query engine. It ingests the
// time-ordered log of mutations emitted while a monitored program runs and
// answers two kinds of questions: what the complete value of an entity was at
// a logical time, reconstructed from the recorded diffs, and at which times a
// temporal condition over the recorded history holds.
//
// An Engine owns the record archive, the object builders and the named
// bindings used by operator evaluation. Records are appended with
// Engine.Append while the monitored program runs; queries are answered once
// the trace is complete, with Engine.Build and Engine.Eval.
package tracequery

import (
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/eval"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Time exports the base.Time type.
type Time = base.Time

// Engine is the explicit context of a trace-query session. Appends must not
// run concurrently with queries; once the trace is complete any number of
// goroutines may call Build and Eval concurrently. Bindings must be
// established before the evaluations that use them.
type Engine struct {
	opts    *Options
	archive *archive.Archive
	naive   *builder.Naive
	diff    *builder.Diff
	// builder is naive or diff, per Options.Builder.
	builder builder.Builder
	ctx     *eval.Context
	metrics *engineMetrics
}

// New returns an Engine with an empty archive. It returns an error if the
// engine's collectors cannot be registered with Options.MetricsRegisterer.
func New(opts *Options) (*Engine, error) {
	opts = opts.Clone().EnsureDefaults()
	e := &Engine{
		opts:    opts,
		archive: archive.New(),
	}
	e.naive = builder.NewNaive(e.archive)
	e.diff = builder.NewDiff(e.archive, builder.DiffOptions{
		OnFallback: func(info builder.FallbackInfo) {
			e.metrics.builderFallbacks.Inc()
			e.opts.EventListener.BuilderFallback(info)
		},
	})
	e.metrics = newEngineMetrics(e.archive, e.diff)
	if opts.MetricsRegisterer != nil {
		if err := e.metrics.register(opts.MetricsRegisterer); err != nil {
			return nil, errors.Wrap(err, "tracequery: registering metrics")
		}
	}
	switch opts.Builder {
	case builder.StrategyNaive:
		e.builder = e.naive
	default:
		e.builder = e.diff
	}
	e.resetContext()
	return e, nil
}

func (e *Engine) resetContext() {
	e.ctx = eval.NewContext(e.archive, e.builder)
	e.ctx.Parallelism = e.opts.InvParallelism
	e.ctx.Logger = e.opts.Logger
	e.ctx.InvDispatched = func(info eval.InvInfo) {
		e.metrics.invTasks.Add(float64(info.Tasks))
		e.opts.EventListener.InvDispatched(info)
	}
}

// Reset clears the archive, the builder caches and every binding. It is used
// between independent runs of the monitored program.
func (e *Engine) Reset() {
	e.archive.Reset()
	e.diff.Reset()
	e.resetContext()
}

// Archive returns the engine's archive.
func (e *Engine) Archive() *archive.Archive {
	return e.archive
}

// Append records that key took value v at time t. See archive.Archive.Append.
func (e *Engine) Append(key archive.Key, t Time, v archive.RecordValue) error {
	return e.archive.Append(key, t, v)
}

// PauseRecord stops recording until ResumeRecord. Appends made while paused
// are dropped.
func (e *Engine) PauseRecord() {
	e.archive.PauseRecord()
}

// ResumeRecord resumes recording.
func (e *Engine) ResumeRecord() {
	e.archive.ResumeRecord()
}

// Build returns the value of item at time t, reconstructed with the
// configured strategy.
func (e *Engine) Build(item builder.Item, t Time) value.Value {
	return e.builder.Build(item, t)
}

// BindResult binds a result to name, for use by eval.Ref.
func (e *Engine) BindResult(name string, r *eval.Result) {
	e.ctx.BindResult(name, r)
}

// BindQuery binds an operator to name, for use by eval.QueryRef.
func (e *Engine) BindQuery(name string, op eval.Operator) {
	e.ctx.BindQuery(name, op)
}

// Define binds a parameterized operator to name, for use by eval.OpRef.
func (e *Engine) Define(name string, params []string, body eval.Operator) {
	e.ctx.Define(name, params, body)
}

// Eval evaluates op over [start, end], clamped to the archive. An inverted
// range, like any malformed operator tree, is a configuration error.
func (e *Engine) Eval(op eval.Operator, start, end Time) (*eval.Result, error) {
	if start > end {
		return nil, base.ConfigErrorf("tracequery: inverted range [%d, %d]", start, end)
	}
	startTime := crtime.NowMono()
	r, err := eval.Restrict(op, start, end).Eval(e.ctx)
	duration := startTime.Elapsed()

	e.metrics.evals.Inc()
	e.metrics.evalLatency.Observe(float64(duration.Nanoseconds()))
	info := EvalInfo{Op: op.String(), Start: start, End: end, Duration: duration, Err: err}
	if err != nil {
		e.metrics.evalErrors.Inc()
	} else {
		for i := range r.Entries {
			if len(r.Entries[i].Pairs) > 0 {
				info.Entries++
			}
		}
	}
	e.opts.EventListener.EvalEnd(info)
	return r, err
}

// Metrics returns metrics about the engine.
func (e *Engine) Metrics() *Metrics {
	m := &Metrics{}
	stats := e.archive.Stats()
	m.Archive.Records = e.archive.Len()
	m.Archive.Keys = len(e.archive.Keys())
	m.Archive.Appended = stats.Appended
	m.Archive.Dropped = stats.Dropped
	m.Archive.Generation = e.archive.Generation()
	m.Builder.Strategy = e.opts.Builder
	if e.opts.Builder == builder.StrategyDiff {
		m.Builder.Stats = e.diff.Stats()
	}
	m.Eval.Count = counterValue(e.metrics.evals)
	m.Eval.Errors = counterValue(e.metrics.evalErrors)
	m.Eval.InvTasks = counterValue(e.metrics.invTasks)
	m.Eval.Duration = histogramSum(e.metrics.evalLatency)
	return m
}
