// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/eval"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/cockroachdb/tracequery/value"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// bufferLogger is a Logger that accumulates messages in a buffer.
type bufferLogger struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *bufferLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(&l.buf, "info: "+format+"\n", args...)
}

func (l *bufferLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(&l.buf, "error: "+format+"\n", args...)
}

func (l *bufferLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *bufferLogger) drain() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.buf.String()
	l.buf.Reset()
	return s
}

// testEventListener records events without their durations, through the
// logger so that they interleave with the engine's own messages.
func testEventListener(l *bufferLogger) EventListener {
	record := func(format string, args ...interface{}) {
		l.mu.Lock()
		defer l.mu.Unlock()
		fmt.Fprintf(&l.buf, format+"\n", args...)
	}
	return EventListener{
		BuilderFallback: func(info BuilderFallbackInfo) { record("%s", info) },
		InvDispatched:   func(info InvInfo) { record("%s", info) },
		EvalEnd: func(info EvalInfo) {
			if info.Err != nil {
				record("eval %s over [%s, %s] error: %s", info.Op, info.Start, info.End, info.Err)
				return
			}
			record("eval %s over [%s, %s]: %d entries", info.Op, info.Start, info.End, info.Entries)
		},
	}
}

func appendTrace(e *Engine, input string) error {
	for line := range crstrings.LinesSeq(input) {
		switch line = strings.TrimSpace(line); line {
		case "":
		case "pause":
			e.PauseRecord()
		case "resume":
			e.ResumeRecord()
		default:
			key, t, v, err := tracetest.ParseRecord(line)
			if err != nil {
				return err
			}
			if err := e.Append(key, t, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatMetrics(m *Metrics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "archive: records=%d keys=%d appended=%d dropped=%d generation=%d\n",
		m.Archive.Records, m.Archive.Keys, m.Archive.Appended, m.Archive.Dropped, m.Archive.Generation)
	fmt.Fprintf(&sb, "builder: %s hits=%d misses=%d fallbacks=%d slot-indexes=%d\n",
		m.Builder.Strategy, m.Builder.Hits, m.Builder.Misses, m.Builder.Fallbacks, m.Builder.SlotIndexes)
	fmt.Fprintf(&sb, "eval: count=%d errors=%d inv-tasks=%d\n",
		m.Eval.Count, m.Eval.Errors, m.Eval.InvTasks)
	return sb.String()
}

func TestEngine(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var e *Engine
	var logger *bufferLogger
	datadriven.RunTest(t, "testdata/engine", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "new":
			opts := &Options{}
			if td.HasArg("builder") {
				var s string
				td.ScanArgs(t, "builder", &s)
				var err error
				if opts.Builder, err = builder.ParseStrategy(s); err != nil {
					return err.Error()
				}
			}
			td.MaybeScanArgs(t, "parallelism", &opts.InvParallelism)
			logger = &bufferLogger{}
			opts.Logger = logger
			opts.EventListener = testEventListener(logger)
			var err error
			if e, err = New(opts); err != nil {
				return err.Error()
			}
			return ""

		case "append":
			if err := appendTrace(e, td.Input); err != nil {
				return err.Error()
			}
			m := e.Metrics()
			return fmt.Sprintf("records=%d appended=%d dropped=%d",
				m.Archive.Records, m.Archive.Appended, m.Archive.Dropped)

		case "build":
			var sb strings.Builder
			for line := range crstrings.LinesSeq(td.Input) {
				fields := strings.Fields(line)
				if len(fields) != 2 {
					td.Fatalf(t, "expected <item> <time>: %q", line)
				}
				item, err := builder.ParseItem(fields[0])
				require.NoError(t, err)
				ti, err := strconv.ParseInt(fields[1], 10, 64)
				require.NoError(t, err)
				fmt.Fprintf(&sb, "%s@%d: %s\n", item, ti, e.Build(item, base.Time(ti)))
			}
			return sb.String()

		case "eval":
			start, end := base.TimeZero, base.TimeMax
			var s, en int64
			if td.MaybeScanArgs(t, "start", &s) {
				start = base.Time(s)
			}
			if td.MaybeScanArgs(t, "end", &en) {
				end = base.Time(en)
			}
			op, err := eval.Parse(strings.TrimSpace(td.Input))
			if err != nil {
				return fmt.Sprintf("error: %s", err)
			}
			r, err := e.Eval(op, start, end)
			if err != nil {
				require.True(t, base.IsConfigError(err))
				return fmt.Sprintf("error: %s", err)
			}
			if r.Empty() {
				return "<empty>"
			}
			return r.String()

		case "bind-query":
			var name string
			td.ScanArgs(t, "name", &name)
			op, err := eval.Parse(strings.TrimSpace(td.Input))
			require.NoError(t, err)
			e.BindQuery(name, op)
			return ""

		case "define":
			var name, params string
			td.ScanArgs(t, "name", &name)
			td.ScanArgs(t, "params", &params)
			body, err := eval.Parse(strings.TrimSpace(td.Input))
			require.NoError(t, err)
			e.Define(name, strings.Split(params, ","), body)
			return ""

		case "events":
			return logger.drain()

		case "metrics":
			return formatMetrics(e.Metrics())

		case "reset":
			e.Reset()
			return fmt.Sprintf("generation=%d", e.Archive().Generation())

		default:
			td.Fatalf(t, "unknown command: %s", td.Cmd)
			return ""
		}
	})
}

func TestEngineBindResult(t *testing.T) {
	e, err := New(&Options{Logger: base.NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, tracetest.Load(e.Archive(), `
0 assign field=a value=1
1 assign field=a value=2
2 assign field=a value=3
`))
	r, err := e.Eval(eval.Raw(builder.Item{Name: "a"}), base.TimeZero, base.TimeMax)
	require.NoError(t, err)
	e.BindResult("a", r)

	op, err := eval.Parse(`(Eq (Ref "a") 2)`)
	require.NoError(t, err)
	got, err := e.Eval(op, base.TimeZero, base.TimeMax)
	require.NoError(t, err)
	require.False(t, got.Truth(0))
	require.True(t, got.Truth(1))
	require.False(t, got.Truth(2))
}

func TestEngineAppendErrors(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)
	key := archive.Key{Kind: archive.KindAssign, Field: "x"}
	require.NoError(t, e.Append(key, 3, archive.RecordValue{Value: value.Int(1)}))
	err = e.Append(key, 2, archive.RecordValue{Value: value.Int(2)})
	require.True(t, errors.HasAssertionFailure(err))
	require.Equal(t, 1, e.Archive().Len())
}

func TestEngineStrategiesAgree(t *testing.T) {
	const trace = `
0 assign field=l value=ref:1 type=list
0 assign field=d value=ref:2 type=dict
1 builtin container=1 op=append value=ref:2 type=dict
2 dict-item container=2 field=k value=1
3 builtin container=1 op=append value=2
4 dict-item container=2 field=k value=2
5 builtin container=1 op=pop
`
	var engines []*Engine
	for _, s := range []builder.Strategy{builder.StrategyNaive, builder.StrategyDiff} {
		e, err := New(&Options{Builder: s})
		require.NoError(t, err)
		require.NoError(t, tracetest.Load(e.Archive(), trace))
		engines = append(engines, e)
	}
	// Visit times out of order to exercise the diff builder's fallbacks.
	for _, ti := range []base.Time{5, 2, 3, 0, 4, 1, 5} {
		for _, name := range []string{"l", "d"} {
			item := builder.Item{Name: name}
			want := engines[0].Build(item, ti)
			got := engines[1].Build(item, ti)
			require.True(t, want.Equal(got), "%s@%d: naive %s, diff %s", name, ti, want, got)
		}
	}
	require.NotZero(t, engines[1].Metrics().Builder.Fallbacks)
}

func TestEngineMetricsRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(&Options{MetricsRegisterer: reg, Logger: base.NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, tracetest.Load(e.Archive(), "0 assign field=p value=true\n1 assign field=p value=false\n"))
	e.PauseRecord()
	require.NoError(t, e.Append(archive.Key{Field: "p", Kind: archive.KindAssign}, 2, archive.RecordValue{}))
	e.ResumeRecord()

	for i := 0; i < 3; i++ {
		_, err := e.Eval(eval.Raw(builder.Item{Name: "p"}), base.TimeZero, base.TimeMax)
		require.NoError(t, err)
	}
	families, err := reg.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}
	require.Equal(t, 3.0, byName["tracequery_evals_total"].GetMetric()[0].GetCounter().GetValue())
	require.Equal(t, uint64(3),
		byName["tracequery_eval_latency_nanos"].GetMetric()[0].GetHistogram().GetSampleCount())
	require.Equal(t, uint64(3), e.Metrics().Eval.Count)
	require.Equal(t, 2.0, byName["tracequery_records_appended_total"].GetMetric()[0].GetCounter().GetValue())
	require.Equal(t, 1.0, byName["tracequery_records_dropped_total"].GetMetric()[0].GetCounter().GetValue())
	require.Contains(t, byName, "tracequery_builder_hits_total")
	require.Contains(t, byName, "tracequery_builder_misses_total")

	// A second engine cannot register the same collectors.
	_, err = New(&Options{MetricsRegisterer: reg})
	require.Error(t, err)
}

func TestEngineConcurrentEval(t *testing.T) {
	defer leaktest.AfterTest(t)()

	e, err := New(&Options{InvParallelism: 4, Logger: base.NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, tracetest.Load(e.Archive(), `
0 assign field=s value=false
0 assign field=c value=true
1 assign field=s value=true
2 assign field=s value=false
3 assign field=s value=true
4 assign field=c value=false
5 assign field=s value=false
6 assign field=s value=true
7 assign field=c value=true
8 assign field=s value=false
9 assign field=s value=true
`))
	op, err := eval.Parse(`(Inv (Raw "s") (Raw "c"))`)
	require.NoError(t, err)
	want, err := e.Eval(op, base.TimeZero, base.TimeMax)
	require.NoError(t, err)

	var wg sync.WaitGroup
	fingerprints := make([]uint64, 8)
	for i := range fingerprints {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Eval(op, base.TimeZero, base.TimeMax)
			if err != nil {
				panic(err)
			}
			fingerprints[i] = r.Fingerprint()
		}(i)
	}
	wg.Wait()
	for _, fp := range fingerprints {
		require.Equal(t, want.Fingerprint(), fp)
	}
	require.Equal(t, uint64(9), e.Metrics().Eval.Count)
}
