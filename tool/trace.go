// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/spf13/cobra"
)

// maxHistoryLen bounds the history lengths recorded by the stats command.
// Longer histories are clamped.
const maxHistoryLen = 1 << 20

// traceT implements the archive-level tools.
type traceT struct {
	Dump   *cobra.Command
	Filter *cobra.Command
	Stats  *cobra.Command

	open    openFunc
	verbose bool
}

func newTrace(open openFunc) *traceT {
	t := &traceT{open: open}

	t.Dump = &cobra.Command{
		Use:   "dump <trace>",
		Short: "print the archive of a trace",
		Long: `
Print every record of the trace, one row per record in append order.
`,
		Args: cobra.ExactArgs(1),
		Run:  t.runDump,
	}
	t.Filter = &cobra.Command{
		Use:   "filter <trace> <filter>",
		Short: "print the records matching a filter",
		Long: `
Print the records of the trace for which the filter holds, in the trace
notation. Filters are written in the debug notation, for example

  (And (FieldEq "x") (TimeAtMost 3))
`,
		Args: cobra.ExactArgs(2),
		Run:  t.runFilter,
	}
	t.Stats = &cobra.Command{
		Use:   "stats <trace>",
		Short: "print trace statistics",
		Long: `
Print the number of records per kind and the distribution of history
lengths across keys.
`,
		Args: cobra.ExactArgs(1),
		Run:  t.runStats,
	}
	t.Stats.Flags().BoolVarP(&t.verbose, "verbose", "v", false, "print the longest histories")
	return t
}

func (t *traceT) runDump(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	e, err := t.open(args[0], nil)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	e.Archive().WriteTable(stdout)
}

func (t *traceT) runFilter(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	f, err := archive.ParseFilter(args[1])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	e, err := t.open(args[0], nil)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	records := e.Archive().FlattenAndFilter(f)
	if len(records) == 0 {
		fmt.Fprintf(stdout, "no records\n")
		return
	}
	fmt.Fprint(stdout, tracetest.FormatRecords(records))
}

func (t *traceT) runStats(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	e, err := t.open(args[0], nil)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	a := e.Archive()
	lastTime, _ := a.LastTime()
	fmt.Fprintf(stdout, "records: %d\n", a.Len())
	fmt.Fprintf(stdout, "keys: %d\n", len(a.Keys()))
	fmt.Fprintf(stdout, "last time: %s\n", lastTime)

	var kinds [archive.KindBuiltin + 1]int
	for seq := 0; seq < a.Len(); seq++ {
		kinds[a.At(seq).Key.Kind]++
	}
	for k := archive.KindAssign; k <= archive.KindBuiltin; k++ {
		if kinds[k] > 0 {
			fmt.Fprintf(stdout, "  %-9s %d\n", k, kinds[k])
		}
	}

	if len(a.Keys()) == 0 {
		return
	}
	hist := hdrhistogram.New(1, maxHistoryLen, 3)
	var numHistErrors int
	var longest archive.Key
	var longestLen int
	for _, key := range a.Keys() {
		n := len(a.KeySeqs(key))
		if n > longestLen {
			longest, longestLen = key, n
		}
		if err := hist.RecordValue(int64(min(n, maxHistoryLen))); err != nil {
			numHistErrors++
		}
	}
	fmt.Fprintf(stdout, "history length: mean %.1f p50 %d p90 %d p99 %d max %d\n",
		hist.Mean(), hist.ValueAtPercentile(50), hist.ValueAtPercentile(90),
		hist.ValueAtPercentile(99), hist.Max())
	if t.verbose {
		fmt.Fprintf(stdout, "longest history: %s (%d records)\n", longest, longestLen)
	}
	if numHistErrors > 0 {
		fmt.Fprintf(stdout, "errors in history histogram: %d\n", numHistErrors)
	}
}
