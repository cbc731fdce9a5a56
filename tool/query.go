// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/tracequery"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/eval"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/spf13/cobra"
)

// queryT implements the reconstruction and evaluation tools.
type queryT struct {
	Build *cobra.Command
	Eval  *cobra.Command
	Plot  *cobra.Command

	open     openFunc
	strategy strategyFlag
	line     int
	start    int64
	end      int64
	json     bool
	table    bool
	key      string
	height   int
}

func newQuery(open openFunc) *queryT {
	q := &queryT{open: open}

	q.Build = &cobra.Command{
		Use:   "build <trace> <item> <time>",
		Short: "reconstruct a value",
		Long: `
Print the value of an item at a time. The item is a slot name, optionally
followed by :<line>, a container "#<id>", or a container member "#<id>.<name>".
`,
		Args: cobra.ExactArgs(3),
		Run:  q.runBuild,
	}
	q.Eval = &cobra.Command{
		Use:   "eval <trace> <operator>",
		Short: "evaluate an operator tree",
		Long: `
Evaluate an operator tree written in the debug notation, for example

  (Until (Raw "p") (Raw "q"))

and print one line per time point with data.
`,
		Args: cobra.ExactArgs(2),
		Run:  q.runEval,
	}
	q.Plot = &cobra.Command{
		Use:   "plot <trace> <operator>",
		Short: "plot a numeric series",
		Long: `
Evaluate an operator tree and plot the numeric values of one key of the
result as an ASCII graph.
`,
		Args: cobra.ExactArgs(2),
		Run:  q.runPlot,
	}

	for _, cmd := range []*cobra.Command{q.Build, q.Eval, q.Plot} {
		cmd.Flags().Var(&q.strategy, "strategy", "builder strategy (naive|diff)")
	}
	q.Build.Flags().IntVar(&q.line, "line", 0, "source line disambiguating a shadowed slot")
	for _, cmd := range []*cobra.Command{q.Eval, q.Plot} {
		cmd.Flags().Int64Var(&q.start, "start", 0, "start of the range")
		cmd.Flags().Int64Var(&q.end, "end", math.MaxInt64, "end of the range")
	}
	q.Eval.Flags().BoolVar(&q.json, "json", false, "print the JSON encoding of the final value")
	q.Eval.Flags().BoolVar(&q.table, "table", false, "print the result as a table")
	q.Plot.Flags().StringVar(&q.key, "key", eval.BoolKey, "key of the plotted series")
	q.Plot.Flags().IntVar(&q.height, "height", 10, "height of the graph")
	return q
}

func (q *queryT) openWithStrategy(path string) (*tracequery.Engine, error) {
	return q.open(path, func(opts *tracequery.Options) {
		opts.Builder = q.strategy.s
	})
}

func (q *queryT) runBuild(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	item, err := builder.ParseItem(args[1])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	if q.line != 0 {
		item.Line = q.line
	}
	t, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "invalid time %q: %s\n", args[2], err)
		return
	}
	e, err := q.openWithStrategy(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(stdout, "%s\n", e.Build(item, base.Time(t)))
}

// evaluate opens the trace and evaluates the operator named by args.
func (q *queryT) evaluate(args []string) (*eval.Result, error) {
	op, err := eval.Parse(args[1])
	if err != nil {
		return nil, err
	}
	e, err := q.openWithStrategy(args[0])
	if err != nil {
		return nil, err
	}
	return e.Eval(op, base.Time(q.start), base.Time(q.end))
}

func (q *queryT) runEval(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	r, err := q.evaluate(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	switch {
	case q.json:
		b, err := r.FinalJSON()
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return
		}
		fmt.Fprintf(stdout, "%s\n", b)
	case q.table:
		r.WriteTable(stdout)
	case r.Empty():
		fmt.Fprintf(stdout, "no data\n")
	default:
		fmt.Fprint(stdout, r.String())
	}
}

func (q *queryT) runPlot(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	r, err := q.evaluate(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	graph, err := r.Plot(q.key, q.height)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(stdout, "%s\n", graph)
}
