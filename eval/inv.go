// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
	"golang.org/x/sync/errgroup"
)

// Inv returns the operator checking cond between consecutive satisfactions
// of subject. With satisfaction times s1 < s2 < ..., the intervals
// [s2, s3], [s3, s4], ... are verified independently: for each, cond is
// evaluated over the interval and its truth is emitted at every time point of
// the interval. Times shared by two intervals hold both truths, so
// Result.Truth is true at such a time if either interval holds; use
// Result.Holds to find the time points where some interval fails.
//
// The subject must have at most one distinct key; anything else is a
// configuration error. Intervals are verified concurrently on
// Context.Parallelism workers and the output does not depend on scheduling.
func Inv(subject, cond Operator) Operator {
	return &invOp{span: fullSpan, subject: subject, cond: cond}
}

type invOp struct {
	span
	subject, cond Operator
}

func (o *invOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *invOp) String() string { return formatOp("Inv", o.subject, o.cond) }

// invTask is the verification of cond over one interval.
type invTask struct {
	idx        int
	start, end base.Time
}

// invOutput is the truth of cond at one time point of a task's interval.
type invOutput struct {
	t     base.Time
	idx   int
	truth bool
}

func (o *invOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	subj, err := evalOver(ctx, o.subject, s, e)
	if err != nil {
		return nil, err
	}
	if keys := subj.Keys(); len(keys) > 1 {
		return nil, base.ConfigErrorf("eval: Inv subject %s has %d keys, expected at most one",
			o.subject, len(keys))
	}

	var sats []base.Time
	for t := s; t <= e; t++ {
		if subj.Truth(t) {
			sats = append(sats, t)
		}
	}
	var tasks []invTask
	for i := 1; i+1 < len(sats); i++ {
		tasks = append(tasks, invTask{idx: len(tasks), start: sats[i], end: sats[i+1]})
	}
	parallelism := ctx.parallelism()
	if ctx.InvDispatched != nil {
		ctx.InvDispatched(InvInfo{
			Subject:       o.subject.String(),
			Satisfactions: len(sats),
			Tasks:         len(tasks),
			Parallelism:   parallelism,
		})
	}
	if len(tasks) == 0 {
		return r, nil
	}

	// Every task sends one output per time point of its interval; the channel
	// is sized so that no send blocks.
	n := 0
	for _, task := range tasks {
		n += int(task.end - task.start + 1)
	}
	outputs := make(chan invOutput, n)
	var g errgroup.Group
	g.SetLimit(parallelism)
	for _, task := range tasks {
		g.Go(func() error {
			res, err := evalOver(ctx, o.cond, task.start, task.end)
			if err != nil {
				return err
			}
			for t := task.start; t <= task.end; t++ {
				outputs <- invOutput{t: t, idx: task.idx, truth: res.Truth(t)}
			}
			return nil
		})
	}
	err = g.Wait()
	close(outputs)
	if err != nil {
		return nil, err
	}

	collected := make([]invOutput, 0, n)
	for out := range outputs {
		collected = append(collected, out)
	}
	slices.SortFunc(collected, func(a, b invOutput) int {
		if c := cmp.Compare(a.t, b.t); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})
	for _, out := range collected {
		r.union(out.t, Pair{Key: BoolKey, Value: value.Bool(out.truth)})
	}
	return r, nil
}
