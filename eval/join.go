// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"fmt"

	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// NewJoin returns the operator joining the pairs of two operands:
//
//	Join(left, right, leftName, rightName, cond[, project])
//
// At every time point, each pair of left is combined with each pair of
// right. The two pairs are bound as single-entry results under leftName and
// rightName, and cond is evaluated at that time point. When cond holds, the
// join emits the pairs of project, or, without a projection, the map
// {leftName: l, rightName: r} keyed "lkey,rkey".
//
// The names must be string constants. Any other operand count or name is a
// configuration error.
func NewJoin(ops ...Operator) (Operator, error) {
	if len(ops) != 5 && len(ops) != 6 {
		return nil, base.ConfigErrorf("eval: Join takes 5 or 6 operands, got %d", len(ops))
	}
	leftName, ok := constString(ops[2])
	if !ok {
		return nil, base.ConfigErrorf("eval: Join left name must be a string constant, got %s", ops[2])
	}
	rightName, ok := constString(ops[3])
	if !ok {
		return nil, base.ConfigErrorf("eval: Join right name must be a string constant, got %s", ops[3])
	}
	j := &joinOp{
		span:      fullSpan,
		left:      ops[0],
		right:     ops[1],
		leftName:  leftName,
		rightName: rightName,
		cond:      ops[4],
	}
	if len(ops) == 6 {
		j.project = ops[5]
	}
	return j, nil
}

type joinOp struct {
	span
	left, right         Operator
	leftName, rightName string
	cond                Operator
	// project is nil without a projection.
	project Operator
}

func (o *joinOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *joinOp) String() string {
	args := []fmt.Stringer{o.left, o.right, quoted(o.leftName), quoted(o.rightName), o.cond}
	if o.project != nil {
		args = append(args, o.project)
	}
	return formatOp("Join", args...)
}

// single returns a result holding p at time t only.
func single(t base.Time, p Pair) *Result {
	r := newResult(t, t)
	r.add(t, p)
	return r
}

func (o *joinOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	left, err := evalOver(ctx, o.left, s, e)
	if err != nil {
		return nil, err
	}
	right, err := evalOver(ctx, o.right, s, e)
	if err != nil {
		return nil, err
	}
	for t := s; t <= e; t++ {
		for _, l := range left.At(t) {
			for _, rp := range right.At(t) {
				child := ctx.with(o.leftName, single(t, l)).with(o.rightName, single(t, rp))
				cond, err := evalOver(child, o.cond, t, t)
				if err != nil {
					return nil, err
				}
				if !cond.Truth(t) {
					continue
				}
				if o.project == nil {
					r.union(t, Pair{
						Key: l.Key + "," + rp.Key,
						Value: value.Map(
							value.Field{Key: o.leftName, Value: l.Value},
							value.Field{Key: o.rightName, Value: rp.Value},
						),
					})
					continue
				}
				proj, err := evalOver(child, o.project, t, t)
				if err != nil {
					return nil, err
				}
				for _, p := range proj.At(t) {
					r.union(t, p)
				}
			}
		}
	}
	return r, nil
}

// ForEach returns the operator that, at every time point, binds each pair of
// source under name and evaluates body at that time point. The pairs of all
// body evaluations are unioned.
func ForEach(source Operator, name string, body Operator) Operator {
	return &forEachOp{span: fullSpan, source: source, name: name, body: body}
}

type forEachOp struct {
	span
	source Operator
	name   string
	body   Operator
}

func (o *forEachOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *forEachOp) String() string {
	return formatOp("ForEach", o.source, quoted(o.name), o.body)
}

func (o *forEachOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	src, err := evalOver(ctx, o.source, s, e)
	if err != nil {
		return nil, err
	}
	for t := s; t <= e; t++ {
		for _, p := range src.At(t) {
			body, err := evalOver(ctx.with(o.name, single(t, p)), o.body, t, t)
			if err != nil {
				return nil, err
			}
			for _, bp := range body.At(t) {
				r.union(t, bp)
			}
		}
	}
	return r, nil
}

// Union returns the operator holding, at every time point, the distinct
// pairs of all operands.
func Union(ops ...Operator) Operator {
	return &unionOp{span: fullSpan, ops: ops}
}

type unionOp struct {
	span
	ops []Operator
}

func (o *unionOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *unionOp) String() string { return formatOp("Union", stringers(o.ops)...) }

func (o *unionOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	results, err := evalAll(ctx, o.ops, s, e)
	if err != nil {
		return nil, err
	}
	for t := s; t <= e; t++ {
		for _, res := range results {
			for _, p := range res.At(t) {
				r.union(t, p)
			}
		}
	}
	return r, nil
}
