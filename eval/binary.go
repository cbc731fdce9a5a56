// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"fmt"

	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

type binaryKind uint8

const (
	binaryUntil binaryKind = iota
	binaryAnd
	binaryOr
	binaryEq
	binaryLt
	binaryInTime
)

var binaryNames = [...]string{
	binaryUntil:  "Until",
	binaryAnd:    "And",
	binaryOr:     "Or",
	binaryEq:     "Eq",
	binaryLt:     "Lt",
	binaryInTime: "InTime",
}

type binaryOp struct {
	span
	kind binaryKind
	p, q Operator
}

func newBinary(kind binaryKind, p, q Operator) Operator {
	return &binaryOp{span: fullSpan, kind: kind, p: p, q: q}
}

// Until is the strong until over a finite trace: it holds at the last time
// point if q does, and at an earlier t if q holds at t, or p holds at t and
// Until holds at t+1.
func Until(p, q Operator) Operator { return newBinary(binaryUntil, p, q) }

// And is the pointwise conjunction of p and q.
func And(p, q Operator) Operator { return newBinary(binaryAnd, p, q) }

// Or is the pointwise disjunction of p and q.
func Or(p, q Operator) Operator { return newBinary(binaryOr, p, q) }

// Eq holds at the time points where p and q both have data and their values
// are equal. Numbers compare by value regardless of representation.
func Eq(p, q Operator) Operator { return newBinary(binaryEq, p, q) }

// Lt holds at the time points where p and q both have comparable values and
// the value of p is smaller.
func Lt(p, q Operator) Operator { return newBinary(binaryLt, p, q) }

// InTime holds, at t, the pairs of p at the time given by the integer value
// of at at t. Time points where at has no integer value, or names a time
// outside the archive, have no pairs.
func InTime(p, at Operator) Operator { return newBinary(binaryInTime, p, at) }

func (o *binaryOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *binaryOp) String() string {
	return formatOp(binaryNames[o.kind], o.p, o.q)
}

func (o *binaryOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	if o.kind == binaryInTime {
		return o.evalInTime(ctx, r)
	}
	p, err := evalOver(ctx, o.p, s, e)
	if err != nil {
		return nil, err
	}
	q, err := evalOver(ctx, o.q, s, e)
	if err != nil {
		return nil, err
	}
	switch o.kind {
	case binaryUntil:
		next := false
		for t := e; t >= s; t-- {
			next = q.Truth(t) || (p.Truth(t) && next)
			r.setBool(t, next)
		}

	case binaryAnd:
		for t := s; t <= e; t++ {
			r.setBool(t, p.Truth(t) && q.Truth(t))
		}

	case binaryOr:
		for t := s; t <= e; t++ {
			r.setBool(t, p.Truth(t) || q.Truth(t))
		}

	case binaryEq, binaryLt:
		for t := s; t <= e; t++ {
			pp, qp := p.At(t), q.At(t)
			if len(pp) == 0 || len(qp) == 0 {
				r.setBool(t, false)
				continue
			}
			a, b := entryValue(pp), entryValue(qp)
			c, ok := value.Compare(a, b)
			if o.kind == binaryEq {
				r.setBool(t, (ok && c == 0) || (!ok && a.Equal(b)))
			} else {
				r.setBool(t, ok && c < 0)
			}
		}

	default:
		panic(fmt.Sprintf("eval: unknown binary operator %d", o.kind))
	}
	return r, nil
}

// evalInTime evaluates at over the range, then p over the span of the times
// at names.
func (o *binaryOp) evalInTime(ctx *Context, r *Result) (*Result, error) {
	at, err := evalOver(ctx, o.q, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	targets := make([]base.Time, len(r.Entries))
	lo, hi := base.TimeMax, base.Time(-1)
	for i := range targets {
		targets[i] = -1
		for _, pair := range at.Entries[i].Pairs {
			if k, ok := pair.Value.AsInt(); ok && k >= 0 {
				targets[i] = base.Time(k)
				lo, hi = min(lo, targets[i]), max(hi, targets[i])
				break
			}
		}
	}
	if hi < 0 {
		return r, nil
	}
	lo, hi = ctx.clamp(lo, hi)
	p, err := evalOver(ctx, o.p, lo, hi)
	if err != nil {
		return nil, err
	}
	for i, k := range targets {
		if k < 0 {
			continue
		}
		for _, pair := range p.At(k) {
			r.add(r.Start+base.Time(i), pair)
		}
	}
	return r, nil
}
