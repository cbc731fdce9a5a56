// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"fmt"

	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

type unaryKind uint8

const (
	unaryNot unaryKind = iota
	unaryOld
	unaryNext
	unaryGroup
	unaryBefore
)

var unaryNames = [...]string{
	unaryNot:    "Not",
	unaryOld:    "Old",
	unaryNext:   "Next",
	unaryGroup:  "Group",
	unaryBefore: "Before",
}

type unaryOp struct {
	span
	kind unaryKind
	p    Operator
}

// Not returns the pointwise boolean complement of p.
func Not(p Operator) Operator { return &unaryOp{span: fullSpan, kind: unaryNot, p: p} }

// Old returns p shifted forward one time step. The first time point of the
// range has no predecessor and holds a single Absent pair.
func Old(p Operator) Operator { return &unaryOp{span: fullSpan, kind: unaryOld, p: p} }

// Next returns p shifted back one time step. Next is weak: it holds at the
// last time point of the range.
func Next(p Operator) Operator { return &unaryOp{span: fullSpan, kind: unaryNext, p: p} }

// Group returns, per time point, the pairs of p collapsed into one map value
// under BoolKey. Keys occurring more than once map to the list of their
// values.
func Group(p Operator) Operator { return &unaryOp{span: fullSpan, kind: unaryGroup, p: p} }

// Before holds at the time points strictly preceding the first time p holds.
// If p never holds in the range, every time point precedes it.
func Before(p Operator) Operator { return &unaryOp{span: fullSpan, kind: unaryBefore, p: p} }

func (o *unaryOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *unaryOp) String() string {
	return formatOp(unaryNames[o.kind], o.p)
}

func (o *unaryOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	p, err := evalOver(ctx, o.p, s, e)
	if err != nil {
		return nil, err
	}
	switch o.kind {
	case unaryNot:
		for t := s; t <= e; t++ {
			r.setBool(t, !p.Truth(t))
		}

	case unaryOld:
		r.add(s, Pair{Key: BoolKey, Value: value.Absent})
		for t := s + 1; t <= e; t++ {
			for _, pair := range p.At(t - 1) {
				r.add(t, pair)
			}
		}

	case unaryNext:
		for t := s; t < e; t++ {
			for _, pair := range p.At(t + 1) {
				r.add(t, pair)
			}
		}
		r.setBool(e, true)

	case unaryGroup:
		for t := s; t <= e; t++ {
			if pairs := p.At(t); len(pairs) > 0 {
				r.add(t, Pair{Key: BoolKey, Value: groupPairs(pairs)})
			}
		}

	case unaryBefore:
		first := e + 1
		for t := s; t <= e; t++ {
			if p.Truth(t) {
				first = t
				break
			}
		}
		for t := s; t <= e; t++ {
			r.setBool(t, t < first)
		}

	default:
		panic(fmt.Sprintf("eval: unknown unary operator %d", o.kind))
	}
	return r, nil
}

// derivedOp is an operator defined by its expansion into primitive operators.
// It keeps its own name and operands for display.
type derivedOp struct {
	span
	name      string
	args      []Operator
	expansion Operator
}

func (o *derivedOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *derivedOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	if s > e {
		return newResult(s, e), nil
	}
	return evalOver(ctx, o.expansion, s, e)
}

func (o *derivedOp) String() string { return formatOp(o.name, stringers(o.args)...) }

func derived(name string, expansion Operator, args ...Operator) Operator {
	return &derivedOp{span: fullSpan, name: name, args: args, expansion: expansion}
}

// Finally holds at t if p holds at some time in [t, end].
func Finally(p Operator) Operator {
	return derived("Finally", Until(True(), p), p)
}

// Globally holds at t if p holds at every time in [t, end].
func Globally(p Operator) Operator {
	return derived("Globally", Release(False(), p), p)
}

// AllFuture holds at t if p holds at every time in [t+1, end].
func AllFuture(p Operator) Operator {
	return derived("AllFuture", Globally(Next(p)), p)
}

// Release is the dual of Until: q holds up to and including the first time p
// holds, or forever if p never does.
func Release(p, q Operator) Operator {
	return derived("Release", Not(Until(Not(p), Not(q))), p, q)
}

// AndThan holds at t if p holds at t and q holds at some time strictly after
// t.
func AndThan(p, q Operator) Operator {
	return derived("AndThan", And(p, Not(Next(Globally(Not(q))))), p, q)
}
