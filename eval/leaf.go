// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Raw returns the operator that builds item at every time point. The pair key
// is the slot name, or the item's string form for container items. Times at
// which the item is absent have no pair.
func Raw(item builder.Item) Operator {
	return &rawOp{span: fullSpan, item: item}
}

type rawOp struct {
	span
	item builder.Item
}

func (o *rawOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *rawOp) key() string {
	if o.item.Container == base.NoContainer {
		return o.item.Name
	}
	return o.item.String()
}

func (o *rawOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	key := o.key()
	for t := s; t <= e; t++ {
		if v := ctx.Builder.Build(o.item, t); !v.IsAbsent() {
			r.add(t, Pair{Key: key, Value: v})
		}
	}
	return r, nil
}

func (o *rawOp) String() string {
	if o.item.Container == base.NoContainer && o.item.Line != 0 {
		return formatOp("Raw", quoted(o.item.Name), literal(strconv.Itoa(o.item.Line)))
	}
	return formatOp("Raw", quoted(o.item.String()))
}

// Const returns the operator holding v under BoolKey at every time point.
func Const(v value.Value) Operator {
	return &constOp{span: fullSpan, v: v}
}

// True returns the operator that holds at every time point.
func True() Operator { return Const(value.Bool(true)) }

// False returns the operator that never holds.
func False() Operator { return Const(value.Bool(false)) }

type constOp struct {
	span
	v value.Value
}

func (o *constOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *constOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	for t := s; t <= e; t++ {
		r.add(t, Pair{Key: BoolKey, Value: o.v})
	}
	return r, nil
}

func (o *constOp) String() string {
	switch o.v.Kind() {
	case value.KindBool:
		if b, _ := o.v.AsBool(); b {
			return "True"
		}
		return "False"
	case value.KindNone:
		return "None"
	case value.KindInt, value.KindFloat, value.KindStr:
		return o.v.String()
	}
	return formatOp("Const", o.v)
}

// constString returns the payload of a string constant.
func constString(op Operator) (string, bool) {
	c, ok := op.(*constOp)
	if !ok {
		return "", false
	}
	return c.v.AsStr()
}

// CallStack returns the operator that, at every time a call to callee
// completes, holds the pair callee=caller. An empty callee matches every
// call.
func CallStack(callee string) Operator {
	return &callStackOp{span: fullSpan, callee: callee}
}

type callStackOp struct {
	span
	callee string
}

func (o *callStackOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *callStackOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	if s > e {
		return r, nil
	}
	between, err := archive.TimeBetween(s, e)
	if err != nil {
		return nil, err
	}
	filters := []archive.Filter{archive.KindEq(archive.KindCall), between}
	if o.callee != "" {
		filters = append(filters, archive.FieldEq(o.callee))
	}
	for _, rec := range ctx.Archive.FlattenAndFilter(filters...) {
		r.union(rec.Time, Pair{Key: rec.Key.Field, Value: value.Str(rec.Key.Slot)})
	}
	return r, nil
}

func (o *callStackOp) String() string {
	if o.callee == "" {
		return "(CallStack)"
	}
	return formatOp("CallStack", quoted(o.callee))
}

// Ref returns the operator reading the result bound to name, either with
// Context.BindResult or by an enclosing ForEach, Join or OpRef. An unbound
// name yields an empty result.
func Ref(name string) Operator {
	return &refOp{span: fullSpan, name: name}
}

type refOp struct {
	span
	name string
}

func (o *refOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *refOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	r := newResult(s, e)
	bound, ok := ctx.lookupResult(o.name)
	if !ok {
		ctx.infof("eval: unbound result %q", o.name)
		return r, nil
	}
	for t := s; t <= e; t++ {
		for _, p := range bound.At(t) {
			r.add(t, p)
		}
	}
	return r, nil
}

func (o *refOp) String() string { return formatOp("Ref", quoted(o.name)) }

// QueryRef returns the operator evaluating the operator bound to name with
// Context.BindQuery over its own range. An unbound name yields an empty
// result.
func QueryRef(name string) Operator {
	return &queryRefOp{span: fullSpan, name: name}
}

type queryRefOp struct {
	span
	name string
}

func (o *queryRefOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *queryRefOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	q, ok := ctx.queries.Get(o.name)
	if !ok {
		ctx.infof("eval: unbound query %q", o.name)
		return newResult(s, e), nil
	}
	return evalOver(ctx, q, s, e)
}

func (o *queryRefOp) String() string { return formatOp("QueryRef", quoted(o.name)) }

// OpRef returns the operator invoking the definition bound to name with
// Context.Define. The arguments are evaluated over the operator's range and
// bound to the definition's parameters, then the body is evaluated. A wrong
// number of arguments is a configuration error; an unbound name yields an
// empty result.
func OpRef(name string, args ...Operator) Operator {
	return &opRefOp{span: fullSpan, name: name, args: args}
}

type opRefOp struct {
	span
	name string
	args []Operator
}

func (o *opRefOp) WithRange(start, end base.Time) Operator {
	c := *o
	c.span = span{start, end}
	return &c
}

func (o *opRefOp) Eval(ctx *Context) (*Result, error) {
	s, e := ctx.clamp(o.start, o.end)
	def, ok := ctx.definitions.Get(o.name)
	if !ok {
		ctx.infof("eval: unbound definition %q", o.name)
		return newResult(s, e), nil
	}
	if len(def.Params) != len(o.args) {
		return nil, base.ConfigErrorf("eval: %s takes %d arguments, got %d",
			o.name, len(def.Params), len(o.args))
	}
	args, err := evalAll(ctx, o.args, s, e)
	if err != nil {
		return nil, err
	}
	child := ctx
	for i, param := range def.Params {
		child = child.with(param, args[i])
	}
	return evalOver(child, def.Body, s, e)
}

func (o *opRefOp) String() string {
	return formatOp("OpRef", append([]fmt.Stringer{quoted(o.name)}, stringers(o.args)...)...)
}
