// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package eval implements the temporal operator evaluator: an algebra of
// temporal and relational operators evaluated over a closed range of logical
// times into a Result.
//
// Every operator is closed over a time range, [0, base.TimeMax] unless
// restricted, which is clamped to the last time of the archive when the
// operator is evaluated. Operators evaluate their operands over their own
// range, intersected with their own, so composite results never mix values
// from different time points.
//
// Until is the one temporal primitive. It is strong and defined over finite
// traces: U[end] = q[end] and U[t] = q[t] || (p[t] && U[t+1]). Release and
// every other temporal operator are defined in terms of it:
//
//	Release(p, q)  = Not(Until(Not(p), Not(q)))
//	Finally(p)     = Until(True, p)
//	Globally(p)    = Release(False, p)
//	AllFuture(p)   = Globally(Next(p))
//	AndThan(p, q)  = And(p, Not(Next(Globally(Not(q)))))
//
// A time point is true if any of its pairs is truthy. Boolean operators
// produce a single pair under BoolKey.
package eval

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cockroachdb/swiss"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
)

// Operator is a node of an operator tree. Operators are immutable: WithRange
// returns a copy.
type Operator interface {
	// Eval evaluates the operator over its range. Configuration errors are
	// marked with base.ErrConfiguration; missing data yields empty entries,
	// never an error.
	Eval(ctx *Context) (*Result, error)
	// Span returns the range of the operator.
	Span() (start, end base.Time)
	// WithRange returns a copy of the operator closed over [start, end].
	WithRange(start, end base.Time) Operator
	String() string
}

// Restrict returns op restricted to the intersection of its range and
// [start, end].
func Restrict(op Operator, start, end base.Time) Operator {
	s, e := op.Span()
	return op.WithRange(max(s, start), min(e, end))
}

// span is embedded by every operator.
type span struct {
	start, end base.Time
}

var fullSpan = span{start: base.TimeZero, end: base.TimeMax}

// Span implements Operator.
func (s span) Span() (base.Time, base.Time) { return s.start, s.end }

// InvInfo describes the tasks dispatched by an Inv evaluation.
type InvInfo struct {
	// Subject is the String form of the subject operator.
	Subject string
	// Satisfactions is the number of times the subject holds.
	Satisfactions int
	// Tasks is the number of intervals verified.
	Tasks int
	// Parallelism is the number of workers.
	Parallelism int
}

func (i InvInfo) String() string {
	return fmt.Sprintf("inv %s: %d satisfactions, %d tasks on %d workers",
		i.Subject, i.Satisfactions, i.Tasks, i.Parallelism)
}

// Definition is a parameterized operator bound with Context.Define and
// invoked with OpRef.
type Definition struct {
	Params []string
	Body   Operator
}

// Context carries what an evaluation reads: the archive, the builder, named
// bindings and tuning. Bindings must be established before evaluation starts;
// a Context is then safe for concurrent evaluations.
type Context struct {
	Archive *archive.Archive
	Builder builder.Builder
	// Parallelism is the number of workers an Inv evaluation uses. Zero
	// means runtime.GOMAXPROCS(0).
	Parallelism int
	Logger      base.Logger
	// InvDispatched, if set, is invoked before the tasks of an Inv evaluation
	// are dispatched.
	InvDispatched func(InvInfo)

	results     *swiss.Map[string, *Result]
	queries     *swiss.Map[string, Operator]
	definitions *swiss.Map[string, Definition]
	// scope holds the results bound while evaluating ForEach, Join and OpRef
	// bodies. It shadows results.
	scope *scope
}

type scope struct {
	name   string
	result *Result
	parent *scope
}

// NewContext returns a Context reading from a through b.
func NewContext(a *archive.Archive, b builder.Builder) *Context {
	return &Context{
		Archive:     a,
		Builder:     b,
		Logger:      base.NoopLogger{},
		results:     swiss.New[string, *Result](0),
		queries:     swiss.New[string, Operator](0),
		definitions: swiss.New[string, Definition](0),
	}
}

// BindResult binds a result to name, for use by Ref.
func (c *Context) BindResult(name string, r *Result) {
	c.results.Put(name, r)
}

// BindQuery binds an operator to name, for use by QueryRef.
func (c *Context) BindQuery(name string, op Operator) {
	c.queries.Put(name, op)
}

// Define binds a parameterized operator to name, for use by OpRef.
func (c *Context) Define(name string, params []string, body Operator) {
	c.definitions.Put(name, Definition{Params: params, Body: body})
}

// with returns a child context in which name is bound to r.
func (c *Context) with(name string, r *Result) *Context {
	child := *c
	child.scope = &scope{name: name, result: r, parent: c.scope}
	return &child
}

func (c *Context) lookupResult(name string) (*Result, bool) {
	for s := c.scope; s != nil; s = s.parent {
		if s.name == name {
			return s.result, true
		}
	}
	return c.results.Get(name)
}

func (c *Context) infof(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Infof(format, args...)
	}
}

func (c *Context) parallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// clamp returns the effective range of an operator spanning [start, end]:
// the intersection with [0, last time of the archive]. The range is empty
// (start > end) if the archive holds no records.
func (c *Context) clamp(start, end base.Time) (base.Time, base.Time) {
	last, ok := c.Archive.LastTime()
	if !ok {
		return base.TimeZero, base.TimeZero - 1
	}
	return max(start, base.TimeZero), min(end, last)
}

// evalOver evaluates op over the intersection of its range and [start, end].
func evalOver(ctx *Context, op Operator, start, end base.Time) (*Result, error) {
	return Restrict(op, start, end).Eval(ctx)
}

// evalAll evaluates every operand over [start, end].
func evalAll(ctx *Context, ops []Operator, start, end base.Time) ([]*Result, error) {
	results := make([]*Result, len(ops))
	for i, op := range ops {
		r, err := evalOver(ctx, op, start, end)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

// formatOp renders an operator in the notation accepted by Parse.
func formatOp(name string, args ...fmt.Stringer) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(name)
	for _, a := range args {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}

type literal string

func (l literal) String() string { return string(l) }

// quoted renders a string argument.
func quoted(s string) fmt.Stringer { return literal(fmt.Sprintf("%q", s)) }

func stringers(ops []Operator) []fmt.Stringer {
	out := make([]fmt.Stringer, len(ops))
	for i, op := range ops {
		out[i] = op
	}
	return out
}
