// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package value defines the materialized value model shared by the archive,
// the object builder and the operator evaluator.
//
// A Value is either a primitive (none, bool, int, float, str), an unresolved
// reference to a container (only ever stored inside archive records), or a
// reconstructed composite (list, set, map). Two distinguished values carry no
// data of their own: Absent, returned when nothing was recorded, and Empty,
// returned for a collection that was observed but holds no elements. BackRef
// is emitted by the builder in place of a container that is already being
// reconstructed higher up in the same value, which is how cycles surface.
package value

import (
	"slices"

	"github.com/cockroachdb/tracequery/internal/base"
)

// Kind enumerates the variants of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNone
	KindBool
	KindInt
	KindFloat
	KindStr
	KindRef
	KindEmpty
	KindList
	KindSet
	KindMap
	KindBackRef
)

var kindNames = []string{
	KindAbsent:  "absent",
	KindNone:    "none",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindStr:     "str",
	KindRef:     "ref",
	KindEmpty:   "empty",
	KindList:    "list",
	KindSet:     "set",
	KindMap:     "map",
	KindBackRef: "backref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Shape is the layout of a composite value.
type Shape uint8

const (
	ShapeList Shape = iota
	ShapeSet
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeSet:
		return "set"
	case ShapeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Field is a named member of a map value. Object attributes, dict entries and
// grouped evaluation results are all represented as fields.
type Field struct {
	Key   string
	Value Value
}

// Value is an immutable materialized value. The zero Value is Absent.
type Value struct {
	kind  Kind
	shape Shape
	i     int64
	f     float64
	s     string
	id    base.ContainerID
	elems []Value
	// fields is only used by KindMap.
	fields []Field
}

// Absent is returned when no record qualifies.
var Absent = Value{}

// None returns the none value.
func None() Value { return Value{kind: KindNone} }

// Bool returns a bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Int returns an int value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Ref returns an unresolved reference to a container.
func Ref(id base.ContainerID) Value { return Value{kind: KindRef, id: id} }

// BackRef returns the placeholder for a container that is already being
// reconstructed by an enclosing value.
func BackRef(id base.ContainerID) Value { return Value{kind: KindBackRef, id: id} }

// Empty returns the sentinel for a collection that exists but has no elements.
func Empty(shape Shape) Value { return Value{kind: KindEmpty, shape: shape} }

// List returns a list value. An empty list is Empty(ShapeList).
func List(elems ...Value) Value {
	if len(elems) == 0 {
		return Empty(ShapeList)
	}
	return Value{kind: KindList, shape: ShapeList, elems: elems}
}

// Set returns a set value holding the distinct elems in first-seen order. An
// empty set is Empty(ShapeSet).
func Set(elems ...Value) Value {
	var distinct []Value
	for _, e := range elems {
		if !slices.ContainsFunc(distinct, e.Equal) {
			distinct = append(distinct, e)
		}
	}
	if len(distinct) == 0 {
		return Empty(ShapeSet)
	}
	return Value{kind: KindSet, shape: ShapeSet, elems: distinct}
}

// Map returns a map value. Later fields with a repeated key replace earlier
// ones in place. An empty map is Empty(ShapeMap).
func Map(fields ...Field) Value {
	var out []Field
	for _, f := range fields {
		if i := slices.IndexFunc(out, func(g Field) bool { return g.Key == f.Key }); i >= 0 {
			out[i].Value = f.Value
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return Empty(ShapeMap)
	}
	return Value{kind: KindMap, shape: ShapeMap, fields: out}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent returns true if v is Absent.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsComposite returns true for lists, sets, maps and empty collections.
func (v Value) IsComposite() bool {
	switch v.kind {
	case KindEmpty, KindList, KindSet, KindMap:
		return true
	}
	return false
}

// Shape returns the shape of a composite value. It is meaningless for other
// kinds.
func (v Value) Shape() Shape { return v.shape }

// AsBool returns the payload of a bool value.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.kind == KindBool }

// AsInt returns the payload of an int value.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the numeric payload of an int or float value.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// AsStr returns the payload of a str value.
func (v Value) AsStr() (string, bool) { return v.s, v.kind == KindStr }

// Container returns the container referenced by a ref or backref value.
func (v Value) Container() (base.ContainerID, bool) {
	return v.id, v.kind == KindRef || v.kind == KindBackRef
}

// Elems returns the elements of a list or set. The returned slice must not be
// modified.
func (v Value) Elems() []Value { return v.elems }

// Fields returns the fields of a map. The returned slice must not be
// modified.
func (v Value) Fields() []Field { return v.fields }

// Get returns the field of a map with the given key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Absent, false
}

// Len returns the number of elements or fields of a composite value.
func (v Value) Len() int {
	if v.kind == KindMap {
		return len(v.fields)
	}
	return len(v.elems)
}

// Truthy reports the truth of v when it is used as a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindAbsent, KindNone, KindEmpty:
		return false
	case KindBool, KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindStr:
		return v.s != ""
	default:
		return true
	}
}

// Equal returns true if v and o are deeply equal. Sets compare without regard
// to element order; lists and maps compare in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent, KindNone:
		return true
	case KindBool, KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindStr:
		return v.s == o.s
	case KindRef, KindBackRef:
		return v.id == o.id
	case KindEmpty:
		return v.shape == o.shape
	case KindList:
		return slices.EqualFunc(v.elems, o.elems, Value.Equal)
	case KindSet:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for _, e := range v.elems {
			if !slices.ContainsFunc(o.elems, e.Equal) {
				return false
			}
		}
		return true
	case KindMap:
		return slices.EqualFunc(v.fields, o.fields, func(a, b Field) bool {
			return a.Key == b.Key && a.Value.Equal(b.Value)
		})
	}
	return false
}

// Compare orders two numeric or two string values. The second return value
// is false when the values are not comparable.
func Compare(a, b Value) (int, bool) {
	if a.kind == KindStr && b.kind == KindStr {
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		}
		return 0, true
	}
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		}
		return 0, true
	}
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}
