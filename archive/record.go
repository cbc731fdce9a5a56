// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package archive

import (
	"fmt"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Time exports the base.Time type.
type Time = base.Time

// ContainerID exports the base.ContainerID type.
type ContainerID = base.ContainerID

// Kind enumerates the kinds of mutation captured by the producer.
type Kind uint8

const (
	// KindAssign is an assignment to a named slot (a variable).
	KindAssign Kind = iota
	// KindCall is the result of a function call, recorded at the time the
	// call completes. Field holds the callee and Slot the caller.
	KindCall
	// KindAttr is an assignment to an attribute of an object.
	KindAttr
	// KindListItem is an assignment to an index of a list.
	KindListItem
	// KindDictItem is an assignment to a key of a dict.
	KindDictItem
	// KindSetItem records membership of an element in a set. The value is the
	// element; Field is unused.
	KindSetItem
	// KindBuiltin is a built-in collection manipulation captured as a
	// first-class event. Key.Op holds the operation.
	KindBuiltin

	numKinds
)

var kindNames = [numKinds]string{
	KindAssign:   "assign",
	KindCall:     "call",
	KindAttr:     "attr",
	KindListItem: "list-item",
	KindDictItem: "dict-item",
	KindSetItem:  "set-item",
	KindBuiltin:  "builtin",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("UNKNOWN:%d", uint8(k))
}

// SafeFormat implements redact.SafeFormatter.
func (k Kind) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

// ParseKind parses the string form of a Kind.
func ParseKind(s string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// IsItem returns true for the kinds that assign a member of a container.
func (k Kind) IsItem() bool {
	return k == KindAttr || k == KindListItem || k == KindDictItem || k == KindSetItem
}

// Op enumerates the built-in collection manipulations. It is OpNone for every
// record whose kind is not KindBuiltin.
type Op uint8

const (
	OpNone Op = iota
	// OpAppend appends the value to a list.
	OpAppend
	// OpExtend appends every element of the referenced container to a list.
	OpExtend
	// OpInsert inserts the value at the index held in Field.
	OpInsert
	// OpRemove removes the first element equal to the value.
	OpRemove
	// OpPop removes the element at the index held in Field (the last one when
	// Field is empty), or the key held in Field for dicts.
	OpPop
	// OpClear removes every element.
	OpClear
	// OpAdd adds the value to a set.
	OpAdd
	// OpDiscard removes the value from a set if present.
	OpDiscard
	// OpUpdate merges the referenced container into a dict or set.
	OpUpdate
	// OpDelete deletes the index or key held in Field.
	OpDelete

	numOps
)

var opNames = [numOps]string{
	OpNone:    "",
	OpAppend:  "append",
	OpExtend:  "extend",
	OpInsert:  "insert",
	OpRemove:  "remove",
	OpPop:     "pop",
	OpClear:   "clear",
	OpAdd:     "add",
	OpDiscard: "discard",
	OpUpdate:  "update",
	OpDelete:  "delete",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("UNKNOWN:%d", uint8(o))
}

// SafeFormat implements redact.SafeFormatter.
func (o Op) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(o.String()))
}

// ParseOp parses the string form of an Op.
func ParseOp(s string) (Op, bool) {
	for o := OpAppend; o < numOps; o++ {
		if opNames[o] == s {
			return o, true
		}
	}
	return OpNone, false
}

// Key identifies what was mutated.
type Key struct {
	// Container is the owning container, or base.NoContainer for named slots.
	Container ContainerID
	// Field is the field, index or key selector within the container, the
	// slot name for KindAssign, or the callee for KindCall.
	Field string
	Kind  Kind
	// Slot is the named slot the mutation originated from.
	Slot string
	Op   Op
}

func (k Key) String() string {
	return redact.StringWithoutMarkers(k)
}

// SafeFormat implements redact.SafeFormatter.
func (k Key) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s:%s[%s]", k.Kind, k.Container, k.Field)
	if k.Op != OpNone {
		w.Printf(".%s", k.Op)
	}
	if k.Slot != "" {
		w.Printf("@%s", k.Slot)
	}
}

// RecordValue is the value recorded for a mutation.
type RecordValue struct {
	// Value is a primitive or a value.Ref to a composite.
	Value value.Value
	// Type is the declared or runtime type name of the value. It determines
	// the shape of referenced containers.
	Type string
	// Expr is the source expression that produced the value.
	Expr string
	// Line is the source line that produced the value.
	Line int
}

// Record is a mutation event: a key, a time and the new value.
type Record struct {
	Key   Key
	Time  Time
	Value RecordValue
	// Seq is the position of the record in append order. It breaks ties
	// between records sharing a time.
	Seq int
}

func (r *Record) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
func (r *Record) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %s = %s", r.Time, r.Key, r.Value.Value)
	if r.Value.Type != "" {
		w.Printf(" (%s)", r.Value.Type)
	}
	if r.Value.Line != 0 {
		w.Printf(" line=%d", r.Value.Line)
	}
}
