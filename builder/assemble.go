// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package builder

import (
	"github.com/cockroachdb/swiss"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// flattenFunc returns the flat state of container id, of the given shape, at
// time t. The state is only read, and only until the next call.
type flattenFunc func(id base.ContainerID, shape value.Shape, t base.Time) *state

// frame is a container being assembled.
type frame struct {
	id    base.ContainerID
	st    *state
	next  int
	elems []value.Value
	// fields is used instead of elems for maps.
	fields []value.Field
}

// place stores v as the value of the next member and advances.
func (f *frame) place(v value.Value) {
	if f.st.shape == value.ShapeMap {
		f.fields = append(f.fields, value.Field{Key: f.st.keys[f.next], Value: v})
	} else {
		f.elems = append(f.elems, v)
	}
	f.next++
}

// skip omits the next member.
func (f *frame) skip() {
	f.next++
}

func (f *frame) finish() value.Value {
	switch f.st.shape {
	case value.ShapeList:
		return value.List(f.elems...)
	case value.ShapeSet:
		return value.Set(f.elems...)
	default:
		return value.Map(f.fields...)
	}
}

// assembler materializes the values of containers at a single time. Completed
// containers are memoized for the lifetime of the assembler, i.e. of a single
// Build call.
type assembler struct {
	t       base.Time
	flatten flattenFunc
	stack   []*frame
	// inProgress holds the containers on the stack.
	inProgress *swiss.Map[base.ContainerID, struct{}]
	done       *swiss.Map[base.ContainerID, value.Value]
}

func makeAssembler(t base.Time, flatten flattenFunc) assembler {
	return assembler{
		t:          t,
		flatten:    flatten,
		inProgress: swiss.New[base.ContainerID, struct{}](0),
		done:       swiss.New[base.ContainerID, value.Value](0),
	}
}

// resolve materializes a record value: primitives are returned as is and
// references are assembled. A reference without a type yields Absent.
func (a *assembler) resolve(rv archive.RecordValue) value.Value {
	id, ok := rv.Value.Container()
	if !ok {
		return rv.Value
	}
	shape, ok := ShapeForType(rv.Type)
	if !ok {
		return value.Absent
	}
	return a.assemble(id, shape)
}

// assemble materializes container id with the given shape.
func (a *assembler) assemble(id base.ContainerID, shape value.Shape) value.Value {
	if v, ok := a.done.Get(id); ok {
		return v
	}
	a.push(id, shape)
	for {
		f := a.stack[len(a.stack)-1]
		if f.next == len(f.st.elems) {
			v := f.finish()
			a.stack = a.stack[:len(a.stack)-1]
			a.inProgress.Delete(f.id)
			a.done.Put(f.id, v)
			if len(a.stack) == 0 {
				return v
			}
			a.stack[len(a.stack)-1].place(v)
			continue
		}

		rv := f.st.elems[f.next]
		childID, isRef := rv.Value.Container()
		if !isRef {
			f.place(rv.Value)
			continue
		}
		childShape, ok := ShapeForType(rv.Type)
		if !ok {
			f.skip()
			continue
		}
		if _, ok := a.inProgress.Get(childID); ok {
			f.place(value.BackRef(childID))
			continue
		}
		if v, ok := a.done.Get(childID); ok {
			f.place(v)
			continue
		}
		a.push(childID, childShape)
	}
}

func (a *assembler) push(id base.ContainerID, shape value.Shape) {
	a.stack = append(a.stack, &frame{id: id, st: a.flatten(id, shape, a.t)})
	a.inProgress.Put(id, struct{}{})
}
