// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package builder

import (
	"slices"
	"strconv"

	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/value"
)

// state is the flat contents of a container: its members as recorded, with
// references to nested containers left unresolved.
type state struct {
	shape value.Shape
	elems []archive.RecordValue
	// keys holds the member names of a map, parallel to elems. It is unused
	// for lists and sets.
	keys []string
}

func (s *state) reset(shape value.Shape) {
	s.shape = shape
	s.elems = s.elems[:0]
	s.keys = s.keys[:0]
}

// member returns the member named by sel: a map key or a list index.
func (s *state) member(sel string) (archive.RecordValue, bool) {
	switch s.shape {
	case value.ShapeMap:
		if i := slices.Index(s.keys, sel); i >= 0 {
			return s.elems[i], true
		}
	case value.ShapeList:
		if i, ok := s.index(sel, false); ok {
			return s.elems[i], true
		}
	}
	return archive.RecordValue{}, false
}

// index resolves a list index, counting from the end when negative. When
// forInsert is set the index is clamped to [0, len].
func (s *state) index(sel string, forInsert bool) (int, bool) {
	i, err := strconv.Atoi(sel)
	if err != nil {
		return 0, false
	}
	n := len(s.elems)
	if i < 0 {
		i += n
	}
	if forInsert {
		return min(max(i, 0), n), true
	}
	return i, i >= 0 && i < n
}

func (s *state) put(key string, v archive.RecordValue) {
	if i := slices.Index(s.keys, key); i >= 0 {
		s.elems[i] = v
		return
	}
	s.keys = append(s.keys, key)
	s.elems = append(s.elems, v)
}

func (s *state) removeAt(i int) {
	s.elems = slices.Delete(s.elems, i, i+1)
	if s.shape == value.ShapeMap {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

func (s *state) find(v value.Value) int {
	return slices.IndexFunc(s.elems, func(e archive.RecordValue) bool {
		return e.Value.Equal(v)
	})
}

func (s *state) add(v archive.RecordValue) {
	if s.find(v.Value) < 0 {
		s.elems = append(s.elems, v)
	}
}

// replayer applies container records to flat states.
type replayer struct {
	a *archive.Archive
}

// apply applies record r to s. Records that do not fit the container's shape
// are builder inconsistencies and are ignored.
func (p replayer) apply(s *state, r *archive.Record) {
	switch r.Key.Kind {
	case archive.KindListItem:
		switch s.shape {
		case value.ShapeList:
			i, err := strconv.Atoi(r.Key.Field)
			if err != nil {
				return
			}
			if i < 0 {
				if i += len(s.elems); i < 0 {
					return
				}
			}
			// Writing past the end pads the list with None.
			for len(s.elems) <= i {
				s.elems = append(s.elems, archive.RecordValue{Value: value.None()})
			}
			s.elems[i] = r.Value
		case value.ShapeMap:
			s.put(r.Key.Field, r.Value)
		}

	case archive.KindAttr, archive.KindDictItem:
		if s.shape == value.ShapeMap {
			s.put(r.Key.Field, r.Value)
		}

	case archive.KindSetItem:
		if s.shape == value.ShapeSet {
			s.add(r.Value)
		}

	case archive.KindBuiltin:
		p.applyBuiltin(s, r)

	case archive.KindAssign, archive.KindCall:
		// Named slots are not container members.
	}
}

func (p replayer) applyBuiltin(s *state, r *archive.Record) {
	switch r.Key.Op {
	case archive.OpAppend:
		if s.shape == value.ShapeList {
			s.elems = append(s.elems, r.Value)
		}

	case archive.OpExtend:
		if s.shape == value.ShapeList {
			if src, ok := p.source(r); ok {
				s.elems = append(s.elems, src.elems...)
			}
		}

	case archive.OpInsert:
		if s.shape == value.ShapeList {
			if i, ok := s.index(r.Key.Field, true); ok {
				s.elems = slices.Insert(s.elems, i, r.Value)
			}
		}

	case archive.OpRemove, archive.OpDiscard:
		if s.shape == value.ShapeList || s.shape == value.ShapeSet {
			if i := s.find(r.Value.Value); i >= 0 {
				s.removeAt(i)
			}
		}

	case archive.OpPop, archive.OpDelete:
		switch s.shape {
		case value.ShapeList:
			sel := r.Key.Field
			if sel == "" && r.Key.Op == archive.OpPop {
				sel = "-1"
			}
			if i, ok := s.index(sel, false); ok {
				s.removeAt(i)
			}
		case value.ShapeMap:
			if i := slices.Index(s.keys, r.Key.Field); i >= 0 {
				s.removeAt(i)
			}
		case value.ShapeSet:
			// set.pop removes an arbitrary element; the producer follows it
			// with a discard of the element it returned.
		}

	case archive.OpClear:
		s.reset(s.shape)

	case archive.OpAdd:
		if s.shape == value.ShapeSet {
			s.add(r.Value)
		}

	case archive.OpUpdate:
		src, ok := p.source(r)
		if !ok {
			return
		}
		switch s.shape {
		case value.ShapeMap:
			if src.shape == value.ShapeMap {
				for i, k := range src.keys {
					s.put(k, src.elems[i])
				}
			}
		case value.ShapeSet:
			for _, e := range src.elems {
				s.add(e)
			}
		}

	case archive.OpNone:
		// A builtin record always carries an op; Append rejects the rest.
	}
}

// source returns the flat state of the container referenced by the value of
// r, as it was just before r was recorded. The sequence bound strictly
// decreases on every nested lookup, so self-references terminate.
func (p replayer) source(r *archive.Record) (*state, bool) {
	id, ok := r.Value.Value.Container()
	if !ok {
		return nil, false
	}
	shape, ok := ShapeForType(r.Value.Type)
	if !ok {
		return nil, false
	}
	s := &state{shape: shape}
	for _, seq := range p.a.ContainerSeqs(id) {
		if seq >= r.Seq {
			break
		}
		p.apply(s, p.a.At(seq))
	}
	return s, true
}

// replayRecords applies records, which must all belong to one container, to
// a fresh state of the given shape.
func (p replayer) replayRecords(shape value.Shape, records []archive.Record) *state {
	s := &state{shape: shape}
	for i := range records {
		p.apply(s, &records[i])
	}
	return s
}
