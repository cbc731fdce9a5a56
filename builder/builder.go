// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package builder reconstructs the materialized value of a named slot or of a
// container at an arbitrary logical time from the records of an archive.
//
// Two strategies are provided. The naive builder selects the qualifying
// records with the archive's filter algebra on every call. The diff builder
// caches, per container, the flat state it last replayed and applies only the
// records between the cached time and the requested time, falling back to a
// full replay when asked for an earlier time. Both strategies share the replay
// and assembly code and always return identical values.
//
// Composite values are assembled with an explicit stack of frames rather than
// by recursion. A reference to a container that is already being assembled
// higher up in the same value is returned as value.BackRef.
package builder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Item identifies the entity to reconstruct.
//
//   - Item{Name: "x"} is the named slot x. Function call results are looked up
//     by callee name and only exist at the time the call completed.
//   - Item{Name: "x", Line: 12} is the slot x as written by source line 12,
//     used to disambiguate shadowed names.
//   - Item{Container: 3} is the whole container #3.
//   - Item{Container: 3, Name: "x"} is the member x of container #3: an
//     attribute or dict key, or a list index.
type Item struct {
	Name      string
	Line      int
	Container base.ContainerID
}

func (i Item) String() string {
	switch {
	case i.Container != base.NoContainer && i.Name != "":
		return fmt.Sprintf("%s.%s", i.Container, i.Name)
	case i.Container != base.NoContainer:
		return i.Container.String()
	case i.Line != 0:
		return fmt.Sprintf("%s:%d", i.Name, i.Line)
	}
	return i.Name
}

// ParseItem parses the string form of an Item: "name", "name:line", "#id" or
// "#id.name".
func ParseItem(s string) (Item, error) {
	if strings.HasPrefix(s, "#") {
		idStr, name, _ := strings.Cut(s, ".")
		id, err := base.ParseContainerID(idStr)
		if err != nil {
			return Item{}, errors.Wrapf(err, "item %q", s)
		}
		return Item{Container: id, Name: name}, nil
	}
	name, lineStr, ok := strings.Cut(s, ":")
	if !ok {
		return Item{Name: s}, nil
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return Item{}, errors.Wrapf(err, "item %q", s)
	}
	return Item{Name: name, Line: line}, nil
}

// Builder reconstructs values. Implementations are safe for concurrent use
// provided the archive is not appended to concurrently.
type Builder interface {
	// Build returns the value of item at time t, or value.Absent if no
	// qualifying record exists at or before t.
	Build(item Item, t base.Time) value.Value
}

// Strategy selects a Builder implementation.
type Strategy uint8

const (
	// StrategyDiff selects the caching diff builder.
	StrategyDiff Strategy = iota
	// StrategyNaive selects the naive builder.
	StrategyNaive
)

func (s Strategy) String() string {
	switch s {
	case StrategyDiff:
		return "diff"
	case StrategyNaive:
		return "naive"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// ParseStrategy parses the string form of a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "diff":
		return StrategyDiff, nil
	case "naive":
		return StrategyNaive, nil
	}
	return 0, base.ConfigErrorf("builder: unknown strategy %q", s)
}

// New returns a Builder of the given strategy reading from a.
func New(s Strategy, a *archive.Archive) Builder {
	if s == StrategyNaive {
		return NewNaive(a)
	}
	return NewDiff(a, DiffOptions{})
}

// ShapeForType returns the shape of a container referenced with the given
// type name. The second return value is false for an empty type name.
func ShapeForType(typ string) (value.Shape, bool) {
	switch typ {
	case "":
		return 0, false
	case "list", "tuple":
		return value.ShapeList, true
	case "dict":
		return value.ShapeMap, true
	case "set", "frozenset":
		return value.ShapeSet, true
	default:
		// Any other object is reconstructed as the map of its attributes.
		return value.ShapeMap, true
	}
}

// shapeFromRecord infers the shape of a container from one of its records,
// for containers built directly by id.
func shapeFromRecord(r *archive.Record) (value.Shape, bool) {
	switch r.Key.Kind {
	case archive.KindListItem:
		return value.ShapeList, true
	case archive.KindSetItem:
		return value.ShapeSet, true
	case archive.KindAttr, archive.KindDictItem:
		return value.ShapeMap, true
	case archive.KindBuiltin:
		switch r.Key.Op {
		case archive.OpAppend, archive.OpExtend, archive.OpInsert:
			return value.ShapeList, true
		case archive.OpAdd, archive.OpDiscard:
			return value.ShapeSet, true
		}
	}
	return 0, false
}

// containerShape determines the shape of container id as of time t: the type
// of the latest reference to it, or else the shape implied by its records.
func containerShape(a *archive.Archive, id base.ContainerID, t base.Time) (value.Shape, bool) {
	refs := a.RefSeqs(id)
	for i := len(refs) - 1; i >= 0; i-- {
		r := a.At(refs[i])
		if r.Time > t {
			continue
		}
		if shape, ok := ShapeForType(r.Value.Type); ok {
			return shape, true
		}
	}
	var observed bool
	for _, seq := range a.ContainerSeqs(id) {
		r := a.At(seq)
		if r.Time > t {
			break
		}
		observed = true
		if shape, ok := shapeFromRecord(r); ok {
			return shape, true
		}
	}
	if observed {
		return value.ShapeMap, true
	}
	return 0, false
}
