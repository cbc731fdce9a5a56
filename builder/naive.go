// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package builder

import (
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Naive is the strategy that selects qualifying records with the archive's
// filter algebra on every call. Its cost is proportional to the history of the
// entity but its results never depend on the order of earlier calls. Naive
// holds no mutable state and is safe for concurrent use.
type Naive struct {
	a *archive.Archive
}

var _ Builder = (*Naive)(nil)

// NewNaive returns a naive builder reading from a.
func NewNaive(a *archive.Archive) *Naive {
	return &Naive{a: a}
}

// Build implements Builder.
func (n *Naive) Build(item Item, t base.Time) value.Value {
	if t < base.TimeZero {
		return value.Absent
	}
	asm := makeAssembler(t, n.flatten)
	if item.Container != base.NoContainer {
		return buildContainerItem(n.a, &asm, item, t)
	}
	rv, ok := n.slotRecord(item, t)
	if !ok {
		return value.Absent
	}
	return asm.resolve(rv)
}

// slotRecord returns the last record of the slot effective at t: assignments
// at or before t, and call results completing exactly at t.
func (n *Naive) slotRecord(item Item, t base.Time) (archive.RecordValue, bool) {
	filters := []archive.Filter{
		archive.FieldEq(item.Name),
		archive.Or(
			archive.And(archive.KindEq(archive.KindAssign), archive.TimeAtMost(t)),
			archive.And(archive.KindEq(archive.KindCall), archive.TimeEq(t)),
		),
	}
	if item.Line != 0 {
		filters = append(filters, archive.LineEq(item.Line))
	}
	records := n.a.FlattenAndFilter(filters...)
	if len(records) == 0 {
		return archive.RecordValue{}, false
	}
	return records[len(records)-1].Value, true
}

func (n *Naive) flatten(id base.ContainerID, shape value.Shape, t base.Time) *state {
	records := n.a.FlattenAndFilter(archive.ContainerEq(id), archive.TimeAtMost(t))
	return replayer{a: n.a}.replayRecords(shape, records)
}

// buildContainerItem builds an item naming a container, or a member of one.
func buildContainerItem(a *archive.Archive, asm *assembler, item Item, t base.Time) value.Value {
	shape, ok := containerShape(a, item.Container, t)
	if !ok {
		return value.Absent
	}
	if item.Name == "" {
		return asm.assemble(item.Container, shape)
	}
	rv, ok := asm.flatten(item.Container, shape, t).member(item.Name)
	if !ok {
		return value.Absent
	}
	return asm.resolve(rv)
}
