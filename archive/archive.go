// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package archive implements the append-only, time-indexed store of mutation
// records produced while a monitored program runs, together with the filter
// algebra used to select records.
//
// The archive is an ordered multi-map from record key to the ordered sequence
// of (time, value) pairs recorded for it. Records are only ever appended. The
// producer assigns non-decreasing times, so append order is also time order;
// records sharing a time keep their append order, recorded in Record.Seq.
//
// Secondary indexes (by key, by container, by slot name and by referenced
// container) are maintained at append time. Queries never run concurrently
// with appends, so reads need no locking and an Archive may be shared by any
// number of concurrent readers once the trace is complete.
package archive

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Archive is the append-only record store.
type Archive struct {
	// paused is toggled by the producer to exclude its own activity from the
	// trace. Appends made while paused are dropped.
	paused atomic.Bool

	records []Record
	// keys holds every distinct key in order of first appearance.
	keys []Key

	// The indexes map to positions in records, in append order.
	byKey       *swiss.Map[Key, []int]
	byContainer *swiss.Map[ContainerID, []int]
	bySlot      *swiss.Map[string, []int]
	byRef       *swiss.Map[ContainerID, []int]

	// generation is incremented by every Reset. Caches built on top of the
	// archive compare generations to detect that they are stale.
	generation uint64

	stats struct {
		appended atomic.Uint64
		dropped  atomic.Uint64
	}
}

// Stats holds counters describing the appends made to an archive.
type Stats struct {
	// Appended is the number of records appended since the archive was
	// created.
	Appended uint64
	// Dropped is the number of appends ignored because recording was paused.
	Dropped uint64
}

// New returns an empty archive.
func New() *Archive {
	a := &Archive{}
	a.init()
	return a
}

func (a *Archive) init() {
	a.records = nil
	a.keys = nil
	a.byKey = swiss.New[Key, []int](0)
	a.byContainer = swiss.New[ContainerID, []int](0)
	a.bySlot = swiss.New[string, []int](0)
	a.byRef = swiss.New[ContainerID, []int](0)
}

// Reset clears the store. It is used between independent program runs; any
// cache keyed on the archive's generation becomes stale.
func (a *Archive) Reset() {
	a.init()
	a.generation++
}

// Generation returns the number of times the archive has been reset.
func (a *Archive) Generation() uint64 {
	return a.generation
}

// PauseRecord stops recording: appends are dropped until ResumeRecord.
func (a *Archive) PauseRecord() {
	a.paused.Store(true)
}

// ResumeRecord resumes recording.
func (a *Archive) ResumeRecord() {
	a.paused.Store(false)
}

// Paused returns true if recording is paused.
func (a *Archive) Paused() bool {
	return a.paused.Load()
}

// Append records that key took value v at time t. The record is placed at the
// end of the key's sequence and never overwrites an earlier record. Append is
// a no-op while recording is paused.
//
// Times must not decrease across appends; a decreasing or negative time is a
// producer bug and is returned as an assertion failure without modifying the
// archive.
func (a *Archive) Append(key Key, t Time, v RecordValue) error {
	if a.paused.Load() {
		a.stats.dropped.Add(1)
		return nil
	}
	if t < base.TimeZero {
		return errors.AssertionFailedf("archive: negative time %d for %s", errors.Safe(t), key)
	}
	if n := len(a.records); n > 0 && t < a.records[n-1].Time {
		return errors.AssertionFailedf("archive: time %d for %s precedes last time %d",
			errors.Safe(t), key, errors.Safe(a.records[n-1].Time))
	}
	if key.Kind >= numKinds || key.Op >= numOps {
		return errors.AssertionFailedf("archive: invalid key %s", key)
	}
	seq := len(a.records)
	a.records = append(a.records, Record{Key: key, Time: t, Value: v, Seq: seq})

	if !appendIndex(a.byKey, key, seq) {
		a.keys = append(a.keys, key)
	}
	if key.Container != base.NoContainer {
		appendIndex(a.byContainer, key.Container, seq)
	}
	if key.Kind == KindAssign || key.Kind == KindCall {
		appendIndex(a.bySlot, key.Field, seq)
	}
	if id, ok := v.Value.Container(); ok && v.Value.Kind() == value.KindRef {
		appendIndex(a.byRef, id, seq)
	}
	a.stats.appended.Add(1)
	return nil
}

// appendIndex appends seq to the positions stored under k and returns true if
// k was already present.
func appendIndex[K comparable](m *swiss.Map[K, []int], k K, seq int) bool {
	seqs, ok := m.Get(k)
	m.Put(k, append(seqs, seq))
	return ok
}

// Len returns the number of records in the archive.
func (a *Archive) Len() int {
	return len(a.records)
}

// LastTime returns the greatest time recorded. Every temporal query is
// meaningful over [0, LastTime]. The second return value is false if the
// archive is empty.
func (a *Archive) LastTime() (Time, bool) {
	if len(a.records) == 0 {
		return base.TimeZero, false
	}
	return a.records[len(a.records)-1].Time, true
}

// Stats returns the append counters of the archive.
func (a *Archive) Stats() Stats {
	return Stats{
		Appended: a.stats.appended.Load(),
		Dropped:  a.stats.dropped.Load(),
	}
}

// At returns the record at position seq. The record must not be modified.
func (a *Archive) At(seq int) *Record {
	return &a.records[seq]
}

// Keys returns every distinct key, in order of first appearance.
func (a *Archive) Keys() []Key {
	return a.keys
}

// History returns the records of key in time order.
func (a *Archive) History(key Key) []Record {
	return a.collect(a.KeySeqs(key))
}

// KeySeqs returns the positions of the records of key in time order. The
// returned slice must not be modified.
func (a *Archive) KeySeqs(key Key) []int {
	seqs, _ := a.byKey.Get(key)
	return seqs
}

// ContainerSeqs returns the positions of the records owned by container id in
// time order. The returned slice must not be modified.
func (a *Archive) ContainerSeqs(id ContainerID) []int {
	seqs, _ := a.byContainer.Get(id)
	return seqs
}

// SlotSeqs returns the positions of the assignment and call records whose
// Field is name, in time order. The returned slice must not be modified.
func (a *Archive) SlotSeqs(name string) []int {
	seqs, _ := a.bySlot.Get(name)
	return seqs
}

// RefSeqs returns the positions of the records whose value references
// container id, in time order. The returned slice must not be modified.
func (a *Archive) RefSeqs(id ContainerID) []int {
	seqs, _ := a.byRef.Get(id)
	return seqs
}

// ContainerHistory returns the records owned by container id in time order.
func (a *Archive) ContainerHistory(id ContainerID) []Record {
	return a.collect(a.ContainerSeqs(id))
}

// SlotHistory returns the assignment and call records whose Field is name, in
// time order.
func (a *Archive) SlotHistory(name string) []Record {
	return a.collect(a.SlotSeqs(name))
}

func (a *Archive) collect(seqs []int) []Record {
	out := make([]Record, len(seqs))
	for i, seq := range seqs {
		out[i] = a.records[seq]
	}
	return out
}

// FlattenAndFilter returns every record, across all keys, for which every
// filter holds. Records are returned in time order with ties broken by
// insertion order. Filtering has no side effects; a filter naming an unknown
// field or kind simply matches nothing.
func (a *Archive) FlattenAndFilter(filters ...Filter) []Record {
	candidates, indexed := a.plan(filters)
	var out []Record
	visit := func(r *Record) {
		for _, f := range filters {
			if !f.Evaluate(r) {
				return
			}
		}
		out = append(out, *r)
	}
	if indexed {
		for _, seq := range candidates {
			visit(&a.records[seq])
		}
		return out
	}
	for i := range a.records {
		visit(&a.records[i])
	}
	return out
}

// plan picks the narrowest index that every matching record must appear in.
// Only top-level filters are considered since the filter list is a
// conjunction.
func (a *Archive) plan(filters []Filter) (seqs []int, ok bool) {
	for _, f := range filters {
		var cand []int
		switch f := f.(type) {
		case containerEq:
			cand = a.ContainerSeqs(ContainerID(f))
		case refersTo:
			cand = a.RefSeqs(ContainerID(f))
		default:
			continue
		}
		if !ok || len(cand) < len(seqs) {
			seqs, ok = cand, true
		}
	}
	return seqs, ok
}
