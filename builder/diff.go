// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package builder

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/invariants"
	"github.com/cockroachdb/tracequery/internal/rangedict"
	"github.com/cockroachdb/tracequery/value"
)

// FallbackReason describes why the diff builder could not extend a cached
// state.
type FallbackReason uint8

const (
	// FallbackEarlierTime is reported when a container is requested at a time
	// earlier than a record already replayed into its cached state.
	FallbackEarlierTime FallbackReason = iota
	// FallbackShapeChanged is reported when a container is requested with a
	// different shape than the cached one.
	FallbackShapeChanged
	// FallbackArchiveChanged is reported when the archive was reset or
	// appended to since the caches were populated. Every cache is dropped.
	FallbackArchiveChanged
)

func (r FallbackReason) String() string {
	switch r {
	case FallbackEarlierTime:
		return "earlier time"
	case FallbackShapeChanged:
		return "shape changed"
	case FallbackArchiveChanged:
		return "archive changed"
	default:
		return fmt.Sprintf("FallbackReason(%d)", uint8(r))
	}
}

// FallbackInfo describes a full rebuild performed by the diff builder.
type FallbackInfo struct {
	Reason FallbackReason
	// Container is the container whose cached state was discarded. It is
	// base.NoContainer for FallbackArchiveChanged.
	Container base.ContainerID
	// CachedTime is the time of the discarded state.
	CachedTime base.Time
	// RequestedTime is the time that was requested.
	RequestedTime base.Time
}

func (i FallbackInfo) String() string {
	if i.Container == base.NoContainer {
		return fmt.Sprintf("diff builder fallback: %s", i.Reason)
	}
	return fmt.Sprintf("diff builder fallback for %s: %s (cached %s, requested %s)",
		i.Container, i.Reason, i.CachedTime, i.RequestedTime)
}

// Stats holds the cache counters of a diff builder.
type Stats struct {
	// Hits counts container states extended, or reused, from the cache.
	Hits uint64
	// Misses counts container states replayed because nothing was cached.
	Misses uint64
	// Fallbacks counts cached container states discarded and fully replayed.
	Fallbacks uint64
	// SlotIndexes counts slot indexes built.
	SlotIndexes uint64
}

// DiffOptions configures a diff builder.
type DiffOptions struct {
	// OnFallback, if set, is invoked after every full rebuild. It is called
	// without the builder's lock held.
	OnFallback func(FallbackInfo)
}

// Diff is the caching strategy. It keeps, per container, the flat state it
// last replayed and the time of that state, and for a later request replays
// only the records in between. Per slot it keeps a RangeDict from time to the
// effective assignment, built once per archive generation. Diff is safe for
// concurrent use; callers are serialized on an internal mutex.
type Diff struct {
	a    *archive.Archive
	opts DiffOptions

	mu struct {
		sync.Mutex
		// generation and length identify the archive contents the caches
		// were built from.
		generation uint64
		length     int
		slots      *swiss.Map[slotKey, *slotIndex]
		containers *swiss.Map[base.ContainerID, *containerEntry]
		stats      Stats
		// pending holds the fallbacks to report once the lock is released.
		pending []FallbackInfo
	}
}

var _ Builder = (*Diff)(nil)

type slotKey struct {
	name string
	line int
}

type slotIndex struct {
	// assigns maps every time to the position of the effective assignment.
	assigns *rangedict.RangeDict[int]
	// calls maps a time to the position of the last call completing then.
	calls *swiss.Map[base.Time, int]
}

type containerEntry struct {
	st state
	// t is the time the state was replayed to.
	t base.Time
	// pos is the number of the container's records applied to st.
	pos int
}

// NewDiff returns a diff builder reading from a.
func NewDiff(a *archive.Archive, opts DiffOptions) *Diff {
	d := &Diff{a: a, opts: opts}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	return d
}

func (d *Diff) resetLocked() {
	d.mu.generation = d.a.Generation()
	d.mu.length = d.a.Len()
	d.mu.slots = swiss.New[slotKey, *slotIndex](0)
	d.mu.containers = swiss.New[base.ContainerID, *containerEntry](0)
}

// Reset drops every cache.
func (d *Diff) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

// Stats returns a snapshot of the cache counters.
func (d *Diff) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.stats
}

// Build implements Builder.
func (d *Diff) Build(item Item, t base.Time) value.Value {
	if t < base.TimeZero {
		return value.Absent
	}
	v := d.build(item, t)
	d.reportFallbacks()
	if invariants.Sometimes(10) {
		if nv := NewNaive(d.a).Build(item, t); !nv.Equal(v) {
			panic(errors.AssertionFailedf("diff builder: %s@%s = %s, naive builder: %s", item, t, v, nv))
		}
	}
	return v
}

func (d *Diff) build(item Item, t base.Time) value.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkArchiveLocked(t)

	asm := makeAssembler(t, d.flattenLocked)
	if item.Container != base.NoContainer {
		return buildContainerItem(d.a, &asm, item, t)
	}
	seq, ok := d.slotRecordLocked(item, t)
	if !ok {
		return value.Absent
	}
	return asm.resolve(d.a.At(seq).Value)
}

func (d *Diff) reportFallbacks() {
	d.mu.Lock()
	pending := d.mu.pending
	d.mu.pending = nil
	d.mu.Unlock()
	if d.opts.OnFallback == nil {
		return
	}
	for _, info := range pending {
		d.opts.OnFallback(info)
	}
}

// checkArchiveLocked drops the caches if the archive changed since they were
// built.
func (d *Diff) checkArchiveLocked(t base.Time) {
	if d.mu.generation == d.a.Generation() && d.mu.length == d.a.Len() {
		return
	}
	if d.mu.slots.Len() > 0 || d.mu.containers.Len() > 0 {
		d.mu.stats.Fallbacks++
		d.mu.pending = append(d.mu.pending, FallbackInfo{
			Reason:        FallbackArchiveChanged,
			RequestedTime: t,
		})
	}
	d.resetLocked()
}

// slotRecordLocked returns the position of the record of the slot effective at
// t. It agrees with Naive.slotRecord: the last record, in append order, among
// the assignments at or before t and the calls completing at t.
func (d *Diff) slotRecordLocked(item Item, t base.Time) (int, bool) {
	key := slotKey{name: item.Name, line: item.Line}
	idx, ok := d.mu.slots.Get(key)
	if !ok {
		idx = d.buildSlotIndex(key)
		d.mu.slots.Put(key, idx)
		d.mu.stats.SlotIndexes++
	}
	seq, ok := idx.assigns.Get(min(t, idx.assigns.MaxTime()))
	if callSeq, found := idx.calls.Get(t); found && (!ok || callSeq > seq) {
		seq, ok = callSeq, true
	}
	return seq, ok
}

func (d *Diff) buildSlotIndex(key slotKey) *slotIndex {
	lastTime, _ := d.a.LastTime()
	idx := &slotIndex{
		assigns: rangedict.NewComparable[int](lastTime),
		calls:   swiss.New[base.Time, int](0),
	}
	for _, seq := range d.a.SlotSeqs(key.name) {
		r := d.a.At(seq)
		if key.line != 0 && r.Value.Line != key.line {
			continue
		}
		switch r.Key.Kind {
		case archive.KindAssign:
			// A later assignment at the same time replaces the earlier one.
			idx.assigns.Set(r.Time, seq)
		case archive.KindCall:
			idx.calls.Put(r.Time, seq)
		}
	}
	return idx
}

// flattenLocked returns the flat state of container id at time t, extending
// the cached state when possible.
func (d *Diff) flattenLocked(id base.ContainerID, shape value.Shape, t base.Time) *state {
	seqs := d.a.ContainerSeqs(id)
	e, ok := d.mu.containers.Get(id)
	switch {
	case !ok:
		d.mu.stats.Misses++
		e = &containerEntry{st: state{shape: shape}}
		d.mu.containers.Put(id, e)

	case e.st.shape != shape:
		d.fallbackLocked(e, id, shape, t, FallbackShapeChanged)

	case t < e.t && e.pos > 0 && d.a.At(seqs[e.pos-1]).Time > t:
		// The cached state includes records later than t.
		d.fallbackLocked(e, id, shape, t, FallbackEarlierTime)

	default:
		d.mu.stats.Hits++
	}
	p := replayer{a: d.a}
	for ; e.pos < len(seqs); e.pos++ {
		r := d.a.At(seqs[e.pos])
		if r.Time > t {
			break
		}
		p.apply(&e.st, r)
	}
	e.t = t
	return &e.st
}

func (d *Diff) fallbackLocked(
	e *containerEntry, id base.ContainerID, shape value.Shape, t base.Time, reason FallbackReason,
) {
	d.mu.stats.Fallbacks++
	d.mu.pending = append(d.mu.pending, FallbackInfo{
		Reason:        reason,
		Container:     id,
		CachedTime:    e.t,
		RequestedTime: t,
	})
	e.st.reset(shape)
	e.t = base.TimeZero
	e.pos = 0
}
