// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rangedict implements a step function over a bounded logical time
// domain [0, maxTime].
//
// A RangeDict is populated with point writes, each effective from its time
// until the next later point write, and with range writes that overlay an
// exact half-open interval. Queries are answered from the maximal
// constant-value runs of the resulting function, which are computed lazily and
// cached until the next write.
package rangedict

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/RaduBerinde/axisds"
	"github.com/RaduBerinde/axisds/regiontree"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/invariants"
)

// Run is a maximal interval [Start, End) over which the function is constant.
// OK is false for the intervals that precede every write.
type Run[V any] struct {
	Start, End base.Time
	Value      V
	OK         bool
}

func (r Run[V]) String() string {
	if !r.OK {
		return fmt.Sprintf("[%d, %d): -", r.Start, r.End)
	}
	return fmt.Sprintf("[%d, %d): %v", r.Start, r.End, r.Value)
}

type point[V any] struct {
	t base.Time
	v V
}

type overlay[V any] struct {
	start, end base.Time
	v          V
}

// prop is the region tree property. The zero prop marks the absence of a
// region.
type prop[V any] struct {
	ok bool
	v  V
}

// RangeDict is a step function from [0, maxTime] to V. It is not safe for
// concurrent writes; concurrent readers must not race with a write since
// reads populate the run cache.
type RangeDict[V any] struct {
	maxTime  base.Time
	eq       func(a, b V) bool
	points   []point[V]
	overlays []overlay[V]

	// runs caches the result of Ranges; nil when invalidated.
	runs []Run[V]
}

// New returns an empty RangeDict over [0, maxTime] comparing values with eq.
func New[V any](maxTime base.Time, eq func(a, b V) bool) *RangeDict[V] {
	if maxTime < base.TimeZero {
		maxTime = base.TimeZero
	}
	if maxTime >= base.TimeMax {
		maxTime = base.TimeMax - 1
	}
	return &RangeDict[V]{maxTime: maxTime, eq: eq}
}

// NewComparable returns an empty RangeDict over [0, maxTime] for a comparable
// value type.
func NewComparable[V comparable](maxTime base.Time) *RangeDict[V] {
	return New[V](maxTime, func(a, b V) bool { return a == b })
}

// MaxTime returns the last time of the domain.
func (d *RangeDict[V]) MaxTime() base.Time {
	return d.maxTime
}

// Set records a point write: v is effective from t until the next later point
// write. A second write at the same time replaces the first. Writes outside
// the domain are ignored.
func (d *RangeDict[V]) Set(t base.Time, v V) {
	if t < base.TimeZero || t > d.maxTime {
		return
	}
	i, found := slices.BinarySearchFunc(d.points, t, func(p point[V], t base.Time) int {
		return cmp.Compare(p.t, t)
	})
	if found {
		d.points[i].v = v
	} else {
		d.points = slices.Insert(d.points, i, point[V]{t: t, v: v})
	}
	d.runs = nil
}

// SetRange records a range write: v is effective over exactly [start, end),
// clipped to the domain. Range writes take precedence over point writes and
// later range writes over earlier ones.
func (d *RangeDict[V]) SetRange(start, end base.Time, v V) {
	start = max(start, base.TimeZero)
	end = min(end, d.maxTime+1)
	if start >= end {
		return
	}
	d.overlays = append(d.overlays, overlay[V]{start: start, end: end, v: v})
	d.runs = nil
}

// Ranges returns the maximal constant-value runs. The runs partition
// [0, maxTime+1) in order. An empty RangeDict has a single run without value.
// The returned slice must not be modified.
func (d *RangeDict[V]) Ranges() []Run[V] {
	if d.runs != nil {
		return d.runs
	}
	tree := regiontree.Make(
		axisds.CompareFn[base.Time](cmp.Compare[base.Time]),
		func(a, b prop[V]) bool {
			return a.ok == b.ok && (!a.ok || d.eq(a.v, b.v))
		},
	)
	set := func(v V) func(prop[V]) prop[V] {
		return func(prop[V]) prop[V] { return prop[V]{ok: true, v: v} }
	}
	for i, p := range d.points {
		end := d.maxTime + 1
		if i+1 < len(d.points) {
			end = d.points[i+1].t
		}
		tree.Update(p.t, end, set(p.v))
	}
	for _, o := range d.overlays {
		tree.Update(o.start, o.end, set(o.v))
	}

	runs := make([]Run[V], 0, len(d.points)+2*len(d.overlays)+1)
	emit := func(r Run[V]) {
		if n := len(runs); n > 0 && runs[n-1].End == r.Start && runs[n-1].OK == r.OK &&
			(!r.OK || d.eq(runs[n-1].Value, r.Value)) {
			runs[n-1].End = r.End
			return
		}
		runs = append(runs, r)
	}
	next := base.TimeZero
	for interval, p := range tree.All() {
		if next < interval.Start {
			emit(Run[V]{Start: next, End: interval.Start})
		}
		emit(Run[V]{Start: interval.Start, End: interval.End, Value: p.v, OK: true})
		next = interval.End
	}
	if next < d.maxTime+1 {
		emit(Run[V]{Start: next, End: d.maxTime + 1})
	}
	if invariants.Enabled {
		checkPartition(runs, d.maxTime)
	}
	d.runs = runs
	return runs
}

// checkPartition panics if runs are not contiguous over [0, maxTime+1).
func checkPartition[V any](runs []Run[V], maxTime base.Time) {
	next := base.TimeZero
	for _, r := range runs {
		if r.Start != next || r.End <= r.Start {
			panic(errors.AssertionFailedf("rangedict: run %s does not follow %s", r, next))
		}
		next = r.End
	}
	if next != maxTime+1 {
		panic(errors.AssertionFailedf("rangedict: runs end at %s, not %s", next, maxTime+1))
	}
}

// find returns the index of the run containing t, or -1.
func (d *RangeDict[V]) find(t base.Time) int {
	if t < base.TimeZero || t > d.maxTime {
		return -1
	}
	runs := d.Ranges()
	// The runs partition the domain, so some run contains t.
	i := sort.Search(len(runs), func(i int) bool { return runs[i].End > t })
	invariants.CheckBounds(i, len(runs))
	return i
}

// Get returns the value at t. The second return value is false if t is outside
// the domain or precedes every write.
func (d *RangeDict[V]) Get(t base.Time) (V, bool) {
	var zero V
	i := d.find(t)
	if i < 0 || !d.Ranges()[i].OK {
		return zero, false
	}
	return d.Ranges()[i].Value, true
}

// GetRange returns the runs overlapping [start, end), clipped to it.
func (d *RangeDict[V]) GetRange(start, end base.Time) []Run[V] {
	start = max(start, base.TimeZero)
	end = min(end, d.maxTime+1)
	if start >= end {
		return nil
	}
	runs := d.Ranges()
	i := sort.Search(len(runs), func(i int) bool { return runs[i].End > start })
	var out []Run[V]
	for ; i < len(runs) && runs[i].Start < end; i++ {
		r := runs[i]
		r.Start = max(r.Start, start)
		r.End = min(r.End, end)
		out = append(out, r)
	}
	return out
}

// GetClosest returns the value of the run with the greatest start <= t,
// together with that start. The last return value is false if t is past the
// domain or precedes every write.
func (d *RangeDict[V]) GetClosest(t base.Time) (V, base.Time, bool) {
	var zero V
	i := d.find(t)
	if i < 0 {
		return zero, base.TimeZero, false
	}
	r := d.Ranges()[i]
	if !r.OK {
		return zero, base.TimeZero, false
	}
	return r.Value, r.Start, true
}

func (d *RangeDict[V]) String() string {
	var sb strings.Builder
	for i, r := range d.Ranges() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(r.String())
	}
	return sb.String()
}
