// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/invariants"
	"github.com/cockroachdb/tracequery/value"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
)

// BoolKey is the key of the pairs produced by boolean operators.
const BoolKey = ""

// Pair is a named fact holding at a time point.
type Pair struct {
	Key   string
	Value value.Value
}

func (p Pair) String() string {
	if p.Key == BoolKey {
		return p.Value.String()
	}
	return p.Key + "=" + p.Value.String()
}

func (p Pair) equal(o Pair) bool {
	return p.Key == o.Key && p.Value.Equal(o.Value)
}

// Entry holds the pairs of a time point. An entry without pairs means there
// is no data at that time.
type Entry struct {
	Time  base.Time
	Pairs []Pair
}

// Truth returns true if any pair of the entry is truthy.
func (e *Entry) Truth() bool {
	for _, p := range e.Pairs {
		if p.Value.Truthy() {
			return true
		}
	}
	return false
}

// Holds returns true if the entry holds at least one pair and every pair is
// truthy.
func (e *Entry) Holds() bool {
	for _, p := range e.Pairs {
		if !p.Value.Truthy() {
			return false
		}
	}
	return len(e.Pairs) > 0
}

// Result is the outcome of evaluating an operator over the closed range
// [Start, End]: one entry per time point. A Result is immutable once returned.
type Result struct {
	Start, End base.Time
	Entries    []Entry
}

// newResult returns a result with an empty entry per time of [start, end].
func newResult(start, end base.Time) *Result {
	r := &Result{Start: start, End: end}
	if end >= start {
		r.Entries = make([]Entry, end-start+1)
		for i := range r.Entries {
			r.Entries[i].Time = start + base.Time(i)
		}
	}
	return r
}

// Empty returns true if no entry holds a pair.
func (r *Result) Empty() bool {
	for i := range r.Entries {
		if len(r.Entries[i].Pairs) > 0 {
			return false
		}
	}
	return true
}

func (r *Result) entry(t base.Time) *Entry {
	if t < r.Start || t > r.End || len(r.Entries) == 0 {
		return nil
	}
	i := t - r.Start
	invariants.CheckBounds(i, base.Time(len(r.Entries)))
	return &r.Entries[i]
}

// At returns the pairs at time t. The returned slice must not be modified.
func (r *Result) At(t base.Time) []Pair {
	if e := r.entry(t); e != nil {
		return e.Pairs
	}
	return nil
}

// Truth returns true if any pair at time t is truthy.
func (r *Result) Truth(t base.Time) bool {
	if e := r.entry(t); e != nil {
		return e.Truth()
	}
	return false
}

// Holds returns true if every pair at time t is truthy, and there is at least
// one. Unlike Truth, it is false at a time holding both True and False.
func (r *Result) Holds(t base.Time) bool {
	if e := r.entry(t); e != nil {
		return e.Holds()
	}
	return false
}

// add appends a pair at time t.
func (r *Result) add(t base.Time, p Pair) {
	if e := r.entry(t); e != nil {
		e.Pairs = append(e.Pairs, p)
	}
}

// union adds the pair at time t unless an equal pair is already present.
func (r *Result) union(t base.Time, p Pair) {
	e := r.entry(t)
	if e == nil {
		return
	}
	if slices.ContainsFunc(e.Pairs, p.equal) {
		return
	}
	e.Pairs = append(e.Pairs, p)
}

func (r *Result) setBool(t base.Time, b bool) {
	r.add(t, Pair{Key: BoolKey, Value: value.Bool(b)})
}

// Keys returns the distinct keys of the result in order of first appearance.
func (r *Result) Keys() []string {
	var keys []string
	for i := range r.Entries {
		for _, p := range r.Entries[i].Pairs {
			if !slices.Contains(keys, p.Key) {
				keys = append(keys, p.Key)
			}
		}
	}
	return keys
}

// String renders one line per non-empty entry.
func (r *Result) String() string {
	var sb strings.Builder
	for i := range r.Entries {
		e := &r.Entries[i]
		if len(e.Pairs) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%d:", int64(e.Time))
		for j, p := range e.Pairs {
			if j > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" ")
			sb.WriteString(p.String())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Table returns a header of "time" followed by the keys of the result, and a
// row per non-empty entry. Several values for one key are joined with "; ".
func (r *Result) Table() (header []string, rows [][]string) {
	keys := r.Keys()
	header = append([]string{"time"}, keys...)
	for i := range r.Entries {
		e := &r.Entries[i]
		if len(e.Pairs) == 0 {
			continue
		}
		row := make([]string, len(header))
		row[0] = e.Time.String()
		for _, p := range e.Pairs {
			col := 1 + slices.Index(keys, p.Key)
			if row[col] != "" {
				row[col] += "; "
			}
			row[col] += p.Value.String()
		}
		rows = append(rows, row)
	}
	return header, rows
}

// WriteTable renders Table to w.
func (r *Result) WriteTable(w io.Writer) {
	header, rows := r.Table()
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader(header)
	tbl.SetAutoWrapText(false)
	tbl.AppendBulk(rows)
	tbl.Render()
}

// groupPairs collapses pairs into a single map value. Repeated keys collect
// their values into a list.
func groupPairs(pairs []Pair) value.Value {
	var keys []string
	var vals [][]value.Value
	for _, p := range pairs {
		i := slices.Index(keys, p.Key)
		if i < 0 {
			keys = append(keys, p.Key)
			vals = append(vals, nil)
			i = len(keys) - 1
		}
		vals[i] = append(vals[i], p.Value)
	}
	fields := make([]value.Field, len(keys))
	for i, k := range keys {
		v := vals[i][0]
		if len(vals[i]) > 1 {
			v = value.List(vals[i]...)
		}
		fields[i] = value.Field{Key: k, Value: v}
	}
	return value.Map(fields...)
}

// entryValue is the value an entry stands for in comparisons and exports: the
// value of its only pair, or the grouped map of all pairs.
func entryValue(pairs []Pair) value.Value {
	switch len(pairs) {
	case 0:
		return value.Absent
	case 1:
		return pairs[0].Value
	}
	return groupPairs(pairs)
}

// FinalJSON returns the JSON encoding of the value of the last non-empty
// entry. It returns "null" if the result is empty.
func (r *Result) FinalJSON() ([]byte, error) {
	v := value.Absent
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if pairs := r.Entries[i].Pairs; len(pairs) > 0 {
			v = entryValue(pairs)
			break
		}
	}
	return json.Marshal(v)
}

// Fingerprint returns a hash of the range and contents of the result. Two
// evaluations of the same operator over the same archive have the same
// fingerprint regardless of scheduling.
func (r *Result) Fingerprint() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("[%d,%d]\n%s", int64(r.Start), int64(r.End), r.String()))
}

// Plot renders the numeric values of key as an ASCII graph of the given
// height. Booleans plot as 0 and 1; time points without a numeric value
// repeat the previous one.
func (r *Result) Plot(key string, height int) (string, error) {
	var data []float64
	var last float64
	var found bool
	for i := range r.Entries {
		for _, p := range r.Entries[i].Pairs {
			if p.Key != key {
				continue
			}
			if f, ok := p.Value.AsFloat(); ok {
				last, found = f, true
				break
			}
			if b, ok := p.Value.AsBool(); ok {
				last, found = 0, true
				if b {
					last = 1
				}
				break
			}
		}
		data = append(data, last)
	}
	if !found {
		return "", errors.Newf("eval: no numeric values for key %q", key)
	}
	return asciigraph.Plot(data, asciigraph.Height(height), asciigraph.Caption(key)), nil
}
