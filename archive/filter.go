// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package archive

import (
	"fmt"
	"go/token"

	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/dsl"
)

// Filter selects records. Filters are pure: evaluating one never modifies
// the record or the archive.
type Filter = dsl.Predicate[*Record]

// And returns a Filter that holds if every operand holds.
func And(filters ...Filter) Filter { return dsl.And[*Record](filters...) }

// Or returns a Filter that holds if any operand holds.
func Or(filters ...Filter) Filter { return dsl.Or[*Record](filters...) }

// Not returns a Filter that holds if f does not.
func Not(f Filter) Filter { return dsl.Not[*Record](f) }

// FieldEq returns a Filter matching records whose key field is name.
func FieldEq(name string) Filter { return fieldEq(name) }

// ContainerEq returns a Filter matching records owned by container id.
func ContainerEq(id ContainerID) Filter { return containerEq(id) }

// KindEq returns a Filter matching records of the given kind.
func KindEq(k Kind) Filter { return kindEq(k) }

// SlotEq returns a Filter matching records originating from the named slot.
func SlotEq(name string) Filter { return slotEq(name) }

// TimeAtMost returns a Filter matching records with time <= t.
func TimeAtMost(t Time) Filter { return timeAtMost(t) }

// TimeEq returns a Filter matching records with time == t.
func TimeEq(t Time) Filter { return timeEq(t) }

// TimeBetween returns a Filter matching records with start <= time <= end. An
// inverted range is a configuration error, reported immediately rather than
// clamped.
func TimeBetween(start, end Time) (Filter, error) {
	if start > end {
		return nil, base.ConfigErrorf("archive: inverted time range [%d, %d]", start, end)
	}
	return timeBetween{start: start, end: end}, nil
}

// LineEq returns a Filter matching records produced at the given source line.
func LineEq(line int) Filter { return lineEq(line) }

// RefersTo returns a Filter matching records whose value is a reference to
// container id, i.e. back-references to the container.
func RefersTo(id ContainerID) Filter { return refersTo(id) }

type fieldEq string

func (f fieldEq) Evaluate(r *Record) bool { return r.Key.Field == string(f) }
func (f fieldEq) String() string          { return fmt.Sprintf("(FieldEq %q)", string(f)) }

type containerEq ContainerID

func (f containerEq) Evaluate(r *Record) bool { return r.Key.Container == ContainerID(f) }
func (f containerEq) String() string          { return fmt.Sprintf("(ContainerEq %d)", uint64(f)) }

type kindEq Kind

func (f kindEq) Evaluate(r *Record) bool { return r.Key.Kind == Kind(f) }
func (f kindEq) String() string          { return fmt.Sprintf("(KindEq %q)", Kind(f).String()) }

type slotEq string

func (f slotEq) Evaluate(r *Record) bool { return r.Key.Slot == string(f) }
func (f slotEq) String() string          { return fmt.Sprintf("(SlotEq %q)", string(f)) }

type timeAtMost Time

func (f timeAtMost) Evaluate(r *Record) bool { return r.Time <= Time(f) }
func (f timeAtMost) String() string          { return fmt.Sprintf("(TimeAtMost %d)", int64(f)) }

type timeEq Time

func (f timeEq) Evaluate(r *Record) bool { return r.Time == Time(f) }
func (f timeEq) String() string          { return fmt.Sprintf("(TimeEq %d)", int64(f)) }

type timeBetween struct {
	start, end Time
}

func (f timeBetween) Evaluate(r *Record) bool { return f.start <= r.Time && r.Time <= f.end }
func (f timeBetween) String() string {
	return fmt.Sprintf("(TimeBetween %d %d)", int64(f.start), int64(f.end))
}

type lineEq int

func (f lineEq) Evaluate(r *Record) bool { return r.Value.Line == int(f) }
func (f lineEq) String() string          { return fmt.Sprintf("(LineEq %d)", int(f)) }

type refersTo ContainerID

func (f refersTo) Evaluate(r *Record) bool {
	id, ok := r.Value.Value.Container()
	return ok && id == ContainerID(f)
}
func (f refersTo) String() string { return fmt.Sprintf("(RefersTo %d)", uint64(f)) }

var filterParser = func() *dsl.Parser[Filter] {
	p := dsl.NewPredicateParser[*Record]()
	p.DefineFunc("FieldEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		name := s.ConsumeString()
		s.Consume(token.RPAREN)
		return FieldEq(name)
	})
	p.DefineFunc("SlotEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		name := s.ConsumeString()
		s.Consume(token.RPAREN)
		return SlotEq(name)
	})
	p.DefineFunc("ContainerEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		id := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return ContainerEq(ContainerID(id))
	})
	p.DefineFunc("RefersTo", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		id := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return RefersTo(ContainerID(id))
	})
	p.DefineFunc("KindEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		name := s.ConsumeString()
		s.Consume(token.RPAREN)
		k, ok := ParseKind(name)
		if !ok {
			// An unknown kind matches nothing.
			return Or()
		}
		return KindEq(k)
	})
	p.DefineFunc("TimeAtMost", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		t := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return TimeAtMost(Time(t))
	})
	p.DefineFunc("TimeEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		t := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return TimeEq(Time(t))
	})
	p.DefineFunc("TimeBetween", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		start, end := s.ConsumeInt(), s.ConsumeInt()
		s.Consume(token.RPAREN)
		f, err := TimeBetween(Time(start), Time(end))
		if err != nil {
			panic(err)
		}
		return f
	})
	p.DefineFunc("LineEq", func(_ *dsl.Parser[Filter], s *dsl.Scanner) Filter {
		line := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return LineEq(int(line))
	})
	return p
}()

// ParseFilter parses the debug notation of a filter, for example
//
//	(And (FieldEq "x") (Or (TimeEq 3) (TimeAtMost 1)))
func ParseFilter(s string) (Filter, error) {
	return filterParser.Parse(s)
}
