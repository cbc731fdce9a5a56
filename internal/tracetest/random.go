// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracetest

import (
	"fmt"
	"math/rand"

	"github.com/cockroachdb/metamorphic"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// RandomConfig configures RandomArchive.
type RandomConfig struct {
	// Records is the number of records to generate.
	Records int
	// Containers is the number of distinct containers. Containers are
	// assigned the types list, dict, set and Obj in rotation.
	Containers int
	// Slots is the number of distinct named slots.
	Slots int
}

// DefaultRandomConfig is a small configuration suitable for exhaustive
// comparisons across every (entity, time) pair.
var DefaultRandomConfig = RandomConfig{Records: 60, Containers: 6, Slots: 3}

var containerTypes = []string{"list", "dict", "set", "Obj"}

// ContainerType returns the type name RandomArchive uses for container id.
func ContainerType(id base.ContainerID) string {
	return containerTypes[int(id-1)%len(containerTypes)]
}

// SlotName returns the name of the i'th slot generated by RandomArchive.
func SlotName(i int) string {
	return fmt.Sprintf("s%d", i)
}

// RandomArchive generates an archive of random but well-formed records.
// References may form cycles, and a small fraction of references carry no
// type, which the builders must treat as inconsistent.
func RandomArchive(rng *rand.Rand, cfg RandomConfig) *archive.Archive {
	g := &generator{rng: rng, cfg: cfg, a: archive.New()}
	nextOp := metamorphic.Weighted[func()]{
		{Item: g.assign, Weight: 4},
		{Item: g.item, Weight: 8},
		{Item: g.builtin, Weight: 6},
		{Item: g.call, Weight: 1},
		{Item: g.tick, Weight: 5},
	}.RandomDeck(rng)
	for g.a.Len() < cfg.Records {
		nextOp()()
	}
	return g.a
}

type generator struct {
	rng *rand.Rand
	cfg RandomConfig
	a   *archive.Archive
	now base.Time
}

func (g *generator) tick() {
	g.now += base.Time(1 + g.rng.Intn(2))
}

func (g *generator) container() base.ContainerID {
	return base.ContainerID(1 + g.rng.Intn(g.cfg.Containers))
}

func (g *generator) slot() string {
	return SlotName(g.rng.Intn(g.cfg.Slots))
}

// value returns a primitive or a reference to a random container.
func (g *generator) value() archive.RecordValue {
	switch g.rng.Intn(8) {
	case 0, 1, 2:
		id := g.container()
		rv := archive.RecordValue{Value: value.Ref(id), Type: ContainerType(id)}
		if g.rng.Intn(20) == 0 {
			rv.Type = ""
		}
		return rv
	case 3:
		return archive.RecordValue{Value: value.Str(fmt.Sprintf("v%d", g.rng.Intn(4))), Type: "str"}
	case 4:
		return archive.RecordValue{Value: value.None(), Type: "NoneType"}
	default:
		return archive.RecordValue{Value: value.Int(int64(g.rng.Intn(5))), Type: "int"}
	}
}

func (g *generator) append(key archive.Key, rv archive.RecordValue) {
	rv.Line = 1 + g.rng.Intn(3)
	if err := g.a.Append(key, g.now, rv); err != nil {
		panic(err)
	}
}

func (g *generator) assign() {
	name := g.slot()
	g.append(archive.Key{Field: name, Kind: archive.KindAssign, Slot: name}, g.value())
}

func (g *generator) call() {
	g.append(archive.Key{Field: "f", Kind: archive.KindCall, Slot: g.slot()}, g.value())
}

func (g *generator) item() {
	id := g.container()
	key := archive.Key{Container: id, Slot: g.slot()}
	switch ContainerType(id) {
	case "list":
		key.Kind = archive.KindListItem
		key.Field = fmt.Sprint(g.rng.Intn(4))
	case "dict":
		key.Kind = archive.KindDictItem
		key.Field = fmt.Sprintf("k%d", g.rng.Intn(4))
	case "set":
		key.Kind = archive.KindSetItem
	default:
		key.Kind = archive.KindAttr
		key.Field = fmt.Sprintf("a%d", g.rng.Intn(3))
	}
	g.append(key, g.value())
}

func (g *generator) builtin() {
	id := g.container()
	key := archive.Key{Container: id, Kind: archive.KindBuiltin, Slot: g.slot()}
	rv := g.value()
	// source returns a reference to a container of the same type, used by
	// extend and update.
	source := func() archive.RecordValue {
		for {
			if src := g.container(); ContainerType(src) == ContainerType(id) {
				return archive.RecordValue{Value: value.Ref(src), Type: ContainerType(src)}
			}
		}
	}
	var ops []archive.Op
	switch ContainerType(id) {
	case "list":
		ops = []archive.Op{archive.OpAppend, archive.OpAppend, archive.OpExtend, archive.OpInsert,
			archive.OpRemove, archive.OpPop, archive.OpClear, archive.OpDelete}
	case "dict":
		ops = []archive.Op{archive.OpPop, archive.OpClear, archive.OpUpdate, archive.OpDelete}
	case "set":
		ops = []archive.Op{archive.OpAdd, archive.OpAdd, archive.OpDiscard, archive.OpRemove,
			archive.OpClear, archive.OpUpdate}
	default:
		ops = []archive.Op{archive.OpDelete}
	}
	key.Op = ops[g.rng.Intn(len(ops))]
	switch key.Op {
	case archive.OpExtend, archive.OpUpdate:
		rv = source()
	case archive.OpInsert:
		key.Field = fmt.Sprint(g.rng.Intn(3))
	case archive.OpPop:
		if ContainerType(id) == "dict" {
			key.Field = fmt.Sprintf("k%d", g.rng.Intn(4))
		} else if g.rng.Intn(2) == 0 {
			key.Field = fmt.Sprint(g.rng.Intn(3))
		}
		rv = archive.RecordValue{}
	case archive.OpDelete:
		switch ContainerType(id) {
		case "list":
			key.Field = fmt.Sprint(g.rng.Intn(3))
		case "dict":
			key.Field = fmt.Sprintf("k%d", g.rng.Intn(4))
		default:
			key.Field = fmt.Sprintf("a%d", g.rng.Intn(3))
		}
		rv = archive.RecordValue{}
	case archive.OpClear:
		rv = archive.RecordValue{}
	}
	g.append(key, rv)
}
