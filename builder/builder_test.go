// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package builder

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/cockroachdb/tracequery/value"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	var a *archive.Archive
	var naive *Naive
	var diff *Diff
	var fallbacks []string

	parseTimes := func(s string) (start, end base.Time) {
		lo, hi, ok := strings.Cut(s, "..")
		v, err := strconv.ParseInt(lo, 10, 64)
		require.NoError(t, err)
		start, end = base.Time(v), base.Time(v)
		if ok {
			v, err = strconv.ParseInt(hi, 10, 64)
			require.NoError(t, err)
			end = base.Time(v)
		}
		return start, end
	}

	datadriven.RunTest(t, "testdata/build", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			a = archive.New()
			require.NoError(t, tracetest.Load(a, td.Input))
			fallbacks = nil
			naive = NewNaive(a)
			diff = NewDiff(a, DiffOptions{
				OnFallback: func(info FallbackInfo) {
					fallbacks = append(fallbacks, info.String())
				},
			})
			return ""

		case "append":
			require.NoError(t, tracetest.Load(a, td.Input))
			return ""

		case "build":
			strategy := "both"
			td.MaybeScanArgs(t, "strategy", &strategy)
			var out strings.Builder
			for line := range crstrings.LinesSeq(td.Input) {
				fields := strings.Fields(line)
				require.Len(t, fields, 2)
				item, err := ParseItem(fields[0])
				require.NoError(t, err)
				start, end := parseTimes(fields[1])
				for tm := start; tm <= end; tm++ {
					var v value.Value
					switch strategy {
					case "naive":
						v = naive.Build(item, tm)
					case "diff":
						v = diff.Build(item, tm)
					case "both":
						v = naive.Build(item, tm)
						if dv := diff.Build(item, tm); !dv.Equal(v) {
							td.Fatalf(t, "%s@%d: naive %s != diff %s", item, tm, v, dv)
						}
					default:
						td.Fatalf(t, "unknown strategy %q", strategy)
					}
					fmt.Fprintf(&out, "%s@%d: %s\n", item, int64(tm), v)
				}
			}
			return out.String()

		case "stats":
			s := diff.Stats()
			var out strings.Builder
			fmt.Fprintf(&out, "hits=%d misses=%d fallbacks=%d slot-indexes=%d\n",
				s.Hits, s.Misses, s.Fallbacks, s.SlotIndexes)
			for _, f := range fallbacks {
				fmt.Fprintln(&out, f)
			}
			return out.String()

		default:
			td.Fatalf(t, "unknown command %q", td.Cmd)
			return ""
		}
	})
}

func TestParseItem(t *testing.T) {
	for _, s := range []string{"x", "x:12", "#3", "#3.x", "#3.-1"} {
		item, err := ParseItem(s)
		require.NoError(t, err)
		require.Equal(t, s, item.String())
	}
	_, err := ParseItem("x:y")
	require.Error(t, err)
	_, err = ParseItem("#z")
	require.Error(t, err)
}

func TestShapeForType(t *testing.T) {
	for typ, want := range map[string]value.Shape{
		"list":      value.ShapeList,
		"tuple":     value.ShapeList,
		"dict":      value.ShapeMap,
		"set":       value.ShapeSet,
		"frozenset": value.ShapeSet,
		"Point":     value.ShapeMap,
	} {
		shape, ok := ShapeForType(typ)
		require.True(t, ok)
		require.Equal(t, want, shape, typ)
	}
	_, ok := ShapeForType("")
	require.False(t, ok)
}

// randomItems returns every slot and container of a random archive, and a
// member of each container.
func randomItems(cfg tracetest.RandomConfig) []Item {
	var items []Item
	for i := 0; i < cfg.Slots; i++ {
		items = append(items, Item{Name: tracetest.SlotName(i)}, Item{Name: tracetest.SlotName(i), Line: 2})
	}
	items = append(items, Item{Name: "f"})
	for id := base.ContainerID(1); id <= base.ContainerID(cfg.Containers); id++ {
		items = append(items, Item{Container: id}, Item{Container: id, Name: "0"}, Item{Container: id, Name: "k1"})
	}
	return items
}

// TestBuilderEquivalence checks that the naive and diff builders agree on
// every (item, time) pair of random archives, for monotonic, reversed and
// shuffled request orders.
func TestBuilderEquivalence(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))
	cfg := tracetest.DefaultRandomConfig
	items := randomItems(cfg)

	for iter := 0; iter < 20; iter++ {
		a := tracetest.RandomArchive(rng, cfg)
		last, ok := a.LastTime()
		require.True(t, ok)

		type query struct {
			item Item
			t    base.Time
		}
		var queries []query
		for _, item := range items {
			for tm := base.Time(-1); tm <= last+1; tm++ {
				queries = append(queries, query{item, tm})
			}
		}
		naive := NewNaive(a)
		want := make([]value.Value, len(queries))
		for i, q := range queries {
			want[i] = naive.Build(q.item, q.t)
		}

		orders := []func(n int) []int{
			func(n int) []int { return identity(n) },
			func(n int) []int {
				p := identity(n)
				for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
					p[i], p[j] = p[j], p[i]
				}
				return p
			},
			rng.Perm,
		}
		for _, order := range orders {
			diff := NewDiff(a, DiffOptions{})
			for _, i := range order(len(queries)) {
				got := diff.Build(queries[i].item, queries[i].t)
				if !got.Equal(want[i]) {
					t.Fatalf("%s@%d: naive and diff differ: %s\n%s",
						queries[i].item, queries[i].t, pretty.Diff(want[i], got),
						tracetest.FormatRecords(a.FlattenAndFilter()))
				}
			}
		}
	}
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// TestRoundTrip checks that a slot built at any time in [t_i, t_{i+1}) holds
// the value written at t_i, and is absent before the first write.
func TestRoundTrip(t *testing.T) {
	writes := []struct {
		t base.Time
		v value.Value
	}{
		{2, value.Int(1)},
		{5, value.Str("two")},
		{6, value.Float(3.5)},
		{10, value.None()},
	}
	a := archive.New()
	for _, w := range writes {
		key := archive.Key{Field: "x", Kind: archive.KindAssign, Slot: "x"}
		require.NoError(t, a.Append(key, w.t, archive.RecordValue{Value: w.v}))
	}
	for _, b := range []Builder{NewNaive(a), NewDiff(a, DiffOptions{})} {
		for tm := base.Time(0); tm < 15; tm++ {
			got := b.Build(Item{Name: "x"}, tm)
			want := value.Absent
			for _, w := range writes {
				if w.t <= tm {
					want = w.v
				}
			}
			require.True(t, want.Equal(got), "t=%d: want %s, got %s", tm, want, got)
		}
	}
}

// TestDiffConcurrent builds from many goroutines at once. Run with -race.
func TestDiffConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cfg := tracetest.DefaultRandomConfig
	a := tracetest.RandomArchive(rng, cfg)
	last, _ := a.LastTime()
	naive := NewNaive(a)
	diff := NewDiff(a, DiffOptions{})
	items := randomItems(cfg)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i, item := range items {
				tm := base.Time((i*7 + g*3) % int(last+1))
				if got, want := diff.Build(item, tm), naive.Build(item, tm); !got.Equal(want) {
					t.Errorf("%s@%d: %s != %s", item, tm, got, want)
				}
			}
		}(g)
	}
	wg.Wait()
}
