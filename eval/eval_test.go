// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/cockroachdb/tracequery/value"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	var a *archive.Archive
	// Every operator is evaluated through both builder strategies, which
	// must agree.
	var contexts []*Context
	var infos []string

	datadriven.RunTest(t, "testdata/eval", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			a = archive.New()
			require.NoError(t, tracetest.Load(a, td.Input))
			contexts = []*Context{
				NewContext(a, builder.NewNaive(a)),
				NewContext(a, builder.NewDiff(a, builder.DiffOptions{})),
			}
			contexts[0].InvDispatched = func(info InvInfo) {
				infos = append(infos, info.String())
			}
			return ""

		case "eval":
			op, err := Parse(td.Input)
			if err != nil {
				return fmt.Sprintf("error: %s\n", err)
			}
			start, end, parallelism := 0, int(base.TimeMax), 0
			td.MaybeScanArgs(t, "start", &start)
			td.MaybeScanArgs(t, "end", &end)
			td.MaybeScanArgs(t, "parallelism", &parallelism)
			op = Restrict(op, base.Time(start), base.Time(end))

			infos = nil
			var outputs []string
			for _, ctx := range contexts {
				ctx.Parallelism = parallelism
				r, err := op.Eval(ctx)
				if err != nil {
					outputs = append(outputs, fmt.Sprintf("error: %s\n", err))
					continue
				}
				if r.Empty() {
					outputs = append(outputs, "<empty>\n")
					continue
				}
				outputs = append(outputs, r.String())
			}
			for _, out := range outputs[1:] {
				if out != outputs[0] {
					td.Fatalf(t, "builders disagree:\n%s\nvs\n%s", outputs[0], out)
				}
			}
			var sb strings.Builder
			for _, info := range infos {
				fmt.Fprintln(&sb, info)
			}
			sb.WriteString(outputs[0])
			return sb.String()

		case "bind-result":
			var name string
			td.ScanArgs(t, "name", &name)
			op, err := Parse(td.Input)
			require.NoError(t, err)
			for _, ctx := range contexts {
				r, err := op.Eval(ctx)
				require.NoError(t, err)
				ctx.BindResult(name, r)
			}
			return ""

		case "bind-query":
			var name string
			td.ScanArgs(t, "name", &name)
			op, err := Parse(td.Input)
			require.NoError(t, err)
			for _, ctx := range contexts {
				ctx.BindQuery(name, op)
			}
			return ""

		case "define-op":
			var name, params string
			td.ScanArgs(t, "name", &name)
			td.ScanArgs(t, "params", &params)
			body, err := Parse(td.Input)
			require.NoError(t, err)
			for _, ctx := range contexts {
				ctx.Define(name, strings.Split(params, ","), body)
			}
			return ""

		default:
			td.Fatalf(t, "unknown command %q", td.Cmd)
			return ""
		}
	})
}

func TestParseString(t *testing.T) {
	for _, s := range []string{
		`(Raw "x")`,
		`(Raw "x" 12)`,
		`(Raw "#3.x")`,
		`(Not (Raw "p"))`,
		`(Until True (Raw "p"))`,
		`(Release False (Raw "p"))`,
		`(Finally (Old (Raw "x")))`,
		`(AndThan (Raw "p") (Next (Raw "q")))`,
		`(Eq (Raw "x") -3)`,
		`(Lt (Raw "x") 2.5)`,
		`(Eq (Raw "s") "done")`,
		`(Eq (Raw "s") None)`,
		`(InTime (Raw "x") (Raw "t"))`,
		`(Inv (Raw "s") (Globally (Raw "c")))`,
		`(Join (Raw "a") (Raw "b") "l" "r" (Lt (Ref "l") (Ref "r")))`,
		`(Join (Raw "a") (Raw "b") "l" "r" True (Ref "l"))`,
		`(ForEach (Raw "a") "v" (Group (Ref "v")))`,
		`(Union (Raw "a") (CallStack) (CallStack "f"))`,
		`(OpRef "lower" (QueryRef "q") (Before (AllFuture (Raw "p"))))`,
		`(Union)`,
	} {
		op, err := Parse(s)
		require.NoError(t, err, s)
		require.Equal(t, s, op.String())
	}
}

func TestConfigErrors(t *testing.T) {
	for _, s := range []string{
		`(Not)`,
		`(Until (Raw "p"))`,
		`(Join (Raw "a") (Raw "b") "l" "r")`,
		`(Join (Raw "a") (Raw "b") "l" 3 True)`,
		`(ForEach (Raw "a") (Raw "v") True)`,
	} {
		_, err := Parse(s)
		require.Error(t, err, s)
		require.True(t, errors.Is(err, base.ErrConfiguration), "%s: %v", s, err)
	}

	a := tracetest.MustLoad(`
0 assign field=x value=1
0 assign field=y value=2
`)
	ctx := NewContext(a, builder.NewNaive(a))
	_, err := Inv(Union(Raw(builder.Item{Name: "x"}), Raw(builder.Item{Name: "y"})), True()).Eval(ctx)
	require.True(t, base.IsConfigError(err), "%v", err)

	ctx.Define("f", []string{"a", "b"}, True())
	_, err = OpRef("f", True()).Eval(ctx)
	require.True(t, base.IsConfigError(err), "%v", err)
}

// randomSeries returns an archive in which slots p and q take a random
// boolean value at every time of [0, n).
func randomSeries(rng *rand.Rand, n int) (a *archive.Archive, p, q []bool) {
	a = archive.New()
	p, q = make([]bool, n), make([]bool, n)
	for i := 0; i < n; i++ {
		p[i], q[i] = rng.Intn(3) == 0, rng.Intn(3) == 0
		tm := base.Time(i)
		for _, slot := range []struct {
			name string
			v    bool
		}{{"p", p[i]}, {"q", q[i]}} {
			err := a.Append(archive.Key{Field: slot.name, Kind: archive.KindAssign, Slot: slot.name},
				tm, archive.RecordValue{Value: value.Bool(slot.v), Type: "bool"})
			if err != nil {
				panic(err)
			}
		}
	}
	return a, p, q
}

func TestTemporalLaws(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	p, q := Raw(builder.Item{Name: "p"}), Raw(builder.Item{Name: "q"})
	for iter := 0; iter < 50; iter++ {
		n := 1 + rng.Intn(20)
		a, pv, qv := randomSeries(rng, n)
		ctx := NewContext(a, builder.NewDiff(a, builder.DiffOptions{}))
		s := base.Time(rng.Intn(n))
		e := s + base.Time(rng.Intn(n-int(s)))

		exists := func(lo, hi base.Time, f func(base.Time) bool) bool {
			for j := lo; j <= hi; j++ {
				if f(j) {
					return true
				}
			}
			return false
		}
		P := func(j base.Time) bool { return pv[j] }
		Q := func(j base.Time) bool { return qv[j] }
		firstP := e + 1
		for j := e; j >= s; j-- {
			if pv[j] {
				firstP = j
			}
		}

		laws := []struct {
			op   Operator
			want func(t base.Time) bool
		}{
			{Not(p), func(t base.Time) bool { return !pv[t] }},
			{And(p, q), func(t base.Time) bool { return pv[t] && qv[t] }},
			{Or(p, q), func(t base.Time) bool { return pv[t] || qv[t] }},
			{Next(p), func(t base.Time) bool { return t == e || pv[t+1] }},
			{Old(p), func(t base.Time) bool { return t > s && pv[t-1] }},
			{Until(p, q), func(t base.Time) bool {
				return exists(t, e, func(j base.Time) bool {
					return qv[j] && !exists(t, j-1, func(i base.Time) bool { return !pv[i] })
				})
			}},
			{Release(p, q), func(t base.Time) bool {
				return !exists(t, e, func(j base.Time) bool {
					return !qv[j] && !exists(t, j-1, P)
				})
			}},
			{Finally(p), func(t base.Time) bool { return exists(t, e, P) }},
			{Globally(p), func(t base.Time) bool {
				return !exists(t, e, func(j base.Time) bool { return !pv[j] })
			}},
			{AllFuture(p), func(t base.Time) bool {
				return !exists(t+1, e, func(j base.Time) bool { return !pv[j] })
			}},
			{AndThan(p, q), func(t base.Time) bool { return pv[t] && exists(t+1, e, Q) }},
			{Before(p), func(t base.Time) bool { return t < firstP }},
			// Duality of Until and Release.
			{Not(Release(p, q)), func(t base.Time) bool {
				return exists(t, e, func(j base.Time) bool {
					return !qv[j] && !exists(t, j-1, P)
				})
			}},
			{Until(Not(p), Not(q)), func(t base.Time) bool {
				return exists(t, e, func(j base.Time) bool {
					return !qv[j] && !exists(t, j-1, P)
				})
			}},
			{Not(Finally(Not(p))), func(t base.Time) bool {
				return !exists(t, e, func(j base.Time) bool { return !pv[j] })
			}},
		}
		for _, law := range laws {
			r, err := Restrict(law.op, s, e).Eval(ctx)
			require.NoError(t, err)
			require.Equal(t, s, r.Start)
			require.Equal(t, e, r.End)
			for tm := s; tm <= e; tm++ {
				require.Equal(t, law.want(tm), r.Truth(tm), "%s at %d over [%d, %d]\np=%v\nq=%v",
					law.op, tm, s, e, pv, qv)
			}
		}
	}
}

func TestInvDeterminism(t *testing.T) {
	defer leaktest.AfterTest(t)()

	seed := time.Now().UnixNano()
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))
	a, _, _ := randomSeries(rng, 300)

	p, q := Raw(builder.Item{Name: "p"}), Raw(builder.Item{Name: "q"})
	op := Inv(p, Or(q, Next(Finally(q))))
	eval := func(parallelism int) *Result {
		ctx := NewContext(a, builder.NewDiff(a, builder.DiffOptions{}))
		ctx.Parallelism = parallelism
		r, err := op.Eval(ctx)
		require.NoError(t, err)
		return r
	}
	want := eval(1)
	for _, parallelism := range []int{2, 4, 16} {
		got := eval(parallelism)
		if got.Fingerprint() != want.Fingerprint() {
			diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(want.String()),
				B:        difflib.SplitLines(got.String()),
				FromFile: "parallelism=1",
				ToFile:   fmt.Sprintf("parallelism=%d", parallelism),
				Context:  2,
			})
			t.Fatalf("results differ:\n%s", diff)
		}
	}
}

func TestInvSharedEndpoints(t *testing.T) {
	a := tracetest.MustLoad(`
0 assign field=s value=true
0 assign field=c value=true
1 assign field=s value=false
2 assign field=s value=true
3 assign field=s value=false
4 assign field=s value=true
5 assign field=s value=false
6 assign field=s value=true
`)
	// The intervals are [2, 4] and [4, 6]. Old(c) has no predecessor at the
	// start of an interval, so it fails at 4 in the second interval only.
	op := Inv(Raw(builder.Item{Name: "s"}), Old(Raw(builder.Item{Name: "c"})))
	r, err := op.Eval(NewContext(a, builder.NewNaive(a)))
	require.NoError(t, err)
	require.Len(t, r.At(4), 2)
	require.True(t, r.Truth(4))
	require.False(t, r.Holds(4))
	require.True(t, r.Holds(6))
	require.False(t, r.Holds(2))
	require.False(t, r.Holds(0))
}

func TestResultSurface(t *testing.T) {
	a := tracetest.MustLoad(`
0 assign field=x value=1
1 assign field=x value=2
2 assign field=x value=3
2 assign field=s value="a"
`)
	ctx := NewContext(a, builder.NewNaive(a))
	r, err := Raw(builder.Item{Name: "x"}).Eval(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{"x"}, r.Keys())
	header, rows := r.Table()
	require.Equal(t, []string{"time", "x"}, header)
	require.Equal(t, [][]string{{"0", "1"}, {"1", "2"}, {"2", "3"}}, rows)

	var buf bytes.Buffer
	r.WriteTable(&buf)
	require.Contains(t, buf.String(), "TIME")

	b, err := r.FinalJSON()
	require.NoError(t, err)
	require.Equal(t, "3", string(b))

	plot, err := r.Plot("x", 4)
	require.NoError(t, err)
	require.Contains(t, plot, "x")
	_, err = r.Plot("y", 4)
	require.Error(t, err)

	g, err := Group(Union(Raw(builder.Item{Name: "x"}), Raw(builder.Item{Name: "s"}))).Eval(ctx)
	require.NoError(t, err)
	b, err = g.FinalJSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, map[string]interface{}{"x": 3.0, "s": "a"}, decoded)

	empty, err := Raw(builder.Item{Name: "nope"}).Eval(ctx)
	require.NoError(t, err)
	b, err = empty.FinalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(b))
	require.NotEqual(t, r.Fingerprint(), empty.Fingerprint())
}
