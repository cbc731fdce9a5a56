// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"testing"

	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/stretchr/testify/require"
)

func TestOptionsString(t *testing.T) {
	const expected = `[Version]
  tracequery_version=0.1

[Options]
  builder=diff
  inv_parallelism=0
`

	var opts *Options
	opts = opts.EnsureDefaults()
	if v := opts.String(); expected != v {
		t.Fatalf("expected\n%s\nbut found\n%s", expected, v)
	}
}

func TestOptionsParse(t *testing.T) {
	testCases := []Options{
		{},
		{Builder: builder.StrategyNaive},
		{Builder: builder.StrategyDiff, InvParallelism: 8},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			opts := c.Clone().EnsureDefaults()
			str := opts.String()

			var parsedOptions Options
			require.NoError(t, parsedOptions.Parse(str))
			parsedStr := parsedOptions.String()
			if str != parsedStr {
				t.Fatalf("expected\n%s\nbut found\n%s", str, parsedStr)
			}
			require.Equal(t, opts.Builder, parsedOptions.Builder)
			require.Equal(t, opts.InvParallelism, parsedOptions.InvParallelism)
		})
	}
}

func TestOptionsParseComments(t *testing.T) {
	var opts Options
	require.NoError(t, opts.Parse(`
# comment
; another comment
[Options]

  builder=naive
  inv_parallelism=3
`))
	require.Equal(t, builder.StrategyNaive, opts.Builder)
	require.Equal(t, 3, opts.InvParallelism)
}

func TestOptionsParseInvalid(t *testing.T) {
	testCases := []struct {
		options  string
		expected string
	}{
		{`[Options]
  builder=fancy`,
			`tracequery: parsing Options.builder: builder: unknown strategy "fancy"`},
		{`[Options]
  inv_parallelism=many`,
			`tracequery: parsing Options.inv_parallelism: strconv.Atoi: parsing "many": invalid syntax`},
		{`[Options]
  cache_size=10`,
			`tracequery: unknown option: Options.cache_size`},
		{`[Level "0"]
  block_size=10`,
			`tracequery: unknown option: Level "0".block_size`},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			var opts Options
			err := opts.Parse(c.options)
			require.Error(t, err)
			require.True(t, base.IsConfigError(err), "%v", err)
			require.Equal(t, c.expected, err.Error())
		})
	}

	var opts Options
	err := opts.Parse("[Options]\n  builder\n")
	require.True(t, base.IsConfigError(err))
	require.Regexp(t, `invalid key=value syntax`, err)
}

func TestOptionsEnsureDefaults(t *testing.T) {
	opts := (&Options{InvParallelism: -3}).EnsureDefaults()
	require.Equal(t, 0, opts.InvParallelism)
	require.NotNil(t, opts.Logger)
	require.NotNil(t, opts.EventListener.BuilderFallback)
	require.NotNil(t, opts.EventListener.InvDispatched)
	require.NotNil(t, opts.EventListener.EvalEnd)

	// Clone is shallow and leaves the original untouched.
	orig := &Options{InvParallelism: 2}
	clone := orig.Clone()
	clone.InvParallelism = 5
	require.Equal(t, 2, orig.InvParallelism)
}
