// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dsl

import (
	"go/token"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/testutils/require"
)

type hasPrefix string

func (p hasPrefix) Evaluate(s string) bool { return strings.HasPrefix(s, string(p)) }
func (p hasPrefix) String() string         { return "(HasPrefix \"" + string(p) + "\")" }

func newTestParser() *Parser[Predicate[string]] {
	p := NewPredicateParser[string]()
	p.DefineFunc("HasPrefix", func(_ *Parser[Predicate[string]], s *Scanner) Predicate[string] {
		prefix := s.ConsumeString()
		s.Consume(token.RPAREN)
		return hasPrefix(prefix)
	})
	p.DefineConstant("Any", func() Predicate[string] { return hasPrefix("") })
	return p
}

func TestParsePredicates(t *testing.T) {
	p := newTestParser()
	pred, err := p.Parse(`(And (HasPrefix "a") (Not (HasPrefix "ab")))`)
	require.NoError(t, err)
	require.Equal(t, `(And (HasPrefix "a") (Not (HasPrefix "ab")))`, pred.String())
	require.True(t, pred.Evaluate("ac"))
	require.False(t, pred.Evaluate("abc"))
	require.False(t, pred.Evaluate("b"))

	pred, err = p.Parse(`(Or (HasPrefix "x") Any)`)
	require.NoError(t, err)
	require.True(t, pred.Evaluate("b"))
}

func TestParseErrors(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{
		`(Unknown)`,
		`Missing`,
		`(Not Any Any)`,
		`(HasPrefix 1)`,
		`(And Any`,
	} {
		_, err := p.Parse(input)
		require.True(t, err != nil)
	}
}

func TestConsumeInt(t *testing.T) {
	ints := NewParser[int64]()
	ints.DefineFunc("Int", func(_ *Parser[int64], s *Scanner) int64 {
		v := s.ConsumeInt()
		s.Consume(token.RPAREN)
		return v
	})
	v, err := ints.Parse("(Int -12)")
	require.NoError(t, err)
	require.Equal(t, int64(-12), v)
}
