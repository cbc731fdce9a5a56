// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dsl

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Predicate encodes conditional logic that yields a boolean.
type Predicate[E any] interface {
	Evaluate(E) bool
	String() string
}

// NewPredicateParser constructs a new Parser of a Lisp-like DSL, where the
// resulting type implements Predicate[E]. NewPredicateParser predefines the
// combinators Not, And and Or; leaf predicates are defined by the caller.
func NewPredicateParser[E any]() *Parser[Predicate[E]] {
	p := NewParser[Predicate[E]]()
	p.DefineFunc("Not", parseNot[E])
	p.DefineFunc("And", parseAnd[E])
	p.DefineFunc("Or", parseOr[E])
	return p
}

// Not returns a Predicate that negates the provided predicate.
func Not[E any](p Predicate[E]) Predicate[E] { return not[E]{Predicate: p} }

// And returns a Predicate that evaluates to true if all its operands evaluate
// to true. Operands are evaluated in order and evaluation stops at the first
// false operand.
func And[E any](preds ...Predicate[E]) Predicate[E] { return and[E](preds) }

// Or returns a Predicate that evaluates to true if any of its operands evaluate
// true. Operands are evaluated in order and evaluation stops at the first
// true operand.
func Or[E any](preds ...Predicate[E]) Predicate[E] { return or[E](preds) }

type not[E any] struct {
	Predicate[E]
}

func (p not[E]) String() string    { return fmt.Sprintf("(Not %s)", p.Predicate.String()) }
func (p not[E]) Evaluate(e E) bool { return !p.Predicate.Evaluate(e) }

type and[E any] []Predicate[E]

func (p and[E]) String() string { return formatVariadic("And", p) }

func (p and[E]) Evaluate(e E) bool {
	for i := range p {
		if !p[i].Evaluate(e) {
			return false
		}
	}
	return true
}

type or[E any] []Predicate[E]

func (p or[E]) String() string { return formatVariadic("Or", p) }

func (p or[E]) Evaluate(e E) bool {
	for i := range p {
		if p[i].Evaluate(e) {
			return true
		}
	}
	return false
}

func formatVariadic[E any](name string, preds []Predicate[E]) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(name)
	for i := 0; i < len(preds); i++ {
		sb.WriteRune(' ')
		sb.WriteString(preds[i].String())
	}
	sb.WriteRune(')')
	return sb.String()
}

func parseNot[E any](p *Parser[Predicate[E]], s *Scanner) Predicate[E] {
	preds := p.ParseOperands(s)
	if len(preds) != 1 {
		panic(errors.Newf("dsl: not accepts exactly 1 argument, given %d", len(preds)))
	}
	return not[E]{Predicate: preds[0]}
}

func parseAnd[E any](p *Parser[Predicate[E]], s *Scanner) Predicate[E] {
	return And[E](p.ParseOperands(s)...)
}

func parseOr[E any](p *Parser[Predicate[E]], s *Scanner) Predicate[E] {
	return Or[E](p.ParseOperands(s)...)
}
