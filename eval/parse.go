// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package eval

import (
	"go/token"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/internal/dsl"
	"github.com/cockroachdb/tracequery/value"
)

var opParser = func() *dsl.Parser[Operator] {
	p := dsl.NewParser[Operator]()
	p.DefineConstant("True", True)
	p.DefineConstant("False", False)
	p.DefineConstant("None", func() Operator { return Const(value.None()) })
	p.DefineLiteral(parseLiteral)

	p.DefineFunc("Raw", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		item, err := builder.ParseItem(s.ConsumeString())
		if err != nil {
			panic(err)
		}
		if s.Peek().Kind == token.INT {
			item.Line = int(s.ConsumeInt())
		}
		s.Consume(token.RPAREN)
		return Raw(item)
	})
	p.DefineFunc("Const", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		ops := p.ParseOperands(s)
		if len(ops) != 1 {
			panic(base.ConfigErrorf("eval: Const takes 1 operand, got %d", len(ops)))
		}
		return ops[0]
	})
	p.DefineFunc("CallStack", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		callee := ""
		if s.Peek().Kind == token.STRING {
			callee = s.ConsumeString()
		}
		s.Consume(token.RPAREN)
		return CallStack(callee)
	})
	defineNamed(p, "Ref", Ref)
	defineNamed(p, "QueryRef", QueryRef)
	p.DefineFunc("OpRef", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		name := s.ConsumeString()
		return OpRef(name, p.ParseOperands(s)...)
	})

	defineUnary(p, "Not", Not)
	defineUnary(p, "Old", Old)
	defineUnary(p, "Next", Next)
	defineUnary(p, "Group", Group)
	defineUnary(p, "Before", Before)
	defineUnary(p, "Finally", Finally)
	defineUnary(p, "Globally", Globally)
	defineUnary(p, "AllFuture", AllFuture)

	defineBinary(p, "Until", Until)
	defineBinary(p, "Release", Release)
	defineBinary(p, "And", And)
	defineBinary(p, "Or", Or)
	defineBinary(p, "Eq", Eq)
	defineBinary(p, "Lt", Lt)
	defineBinary(p, "AndThan", AndThan)
	defineBinary(p, "InTime", InTime)
	defineBinary(p, "Inv", Inv)

	p.DefineFunc("Join", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		op, err := NewJoin(p.ParseOperands(s)...)
		if err != nil {
			panic(err)
		}
		return op
	})
	p.DefineFunc("ForEach", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		ops := p.ParseOperands(s)
		if len(ops) != 3 {
			panic(base.ConfigErrorf("eval: ForEach takes 3 operands, got %d", len(ops)))
		}
		name, ok := constString(ops[1])
		if !ok {
			panic(base.ConfigErrorf("eval: ForEach name must be a string constant, got %s", ops[1]))
		}
		return ForEach(ops[0], name, ops[2])
	})
	p.DefineFunc("Union", func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		return Union(p.ParseOperands(s)...)
	})
	return p
}()

// parseLiteral turns a string or number literal into a constant operator.
func parseLiteral(s *dsl.Scanner, tok dsl.Token) Operator {
	neg := false
	if tok.Kind == token.SUB {
		neg = true
		tok = s.Scan()
	}
	switch tok.Kind {
	case token.STRING:
		if !neg {
			str, err := strconv.Unquote(tok.Lit)
			if err != nil {
				panic(errors.Wrapf(err, "eval: unquoting %s", tok.Lit))
			}
			return Const(value.Str(str))
		}
	case token.INT:
		v, err := strconv.ParseInt(tok.Lit, 0, 64)
		if err != nil {
			panic(errors.Wrapf(err, "eval: parsing %s", tok.Lit))
		}
		if neg {
			v = -v
		}
		return Const(value.Int(v))
	case token.FLOAT:
		v, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			panic(errors.Wrapf(err, "eval: parsing %s", tok.Lit))
		}
		if neg {
			v = -v
		}
		return Const(value.Float(v))
	}
	panic(errors.Newf("eval: unexpected literal %s", tok.String()))
}

func defineNamed(p *dsl.Parser[Operator], name string, fn func(string) Operator) {
	p.DefineFunc(name, func(_ *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		arg := s.ConsumeString()
		s.Consume(token.RPAREN)
		return fn(arg)
	})
}

func defineUnary(p *dsl.Parser[Operator], name string, fn func(Operator) Operator) {
	p.DefineFunc(name, func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		ops := p.ParseOperands(s)
		if len(ops) != 1 {
			panic(base.ConfigErrorf("eval: %s takes 1 operand, got %d", name, len(ops)))
		}
		return fn(ops[0])
	})
}

func defineBinary(p *dsl.Parser[Operator], name string, fn func(a, b Operator) Operator) {
	p.DefineFunc(name, func(p *dsl.Parser[Operator], s *dsl.Scanner) Operator {
		ops := p.ParseOperands(s)
		if len(ops) != 2 {
			panic(base.ConfigErrorf("eval: %s takes 2 operands, got %d", name, len(ops)))
		}
		return fn(ops[0], ops[1])
	})
}

// Parse parses the debug notation of an operator tree, the notation produced
// by Operator.String. For example:
//
//	(Until (Raw "running") (Eq (Raw "x") 3))
//	(Join (Raw "a") (Raw "b") "l" "r" (Lt (Ref "l") (Ref "r")))
func Parse(s string) (Operator, error) {
	return opParser.Parse(s)
}
