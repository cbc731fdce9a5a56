// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tracetest defines a compact text notation for traces, used by tests
// and by the debug tool.
//
// A trace is a sequence of lines. Blank lines and lines starting with '#' are
// ignored. Every other line is a record:
//
//	<time> <kind> [container=<id>] [field=<f>] [slot=<s>] [op=<op>]
//	    [value=<v>] [type=<t>] [line=<n>] [expr=<e>]
//
// or one of the directives "pause" and "resume", which toggle recording on the
// archive. Values are written as none, true, false, integers, floats, quoted
// strings, or ref:<id> for a reference to a container. Field, slot, type and
// expr may be quoted when they contain spaces.
package tracetest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/archive"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/cockroachdb/tracequery/value"
)

// Load appends every record of the trace to a. The first malformed line stops
// the load and its error is returned, annotated with the line number.
func Load(a *archive.Archive, input string) error {
	for i, line := range strings.Split(input, "\n") {
		lineNum := i + 1
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == "pause":
			a.PauseRecord()
			continue
		case line == "resume":
			a.ResumeRecord()
			continue
		}
		key, t, v, err := ParseRecord(line)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
		if err := a.Append(key, t, v); err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
	}
	return nil
}

// MustLoad returns a new archive holding the trace. It panics if the trace is
// malformed.
func MustLoad(input string) *archive.Archive {
	a := archive.New()
	if err := Load(a, input); err != nil {
		panic(err)
	}
	return a
}

// ParseRecord parses a single record line.
func ParseRecord(line string) (archive.Key, base.Time, archive.RecordValue, error) {
	var key archive.Key
	var rv archive.RecordValue
	toks, err := tokenize(line)
	if err != nil {
		return key, 0, rv, err
	}
	if len(toks) < 2 {
		return key, 0, rv, errors.Newf("expected <time> <kind>: %q", line)
	}
	ti, err := strconv.ParseInt(toks[0], 10, 64)
	if err != nil {
		return key, 0, rv, errors.Wrapf(err, "time")
	}
	kind, ok := archive.ParseKind(toks[1])
	if !ok {
		return key, 0, rv, errors.Newf("unknown kind %q", toks[1])
	}
	key.Kind = kind
	for _, tok := range toks[2:] {
		name, arg, ok := strings.Cut(tok, "=")
		if !ok {
			return key, 0, rv, errors.Newf("expected <name>=<value>: %q", tok)
		}
		arg, err = unquote(arg)
		if err != nil {
			return key, 0, rv, err
		}
		switch name {
		case "container":
			if key.Container, err = base.ParseContainerID(arg); err != nil {
				return key, 0, rv, errors.Wrapf(err, "container")
			}
		case "field":
			key.Field = arg
		case "slot":
			key.Slot = arg
		case "op":
			if key.Op, ok = archive.ParseOp(arg); !ok {
				return key, 0, rv, errors.Newf("unknown op %q", arg)
			}
		case "value":
			if rv.Value, err = ParseValue(tok[len("value="):]); err != nil {
				return key, 0, rv, err
			}
		case "type":
			rv.Type = arg
		case "line":
			if rv.Line, err = strconv.Atoi(arg); err != nil {
				return key, 0, rv, errors.Wrapf(err, "line")
			}
		case "expr":
			rv.Expr = arg
		default:
			return key, 0, rv, errors.Newf("unknown argument %q", name)
		}
	}
	if key.Kind == archive.KindBuiltin && key.Op == archive.OpNone {
		return key, 0, rv, errors.Newf("builtin record without op: %q", line)
	}
	return key, base.Time(ti), rv, nil
}

// ParseValue parses a primitive or reference value.
func ParseValue(s string) (value.Value, error) {
	switch {
	case s == "none":
		return value.None(), nil
	case s == "true":
		return value.Bool(true), nil
	case s == "false":
		return value.Bool(false), nil
	case strings.HasPrefix(s, `"`):
		str, err := strconv.Unquote(s)
		if err != nil {
			return value.Absent, errors.Wrapf(err, "string %s", s)
		}
		return value.Str(str), nil
	case strings.HasPrefix(s, "ref:"):
		id, err := base.ParseContainerID(s[len("ref:"):])
		if err != nil {
			return value.Absent, errors.Wrapf(err, "ref %s", s)
		}
		return value.Ref(id), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f), nil
	}
	return value.Absent, errors.Newf("unparseable value %q", s)
}

// FormatValue is the inverse of ParseValue. It returns the empty string for
// values that have no notation (materialized composites).
func FormatValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNone:
		return "none"
	case value.KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case value.KindInt, value.KindFloat, value.KindStr:
		return v.String()
	case value.KindRef:
		id, _ := v.Container()
		return "ref:" + strconv.FormatUint(uint64(id), 10)
	}
	return ""
}

// FormatRecord renders r in the notation accepted by ParseRecord.
func FormatRecord(r *archive.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s", int64(r.Time), r.Key.Kind)
	if r.Key.Container != base.NoContainer {
		fmt.Fprintf(&sb, " container=%d", uint64(r.Key.Container))
	}
	arg := func(name, s string) {
		if s == "" {
			return
		}
		if strings.ContainsAny(s, " \t\"") {
			s = strconv.Quote(s)
		}
		fmt.Fprintf(&sb, " %s=%s", name, s)
	}
	arg("field", r.Key.Field)
	arg("slot", r.Key.Slot)
	arg("op", r.Key.Op.String())
	if s := FormatValue(r.Value.Value); s != "" {
		fmt.Fprintf(&sb, " value=%s", s)
	}
	arg("type", r.Value.Type)
	if r.Value.Line != 0 {
		fmt.Fprintf(&sb, " line=%d", r.Value.Line)
	}
	arg("expr", r.Value.Expr)
	return sb.String()
}

// FormatRecords renders one record per line.
func FormatRecords(records []archive.Record) string {
	var sb strings.Builder
	for i := range records {
		sb.WriteString(FormatRecord(&records[i]))
		sb.WriteString("\n")
	}
	return sb.String()
}

// tokenize splits a line on whitespace, keeping quoted strings (which may
// follow an '=') intact.
func tokenize(line string) ([]string, error) {
	var toks []string
	for {
		line = strings.TrimLeft(line, " \t")
		if line == "" {
			return toks, nil
		}
		var tok strings.Builder
		for line != "" && line[0] != ' ' && line[0] != '\t' {
			if line[0] == '"' {
				q, err := strconv.QuotedPrefix(line)
				if err != nil {
					return nil, errors.Wrapf(err, "unterminated string in %q", line)
				}
				tok.WriteString(q)
				line = line[len(q):]
				continue
			}
			tok.WriteByte(line[0])
			line = line[1:]
		}
		toks = append(toks, tok.String())
	}
}

func unquote(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	u, err := strconv.Unquote(s)
	return u, errors.Wrapf(err, "string %s", s)
}
