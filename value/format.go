// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package value

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/redact"
)

// String returns a compact, deterministic rendering of v. Strings are quoted,
// composites are rendered recursively.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindAbsent:
		sb.WriteString("<absent>")
	case KindNone:
		sb.WriteString("None")
	case KindBool:
		if v.i != 0 {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindStr:
		sb.WriteString(strconv.Quote(v.s))
	case KindRef:
		sb.WriteString("<ref ")
		sb.WriteString(v.id.String())
		sb.WriteString(">")
	case KindBackRef:
		sb.WriteString("<backref ")
		sb.WriteString(v.id.String())
		sb.WriteString(">")
	case KindEmpty:
		switch v.shape {
		case ShapeList:
			sb.WriteString("[]")
		case ShapeSet:
			sb.WriteString("set()")
		default:
			sb.WriteString("{}")
		}
	case KindList, KindSet:
		lb, rb := "[", "]"
		if v.kind == KindSet {
			lb, rb = "{", "}"
		}
		sb.WriteString(lb)
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteString(rb)
	case KindMap:
		sb.WriteString("{")
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Key)
			sb.WriteString(": ")
			f.Value.format(sb)
		}
		sb.WriteString("}")
	}
}

// SafeFormat implements redact.SafeFormatter. The kind is safe; the payload
// is user data and is redactable.
func (v Value) SafeFormat(w redact.SafePrinter, _ rune) {
	switch v.kind {
	case KindAbsent, KindNone, KindEmpty:
		w.Print(redact.SafeString(v.String()))
	case KindRef, KindBackRef:
		w.Printf("<%s %s>", redact.SafeString(v.kind.String()), v.id)
	default:
		w.Printf("%s(%s)", redact.SafeString(v.kind.String()), v.String())
	}
}

// MarshalJSON implements json.Marshaler. Maps keep their field order;
// references are rendered as {"$ref": id} objects.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindAbsent, KindNone:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.i != 0))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindStr:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindRef:
		buf.WriteString(`{"$ref":`)
		buf.WriteString(strconv.FormatUint(uint64(v.id), 10))
		buf.WriteString("}")
	case KindBackRef:
		buf.WriteString(`{"$backref":`)
		buf.WriteString(strconv.FormatUint(uint64(v.id), 10))
		buf.WriteString("}")
	case KindEmpty:
		if v.shape == ShapeMap {
			buf.WriteString("{}")
		} else {
			buf.WriteString("[]")
		}
	case KindList, KindSet:
		buf.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
