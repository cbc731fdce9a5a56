// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package archive

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

var tableHeader = []string{"time", "kind", "container", "field", "op", "slot", "value", "type", "line", "expr"}

// ToTable dumps the full log, one row per record in append order.
func (a *Archive) ToTable() (header []string, rows [][]string) {
	header = append([]string(nil), tableHeader...)
	rows = make([][]string, 0, len(a.records))
	for i := range a.records {
		r := &a.records[i]
		container := ""
		if r.Key.Container != 0 {
			container = r.Key.Container.String()
		}
		line := ""
		if r.Value.Line != 0 {
			line = strconv.Itoa(r.Value.Line)
		}
		rows = append(rows, []string{
			r.Time.String(),
			r.Key.Kind.String(),
			container,
			r.Key.Field,
			r.Key.Op.String(),
			r.Key.Slot,
			r.Value.Value.String(),
			r.Value.Type,
			line,
			r.Value.Expr,
		})
	}
	return header, rows
}

// WriteTable renders ToTable to w.
func (a *Archive) WriteTable(w io.Writer) {
	header, rows := a.ToTable()
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader(header)
	tbl.SetAutoWrapText(false)
	tbl.AppendBulk(rows)
	tbl.Render()
}
