// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements the tracequery introspection tools. Every command
// loads a trace file written in the tracetest notation into a fresh engine.
package tool

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery"
	"github.com/cockroachdb/tracequery/internal/tracetest"
	"github.com/spf13/cobra"
)

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	trace    *traceT
	query    *queryT
	opts     tracequery.Options
}

// New creates a new introspection tool.
func New() *T {
	t := &T{
		opts: tracequery.Options{
			Logger: tracequery.DefaultLogger{},
		},
	}
	t.trace = newTrace(t.open)
	t.query = newQuery(t.open)
	t.Commands = []*cobra.Command{
		t.trace.Dump,
		t.trace.Filter,
		t.query.Build,
		t.query.Eval,
		t.query.Plot,
		t.trace.Stats,
	}
	return t
}

// SetLogger sets the logger used by the engines the tool opens.
func (t *T) SetLogger(logger tracequery.Logger) {
	t.opts.Logger = logger
}

// openFunc opens the trace file at path into a new engine. configure, if
// non-nil, adjusts a copy of the tool's options first.
type openFunc func(path string, configure func(*tracequery.Options)) (*tracequery.Engine, error)

func (t *T) open(path string, configure func(*tracequery.Options)) (*tracequery.Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := t.opts.Clone()
	if configure != nil {
		configure(opts)
	}
	e, err := tracequery.New(opts)
	if err != nil {
		return nil, err
	}
	if err := tracetest.Load(e.Archive(), string(data)); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return e, nil
}
