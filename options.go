// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/internal/base"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

// Options holds the optional parameters for configuring an Engine. The zero
// value is valid; EnsureDefaults fills in the defaults.
type Options struct {
	// Builder is the reconstruction strategy used by Engine.Build and by the
	// operators evaluated with Engine.Eval.
	//
	// The default is builder.StrategyDiff.
	Builder builder.Strategy

	// InvParallelism is the number of workers verifying the intervals of an
	// Inv operator. Zero means runtime.GOMAXPROCS(0).
	InvParallelism int

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// EventListener provides hooks to listening to significant engine events
	// such as builder cache fallbacks and the end of evaluations.
	EventListener EventListener

	// MetricsRegisterer, if set, is used to register the engine's prometheus
	// collectors.
	MetricsRegisterer prometheus.Registerer
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.InvParallelism < 0 {
		o.InvParallelism = 0
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	o.EventListener.EnsureDefaults(o.Logger)
	return o
}

// Clone creates a shallow copy of the supplied options.
func (o *Options) Clone() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	return n
}

// String implements fmt.Stringer, returning the options in the INI-style
// notation accepted by Parse. Hooks such as the logger and the event listener
// are not serialized.
func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Version]\n")
	fmt.Fprintf(&buf, "  tracequery_version=0.1\n")
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  builder=%s\n", o.Builder)
	fmt.Fprintf(&buf, "  inv_parallelism=%d\n", o.InvParallelism)
	return buf.String()
}

// parseOptions walks the lines of an INI-style options string, invoking
// visitKeyValue for every key=value pair. Blank lines and lines starting with
// ';' or '#' are skipped.
func parseOptions(s string, visitKeyValue func(section, key, value string) error) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}
		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.ConfigErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if err := visitKeyValue(section, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Parse parses the options from the specified string. Note that certain
// options cannot be parsed into populated fields. For example, the Logger and
// EventListener are left untouched.
func (o *Options) Parse(s string) error {
	return parseOptions(s, func(section, key, value string) error {
		var err error
		switch {
		case section == "Version":
			switch key {
			case "tracequery_version":
			default:
				return base.ConfigErrorf("tracequery: unknown option: %s.%s",
					errors.Safe(section), errors.Safe(key))
			}
		case section == "Options":
			switch key {
			case "builder":
				o.Builder, err = builder.ParseStrategy(value)
			case "inv_parallelism":
				o.InvParallelism, err = strconv.Atoi(value)
			default:
				return base.ConfigErrorf("tracequery: unknown option: %s.%s",
					errors.Safe(section), errors.Safe(key))
			}
		default:
			return base.ConfigErrorf("tracequery: unknown option: %s.%s",
				errors.Safe(section), errors.Safe(key))
		}
		if err != nil {
			err = errors.Wrapf(err, "tracequery: parsing %s.%s", errors.Safe(section), errors.Safe(key))
			return errors.Mark(err, base.ErrConfiguration)
		}
		return nil
	})
}
