// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import "github.com/cockroachdb/tracequery/builder"

// strategyFlag is a pflag.Value selecting a builder strategy.
type strategyFlag struct {
	s builder.Strategy
}

func (f *strategyFlag) String() string {
	return f.s.String()
}

func (f *strategyFlag) Type() string {
	return "strategy"
}

func (f *strategyFlag) Set(v string) error {
	s, err := builder.ParseStrategy(v)
	if err != nil {
		return err
	}
	f.s = s
	return nil
}
