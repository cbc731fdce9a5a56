// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/spf13/cobra"
)

// runTests runs the datadriven files matching path. Every line of a test's
// input is a single argument, so operator trees and filters may contain
// spaces.
func runTests(t *testing.T, path string) {
	paths, err := filepath.Glob(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
				args := []string{d.Cmd}
				for line := range crstrings.LinesSeq(d.Input) {
					if line = strings.TrimSpace(line); line != "" {
						args = append(args, line)
					}
				}

				var buf bytes.Buffer
				c := &cobra.Command{}
				c.AddCommand(New().Commands...)
				c.SetArgs(args)
				c.SetOut(&buf)
				c.SetErr(&buf)
				if err := c.Execute(); err != nil {
					return err.Error()
				}
				return buf.String()
			})
		})
	}
}

func TestTrace(t *testing.T) {
	runTests(t, "testdata/trace")
}

func TestQuery(t *testing.T) {
	runTests(t, "testdata/query")
}
