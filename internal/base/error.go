// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrConfiguration marks errors caused by a malformed operator tree or a
// malformed filter: wrong operator arity, multi-keyed invariant subjects,
// inverted time ranges. Such errors are surfaced immediately and are never
// retried; test for them with errors.Is.
var ErrConfiguration = errors.New("tracequery: configuration error")

// ConfigErrorf formats an error and marks it as a configuration error.
func ConfigErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// IsConfigError returns true if err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
