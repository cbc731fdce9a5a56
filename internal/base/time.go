// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"math"
	"strconv"

	"github.com/cockroachdb/redact"
)

// Time is a logical time assigned by the producer of a trace.
type Time int64

const (
	// TimeZero is the first logical time of every trace.
	TimeZero Time = 0
	// TimeMax is the largest representable time. Operators that have not been
	// restricted to a range span [TimeZero, TimeMax] and are clamped to the
	// archive's last time when evaluated.
	TimeMax Time = math.MaxInt64
)

func (t Time) String() string {
	if t == TimeMax {
		return "inf"
	}
	return strconv.FormatInt(int64(t), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (t Time) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(t.String()))
}

// ContainerID identifies a composite value across the whole trace.
type ContainerID uint64

// NoContainer is the zero ContainerID, used by records of named slots.
const NoContainer ContainerID = 0

func (id ContainerID) String() string {
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (id ContainerID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(id.String()))
}

// ParseContainerID parses the "#<n>" form produced by ContainerID.String. The
// leading '#' is optional.
func ParseContainerID(s string) (ContainerID, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return NoContainer, err
	}
	return ContainerID(v), nil
}
