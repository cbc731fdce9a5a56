// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tracequery

import (
	"time"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tracequery/builder"
	"github.com/cockroachdb/tracequery/eval"
	"github.com/cockroachdb/tracequery/internal/base"
)

// BuilderFallbackInfo exports the builder.FallbackInfo type.
type BuilderFallbackInfo = builder.FallbackInfo

// InvInfo exports the eval.InvInfo type.
type InvInfo = eval.InvInfo

// EvalInfo contains the info for an evaluation end event.
type EvalInfo struct {
	// Op is the String form of the evaluated operator.
	Op string
	// Start and End are the requested range.
	Start, End base.Time
	// Entries is the number of non-empty entries of the result.
	Entries int
	// Duration is the time the evaluation took.
	Duration time.Duration
	Err      error
}

func (i EvalInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i EvalInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("eval %s over [%s, %s] error: %s", i.Op, i.Start, i.End, i.Err)
		return
	}
	w.Printf("eval %s over [%s, %s]: %d entries in %s",
		i.Op, i.Start, i.End, redact.Safe(i.Entries), redact.Safe(i.Duration))
}

// EventListener contains a set of functions that will be invoked when various
// significant engine events occur. Note that the functions should not run for
// an excessive amount of time as they are invoked synchronously by the engine
// and may block continued engine work. For a similar reason it is advisable to
// not perform any synchronous calls back into the engine.
type EventListener struct {
	// BuilderFallback is invoked when the diff builder cannot extend a cached
	// state and replays a container from scratch.
	BuilderFallback func(BuilderFallbackInfo)

	// InvDispatched is invoked before the intervals of an Inv operator are
	// dispatched to workers.
	InvDispatched func(InvInfo)

	// EvalEnd is invoked after an evaluation completes, successfully or not.
	EvalEnd func(EvalInfo)
}

// EnsureDefaults ensures that background error events are logged to the
// specified logger if a handler for those events hasn't been otherwise
// specified. Ensure all handlers are non-nil so that we don't have to check
// for nil-ness before invoking.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.BuilderFallback == nil {
		l.BuilderFallback = func(info BuilderFallbackInfo) {}
	}
	if l.InvDispatched == nil {
		l.InvDispatched = func(info InvInfo) {}
	}
	if l.EvalEnd == nil {
		if logger != nil {
			l.EvalEnd = func(info EvalInfo) {
				if info.Err != nil {
					logger.Errorf("%s", info)
				}
			}
		} else {
			l.EvalEnd = func(info EvalInfo) {}
		}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to the
// specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger{}
	}

	return EventListener{
		BuilderFallback: func(info BuilderFallbackInfo) {
			logger.Infof("%s", info)
		},
		InvDispatched: func(info InvInfo) {
			logger.Infof("%s", info)
		},
		EvalEnd: func(info EvalInfo) {
			logger.Infof("%s", info)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults(nil)
	b.EnsureDefaults(nil)
	return EventListener{
		BuilderFallback: func(info BuilderFallbackInfo) {
			a.BuilderFallback(info)
			b.BuilderFallback(info)
		},
		InvDispatched: func(info InvInfo) {
			a.InvDispatched(info)
			b.InvDispatched(info)
		},
		EvalEnd: func(info EvalInfo) {
			a.EvalEnd(info)
			b.EvalEnd(info)
		},
	}
}
