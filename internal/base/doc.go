// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across tracequery: logical
// times, container identities, the logger interface and the error markers
// shared by the archive, the object builder and the operator evaluator.
//
// # Logical time
//
// Every record in a trace carries a [Time] assigned by the producer. Times are
// non-negative and never decrease as records are appended; several records may
// share a time (a single statement can mutate several containers). The engine
// treats a Time as an opaque position in a total order and never interprets it
// as wall-clock time.
//
// # Container identity
//
// Every composite value observed by the producer is assigned a [ContainerID].
// Records describing the fields of the same logical object share the id of
// the owning container, independently of the names the object is reachable
// through. The zero id means "no container" and is used by records that
// describe named slots.
package base
