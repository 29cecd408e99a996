// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for winpipe packages.
//
// [RequireReceive], [RequireSend] and [RequireClosed] wrap the
// select-with-timeout pattern so tests never block forever on a
// channel. They are the only place tests use real wall-clock timeouts;
// everything else runs on lib/clock's fake clock.
//
// [Loopback] opens a TCP listener on 127.0.0.1 with a random port and
// closes it when the test ends. [ConnPair] returns the two ends of a
// real loopback TCP connection, for code that needs socket options or
// deadlines that net.Pipe does not support.
//
// All helpers call t.Fatalf on failure.
package testutil
