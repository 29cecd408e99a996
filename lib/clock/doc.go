// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that needs the current time or a timeout accepts a Clock
// instead of calling time.Now or time.After directly. Production code
// passes Real(); tests pass Fake() and move time forward with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	compositor := compositor.New(compositor.Options{Clock: c})
//	c.Advance(16 * time.Millisecond)
//
// Frame callback timestamps and the shutdown flush deadline both
// come from a Clock.
package clock
