// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package compositor is the server side of one Wayland connection.
//
// A Compositor owns the object registry of a single client and runs
// the per-interface state machines for the globals winpipe advertises:
// wl_compositor, wl_shm, wl_output, wl_seat and xdg_wm_base. It is
// driven one decoded request at a time through Dispatch, which returns
// the Effects the request caused: events to send back, objects created
// or destroyed, and buffer commits with their mirror delta records.
//
// Dispatch never performs I/O. The caller applies effects in order.
// A *ProtocolError from Dispatch is terminal: the returned effects end
// with the wl_display.error event for it, and every later call reports
// ErrTerminated.
//
// A Compositor is not safe for concurrent use. Each connection runs
// its compositor on a single goroutine.
package compositor
