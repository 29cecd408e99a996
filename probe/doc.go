// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe is a scripted winpipe client. It plays both remote
// roles on one connection: it sends Wayland requests and mirror-write
// frames the way a client would, and reconstructs delta records with
// mirror.Replica the way a renderer would, acknowledging each version
// it applies.
//
// [Client] is the frame-level session: [Client.Send] writes a request,
// [Client.Roundtrip] issues wl_display.sync and collects every event
// and delta record up to its callback. [Run] drives a complete session
// (registry, globals, an xdg_toplevel, a mirrored shm pool, two
// commits) and returns a [Report] of what the server produced.
package probe
