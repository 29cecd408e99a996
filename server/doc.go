// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package server accepts Wayland client connections over TCP and runs
// one protocol engine per connection.
//
// [Server] owns the listener. Each accepted connection gets a worker
// goroutine that reads frames, feeds message frames through a
// wire.Decoder into its own compositor.Compositor, and applies the
// resulting effects: events are re-encoded into message frames, buffer
// commits become delta frames, and mirror-write, ack and resync frames
// are routed to the compositor's pool memory and mirror engine. The
// worker is the only goroutine that touches protocol state; the
// transport.Framer's writer goroutine touches only its byte queue.
//
// The first frame on every connection is a hello carrying the session
// id. The last is a close frame naming why the server ended the
// session: a protocol error (after the wl_display.error event), an
// undecodable frame, the idle timeout, or shutdown. A client that closes
// its side receives nothing further.
//
// While more than the configured high-water mark of bytes are queued
// toward the renderer the worker stops reading, so a slow renderer
// throttles its client instead of growing the queue.
//
// When Config.MetricsListen is set, Start also serves the operator
// endpoint built by [Server.Handler]: /metrics, /healthz and /sessions.
package server
