// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries winpipe frames over a TCP byte stream.
//
// Every frame is a 5-byte header (4-byte big-endian payload length,
// then a 1-byte [Kind]) followed by the payload. Message frames carry
// raw Wayland wire bytes in either direction; delta frames carry
// encoded mirror records toward the renderer, split into delta-part
// frames ahead of the closing delta frame when a record exceeds the
// frame limit (see [DeltaFrames] and [DeltaAssembler]); mirror-write
// frames carry shared memory pool content from the client. Hello, ack, resync and
// close frames carry small CBOR documents (see [Hello], [Ack],
// [Resync] and [Close]).
//
// Inbound bytes are accumulated by a [Reassembler], which yields
// complete frames regardless of how reads split them. Outbound frames
// go through a [Framer]: [Framer.Enqueue] only appends to an in-memory
// queue, and a writer goroutine drains the queue to the socket. When
// the queue grows past its high-water mark [Framer.WaitWritable] blocks
// until it falls back under the low-water mark, which is how a
// connection worker stops reading from a client whose renderer is not
// keeping up.
//
// [Listen] and [Dial] return TCP connections with the socket options
// the proxy relies on (no Nagle delay, keepalive).
package transport
