// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for transport control
// frames (hello, ack, resync, close).
//
// Pixel data and Wayland messages never pass through CBOR: they have
// their own binary layouts. Control frames are small, rare, and
// benefit from being self-describing and extensible, so they use CBOR
// with Core Deterministic Encoding (RFC 8949 §4.2). The same logical
// value always produces identical bytes, which keeps transcripts
// comparable across runs.
//
// The decoder reads bytes from the network, so it caps nesting depth
// and container sizes well below the library defaults and ignores
// unknown fields for forward compatibility.
package codec
