// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror keeps a shadow copy of every client pixel buffer and
// turns each commit into a [DeltaRecord]: the rectangles that changed
// since the previous commit, compressed for transport.
//
// The [Engine] lives on the proxy side. Each tracked buffer has a
// version counter that starts at 0 (no content) and advances by
// exactly one per successful commit. A record always describes one
// transition, From to From+1. The first commit of a buffer, and the
// first commit after [Engine.Invalidate], is a full record covering the
// whole buffer, so a receiver that lost track can always recover.
//
// Change detection works on scanlines. Each row's visible bytes are
// compared with the shadow; runs of adjacent changed rows merge into
// one rectangle spanning the leftmost to rightmost changed pixel of
// the run. Rectangle bytes are packed row by row, split into blocks,
// and each block compressed with the configured codec from
// lib/compress.
//
// A [Replica] is the receiving side: it applies records in order,
// rejects records that skip a version, and checks the BLAKE3 digest
// carried in every record against its reconstructed content.
//
// Engine and Replica are not safe for concurrent use. Each connection
// owns its own.
package mirror
