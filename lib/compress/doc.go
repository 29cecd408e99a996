// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress implements the block codecs of mirror delta
// records. A block is a run of packed 32-bit pixels; its one-byte
// [Tag] travels with it, so a receiver decodes a record without
// negotiating the codec.
//
// [Compress] reports ok == false for a block the codec cannot shrink,
// and [CompressOrRaw] turns that into a [None] block, so a record
// never carries an encoding larger than its pixels.
package compress
