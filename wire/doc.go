// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the Wayland wire format: the byte layout of
// requests and events exchanged between a client and a compositor.
//
// Every message starts with an 8-byte header: the target object id
// (u32), then a u32 whose upper 16 bits are the total message size in
// bytes (header included) and whose lower 16 bits are the opcode. The
// arguments follow, little-endian and 32-bit aligned:
//
//	int, uint, fixed, object, new_id   4 bytes each
//	string                             u32 length (incl. NUL), bytes, NUL, pad to 4
//	array                              u32 length, bytes, pad to 4
//	fd                                 no bytes; carried out of band
//
// The package knows nothing about interfaces. Decoding needs the
// argument [Signature] of the message, which the caller supplies
// through a [SignatureLookup]; messages whose signature cannot be
// resolved are still framed and returned with their raw payload so the
// caller can report a precise protocol error.
//
// [Decode] is restartable: [ErrIncomplete] never consumes input, so a
// caller can append more bytes and try again. [Decoder] wraps that
// loop around a growing buffer.
package wire
