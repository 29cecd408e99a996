// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind identifies the payload of a frame.
type Kind uint8

const (
	// KindMessage carries Wayland wire bytes, one or more whole
	// messages. Both directions.
	KindMessage Kind = 0x01

	// KindDelta carries one encoded mirror.DeltaRecord, or the tail
	// of one whose leading bytes arrived in KindDeltaPart frames.
	// Outbound.
	KindDelta Kind = 0x02

	// KindMirrorWrite carries pool content: a 4-byte pool id, a
	// 4-byte offset (both big-endian), then the bytes. Inbound.
	KindMirrorWrite Kind = 0x03

	// KindHello carries the CBOR [Hello] document. Always the first
	// outbound frame.
	KindHello Kind = 0x04

	// KindAck carries the CBOR [Ack] document. Inbound.
	KindAck Kind = 0x05

	// KindResync carries the CBOR [Resync] document. Inbound.
	KindResync Kind = 0x06

	// KindClose carries the CBOR [Close] document, sent before the
	// server tears a connection down. Outbound.
	KindClose Kind = 0x07

	// KindDeltaPart carries a leading slice of an encoded delta
	// record too large for one frame. The record is completed by
	// the next KindDelta frame. Outbound.
	KindDeltaPart Kind = 0x08
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindDelta:
		return "delta"
	case KindMirrorWrite:
		return "mirror-write"
	case KindHello:
		return "hello"
	case KindAck:
		return "ack"
	case KindResync:
		return "resync"
	case KindClose:
		return "close"
	case KindDeltaPart:
		return "delta-part"
	default:
		return fmt.Sprintf("kind(0x%02x)", uint8(k))
	}
}

// HeaderSize is the length of a frame header.
const HeaderSize = 5

// DefaultMaxFrameSize bounds a frame payload unless configured
// otherwise.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned for a frame whose payload exceeds the
// configured maximum.
var ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

// Frame is one unit of the stream.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Size returns the encoded length of the frame.
func (f Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// AppendFrame appends the encoded frame to dst.
func AppendFrame(dst []byte, frame Frame) []byte {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(frame.Payload)))
	header[4] = byte(frame.Kind)
	dst = append(dst, header[:]...)
	return append(dst, frame.Payload...)
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, frame Frame) error {
	if _, err := w.Write(AppendFrame(make([]byte, 0, frame.Size()), frame)); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Kind, err)
	}
	return nil
}

// ReadFrame reads one frame from r. Payloads larger than maxSize are
// rejected before they are read; maxSize <= 0 means
// DefaultMaxFrameSize.
func ReadFrame(r io.Reader, maxSize int) (Frame, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if uint64(length) > uint64(maxSize) {
		return Frame{}, fmt.Errorf("%w: %d bytes, maximum %d", ErrFrameTooLarge, length, maxSize)
	}
	frame := Frame{Kind: Kind(header[4]), Payload: make([]byte, length)}
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		return Frame{}, fmt.Errorf("read %s frame payload: %w", frame.Kind, err)
	}
	return frame, nil
}

// MirrorWrite is the decoded payload of a KindMirrorWrite frame.
type MirrorWrite struct {
	Pool   uint32
	Offset uint32
	Data   []byte
}

// Frame encodes the write as a KindMirrorWrite frame.
func (w MirrorWrite) Frame() Frame {
	payload := make([]byte, 8+len(w.Data))
	binary.BigEndian.PutUint32(payload[0:4], w.Pool)
	binary.BigEndian.PutUint32(payload[4:8], w.Offset)
	copy(payload[8:], w.Data)
	return Frame{Kind: KindMirrorWrite, Payload: payload}
}

// ParseMirrorWrite decodes a KindMirrorWrite payload. Data aliases
// payload.
func ParseMirrorWrite(payload []byte) (MirrorWrite, error) {
	if len(payload) < 8 {
		return MirrorWrite{}, fmt.Errorf("mirror-write payload of %d bytes is shorter than its 8-byte header", len(payload))
	}
	return MirrorWrite{
		Pool:   binary.BigEndian.Uint32(payload[0:4]),
		Offset: binary.BigEndian.Uint32(payload[4:8]),
		Data:   payload[8:],
	}, nil
}
