// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/binary"
	"fmt"
)

// Reassembler turns arbitrarily split stream bytes back into frames.
// It is not safe for concurrent use.
type Reassembler struct {
	maxSize int
	buffer  []byte
	start   int
}

// NewReassembler returns a Reassembler that rejects payloads larger
// than maxSize. maxSize <= 0 means DefaultMaxFrameSize.
func NewReassembler(maxSize int) *Reassembler {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Reassembler{maxSize: maxSize}
}

// Push appends stream bytes. The data is copied.
func (r *Reassembler) Push(data []byte) {
	if r.start > 0 && r.start == len(r.buffer) {
		r.buffer = r.buffer[:0]
		r.start = 0
	}
	r.buffer = append(r.buffer, data...)
}

// Next returns the next complete frame. ok is false when more bytes
// are needed; calling Next again after a Push resumes where it left
// off. An oversized frame is an error and the stream cannot be
// resumed.
//
// The returned payload is a copy and stays valid after further Push
// calls.
func (r *Reassembler) Next() (frame Frame, ok bool, err error) {
	pending := r.buffer[r.start:]
	if len(pending) < HeaderSize {
		r.compact()
		return Frame{}, false, nil
	}
	length := binary.BigEndian.Uint32(pending[0:4])
	if uint64(length) > uint64(r.maxSize) {
		return Frame{}, false, fmt.Errorf("%w: %d bytes, maximum %d", ErrFrameTooLarge, length, r.maxSize)
	}
	end := HeaderSize + int(length)
	if len(pending) < end {
		r.compact()
		return Frame{}, false, nil
	}
	frame = Frame{
		Kind:    Kind(pending[4]),
		Payload: append([]byte(nil), pending[HeaderSize:end]...),
	}
	r.start += end
	return frame, true, nil
}

// Buffered returns the number of bytes held that do not yet form a
// complete frame, plus any complete frames not yet taken.
func (r *Reassembler) Buffered() int {
	return len(r.buffer) - r.start
}

// compact moves a partial frame to the front of the buffer so the
// consumed prefix can be reused.
func (r *Reassembler) compact() {
	if r.start == 0 {
		return
	}
	n := copy(r.buffer, r.buffer[r.start:])
	r.buffer = r.buffer[:n]
	r.start = 0
}
