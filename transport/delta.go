// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// DefaultMaxDeltaSize bounds an encoded delta record reassembled from
// delta-part frames. A 16384x16384 buffer fits uncompressed.
const DefaultMaxDeltaSize = 1<<30 + 1<<20

// ErrDeltaTooLarge is returned by DeltaAssembler for a record that
// grows past its limit.
var ErrDeltaTooLarge = errors.New("transport: delta record exceeds maximum size")

// DeltaFrames splits an encoded delta record into frames whose payloads
// are at most maxSize bytes: zero or more KindDeltaPart frames followed
// by exactly one KindDelta frame. The frames alias record.
func DeltaFrames(record []byte, maxSize int) []Frame {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	frames := make([]Frame, 0, len(record)/maxSize+1)
	for len(record) > maxSize {
		frames = append(frames, Frame{Kind: KindDeltaPart, Payload: record[:maxSize]})
		record = record[maxSize:]
	}
	return append(frames, Frame{Kind: KindDelta, Payload: record})
}

// DeltaAssembler joins the frames produced by DeltaFrames back into an
// encoded record. It is not safe for concurrent use.
type DeltaAssembler struct {
	maxSize int
	pending []byte
}

// NewDeltaAssembler returns an assembler that rejects records larger
// than maxSize. maxSize <= 0 means DefaultMaxDeltaSize.
func NewDeltaAssembler(maxSize int) *DeltaAssembler {
	if maxSize <= 0 {
		maxSize = DefaultMaxDeltaSize
	}
	return &DeltaAssembler{maxSize: maxSize}
}

// Add consumes a KindDeltaPart or KindDelta frame. It returns the
// complete record when frame is the closing KindDelta frame. After an
// error the partial record is discarded.
func (a *DeltaAssembler) Add(frame Frame) (record []byte, complete bool, err error) {
	if frame.Kind != KindDeltaPart && frame.Kind != KindDelta {
		return nil, false, fmt.Errorf("got %s frame, want delta or delta-part", frame.Kind)
	}
	if len(a.pending)+len(frame.Payload) > a.maxSize {
		size := len(a.pending) + len(frame.Payload)
		a.pending = nil
		return nil, false, fmt.Errorf("%w: %d bytes so far, maximum %d", ErrDeltaTooLarge, size, a.maxSize)
	}
	if frame.Kind == KindDeltaPart {
		a.pending = append(a.pending, frame.Payload...)
		return nil, false, nil
	}
	if len(a.pending) == 0 {
		return frame.Payload, true, nil
	}
	record = append(a.pending, frame.Payload...)
	a.pending = nil
	return record, true, nil
}

// Pending returns the number of bytes held from delta-part frames.
func (a *DeltaAssembler) Pending() int {
	return len(a.pending)
}
