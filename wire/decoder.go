// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Decoder accumulates a byte stream and yields messages one at a time.
//
// Messages are decoded lazily in Next rather than when bytes arrive,
// because the signature of a message can depend on objects created by
// the message before it.
type Decoder struct {
	lookup SignatureLookup
	buffer []byte
}

// NewDecoder returns a Decoder that resolves signatures through lookup.
func NewDecoder(lookup SignatureLookup) *Decoder {
	return &Decoder{lookup: lookup}
}

// Write appends stream bytes. It never fails.
func (d *Decoder) Write(data []byte) (int, error) {
	d.buffer = append(d.buffer, data...)
	return len(data), nil
}

// Next decodes the next buffered message. It returns ErrIncomplete
// when the buffer holds no complete message, or a *MalformedError.
// After a malformed message the stream cannot be resynchronized and
// the Decoder should be discarded.
func (d *Decoder) Next() (Message, error) {
	message, consumed, err := Decode(d.buffer, d.lookup)
	if err != nil {
		return Message{}, err
	}
	d.buffer = d.buffer[consumed:]
	if len(d.buffer) == 0 {
		// Drop the backing array so a long-lived connection does
		// not pin its largest burst.
		d.buffer = nil
	}
	return message, nil
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}
