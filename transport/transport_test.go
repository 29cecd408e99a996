// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteReadFrame(t *testing.T) {
	t.Parallel()

	frames := []Frame{
		{Kind: KindMessage, Payload: []byte{1, 0, 0, 0, 0, 0, 12, 0, 2, 0, 0, 0}},
		{Kind: KindHello, Payload: []byte{0xa0}},
		{Kind: KindClose, Payload: []byte{}},
	}
	var buffer bytes.Buffer
	for _, frame := range frames {
		if err := WriteFrame(&buffer, frame); err != nil {
			t.Fatalf("WriteFrame(%s): %v", frame.Kind, err)
		}
	}
	for i, want := range frames {
		got, err := ReadFrame(&buffer, 0)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if got.Kind != want.Kind || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d = %s %v, want %s %v", i, got.Kind, got.Payload, want.Kind, want.Payload)
		}
	}
	if _, err := ReadFrame(&buffer, 0); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame on empty stream = %v, want EOF", err)
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	t.Parallel()

	encoded := AppendFrame(nil, Frame{Kind: KindDelta, Payload: []byte("abc")})
	want := []byte{0, 0, 0, 3, 0x02, 'a', 'b', 'c'}
	if !bytes.Equal(encoded, want) {
		t.Errorf("AppendFrame = %v, want %v", encoded, want)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	t.Parallel()

	encoded := AppendFrame(nil, Frame{Kind: KindMessage, Payload: make([]byte, 64)})
	if _, err := ReadFrame(bytes.NewReader(encoded), 32); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("ReadFrame = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	t.Parallel()

	encoded := AppendFrame(nil, Frame{Kind: KindMessage, Payload: make([]byte, 16)})
	_, err := ReadFrame(bytes.NewReader(encoded[:10]), 0)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame = %v, want ErrUnexpectedEOF", err)
	}
}

func TestMirrorWrite(t *testing.T) {
	t.Parallel()

	write := MirrorWrite{Pool: 7, Offset: 4096, Data: []byte{9, 8, 7}}
	frame := write.Frame()
	if frame.Kind != KindMirrorWrite {
		t.Fatalf("kind = %s", frame.Kind)
	}
	got, err := ParseMirrorWrite(frame.Payload)
	if err != nil {
		t.Fatalf("ParseMirrorWrite: %v", err)
	}
	if got.Pool != write.Pool || got.Offset != write.Offset || !bytes.Equal(got.Data, write.Data) {
		t.Errorf("ParseMirrorWrite = %+v, want %+v", got, write)
	}

	if _, err := ParseMirrorWrite([]byte{0, 0, 0, 1}); err == nil {
		t.Error("ParseMirrorWrite accepted a 4-byte payload")
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	tests := map[Kind]string{
		KindMessage:     "message",
		KindMirrorWrite: "mirror-write",
		KindClose:       "close",
		Kind(0x42):      "kind(0x42)",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", uint8(kind), got, want)
		}
	}
}
