// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"

	"github.com/J-x-Z/winpipe/lib/codec"
)

// ProtocolVersion is the frame protocol revision announced in Hello.
const ProtocolVersion = 1

// Hello is the first frame the server sends on a connection.
type Hello struct {
	Protocol int    `cbor:"protocol"`
	Session  string `cbor:"session"`
	Server   string `cbor:"server"`

	// Codec names the block compression delta records prefer.
	Codec        string `cbor:"codec"`
	MaxFrameSize int    `cbor:"max_frame_size"`

	Output OutputInfo `cbor:"output"`
}

// OutputInfo describes the virtual output the renderer should present.
type OutputInfo struct {
	Width      int32 `cbor:"width"`
	Height     int32 `cbor:"height"`
	RefreshMHz int32 `cbor:"refresh_mhz"`
	Scale      int32 `cbor:"scale"`
}

// Ack reports that the renderer applied version of a buffer.
type Ack struct {
	Buffer  uint32 `cbor:"buffer"`
	Version uint64 `cbor:"version"`
}

// Resync asks for the next record of a buffer to be a full one.
type Resync struct {
	Buffer uint32 `cbor:"buffer"`
}

// Close codes.
const (
	// CloseProtocolError follows a wl_display.error.
	CloseProtocolError uint32 = 1

	// CloseShutdown is sent when the server stops.
	CloseShutdown uint32 = 2

	// CloseIdle is sent when the idle timeout expires.
	CloseIdle uint32 = 3

	// CloseFraming is sent for a frame the server cannot interpret.
	CloseFraming uint32 = 4
)

// Close is the last frame the server sends before tearing a connection
// down.
type Close struct {
	Code   uint32 `cbor:"code"`
	Reason string `cbor:"reason"`
}

// ControlFrame encodes v as the CBOR payload of a frame of kind.
func ControlFrame(kind Kind, v any) (Frame, error) {
	payload, err := codec.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", kind, err)
	}
	return Frame{Kind: kind, Payload: payload}, nil
}

// ParseControl decodes the CBOR payload of frame into v, which must be
// a pointer to the document type for want.
func ParseControl(frame Frame, want Kind, v any) error {
	if frame.Kind != want {
		return fmt.Errorf("got %s frame, want %s", frame.Kind, want)
	}
	if err := codec.Unmarshal(frame.Payload, v); err != nil {
		if diagnostic, diagErr := codec.Diagnose(frame.Payload); diagErr == nil {
			return fmt.Errorf("decode %s frame %s: %w", want, diagnostic, err)
		}
		return fmt.Errorf("decode %s frame: %w", want, err)
	}
	return nil
}
