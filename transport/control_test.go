// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"strings"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	t.Parallel()

	hello := Hello{
		Protocol:     ProtocolVersion,
		Session:      "0c5e4f2a-7f59-4f0e-9d5f-3f8f2a7c1b11",
		Server:       "winpipe (development)",
		Codec:        "lz4",
		MaxFrameSize: DefaultMaxFrameSize,
		Output:       OutputInfo{Width: 1920, Height: 1080, RefreshMHz: 60000, Scale: 1},
	}
	frame, err := ControlFrame(KindHello, hello)
	if err != nil {
		t.Fatalf("ControlFrame: %v", err)
	}
	var got Hello
	if err := ParseControl(frame, KindHello, &got); err != nil {
		t.Fatalf("ParseControl: %v", err)
	}
	if got != hello {
		t.Errorf("hello = %+v, want %+v", got, hello)
	}
}

func TestParseControl(t *testing.T) {
	t.Parallel()

	ack, err := ControlFrame(KindAck, Ack{Buffer: 12, Version: 3})
	if err != nil {
		t.Fatalf("ControlFrame: %v", err)
	}

	var resync Resync
	if err := ParseControl(ack, KindResync, &resync); err == nil || !strings.Contains(err.Error(), "want resync") {
		t.Errorf("ParseControl with the wrong kind = %v", err)
	}

	var decoded Ack
	if err := ParseControl(ack, KindAck, &decoded); err != nil || decoded != (Ack{Buffer: 12, Version: 3}) {
		t.Errorf("ParseControl = %+v, %v", decoded, err)
	}

	garbage := Frame{Kind: KindAck, Payload: []byte{0xff, 0x00}}
	if err := ParseControl(garbage, KindAck, &decoded); err == nil {
		t.Error("ParseControl accepted an invalid CBOR payload")
	}
}
