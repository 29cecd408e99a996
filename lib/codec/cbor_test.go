// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleControl struct {
	Buffer  uint32 `cbor:"buffer"`
	Version uint64 `cbor:"version"`
	Reason  string `cbor:"reason,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleControl{Buffer: 7, Version: 42, Reason: "resync"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleControl
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": 2, "mid": "x"}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"buffer": 3, "version": 9, "future": true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleControl
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Buffer != 3 || decoded.Version != 9 {
		t.Errorf("decoded = %+v, want buffer 3 version 9", decoded)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"invalid", []byte{0xFF, 0xFE, 0xFD}},
		// {"a": 1, "a": 2}
		{"duplicate key", []byte{0xA2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}},
		{"trailing bytes", []byte{0xA0, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decoded map[string]any
			if err := Unmarshal(tt.data, &decoded); err == nil {
				t.Errorf("Unmarshal(%x) succeeded, want error", tt.data)
			}
		})
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"code": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded type = %T, want map[string]any", decoded)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleControl{Buffer: 1, Reason: "protocol error"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"protocol error"`) {
		t.Errorf("notation %q does not contain the reason", notation)
	}
}
