// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Both are safe for concurrent use and shared by every connection.
// Frames skip the zstd checksum: a delta record carries a digest of
// the whole buffer.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
		)
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecodeAllCapLimit(true),
		)
	})
)

func compressZstd(block []byte) ([]byte, bool, error) {
	encoder, err := zstdEncoder()
	if err != nil {
		return nil, false, fmt.Errorf("compress: zstd encoder: %w", err)
	}
	encoded := encoder.EncodeAll(block, make([]byte, 0, len(block)/2))
	if len(encoded) >= len(block) {
		return nil, false, nil
	}
	return encoded, true, nil
}

// expandZstd decodes a block that must be exactly size bytes. The
// decoder stops at size instead of trusting the frame header.
func expandZstd(encoded []byte, size int) ([]byte, error) {
	decoder, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decoder: %w", err)
	}
	block, err := decoder.DecodeAll(encoded, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("compress: zstd: %w", err)
	}
	if len(block) != size {
		return nil, fmt.Errorf("compress: zstd block decoded to %d bytes, want %d", len(block), size)
	}
	return block, nil
}
