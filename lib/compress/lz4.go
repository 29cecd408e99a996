// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4Compressors holds match tables between blocks. A region is
// usually many blocks in a row on the same worker.
var lz4Compressors = sync.Pool{New: func() any { return new(lz4.Compressor) }}

func compressLZ4(block []byte) ([]byte, bool, error) {
	compressor := lz4Compressors.Get().(*lz4.Compressor)
	defer lz4Compressors.Put(compressor)

	encoded := make([]byte, lz4.CompressBlockBound(len(block)))
	n, err := compressor.CompressBlock(block, encoded)
	if err != nil {
		return nil, false, fmt.Errorf("compress: lz4: %w", err)
	}
	// n is 0 when lz4 found nothing to match.
	if n == 0 || n >= len(block) {
		return nil, false, nil
	}
	return encoded[:n], true, nil
}

// expandLZ4 decodes a block that must be exactly size bytes.
func expandLZ4(encoded []byte, size int) ([]byte, error) {
	block, err := expandLZ4Bounded(encoded, size)
	if err != nil {
		return nil, err
	}
	if len(block) != size {
		return nil, fmt.Errorf("compress: lz4 block decoded to %d bytes, want %d", len(block), size)
	}
	return block, nil
}

// expandLZ4Bounded decodes a block of at most limit bytes.
func expandLZ4Bounded(encoded []byte, limit int) ([]byte, error) {
	block := make([]byte, limit)
	n, err := lz4.UncompressBlock(encoded, block)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4: %w", err)
	}
	return block[:n], nil
}
