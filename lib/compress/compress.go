// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import "fmt"

// Tag identifies the codec of one block. Tags are written into delta
// records, one byte per block, so their values are wire constants.
type Tag uint8

const (
	// None ships the block as packed pixels.
	None Tag = 0

	// LZ4 is LZ4 block mode, the default. It decodes at memory
	// speed, which suits latency-bound frame updates.
	LZ4 Tag = 1

	// Zstd trades encoder CPU for a better ratio on flat UI content.
	Zstd Tag = 2

	// PlanarLZ4 reorders pixels into byte planes before LZ4. See
	// planar.go for the block layout.
	PlanarLZ4 Tag = 3
)

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case PlanarLZ4:
		return "planar_lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseTag parses the compression.codec configuration value.
func ParseTag(name string) (Tag, error) {
	for _, tag := range []Tag{None, LZ4, Zstd, PlanarLZ4} {
		if tag.String() == name {
			return tag, nil
		}
	}
	return None, fmt.Errorf("unknown compression codec %q (want none, lz4, zstd or planar_lz4)", name)
}

// Compress encodes a block of packed pixels. ok is false, with a nil
// error, when the encoding would not be smaller than the block. None
// always reports ok and returns block itself.
func Compress(block []byte, tag Tag) (encoded []byte, ok bool, err error) {
	switch tag {
	case None:
		return block, true, nil
	case LZ4:
		return compressLZ4(block)
	case Zstd:
		return compressZstd(block)
	case PlanarLZ4:
		encoded, ok, err = compressLZ4(planarEncode(block))
		if ok && len(encoded) >= len(block) {
			return nil, false, nil
		}
		return encoded, ok, err
	default:
		return nil, false, fmt.Errorf("compress: unsupported tag %d", uint8(tag))
	}
}

// Decompress decodes a block that was size bytes of packed pixels.
func Decompress(encoded []byte, tag Tag, size int) ([]byte, error) {
	switch tag {
	case None:
		if len(encoded) != size {
			return nil, fmt.Errorf("compress: raw block of %d bytes, want %d", len(encoded), size)
		}
		return encoded, nil
	case LZ4:
		return expandLZ4(encoded, size)
	case Zstd:
		return expandZstd(encoded, size)
	case PlanarLZ4:
		stream, err := expandLZ4Bounded(encoded, planarBound(size))
		if err != nil {
			return nil, err
		}
		return planarDecode(stream, size)
	default:
		return nil, fmt.Errorf("compress: unsupported tag %d", uint8(tag))
	}
}

// CompressOrRaw encodes block with tag, falling back to None when the
// codec cannot shrink it. The returned tag is the one to record.
func CompressOrRaw(block []byte, tag Tag) ([]byte, Tag, error) {
	encoded, ok, err := Compress(block, tag)
	if err != nil {
		return nil, None, err
	}
	if !ok {
		return block, None, nil
	}
	return encoded, tag, nil
}
