// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/J-x-Z/winpipe/lib/compress"
)

// Block is one independently compressed slice of a region's packed
// pixel bytes.
type Block struct {
	Tag     compress.Tag
	RawSize int
	Data    []byte
}

// Region is a changed rectangle and its packed pixels (Width *
// BytesPerPixel bytes per row, Height rows, no stride padding), split
// into blocks.
type Region struct {
	Rect   Rect
	Blocks []Block
}

// DeltaRecord describes the transition of one buffer from version
// From to version To.
type DeltaRecord struct {
	BufferID uint32
	From     uint64
	To       uint64

	// Full records cover the whole buffer and do not depend on the
	// receiver's previous content.
	Full bool

	Width  int
	Height int
	Format uint32

	Regions []Region

	// Digest is the hash of the buffer's visible pixels at version
	// To.
	Digest Digest
}

// RawBytes returns the uncompressed size of the record's pixel data.
func (r *DeltaRecord) RawBytes() int {
	total := 0
	for _, region := range r.Regions {
		total += region.Rect.Area() * BytesPerPixel
	}
	return total
}

// EncodedBytes returns the size of the record's block payloads as
// they travel on the wire.
func (r *DeltaRecord) EncodedBytes() int {
	total := 0
	for _, region := range r.Regions {
		for _, block := range region.Blocks {
			total += len(block.Data)
		}
	}
	return total
}

// Record encoding. All integers are big-endian.
//
//	magic "WPDL"  flags u8 (bit 0: full)
//	buffer u32  from u64  to u64
//	width u32  height u32  format u32
//	digest [32]
//	region count u32, then per region:
//	  x u32  y u32  width u32  height u32  block count u32, then per block:
//	    tag u8  raw size u32  data length u32  data
const (
	recordMagic      = "WPDL"
	recordHeaderSize = 4 + 1 + 4 + 8 + 8 + 4 + 4 + 4 + 32 + 4
	regionHeaderSize = 5 * 4
	blockHeaderSize  = 1 + 4 + 4

	flagFull = 0x01
)

// ErrInvalidRecord is wrapped by every DecodeDelta error.
var ErrInvalidRecord = errors.New("mirror: invalid delta record")

// Encode returns the binary form of the record.
func (r *DeltaRecord) Encode() []byte {
	size := recordHeaderSize
	for _, region := range r.Regions {
		size += regionHeaderSize
		for _, block := range region.Blocks {
			size += blockHeaderSize + len(block.Data)
		}
	}

	out := make([]byte, 0, size)
	out = append(out, recordMagic...)
	var flags byte
	if r.Full {
		flags |= flagFull
	}
	out = append(out, flags)
	out = binary.BigEndian.AppendUint32(out, r.BufferID)
	out = binary.BigEndian.AppendUint64(out, r.From)
	out = binary.BigEndian.AppendUint64(out, r.To)
	out = binary.BigEndian.AppendUint32(out, uint32(r.Width))
	out = binary.BigEndian.AppendUint32(out, uint32(r.Height))
	out = binary.BigEndian.AppendUint32(out, r.Format)
	out = append(out, r.Digest[:]...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(r.Regions)))
	for _, region := range r.Regions {
		out = binary.BigEndian.AppendUint32(out, uint32(region.Rect.X))
		out = binary.BigEndian.AppendUint32(out, uint32(region.Rect.Y))
		out = binary.BigEndian.AppendUint32(out, uint32(region.Rect.Width))
		out = binary.BigEndian.AppendUint32(out, uint32(region.Rect.Height))
		out = binary.BigEndian.AppendUint32(out, uint32(len(region.Blocks)))
		for _, block := range region.Blocks {
			out = append(out, byte(block.Tag))
			out = binary.BigEndian.AppendUint32(out, uint32(block.RawSize))
			out = binary.BigEndian.AppendUint32(out, uint32(len(block.Data)))
			out = append(out, block.Data...)
		}
	}
	return out
}

// recordReader walks an encoded record, remembering the first
// out-of-bounds read.
type recordReader struct {
	data   []byte
	offset int
	short  bool
}

func (r *recordReader) take(n int) []byte {
	if r.short || n < 0 || len(r.data)-r.offset < n {
		r.short = true
		return nil
	}
	span := r.data[r.offset : r.offset+n]
	r.offset += n
	return span
}

func (r *recordReader) u8() byte {
	if span := r.take(1); span != nil {
		return span[0]
	}
	return 0
}

func (r *recordReader) u32() uint32 {
	if span := r.take(4); span != nil {
		return binary.BigEndian.Uint32(span)
	}
	return 0
}

func (r *recordReader) u64() uint64 {
	if span := r.take(8); span != nil {
		return binary.BigEndian.Uint64(span)
	}
	return 0
}

// DecodeDelta parses an encoded record and checks its structure:
// regions inside the buffer and block sizes that add up to each
// region's packed size. Block payloads are not decompressed.
func DecodeDelta(data []byte) (*DeltaRecord, error) {
	reader := &recordReader{data: data}
	if string(reader.take(4)) != recordMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidRecord)
	}

	record := &DeltaRecord{}
	flags := reader.u8()
	record.Full = flags&flagFull != 0
	record.BufferID = reader.u32()
	record.From = reader.u64()
	record.To = reader.u64()
	record.Width = int(reader.u32())
	record.Height = int(reader.u32())
	record.Format = reader.u32()
	copy(record.Digest[:], reader.take(len(record.Digest)))
	regionCount := int(reader.u32())
	if reader.short {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidRecord)
	}
	if record.To != record.From+1 {
		return nil, fmt.Errorf("%w: version %d to %d is not a single step", ErrInvalidRecord, record.From, record.To)
	}
	// Every region needs at least its header.
	if regionCount > (len(data)-reader.offset)/regionHeaderSize {
		return nil, fmt.Errorf("%w: %d regions do not fit in %d bytes", ErrInvalidRecord, regionCount, len(data))
	}

	record.Regions = make([]Region, 0, regionCount)
	for i := 0; i < regionCount; i++ {
		var region Region
		region.Rect.X = int(reader.u32())
		region.Rect.Y = int(reader.u32())
		region.Rect.Width = int(reader.u32())
		region.Rect.Height = int(reader.u32())
		blockCount := int(reader.u32())
		if reader.short {
			return nil, fmt.Errorf("%w: truncated region %d", ErrInvalidRecord, i)
		}
		if !region.Rect.Within(record.Width, record.Height) {
			return nil, fmt.Errorf("%w: region %d %+v outside %dx%d buffer", ErrInvalidRecord, i, region.Rect, record.Width, record.Height)
		}
		if blockCount > (len(data)-reader.offset)/blockHeaderSize {
			return nil, fmt.Errorf("%w: region %d claims %d blocks", ErrInvalidRecord, i, blockCount)
		}

		packed := 0
		region.Blocks = make([]Block, 0, blockCount)
		for j := 0; j < blockCount; j++ {
			var block Block
			block.Tag = compress.Tag(reader.u8())
			block.RawSize = int(reader.u32())
			length := int(reader.u32())
			block.Data = reader.take(length)
			if reader.short {
				return nil, fmt.Errorf("%w: truncated block %d of region %d", ErrInvalidRecord, j, i)
			}
			packed += block.RawSize
			region.Blocks = append(region.Blocks, block)
		}
		if packed != region.Rect.Area()*BytesPerPixel {
			return nil, fmt.Errorf("%w: region %d blocks hold %d bytes, want %d", ErrInvalidRecord, i, packed, region.Rect.Area()*BytesPerPixel)
		}
		record.Regions = append(record.Regions, region)
	}
	if reader.offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecord, len(data)-reader.offset)
	}
	return record, nil
}

// unpackRegion decompresses a region's blocks into its packed pixels.
func unpackRegion(region Region) ([]byte, error) {
	packed := make([]byte, 0, region.Rect.Area()*BytesPerPixel)
	for i, block := range region.Blocks {
		raw, err := compress.Decompress(block.Data, block.Tag, block.RawSize)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		packed = append(packed, raw...)
	}
	if len(packed) != region.Rect.Area()*BytesPerPixel {
		return nil, fmt.Errorf("region %+v unpacked to %d bytes", region.Rect, len(packed))
	}
	return packed, nil
}
