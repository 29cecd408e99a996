// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import "fmt"

// A planar block is the LZ4 encoding of this stream:
//
//	mask     1 byte, bit i set when byte i of every pixel is equal
//	values   one byte per set bit, in plane order
//	planes   each remaining plane, delta coded along the plane
//	tail     the len%4 bytes that do not fill a pixel, verbatim
//
// XRGB8888 never uses its X byte and opaque ARGB8888 has a constant
// alpha, so one plane usually shrinks to a single byte before LZ4
// sees the block. Delta coding turns gradients and flat fills into
// runs of equal bytes.

const planes = 4

// planarBound is the largest stream a block of size bytes encodes to.
func planarBound(size int) int {
	return 1 + size
}

func planarEncode(block []byte) []byte {
	pixels := len(block) / planes
	var mask byte
	if pixels > 0 {
		for plane := range planes {
			if constantPlane(block, plane, pixels) {
				mask |= 1 << plane
			}
		}
	}

	stream := make([]byte, 0, planarBound(len(block)))
	stream = append(stream, mask)
	for plane := range planes {
		if mask&(1<<plane) != 0 {
			stream = append(stream, block[plane])
		}
	}
	for plane := range planes {
		if mask&(1<<plane) != 0 {
			continue
		}
		var previous byte
		for i := range pixels {
			value := block[i*planes+plane]
			stream = append(stream, value-previous)
			previous = value
		}
	}
	return append(stream, block[pixels*planes:]...)
}

func constantPlane(block []byte, plane, pixels int) bool {
	first := block[plane]
	for i := 1; i < pixels; i++ {
		if block[i*planes+plane] != first {
			return false
		}
	}
	return true
}

// planarDecode rebuilds a block of size bytes from its stream.
func planarDecode(stream []byte, size int) ([]byte, error) {
	if len(stream) == 0 {
		return nil, fmt.Errorf("compress: empty planar stream")
	}
	pixels := size / planes
	mask := stream[0]
	if mask>>planes != 0 || (pixels == 0 && mask != 0) {
		return nil, fmt.Errorf("compress: planar mask 0x%02x is invalid for %d pixels", mask, pixels)
	}
	constants := 0
	for plane := range planes {
		if mask&(1<<plane) != 0 {
			constants++
		}
	}
	if want := 1 + constants + (planes-constants)*pixels + size%planes; len(stream) != want {
		return nil, fmt.Errorf("compress: planar stream of %d bytes, want %d", len(stream), want)
	}

	block := make([]byte, size)
	values := stream[1 : 1+constants]
	deltas := stream[1+constants:]
	for plane := range planes {
		if mask&(1<<plane) != 0 {
			value := values[0]
			values = values[1:]
			for i := range pixels {
				block[i*planes+plane] = value
			}
			continue
		}
		var previous byte
		for i := range pixels {
			previous += deltas[i]
			block[i*planes+plane] = previous
		}
		deltas = deltas[pixels:]
	}
	copy(block[pixels*planes:], deltas)
	return block, nil
}
