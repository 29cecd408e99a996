// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// BytesPerPixel is the pixel size of every supported format
// (ARGB8888 and XRGB8888).
const BytesPerPixel = 4

// Descriptor is the geometry of a buffer as announced by the client.
type Descriptor struct {
	Width  int
	Height int
	Stride int
	Format uint32
}

// RowBytes returns the number of visible bytes per scanline.
func (d Descriptor) RowBytes() int {
	return d.Width * BytesPerPixel
}

// Size returns the snapshot length a commit must supply.
func (d Descriptor) Size() int {
	return d.Stride * d.Height
}

// Validate reports geometry that cannot describe a pixel buffer.
func (d Descriptor) Validate() error {
	var errs []error
	if d.Width <= 0 {
		errs = append(errs, fmt.Errorf("width %d must be positive", d.Width))
	}
	if d.Height <= 0 {
		errs = append(errs, fmt.Errorf("height %d must be positive", d.Height))
	}
	if d.Width > 0 && d.Stride < d.RowBytes() {
		errs = append(errs, fmt.Errorf("stride %d is smaller than row size %d", d.Stride, d.RowBytes()))
	}
	return errors.Join(errs...)
}

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, Width, Height int
}

// Area returns the number of pixels in the rectangle.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Within reports whether the rectangle lies entirely inside a buffer
// of the given size.
func (r Rect) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= width && r.Y+r.Height <= height
}

// Digest is a BLAKE3 keyed hash of a buffer's visible pixels.
type Digest [32]byte

// digestKey separates buffer digests from any other BLAKE3 use.
var digestKey = [32]byte{
	'w', 'i', 'n', 'p', 'i', 'p', 'e', '.', 'm', 'i', 'r', 'r', 'o', 'r', '.',
	'p', 'i', 'x', 'e', 'l', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// digestRows hashes the visible bytes of every row, skipping stride
// padding, which is never transmitted.
func digestRows(data []byte, rowBytes, stride, height int) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("mirror: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for y := 0; y < height; y++ {
		start := y * stride
		hasher.Write(data[start : start+rowBytes])
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
