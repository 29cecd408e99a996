// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/J-x-Z/winpipe/lib/compress"
)

const (
	// DefaultBlockSize is the packed-byte size of one compressed
	// block: 64 KiB, a 128x128 ARGB tile.
	DefaultBlockSize = 64 * 1024

	// DefaultMinCompressSize is the block size below which
	// compression is skipped. Tiny blocks (a blinking cursor) gain
	// nothing from LZ4 framing.
	DefaultMinCompressSize = 256
)

var (
	// ErrBufferMismatch is matched by every *MismatchError.
	ErrBufferMismatch = errors.New("mirror: snapshot does not match buffer geometry")

	// ErrUnknownBuffer is returned for operations on a buffer id
	// that is not tracked.
	ErrUnknownBuffer = errors.New("mirror: unknown buffer")
)

// MismatchError reports a commit whose snapshot length disagrees with
// the tracked geometry. The shadow is left untouched.
type MismatchError struct {
	BufferID uint32
	Want     int
	Got      int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mirror: buffer %d snapshot is %d bytes, geometry needs %d", e.BufferID, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrBufferMismatch) match.
func (e *MismatchError) Is(target error) bool {
	return target == ErrBufferMismatch
}

// Options tunes delta compression. Zero sizes select the defaults,
// and the zero Options selects LZ4.
type Options struct {
	// Codec compresses blocks at or above MinCompressSize.
	Codec compress.Tag

	// BlockSize is the packed-byte size of each block.
	BlockSize int

	// MinCompressSize is the smallest block worth compressing.
	MinCompressSize int
}

func (o Options) withDefaults() Options {
	if o.Codec == compress.None && o.BlockSize == 0 && o.MinCompressSize == 0 {
		o.Codec = compress.LZ4
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.MinCompressSize <= 0 {
		o.MinCompressSize = DefaultMinCompressSize
	}
	return o
}

// shadow is the engine-side state of one buffer.
type shadow struct {
	descriptor Descriptor
	pixels     []byte
	version    uint64
	acked      uint64
	needsFull  bool
}

// BufferState is a read-only view of a tracked buffer.
type BufferState struct {
	Descriptor Descriptor
	Version    uint64
	Acked      uint64
}

// Engine tracks shadows for the buffers of one connection.
type Engine struct {
	options Options
	buffers map[uint32]*shadow
}

// NewEngine returns an empty engine.
func NewEngine(options Options) *Engine {
	return &Engine{
		options: options.withDefaults(),
		buffers: make(map[uint32]*shadow),
	}
}

// Track starts mirroring a buffer. Tracking an id that is already
// tracked with the same geometry is a no-op; different geometry
// replaces the shadow and forces the next commit to be full.
func (e *Engine) Track(bufferID uint32, descriptor Descriptor) error {
	if err := descriptor.Validate(); err != nil {
		return fmt.Errorf("mirror: buffer %d: %w", bufferID, err)
	}
	if existing, ok := e.buffers[bufferID]; ok && existing.descriptor == descriptor {
		return nil
	}
	e.buffers[bufferID] = &shadow{descriptor: descriptor, needsFull: true}
	return nil
}

// Tracked reports whether the engine mirrors bufferID.
func (e *Engine) Tracked(bufferID uint32) bool {
	_, ok := e.buffers[bufferID]
	return ok
}

// State returns the current state of a tracked buffer.
func (e *Engine) State(bufferID uint32) (BufferState, bool) {
	buffer, ok := e.buffers[bufferID]
	if !ok {
		return BufferState{}, false
	}
	return BufferState{Descriptor: buffer.descriptor, Version: buffer.version, Acked: buffer.acked}, true
}

// Len returns the number of tracked buffers.
func (e *Engine) Len() int {
	return len(e.buffers)
}

// Release stops mirroring a buffer and frees its shadow. Releasing an
// untracked id is a no-op.
func (e *Engine) Release(bufferID uint32) {
	delete(e.buffers, bufferID)
}

// Reset releases every buffer.
func (e *Engine) Reset() {
	clear(e.buffers)
}

// Invalidate forces the next commit of bufferID to be a full record.
// Used when the receiver reports it lost a version.
func (e *Engine) Invalidate(bufferID uint32) error {
	buffer, ok := e.buffers[bufferID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, bufferID)
	}
	buffer.needsFull = true
	return nil
}

// Acknowledge records that the receiver has applied version. Versions
// never go backwards, and a version the engine has not produced is an
// error.
func (e *Engine) Acknowledge(bufferID uint32, version uint64) error {
	buffer, ok := e.buffers[bufferID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, bufferID)
	}
	if version > buffer.version {
		return fmt.Errorf("mirror: buffer %d acknowledged version %d, latest is %d", bufferID, version, buffer.version)
	}
	if version > buffer.acked {
		buffer.acked = version
	}
	return nil
}

// Commit diffs snapshot against the shadow of bufferID and returns the
// record for the transition. On success the shadow holds snapshot and
// its version has advanced by one. On a *MismatchError nothing
// changes.
func (e *Engine) Commit(bufferID uint32, snapshot []byte) (*DeltaRecord, error) {
	buffer, ok := e.buffers[bufferID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBuffer, bufferID)
	}
	descriptor := buffer.descriptor
	if len(snapshot) != descriptor.Size() {
		return nil, &MismatchError{BufferID: bufferID, Want: descriptor.Size(), Got: len(snapshot)}
	}

	full := buffer.version == 0 || buffer.needsFull
	var rects []Rect
	if full {
		rects = []Rect{{X: 0, Y: 0, Width: descriptor.Width, Height: descriptor.Height}}
	} else {
		rects = diffRows(buffer.pixels, snapshot, descriptor)
	}

	regions := make([]Region, 0, len(rects))
	for _, rect := range rects {
		blocks, err := e.packRegion(snapshot, descriptor, rect)
		if err != nil {
			return nil, fmt.Errorf("mirror: buffer %d: %w", bufferID, err)
		}
		regions = append(regions, Region{Rect: rect, Blocks: blocks})
	}

	if buffer.pixels == nil {
		buffer.pixels = make([]byte, len(snapshot))
	}
	copy(buffer.pixels, snapshot)
	from := buffer.version
	buffer.version++
	buffer.needsFull = false

	return &DeltaRecord{
		BufferID: bufferID,
		From:     from,
		To:       buffer.version,
		Full:     full,
		Width:    descriptor.Width,
		Height:   descriptor.Height,
		Format:   descriptor.Format,
		Regions:  regions,
		Digest:   digestRows(buffer.pixels, descriptor.RowBytes(), descriptor.Stride, descriptor.Height),
	}, nil
}

// packRegion copies the rectangle's rows out of snapshot and splits
// them into compressed blocks.
func (e *Engine) packRegion(snapshot []byte, descriptor Descriptor, rect Rect) ([]Block, error) {
	rowBytes := rect.Width * BytesPerPixel
	packed := make([]byte, 0, rowBytes*rect.Height)
	for y := rect.Y; y < rect.Y+rect.Height; y++ {
		start := y*descriptor.Stride + rect.X*BytesPerPixel
		packed = append(packed, snapshot[start:start+rowBytes]...)
	}

	blocks := make([]Block, 0, (len(packed)+e.options.BlockSize-1)/e.options.BlockSize)
	for offset := 0; offset < len(packed); offset += e.options.BlockSize {
		end := min(offset+e.options.BlockSize, len(packed))
		raw := packed[offset:end]
		if len(raw) < e.options.MinCompressSize || e.options.Codec == compress.None {
			blocks = append(blocks, Block{Tag: compress.None, RawSize: len(raw), Data: raw})
			continue
		}
		data, tag, err := compress.CompressOrRaw(raw, e.options.Codec)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{Tag: tag, RawSize: len(raw), Data: data})
	}
	return blocks, nil
}

// diffRows returns the changed rectangles between two snapshots of the
// same geometry. Adjacent changed rows merge into one rectangle whose
// horizontal extent covers every changed pixel in the run.
func diffRows(previous, current []byte, descriptor Descriptor) []Rect {
	rowBytes := descriptor.RowBytes()
	var rects []Rect
	var run *Rect
	runLeft, runRight := 0, 0

	closeRun := func() {
		if run == nil {
			return
		}
		run.X = runLeft
		run.Width = runRight - runLeft + 1
		rects = append(rects, *run)
		run = nil
	}

	for y := 0; y < descriptor.Height; y++ {
		start := y * descriptor.Stride
		before := previous[start : start+rowBytes]
		after := current[start : start+rowBytes]
		if bytes.Equal(before, after) {
			closeRun()
			continue
		}

		first := 0
		for before[first] == after[first] {
			first++
		}
		last := rowBytes - 1
		for before[last] == after[last] {
			last--
		}
		left, right := first/BytesPerPixel, last/BytesPerPixel

		if run == nil {
			run = &Rect{Y: y, Height: 1}
			runLeft, runRight = left, right
			continue
		}
		run.Height++
		runLeft = min(runLeft, left)
		runRight = max(runRight, right)
	}
	closeRun()
	return rects
}
