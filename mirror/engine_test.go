// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/J-x-Z/winpipe/lib/compress"
)

// newSnapshot returns a stride-padded buffer filled with color. The
// padding bytes are set to 0xEE so tests notice if they leak.
func newSnapshot(descriptor Descriptor, color uint32) []byte {
	data := make([]byte, descriptor.Size())
	for i := range data {
		data[i] = 0xEE
	}
	for y := 0; y < descriptor.Height; y++ {
		for x := 0; x < descriptor.Width; x++ {
			setPixel(data, descriptor, x, y, color)
		}
	}
	return data
}

func setPixel(data []byte, descriptor Descriptor, x, y int, color uint32) {
	binary.LittleEndian.PutUint32(data[y*descriptor.Stride+x*BytesPerPixel:], color)
}

func fillRect(data []byte, descriptor Descriptor, rect Rect, color uint32) {
	for y := rect.Y; y < rect.Y+rect.Height; y++ {
		for x := rect.X; x < rect.X+rect.Width; x++ {
			setPixel(data, descriptor, x, y, color)
		}
	}
}

// visible strips stride padding, producing the packed layout a
// Replica holds.
func visible(data []byte, descriptor Descriptor) []byte {
	packed := make([]byte, 0, descriptor.RowBytes()*descriptor.Height)
	for y := 0; y < descriptor.Height; y++ {
		start := y * descriptor.Stride
		packed = append(packed, data[start:start+descriptor.RowBytes()]...)
	}
	return packed
}

func mustTrack(t *testing.T, engine *Engine, bufferID uint32, descriptor Descriptor) {
	t.Helper()
	if err := engine.Track(bufferID, descriptor); err != nil {
		t.Fatalf("Track(%d): %v", bufferID, err)
	}
}

func mustCommit(t *testing.T, engine *Engine, bufferID uint32, snapshot []byte) *DeltaRecord {
	t.Helper()
	record, err := engine.Commit(bufferID, snapshot)
	if err != nil {
		t.Fatalf("Commit(%d): %v", bufferID, err)
	}
	return record
}

func TestSolidBufferFullThenEmpty(t *testing.T) {
	t.Parallel()
	descriptor := Descriptor{Width: 64, Height: 64, Stride: 256}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 7, descriptor)
	snapshot := newSnapshot(descriptor, 0xFF000000)

	first := mustCommit(t, engine, 7, snapshot)
	if !first.Full {
		t.Error("first commit should be full")
	}
	if first.From != 0 || first.To != 1 {
		t.Errorf("first record versions = %d->%d, want 0->1", first.From, first.To)
	}
	if len(first.Regions) != 1 || first.Regions[0].Rect != (Rect{X: 0, Y: 0, Width: 64, Height: 64}) {
		t.Fatalf("first regions = %+v, want one 64x64 region", first.Regions)
	}
	if first.RawBytes() != 64*64*4 {
		t.Errorf("RawBytes = %d, want %d", first.RawBytes(), 64*64*4)
	}
	if first.EncodedBytes() >= first.RawBytes() {
		t.Errorf("solid buffer encoded to %d bytes, want fewer than %d", first.EncodedBytes(), first.RawBytes())
	}

	second := mustCommit(t, engine, 7, snapshot)
	if second.Full {
		t.Error("second commit should not be full")
	}
	if len(second.Regions) != 0 {
		t.Errorf("identical re-commit produced %d regions, want 0", len(second.Regions))
	}
	if second.From != 1 || second.To != 2 {
		t.Errorf("second record versions = %d->%d, want 1->2", second.From, second.To)
	}
	if second.Digest != first.Digest {
		t.Error("identical content should have identical digests")
	}
}

func TestDiffRowsMergesAdjacentRows(t *testing.T) {
	t.Parallel()
	descriptor := Descriptor{Width: 32, Height: 20, Stride: 32 * 4}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 1, descriptor)
	snapshot := newSnapshot(descriptor, 0xFF202020)
	mustCommit(t, engine, 1, snapshot)

	// Rows 3-5 change with different extents; row 10 changes alone.
	setPixel(snapshot, descriptor, 8, 3, 0xFFFF0000)
	setPixel(snapshot, descriptor, 2, 4, 0xFFFF0000)
	setPixel(snapshot, descriptor, 20, 5, 0xFFFF0000)
	fillRect(snapshot, descriptor, Rect{X: 30, Y: 10, Width: 2, Height: 1}, 0xFF00FF00)

	record := mustCommit(t, engine, 1, snapshot)
	want := []Rect{
		{X: 2, Y: 3, Width: 19, Height: 3},
		{X: 30, Y: 10, Width: 2, Height: 1},
	}
	if len(record.Regions) != len(want) {
		t.Fatalf("got %d regions %+v, want %+v", len(record.Regions), record.Regions, want)
	}
	for i, region := range record.Regions {
		if region.Rect != want[i] {
			t.Errorf("region %d = %+v, want %+v", i, region.Rect, want[i])
		}
	}
}

func TestSingleByteChangeCoversWholePixel(t *testing.T) {
	descriptor := Descriptor{Width: 8, Height: 2, Stride: 32}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 1, descriptor)
	snapshot := newSnapshot(descriptor, 0)
	mustCommit(t, engine, 1, snapshot)

	// Alpha byte of pixel 5 in row 1.
	snapshot[1*32+5*4+3] = 0x80
	record := mustCommit(t, engine, 1, snapshot)
	if len(record.Regions) != 1 || record.Regions[0].Rect != (Rect{X: 5, Y: 1, Width: 1, Height: 1}) {
		t.Errorf("regions = %+v, want one 1x1 region at (5,1)", record.Regions)
	}
}

func TestStridePaddingIgnored(t *testing.T) {
	descriptor := Descriptor{Width: 10, Height: 4, Stride: 64}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 1, descriptor)
	snapshot := newSnapshot(descriptor, 0xFF123456)
	first := mustCommit(t, engine, 1, snapshot)

	for y := 0; y < descriptor.Height; y++ {
		snapshot[y*descriptor.Stride+descriptor.RowBytes()] = 0x01
	}
	record := mustCommit(t, engine, 1, snapshot)
	if len(record.Regions) != 0 {
		t.Errorf("padding change produced %d regions, want 0", len(record.Regions))
	}
	if record.Digest != first.Digest {
		t.Error("padding change altered the digest")
	}
}

func TestCommitMismatchLeavesShadow(t *testing.T) {
	descriptor := Descriptor{Width: 16, Height: 16, Stride: 64}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 3, descriptor)
	mustCommit(t, engine, 3, newSnapshot(descriptor, 1))

	_, err := engine.Commit(3, make([]byte, descriptor.Size()-4))
	if !errors.Is(err, ErrBufferMismatch) {
		t.Fatalf("Commit error = %v, want ErrBufferMismatch", err)
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) || mismatch.Want != descriptor.Size() || mismatch.Got != descriptor.Size()-4 {
		t.Errorf("MismatchError = %+v", mismatch)
	}

	state, _ := engine.State(3)
	if state.Version != 1 {
		t.Errorf("version after mismatch = %d, want 1", state.Version)
	}
	record := mustCommit(t, engine, 3, newSnapshot(descriptor, 1))
	if record.From != 1 || len(record.Regions) != 0 {
		t.Errorf("commit after mismatch = %d->%d with %d regions, want 1->2 with none", record.From, record.To, len(record.Regions))
	}
}

func TestCommitUnknownBuffer(t *testing.T) {
	engine := NewEngine(Options{})
	if _, err := engine.Commit(99, nil); !errors.Is(err, ErrUnknownBuffer) {
		t.Errorf("Commit error = %v, want ErrUnknownBuffer", err)
	}
	if err := engine.Invalidate(99); !errors.Is(err, ErrUnknownBuffer) {
		t.Errorf("Invalidate error = %v, want ErrUnknownBuffer", err)
	}
}

func TestInvalidateForcesFull(t *testing.T) {
	descriptor := Descriptor{Width: 8, Height: 8, Stride: 32}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 1, descriptor)
	snapshot := newSnapshot(descriptor, 5)
	mustCommit(t, engine, 1, snapshot)
	mustCommit(t, engine, 1, snapshot)

	if err := engine.Invalidate(1); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	record := mustCommit(t, engine, 1, snapshot)
	if !record.Full || len(record.Regions) != 1 {
		t.Errorf("commit after Invalidate: full=%v regions=%d, want full with 1 region", record.Full, len(record.Regions))
	}
	if record.From != 2 || record.To != 3 {
		t.Errorf("versions = %d->%d, want 2->3", record.From, record.To)
	}
	if next := mustCommit(t, engine, 1, snapshot); next.Full {
		t.Error("only the first commit after Invalidate should be full")
	}
}

func TestTrack(t *testing.T) {
	engine := NewEngine(Options{})
	descriptor := Descriptor{Width: 4, Height: 4, Stride: 16}
	mustTrack(t, engine, 1, descriptor)
	mustCommit(t, engine, 1, newSnapshot(descriptor, 0))

	// Same geometry keeps the shadow.
	mustTrack(t, engine, 1, descriptor)
	if state, _ := engine.State(1); state.Version != 1 {
		t.Errorf("re-track with same geometry reset version to %d", state.Version)
	}

	// New geometry starts over.
	resized := Descriptor{Width: 8, Height: 4, Stride: 32}
	mustTrack(t, engine, 1, resized)
	if state, _ := engine.State(1); state.Version != 0 || state.Descriptor != resized {
		t.Errorf("re-track with new geometry: %+v", state)
	}

	invalid := []Descriptor{
		{Width: 0, Height: 4, Stride: 16},
		{Width: 4, Height: -1, Stride: 16},
		{Width: 4, Height: 4, Stride: 15},
	}
	for _, descriptor := range invalid {
		if err := engine.Track(2, descriptor); err == nil {
			t.Errorf("Track(%+v) succeeded, want error", descriptor)
		}
	}
	if engine.Tracked(2) {
		t.Error("invalid Track should not register the buffer")
	}

	engine.Release(1)
	if engine.Len() != 0 {
		t.Errorf("Len after Release = %d", engine.Len())
	}
}

func TestAcknowledge(t *testing.T) {
	descriptor := Descriptor{Width: 4, Height: 4, Stride: 16}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 1, descriptor)
	mustCommit(t, engine, 1, newSnapshot(descriptor, 0))
	mustCommit(t, engine, 1, newSnapshot(descriptor, 1))

	if err := engine.Acknowledge(1, 2); err != nil {
		t.Fatalf("Acknowledge(2): %v", err)
	}
	if err := engine.Acknowledge(1, 1); err != nil {
		t.Fatalf("Acknowledge(1): %v", err)
	}
	if state, _ := engine.State(1); state.Acked != 2 {
		t.Errorf("Acked = %d, want 2 (acks never go backwards)", state.Acked)
	}
	if err := engine.Acknowledge(1, 3); err == nil {
		t.Error("acknowledging an unproduced version should fail")
	}
}

func TestBlockSplitting(t *testing.T) {
	descriptor := Descriptor{Width: 100, Height: 10, Stride: 400}
	engine := NewEngine(Options{Codec: compress.LZ4, BlockSize: 1000, MinCompressSize: 64})
	mustTrack(t, engine, 1, descriptor)
	record := mustCommit(t, engine, 1, newSnapshot(descriptor, 0xFF00FF00))

	blocks := record.Regions[0].Blocks
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4 for 4000 bytes at 1000 per block", len(blocks))
	}
	for i, block := range blocks {
		if block.RawSize != 1000 {
			t.Errorf("block %d RawSize = %d, want 1000", i, block.RawSize)
		}
		if block.Tag != compress.LZ4 {
			t.Errorf("block %d tag = %s, want lz4", i, block.Tag)
		}
	}
}

func TestSmallBlocksStoredRaw(t *testing.T) {
	descriptor := Descriptor{Width: 16, Height: 16, Stride: 64}
	engine := NewEngine(Options{Codec: compress.Zstd})
	mustTrack(t, engine, 1, descriptor)
	snapshot := newSnapshot(descriptor, 0)
	mustCommit(t, engine, 1, snapshot)

	setPixel(snapshot, descriptor, 3, 3, 0xFFFFFFFF)
	record := mustCommit(t, engine, 1, snapshot)
	block := record.Regions[0].Blocks[0]
	if block.Tag != compress.None || block.RawSize != 4 {
		t.Errorf("single pixel block = %s/%d bytes, want none/4", block.Tag, block.RawSize)
	}
}

// TestReconstructionEquivalence drives random commit sequences through
// the engine, the binary record encoding, and a replica, and checks
// that the replica always ends up with the committed content.
func TestReconstructionEquivalence(t *testing.T) {
	t.Parallel()
	codecs := []compress.Tag{compress.None, compress.LZ4, compress.Zstd, compress.PlanarLZ4}
	for _, codec := range codecs {
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()
			random := rand.New(rand.NewPCG(uint64(codec), 42))
			descriptor := Descriptor{Width: 48, Height: 40, Stride: 48*4 + 12}
			engine := NewEngine(Options{Codec: codec, BlockSize: 1000, MinCompressSize: 32})
			mustTrack(t, engine, 9, descriptor)
			replica := NewReplica(9)
			snapshot := newSnapshot(descriptor, 0xFF000000)

			for step := 0; step < 60; step++ {
				changes := random.IntN(4)
				for range changes {
					x, y := random.IntN(descriptor.Width), random.IntN(descriptor.Height)
					rect := Rect{
						X: x, Y: y,
						Width:  1 + random.IntN(descriptor.Width-x),
						Height: 1 + random.IntN(descriptor.Height-y),
					}
					fillRect(snapshot, descriptor, rect, random.Uint32())
				}
				if step == 30 {
					if err := engine.Invalidate(9); err != nil {
						t.Fatal(err)
					}
				}

				record := mustCommit(t, engine, 9, snapshot)
				decoded, err := DecodeDelta(record.Encode())
				if err != nil {
					t.Fatalf("step %d: DecodeDelta: %v", step, err)
				}
				if err := replica.Apply(decoded); err != nil {
					t.Fatalf("step %d: Apply: %v", step, err)
				}
				if replica.Version() != uint64(step+1) {
					t.Fatalf("step %d: replica version %d, want %d", step, replica.Version(), step+1)
				}
				if string(replica.Pixels()) != string(visible(snapshot, descriptor)) {
					t.Fatalf("step %d: replica content diverged from snapshot", step)
				}
			}
		})
	}
}
