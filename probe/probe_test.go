// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/J-x-Z/winpipe/lib/codec"
	"github.com/J-x-Z/winpipe/lib/compress"
	"github.com/J-x-Z/winpipe/lib/testutil"
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/transport"
)

func TestGradient(t *testing.T) {
	t.Parallel()
	pixels := Gradient(4, 3)
	if len(pixels) != 4*3*4 {
		t.Fatalf("len = %d, want %d", len(pixels), 4*3*4)
	}
	pixel := func(x, y int) uint32 { return binary.LittleEndian.Uint32(pixels[(y*4+x)*4:]) }
	if got := pixel(0, 0); got != 0xFF000080 {
		t.Errorf("top-left = %#x, want 0xff000080", got)
	}
	if got := pixel(3, 2); got != 0xFFFFFF80 {
		t.Errorf("bottom-right = %#x, want 0xffffff80", got)
	}
}

func TestBand(t *testing.T) {
	t.Parallel()
	pixels := Gradient(2, 4)
	band := Band(pixels, 8, 1, 2, 0x11223344)
	if len(band) != 16 {
		t.Fatalf("band length = %d, want 16", len(band))
	}
	for row := range 4 {
		got := binary.LittleEndian.Uint32(pixels[row*8:])
		painted := row == 1 || row == 2
		if painted != (got == 0x11223344) {
			t.Errorf("row %d = %#x, painted %t", row, got, painted)
		}
	}
}

// fakeServer is the server end of a probe connection driven by hand.
type fakeServer struct {
	t      *testing.T
	writes chan transport.Frame
	conn   interface {
		Write([]byte) (int, error)
	}
}

func startFake(t *testing.T, hello transport.Hello) (*Client, *fakeServer) {
	t.Helper()
	clientConn, serverConn := testutil.ConnPair(t)

	frame, err := transport.ControlFrame(transport.KindHello, hello)
	if err != nil {
		t.Fatal(err)
	}
	if err := transport.WriteFrame(serverConn, frame); err != nil {
		t.Fatal(err)
	}

	fake := &fakeServer{t: t, writes: make(chan transport.Frame, 16), conn: serverConn}
	go func() {
		for {
			frame, err := transport.ReadFrame(serverConn, transport.DefaultMaxFrameSize)
			if err != nil {
				close(fake.writes)
				return
			}
			fake.writes <- frame
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := NewClient(ctx, clientConn, Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, fake
}

func (f *fakeServer) send(frame transport.Frame) {
	f.t.Helper()
	if err := transport.WriteFrame(f.conn, frame); err != nil {
		f.t.Fatal(err)
	}
}

func TestNewClientRejectsProtocol(t *testing.T) {
	t.Parallel()
	clientConn, serverConn := testutil.ConnPair(t)
	frame, err := transport.ControlFrame(transport.KindHello, transport.Hello{Protocol: transport.ProtocolVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := transport.WriteFrame(serverConn, frame); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewClient(ctx, clientConn, Options{}); err == nil {
		t.Fatal("NewClient accepted a newer frame protocol")
	}
}

func TestDeltaAppliedAndAcknowledged(t *testing.T) {
	t.Parallel()
	client, fake := startFake(t, transport.Hello{Protocol: transport.ProtocolVersion, MaxFrameSize: transport.DefaultMaxFrameSize})

	engine := mirror.NewEngine(mirror.Options{Codec: compress.LZ4})
	descriptor := mirror.Descriptor{Width: 8, Height: 8, Stride: 32, Format: protocol.ShmFormatARGB8888}
	if err := engine.Track(9, descriptor); err != nil {
		t.Fatal(err)
	}
	pixels := Gradient(8, 8)
	record, err := engine.Commit(9, pixels)
	if err != nil {
		t.Fatal(err)
	}
	fake.send(transport.Frame{Kind: transport.KindDelta, Payload: record.Encode()})
	fake.send(closeFrame(t, transport.CloseShutdown))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Drain(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}

	records := client.Records()
	if len(records) != 1 || records[0].Buffer != 9 || records[0].To != 1 || !records[0].Full {
		t.Fatalf("records = %+v", records)
	}
	replica, ok := client.Replica(9)
	if !ok {
		t.Fatal("no replica for buffer 9")
	}
	if string(replica.Pixels()) != string(pixels) {
		t.Error("replica does not match the committed pixels")
	}

	ack := testutil.RequireReceive(t, fake.writes, 5*time.Second, "waiting for ack")
	var got transport.Ack
	if err := codec.Unmarshal(ack.Payload, &got); err != nil || ack.Kind != transport.KindAck {
		t.Fatalf("got %s frame (%v), want ack", ack.Kind, err)
	}
	if got.Buffer != 9 || got.Version != 1 {
		t.Errorf("ack = %+v, want buffer 9 version 1", got)
	}
}

func TestVersionGapRequestsResync(t *testing.T) {
	t.Parallel()
	client, fake := startFake(t, transport.Hello{Protocol: transport.ProtocolVersion, MaxFrameSize: transport.DefaultMaxFrameSize})

	engine := mirror.NewEngine(mirror.Options{Codec: compress.None, BlockSize: mirror.DefaultBlockSize})
	if err := engine.Track(3, mirror.Descriptor{Width: 4, Height: 4, Stride: 16, Format: protocol.ShmFormatXRGB8888}); err != nil {
		t.Fatal(err)
	}
	pixels := Gradient(4, 4)
	if _, err := engine.Commit(3, pixels); err != nil {
		t.Fatal(err)
	}
	Band(pixels, 16, 0, 1, 0)
	second, err := engine.Commit(3, pixels)
	if err != nil {
		t.Fatal(err)
	}

	// The replica never saw version 1.
	fake.send(transport.Frame{Kind: transport.KindDelta, Payload: second.Encode()})
	fake.send(closeFrame(t, transport.CloseShutdown))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Drain(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Drain error = %v, want ErrSessionClosed", err)
	}
	if len(client.Records()) != 0 {
		t.Errorf("records = %+v, want none applied", client.Records())
	}

	frame := testutil.RequireReceive(t, fake.writes, 5*time.Second, "waiting for resync")
	var resync transport.Resync
	if err := transport.ParseControl(frame, transport.KindResync, &resync); err != nil {
		t.Fatal(err)
	}
	if resync.Buffer != 3 {
		t.Errorf("resync buffer = %d, want 3", resync.Buffer)
	}
}

func TestWritePoolSplitsFrames(t *testing.T) {
	t.Parallel()
	client, fake := startFake(t, transport.Hello{Protocol: transport.ProtocolVersion, MaxFrameSize: 4096})

	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i)
	}
	if err := client.WritePool(5, 100, data); err != nil {
		t.Fatal(err)
	}

	var reassembled []byte
	wantOffset := uint32(100)
	for len(reassembled) < len(data) {
		frame := testutil.RequireReceive(t, fake.writes, 5*time.Second, "waiting for mirror-write")
		write, err := transport.ParseMirrorWrite(frame.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if write.Pool != 5 || write.Offset != wantOffset {
			t.Fatalf("write pool %d offset %d, want pool 5 offset %d", write.Pool, write.Offset, wantOffset)
		}
		if frame.Size() > 4096+transport.HeaderSize {
			t.Errorf("frame of %d bytes exceeds the hello limit", frame.Size())
		}
		reassembled = append(reassembled, write.Data...)
		wantOffset += uint32(len(write.Data))
	}
	if string(reassembled) != string(data) {
		t.Error("pool bytes reassembled out of order")
	}
}

func closeFrame(t *testing.T, code uint32) transport.Frame {
	t.Helper()
	frame, err := transport.ControlFrame(transport.KindClose, transport.Close{Code: code, Reason: "test"})
	if err != nil {
		t.Fatal(err)
	}
	return frame
}
