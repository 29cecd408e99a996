// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/J-x-Z/winpipe/lib/testutil"
)

const testTimeout = 5 * time.Second

// gateWriter is an io.WriteCloser whose writes block until release is
// closed, so tests control when the Framer's writer makes progress.
type gateWriter struct {
	release chan struct{}
	closed  chan struct{}
	once    sync.Once
	fail    error

	mu      sync.Mutex
	written bytes.Buffer
}

func newGateWriter() *gateWriter {
	return &gateWriter{release: make(chan struct{}), closed: make(chan struct{})}
}

func (w *gateWriter) Write(data []byte) (int, error) {
	select {
	case <-w.release:
	case <-w.closed:
		return 0, net.ErrClosed
	}
	if w.fail != nil {
		return 0, w.fail
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written.Write(data)
}

func (w *gateWriter) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

func (w *gateWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.written.Bytes()...)
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestFramerWritesInOrder(t *testing.T) {
	t.Parallel()

	client, server := testutil.ConnPair(t)
	framer := NewFramer(server, FramerOptions{})
	defer framer.Close()

	want := []Frame{
		{Kind: KindHello, Payload: []byte("hello")},
		{Kind: KindMessage, Payload: bytes.Repeat([]byte{7}, 1000)},
		{Kind: KindDelta, Payload: []byte("delta")},
	}
	for _, frame := range want {
		if err := framer.Enqueue(frame); err != nil {
			t.Fatalf("Enqueue(%s): %v", frame.Kind, err)
		}
	}

	client.SetReadDeadline(time.Now().Add(testTimeout))
	for i, frame := range want {
		got, err := ReadFrame(client, 0)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if got.Kind != frame.Kind || !bytes.Equal(got.Payload, frame.Payload) {
			t.Errorf("frame %d = %s, want %s", i, got.Kind, frame.Kind)
		}
	}
}

func TestFramerBackpressure(t *testing.T) {
	t.Parallel()

	writer := newGateWriter()
	framer := NewFramer(writer, FramerOptions{HighWater: 100, LowWater: 10})
	defer framer.Close()

	if err := framer.WaitWritable(cancelled()); err != nil {
		t.Fatalf("WaitWritable on an empty queue = %v", err)
	}
	if err := framer.Enqueue(Frame{Kind: KindDelta, Payload: make([]byte, 200)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := framer.Queued(); got != 205 {
		t.Errorf("Queued = %d, want 205", got)
	}
	// The writer is stuck on the gate, so the queue stays above the
	// high-water mark and only the context can end the wait.
	if err := framer.WaitWritable(cancelled()); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitWritable above the high-water mark = %v, want context.Canceled", err)
	}
	// Enqueue still succeeds while paused.
	if err := framer.Enqueue(Frame{Kind: KindMessage, Payload: []byte{1}}); err != nil {
		t.Fatalf("Enqueue while paused: %v", err)
	}

	result := make(chan error, 1)
	go func() { result <- framer.WaitWritable(context.Background()) }()
	close(writer.release)
	if err := testutil.RequireReceive(t, result, testTimeout, "WaitWritable after the writer drained"); err != nil {
		t.Fatalf("WaitWritable = %v", err)
	}
	if err := framer.CloseAfterFlush(context.Background()); err != nil {
		t.Fatalf("CloseAfterFlush: %v", err)
	}
	if got := len(writer.bytes()); got != 205+6 {
		t.Errorf("wrote %d bytes, want %d", got, 205+6)
	}
}

func TestFramerCloseAfterFlush(t *testing.T) {
	t.Parallel()

	writer := newGateWriter()
	close(writer.release)
	framer := NewFramer(writer, FramerOptions{})

	var want []byte
	for i := range 10 {
		frame := Frame{Kind: KindMessage, Payload: bytes.Repeat([]byte{byte(i)}, i*10)}
		want = AppendFrame(want, frame)
		if err := framer.Enqueue(frame); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if err := framer.CloseAfterFlush(context.Background()); err != nil {
		t.Fatalf("CloseAfterFlush: %v", err)
	}
	if !bytes.Equal(writer.bytes(), want) {
		t.Errorf("wrote %d bytes, want %d", len(writer.bytes()), len(want))
	}
	testutil.RequireClosed(t, writer.closed, testTimeout, "connection closed after flush")
	if err := framer.Enqueue(Frame{Kind: KindMessage}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after close = %v, want ErrClosed", err)
	}
	if err := framer.Err(); err != nil {
		t.Errorf("Err after a clean close = %v", err)
	}
}

func TestFramerCloseAfterFlushGivesUp(t *testing.T) {
	t.Parallel()

	writer := newGateWriter()
	framer := NewFramer(writer, FramerOptions{})
	if err := framer.Enqueue(Frame{Kind: KindMessage, Payload: []byte{1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := framer.CloseAfterFlush(cancelled()); !errors.Is(err, context.Canceled) {
		t.Errorf("CloseAfterFlush = %v, want context.Canceled", err)
	}
	testutil.RequireClosed(t, framer.Done(), testTimeout, "writer stopped")
	if len(writer.bytes()) != 0 {
		t.Errorf("gated writer received %d bytes", len(writer.bytes()))
	}
}

func TestFramerWriteError(t *testing.T) {
	t.Parallel()

	broken := errors.New("connection reset")
	writer := newGateWriter()
	writer.fail = broken
	close(writer.release)
	framer := NewFramer(writer, FramerOptions{HighWater: 8, LowWater: 4})

	if err := framer.Enqueue(Frame{Kind: KindMessage, Payload: make([]byte, 32)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	testutil.RequireClosed(t, framer.Done(), testTimeout, "writer stopped after a write error")

	if err := framer.Err(); !errors.Is(err, broken) {
		t.Errorf("Err = %v, want %v", err, broken)
	}
	if err := framer.WaitWritable(context.Background()); !errors.Is(err, broken) {
		t.Errorf("WaitWritable after a write error = %v", err)
	}
	if err := framer.Enqueue(Frame{Kind: KindMessage}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after a write error = %v, want ErrClosed", err)
	}
	testutil.RequireClosed(t, writer.closed, testTimeout, "connection closed after a write error")
	if framer.Queued() != 0 {
		t.Errorf("Queued = %d after the writer stopped", framer.Queued())
	}
}

func TestFramerRejectsLargeFrame(t *testing.T) {
	t.Parallel()

	writer := newGateWriter()
	framer := NewFramer(writer, FramerOptions{MaxFrameSize: 16})
	defer framer.Close()

	if err := framer.Enqueue(Frame{Kind: KindDelta, Payload: make([]byte, 17)}); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Enqueue = %v, want ErrFrameTooLarge", err)
	}
	if framer.Queued() != 0 {
		t.Errorf("rejected frame was queued")
	}
}

func TestFramerCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	writer := newGateWriter()
	framer := NewFramer(writer, FramerOptions{})
	framer.Close()
	framer.Close()
	testutil.RequireClosed(t, framer.Done(), testTimeout, "writer stopped")
	if err := framer.WaitWritable(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("WaitWritable after Close = %v, want ErrClosed", err)
	}
}
