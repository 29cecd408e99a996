// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Default backpressure marks.
const (
	DefaultHighWater = 4 * 1024 * 1024
	DefaultLowWater  = 1024 * 1024
)

// ErrClosed is returned by Enqueue once the Framer is closing or
// closed.
var ErrClosed = errors.New("transport: framer closed")

// FramerOptions configures a Framer. Zero values select the defaults.
type FramerOptions struct {
	// HighWater is the queued byte count above which WaitWritable
	// blocks. LowWater is the count it must fall to before
	// WaitWritable returns again.
	HighWater int
	LowWater  int

	// MaxFrameSize bounds the payload of an enqueued frame.
	MaxFrameSize int

	Logger *slog.Logger
}

func (o FramerOptions) withDefaults() FramerOptions {
	if o.HighWater <= 0 {
		o.HighWater = DefaultHighWater
	}
	if o.LowWater <= 0 || o.LowWater > o.HighWater {
		o.LowWater = min(DefaultLowWater, o.HighWater/2)
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	return o
}

// Framer is the outbound half of a connection. Enqueue appends encoded
// frames to a queue without blocking; a writer goroutine drains the
// queue to the underlying connection. All methods are safe for
// concurrent use.
type Framer struct {
	conn    io.WriteCloser
	options FramerOptions

	mu   sync.Mutex
	cond *sync.Cond

	// pending holds encoded frames not yet handed to the writer.
	// spare is the buffer the writer last drained, reused for the
	// next batch. queued counts pending bytes plus the batch in
	// flight.
	pending []byte
	spare   []byte
	queued  int

	// paused is set while queued is above the high-water mark.
	// writable is closed when it clears.
	paused   bool
	writable chan struct{}

	closing bool
	closed  bool
	err     error

	done chan struct{}
}

// NewFramer starts the writer goroutine for conn. The Framer owns conn
// and closes it when the writer stops.
func NewFramer(conn io.WriteCloser, options FramerOptions) *Framer {
	f := &Framer{
		conn:    conn,
		options: options.withDefaults(),
		done:    make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.writeLoop()
	return f
}

func (f *Framer) logger() *slog.Logger {
	if f.options.Logger != nil {
		return f.options.Logger
	}
	return slog.Default()
}

// Enqueue queues frame for sending. It never blocks on the socket.
func (f *Framer) Enqueue(frame Frame) error {
	if len(frame.Payload) > f.options.MaxFrameSize {
		return fmt.Errorf("%w: %s frame of %d bytes, maximum %d",
			ErrFrameTooLarge, frame.Kind, len(frame.Payload), f.options.MaxFrameSize)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing || f.closed {
		return ErrClosed
	}
	f.pending = AppendFrame(f.pending, frame)
	f.queued += frame.Size()
	if !f.paused && f.queued > f.options.HighWater {
		f.paused = true
		f.writable = make(chan struct{})
	}
	f.cond.Signal()
	return nil
}

// Queued returns the number of bytes accepted by Enqueue that have not
// been written yet.
func (f *Framer) Queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

// WaitWritable blocks while the queue is above the high-water mark,
// until it drains to the low-water mark. It returns ErrClosed (or the
// write error that stopped the Framer) if the Framer stops first.
func (f *Framer) WaitWritable(ctx context.Context) error {
	for {
		f.mu.Lock()
		if f.closed {
			err := f.stopErr()
			f.mu.Unlock()
			return err
		}
		if !f.paused {
			f.mu.Unlock()
			return nil
		}
		writable := f.writable
		f.mu.Unlock()

		select {
		case <-writable:
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CloseAfterFlush stops accepting frames, waits for the queue to be
// written and closes the connection. If ctx ends first the connection
// is closed with frames still queued and ctx's error is returned.
func (f *Framer) CloseAfterFlush(ctx context.Context) error {
	f.mu.Lock()
	f.closing = true
	f.cond.Broadcast()
	f.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		f.Close()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if errors.Is(f.err, ErrClosed) {
		return nil
	}
	return f.err
}

// Close discards queued frames, closes the connection and waits for
// the writer to stop.
func (f *Framer) Close() error {
	f.mu.Lock()
	alreadyClosed := f.closed
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()

	var err error
	if !alreadyClosed {
		err = f.conn.Close()
	}
	<-f.done
	return err
}

// Done is closed when the writer has stopped.
func (f *Framer) Done() <-chan struct{} {
	return f.done
}

// Err returns the write error that stopped the Framer, if any.
func (f *Framer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errors.Is(f.err, ErrClosed) {
		return nil
	}
	return f.err
}

// stopErr is called with mu held.
func (f *Framer) stopErr() error {
	if f.err != nil {
		return f.err
	}
	return ErrClosed
}

func (f *Framer) writeLoop() {
	defer close(f.done)
	for {
		f.mu.Lock()
		for len(f.pending) == 0 && !f.closing && !f.closed {
			f.cond.Wait()
		}
		if f.closed {
			f.finish(ErrClosed)
			f.mu.Unlock()
			return
		}
		if len(f.pending) == 0 {
			// closing with nothing left to write.
			f.closed = true
			f.finish(ErrClosed)
			f.mu.Unlock()
			if err := f.conn.Close(); err != nil {
				f.logger().Debug("closing connection after flush", "error", err)
			}
			return
		}
		batch := f.pending
		f.pending = f.spare[:0]
		f.mu.Unlock()

		err := writeAll(f.conn, batch)

		f.mu.Lock()
		f.queued -= len(batch)
		f.spare = batch
		if f.paused && f.queued <= f.options.LowWater {
			f.paused = false
			close(f.writable)
		}
		if err != nil {
			if f.closed {
				// Close interrupted the write.
				f.finish(ErrClosed)
				f.mu.Unlock()
				return
			}
			f.closed = true
			f.finish(fmt.Errorf("transport: write: %w", err))
			f.mu.Unlock()
			f.conn.Close()
			return
		}
		f.mu.Unlock()
	}
}

// finish records why the writer stopped and releases blocked waiters.
// Called with mu held.
func (f *Framer) finish(err error) {
	if f.err == nil {
		f.err = err
	}
	if f.paused {
		f.paused = false
		close(f.writable)
	}
	f.pending = nil
	f.queued = 0
}

// writeAll writes data, retrying short writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		data = data[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}
