// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/J-x-Z/winpipe/compositor"
	"github.com/J-x-Z/winpipe/lib/metrics"
	"github.com/J-x-Z/winpipe/lib/netutil"
	"github.com/J-x-Z/winpipe/lib/version"
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/transport"
	"github.com/J-x-Z/winpipe/wire"
)

const (
	// readBufferSize is the socket read size.
	readBufferSize = 64 * 1024

	// flushTimeout bounds how long a closing connection may spend
	// draining its send queue.
	flushTimeout = 5 * time.Second
)

// SessionInfo is a snapshot of one live connection, as served on
// /sessions.
type SessionInfo struct {
	Session      string        `json:"session"`
	ConnectionID int64         `json:"connection_id"`
	RemoteAddr   string        `json:"remote_addr"`
	Started      time.Time     `json:"started"`
	Objects      int           `json:"objects"`
	Buffers      int           `json:"buffers"`
	MessagesIn   uint64        `json:"messages_in"`
	MessagesOut  uint64        `json:"messages_out"`
	Deltas       uint64        `json:"deltas"`
	QueuedBytes  int           `json:"queued_bytes"`
	Surfaces     []SurfaceInfo `json:"surfaces"`
}

// SurfaceInfo describes one wl_surface of a session.
type SurfaceInfo struct {
	ID      uint32 `json:"id"`
	Phase   string `json:"phase"`
	Buffer  uint32 `json:"buffer,omitempty"`
	Commits uint64 `json:"commits"`
	Title   string `json:"title,omitempty"`
	AppID   string `json:"app_id,omitempty"`
}

// connection is the worker state of one client. Everything except
// snapshot is owned by the worker goroutine.
type connection struct {
	id          int64
	session     string
	conn        net.Conn
	server      *Server
	logger      *slog.Logger
	compositor  *compositor.Compositor
	framer      *transport.Framer
	reassembler *transport.Reassembler
	decoder     *wire.Decoder
	started     time.Time

	// events holds encoded events not yet framed; scratch is reused
	// to encode one event.
	events  []byte
	scratch []byte

	messagesIn  uint64
	messagesOut uint64
	deltas      uint64

	mu       sync.Mutex
	snapshot SessionInfo
}

// ending describes why a connection stopped being served.
type ending struct {
	// code is the close frame code to send, or 0 for none.
	code   uint32
	reason string

	// err is a failure worth logging.
	err error
}

func (c *connection) metrics() *metrics.Metrics { return c.server.Metrics }

func (c *connection) info() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// run serves the connection until the client leaves, the session ends
// in error, or ctx is cancelled.
func (c *connection) run(ctx context.Context) {
	defer c.compositor.Close()

	// Unblock the read when the server shuts down.
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	c.logger.Info("connection accepted", "remote_addr", c.conn.RemoteAddr().String())
	c.publish()

	end, err := c.hello()
	if err == nil {
		end = c.serve(ctx)
	}
	c.finish(end)
}

func (c *connection) hello() (ending, error) {
	cfg := c.server.Config
	frame, err := transport.ControlFrame(transport.KindHello, transport.Hello{
		Protocol:     transport.ProtocolVersion,
		Session:      c.session,
		Server:       version.Short(),
		Codec:        c.server.codec.String(),
		MaxFrameSize: cfg.MaxFrameSize,
		Output: transport.OutputInfo{
			Width:      cfg.Output.Width,
			Height:     cfg.Output.Height,
			RefreshMHz: cfg.Output.RefreshMHz,
			Scale:      cfg.Output.Scale,
		},
	})
	if err == nil {
		err = c.framer.Enqueue(frame)
	}
	if err != nil {
		return ending{err: fmt.Errorf("sending hello: %w", err)}, err
	}
	return ending{}, nil
}

func (c *connection) serve(ctx context.Context) ending {
	idleTimeout := c.server.Config.IdleTimeout
	buffer := make([]byte, readBufferSize)
	for {
		if err := c.framer.WaitWritable(ctx); err != nil {
			if ctx.Err() != nil {
				return ending{code: transport.CloseShutdown, reason: "server shutting down"}
			}
			return ending{err: err}
		}
		if idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}
		// The deadline above may have replaced the shutdown
		// deadline, so check for cancellation after setting it.
		if ctx.Err() != nil {
			return ending{code: transport.CloseShutdown, reason: "server shutting down"}
		}

		n, err := c.conn.Read(buffer)
		if n > 0 {
			c.reassembler.Push(buffer[:n])
			if end, done := c.processFrames(); done {
				return end
			}
			if err := c.flushEvents(); err != nil {
				return ending{err: err}
			}
			c.metrics().SendQueue(c.framer.Queued())
			c.publish()
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ending{code: transport.CloseShutdown, reason: "server shutting down"}
			case netutil.IsTimeout(err):
				return ending{code: transport.CloseIdle, reason: fmt.Sprintf("no input for %s", idleTimeout)}
			case netutil.IsExpectedCloseError(err):
				if buffered := c.reassembler.Buffered(); buffered > 0 {
					c.logger.Debug("client left mid-frame", "buffered_bytes", buffered)
				}
				return ending{}
			default:
				return ending{err: fmt.Errorf("reading: %w", err)}
			}
		}
	}
}

// processFrames handles every complete frame in the reassembler. done
// is true when the session must end.
func (c *connection) processFrames() (end ending, done bool) {
	for {
		frame, ok, err := c.reassembler.Next()
		if err != nil {
			return c.framingError(err)
		}
		if !ok {
			return ending{}, false
		}
		if end, done := c.handleFrame(frame); done {
			return end, true
		}
	}
}

func (c *connection) handleFrame(frame transport.Frame) (ending, bool) {
	switch frame.Kind {
	case transport.KindMessage:
		c.decoder.Write(frame.Payload)
		return c.dispatchMessages()

	case transport.KindMirrorWrite:
		write, err := transport.ParseMirrorWrite(frame.Payload)
		if err != nil {
			return c.framingError(err)
		}
		effects, err := c.compositor.WritePool(write.Pool, write.Offset, write.Data)
		return c.apply(effects, err)

	case transport.KindAck:
		var ack transport.Ack
		if err := transport.ParseControl(frame, transport.KindAck, &ack); err != nil {
			return c.framingError(err)
		}
		if err := c.compositor.Acknowledge(ack.Buffer, ack.Version); err != nil {
			c.ignoredControl(frame.Kind, ack.Buffer, err)
		}

	case transport.KindResync:
		var resync transport.Resync
		if err := transport.ParseControl(frame, transport.KindResync, &resync); err != nil {
			return c.framingError(err)
		}
		if err := c.compositor.Resync(resync.Buffer); err != nil {
			c.ignoredControl(frame.Kind, resync.Buffer, err)
		} else {
			c.logger.Debug("resync requested", "buffer", resync.Buffer)
		}

	case transport.KindClose:
		var peer transport.Close
		if err := transport.ParseControl(frame, transport.KindClose, &peer); err != nil {
			return c.framingError(err)
		}
		c.logger.Info("client closed the session", "code", peer.Code, "reason", peer.Reason)
		return ending{}, true

	case transport.KindHello, transport.KindDelta, transport.KindDeltaPart:
		return c.framingError(fmt.Errorf("unexpected %s frame from client", frame.Kind))

	default:
		c.logger.Debug("skipping frame of unknown kind", "kind", frame.Kind.String(), "size", len(frame.Payload))
	}
	return ending{}, false
}

// ignoredControl logs an ack or resync that names a buffer the engine
// cannot use. A buffer destroyed while its record was in flight is
// routine; anything else is a misbehaving renderer.
func (c *connection) ignoredControl(kind transport.Kind, bufferID uint32, err error) {
	if errors.Is(err, mirror.ErrUnknownBuffer) {
		c.logger.Debug("ignoring control frame for released buffer", "kind", kind.String(), "buffer", bufferID)
		return
	}
	c.logger.Warn("ignoring control frame", "kind", kind.String(), "buffer", bufferID, "error", err)
}

func (c *connection) framingError(err error) (ending, bool) {
	return ending{code: transport.CloseFraming, reason: err.Error(), err: err}, true
}

// dispatchMessages decodes and dispatches every complete message the
// decoder holds.
func (c *connection) dispatchMessages() (ending, bool) {
	for {
		message, err := c.decoder.Next()
		if errors.Is(err, wire.ErrIncomplete) {
			return ending{}, false
		}
		if err != nil {
			effects, protocolErr := c.compositor.Fail(err)
			return c.apply(effects, protocolErr)
		}
		c.messagesIn++
		c.metrics().Messages(metrics.Inbound, 1)

		effects, err := c.compositor.Dispatch(message)
		if end, done := c.apply(effects, err); done {
			return end, true
		}
	}
}

// apply carries out the effects of one request. A non-nil err ends the
// session after the effects (the wl_display.error event) are queued.
func (c *connection) apply(effects []compositor.Effect, err error) (ending, bool) {
	for _, effect := range effects {
		var applyErr error
		switch effect := effect.(type) {
		case compositor.EmitEvent:
			applyErr = c.queueEvent(effect.Message)
		case compositor.BufferCommitted:
			applyErr = c.queueDelta(effect)
		case compositor.CommitRejected:
			c.metrics().BufferMismatch()
			c.logger.Warn("commit rejected",
				"surface", effect.SurfaceID,
				"buffer", effect.BufferID,
				"error", effect.Err,
			)
		case compositor.ObjectCreated:
			c.logger.Debug("object created", "id", effect.ID, "interface", effect.Interface.Name, "version", effect.Version)
		case compositor.ObjectDestroyed:
			c.logger.Debug("object destroyed", "id", effect.ID, "interface", effect.Interface.Name)
		}
		if applyErr != nil {
			return ending{err: applyErr}, true
		}
	}

	if err == nil {
		return ending{}, false
	}
	var protocolErr *compositor.ProtocolError
	if !errors.As(err, &protocolErr) {
		return ending{code: transport.CloseProtocolError, reason: err.Error(), err: err}, true
	}
	c.metrics().ProtocolError(protocolErr.Kind.String())
	c.logger.Warn("protocol error",
		"kind", protocolErr.Kind.String(),
		"object", protocolErr.ObjectID,
		"code", protocolErr.Code,
		"error", protocolErr.Error(),
	)
	return ending{code: transport.CloseProtocolError, reason: protocolErr.Error()}, true
}

// queueEvent encodes an event into the pending message frame, flushing
// first if the frame would grow past the limit.
func (c *connection) queueEvent(message wire.Message) error {
	encoded, err := wire.AppendMessage(c.scratch[:0], message)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", message, err)
	}
	c.scratch = encoded
	if len(c.events)+len(encoded) > c.server.Config.MaxFrameSize {
		if err := c.flushEvents(); err != nil {
			return err
		}
	}
	c.events = append(c.events, encoded...)
	c.messagesOut++
	c.metrics().Messages(metrics.Outbound, 1)
	return nil
}

// flushEvents frames the pending events.
func (c *connection) flushEvents() error {
	if len(c.events) == 0 {
		return nil
	}
	err := c.framer.Enqueue(transport.Frame{Kind: transport.KindMessage, Payload: c.events})
	c.events = c.events[:0]
	if err != nil {
		return fmt.Errorf("queueing events: %w", err)
	}
	return nil
}

// queueDelta frames a delta record after the events that precede it.
func (c *connection) queueDelta(commit compositor.BufferCommitted) error {
	if err := c.flushEvents(); err != nil {
		return err
	}
	record := commit.Delta
	encoded := record.Encode()
	frames := transport.DeltaFrames(encoded, c.server.Config.MaxFrameSize)
	for _, frame := range frames {
		if err := c.framer.Enqueue(frame); err != nil {
			return fmt.Errorf("queueing delta: %w", err)
		}
	}

	c.deltas++
	c.metrics().DeltaRecord(len(record.Regions), record.RawBytes(), record.EncodedBytes())
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.logger.Debug("delta",
			"surface", commit.SurfaceID,
			"buffer", record.BufferID,
			"from", record.From,
			"to", record.To,
			"full", record.Full,
			"regions", len(record.Regions),
			"raw_bytes", record.RawBytes(),
			"encoded_bytes", record.EncodedBytes(),
			"frames", len(frames),
		)
	}
	return nil
}

// finish sends the close frame for end, drains the queue and closes
// the socket.
func (c *connection) finish(end ending) {
	if end.code != 0 {
		if err := c.flushEvents(); err != nil {
			c.logger.Debug("events lost on close", "error", err)
		}
		frame, err := transport.ControlFrame(transport.KindClose, transport.Close{Code: end.code, Reason: end.reason})
		if err == nil {
			err = c.framer.Enqueue(frame)
		}
		if err != nil {
			c.logger.Debug("close frame not sent", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := c.framer.CloseAfterFlush(ctx); err != nil && !netutil.IsExpectedCloseError(err) {
		c.logger.Debug("send queue not drained", "error", err)
	}

	if end.err != nil && !netutil.IsExpectedCloseError(end.err) && end.code != transport.CloseFraming {
		c.logger.Error("connection failed", "error", end.err)
	}
	c.logger.Info("connection closed",
		"close_code", end.code,
		"reason", end.reason,
		"messages_in", c.messagesIn,
		"messages_out", c.messagesOut,
		"deltas", c.deltas,
		"duration", c.server.clock().Now().Sub(c.started).String(),
	)
}

// publish refreshes the snapshot served on /sessions.
func (c *connection) publish() {
	surfaces := c.compositor.Surfaces()
	info := SessionInfo{
		Session:      c.session,
		ConnectionID: c.id,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		Started:      c.started,
		Objects:      c.compositor.Registry().Len(),
		Buffers:      c.compositor.Engine().Len(),
		MessagesIn:   c.messagesIn,
		MessagesOut:  c.messagesOut,
		Deltas:       c.deltas,
		QueuedBytes:  c.framer.Queued(),
		Surfaces:     make([]SurfaceInfo, 0, len(surfaces)),
	}
	for _, surface := range surfaces {
		info.Surfaces = append(info.Surfaces, SurfaceInfo{
			ID:      surface.ID,
			Phase:   surface.Phase.String(),
			Buffer:  surface.Buffer,
			Commits: surface.Commits,
			Title:   surface.Title,
			AppID:   surface.AppID,
		})
	}
	c.mu.Lock()
	c.snapshot = info
	c.mu.Unlock()
}
