// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/transport"
	"github.com/J-x-Z/winpipe/wire"
)

// ErrSessionClosed is returned once the server has sent its close
// frame.
var ErrSessionClosed = errors.New("probe: server closed the session")

// DisplayError is a wl_display.error event received from the server.
type DisplayError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("wl_display.error on object %d, code %d: %s", e.ObjectID, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	// DialTimeout bounds connection setup in Dial. Zero selects five
	// seconds.
	DialTimeout time.Duration

	// ManualAck disables acknowledging each applied delta record.
	ManualAck bool

	// MaxFrameSize bounds inbound frames. Zero selects
	// transport.DefaultMaxFrameSize.
	MaxFrameSize int

	Logger *slog.Logger
}

// Record summarizes one delta record the client applied.
type Record struct {
	Buffer       uint32
	From, To     uint64
	Full         bool
	Width        int
	Height       int
	Regions      int
	RawBytes     int
	EncodedBytes int
}

// Client is one probe session.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	options Options
	hello   transport.Hello

	nextID  uint32
	objects map[uint32]*protocol.Interface
	events  *wire.Decoder

	deltas   *transport.DeltaAssembler
	replicas *mirror.ReplicaSet
	records  []Record

	displayError *DisplayError
	closeFrame   *transport.Close
}

// Dial connects to a winpipe server and reads its hello.
func Dial(ctx context.Context, address string, options Options) (*Client, error) {
	timeout := options.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := transport.Dial(ctx, address, timeout)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, conn, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// NewClient starts a session on an established connection. It reads
// the hello frame before returning.
func NewClient(ctx context.Context, conn net.Conn, options Options) (*Client, error) {
	if options.MaxFrameSize <= 0 {
		options.MaxFrameSize = transport.DefaultMaxFrameSize
	}
	c := &Client{
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, 64*1024),
		options:  options,
		nextID:   protocol.DisplayID,
		objects:  map[uint32]*protocol.Interface{protocol.DisplayID: protocol.Display},
		deltas:   transport.NewDeltaAssembler(0),
		replicas: mirror.NewReplicaSet(),
	}
	c.events = wire.NewDecoder(c.eventSignature)
	frame, err := c.readFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe: reading hello: %w", err)
	}
	if err := transport.ParseControl(frame, transport.KindHello, &c.hello); err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if c.hello.Protocol != transport.ProtocolVersion {
		return nil, fmt.Errorf("probe: server speaks frame protocol %d, want %d", c.hello.Protocol, transport.ProtocolVersion)
	}
	c.logger().Debug("session started", "session", c.hello.Session, "server", c.hello.Server, "codec", c.hello.Codec)
	return c, nil
}

func (c *Client) logger() *slog.Logger {
	if c.options.Logger != nil {
		return c.options.Logger
	}
	return slog.Default()
}

// Hello returns the server's hello.
func (c *Client) Hello() transport.Hello { return c.hello }

// Records returns every delta record applied so far, in arrival
// order.
func (c *Client) Records() []Record { return c.records }

// Replica returns the reconstruction of a buffer.
func (c *Client) Replica(bufferID uint32) (*mirror.Replica, bool) {
	return c.replicas.Get(bufferID)
}

// DisplayError returns the wl_display.error the server sent, if any.
func (c *Client) DisplayError() *DisplayError { return c.displayError }

// CloseFrame returns the server's close frame, if one has arrived.
func (c *Client) CloseFrame() (transport.Close, bool) {
	if c.closeFrame == nil {
		return transport.Close{}, false
	}
	return *c.closeFrame, true
}

// Allocate reserves the next client object id for iface. The id is
// used by the request that creates the object.
func (c *Client) Allocate(iface *protocol.Interface) uint32 {
	c.nextID++
	c.objects[c.nextID] = iface
	return c.nextID
}

// Send writes one request. File descriptor arguments are omitted from
// the wire, as they are by the server's decoder.
func (c *Client) Send(objectID uint32, opcode uint16, args ...wire.Argument) error {
	wireArgs := make([]wire.Argument, 0, len(args))
	for _, arg := range args {
		if arg.Type != wire.TypeFD {
			wireArgs = append(wireArgs, arg)
		}
	}
	payload, err := wire.Encode(wire.Message{ObjectID: objectID, Opcode: opcode, Args: wireArgs})
	if err != nil {
		return fmt.Errorf("probe: encoding request: %w", err)
	}
	return c.write(transport.Frame{Kind: transport.KindMessage, Payload: payload})
}

// SendRaw writes payload as a message frame without encoding.
func (c *Client) SendRaw(payload []byte) error {
	return c.write(transport.Frame{Kind: transport.KindMessage, Payload: payload})
}

// SendFrame writes an arbitrary frame.
func (c *Client) SendFrame(frame transport.Frame) error {
	return c.write(frame)
}

// WritePool sends pool content, split into frames that fit the
// server's frame limit.
func (c *Client) WritePool(poolID uint32, offset uint32, data []byte) error {
	chunk := min(c.hello.MaxFrameSize, c.options.MaxFrameSize) - 8
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	for len(data) > 0 {
		n := min(chunk, len(data))
		write := transport.MirrorWrite{Pool: poolID, Offset: offset, Data: data[:n]}
		if err := c.write(write.Frame()); err != nil {
			return err
		}
		data = data[n:]
		offset += uint32(n)
	}
	return nil
}

// Ack reports that the renderer side applied version of a buffer.
func (c *Client) Ack(bufferID uint32, version uint64) error {
	return c.control(transport.KindAck, transport.Ack{Buffer: bufferID, Version: version})
}

// Resync asks for the next record of a buffer to be full.
func (c *Client) Resync(bufferID uint32) error {
	return c.control(transport.KindResync, transport.Resync{Buffer: bufferID})
}

// Roundtrip sends wl_display.sync and reads until its callback fires.
// It returns the events that arrived before the callback, in order.
// Delta records are applied as they arrive.
func (c *Client) Roundtrip(ctx context.Context) ([]wire.Message, error) {
	callback := c.Allocate(protocol.Callback)
	if err := c.Send(protocol.DisplayID, protocol.DisplaySync, wire.NewID(callback)); err != nil {
		return nil, err
	}
	var events []wire.Message
	for {
		event, err := c.next(ctx)
		if err != nil {
			return events, err
		}
		if event.ObjectID == callback && event.Opcode == protocol.CallbackEventDone {
			return events, nil
		}
		events = append(events, event)
	}
}

// Drain reads until the server closes the session and returns the
// events that arrived first. The error is the wl_display.error, if
// the server sent one, joined with ErrSessionClosed.
func (c *Client) Drain(ctx context.Context) ([]wire.Message, error) {
	var events []wire.Message
	for {
		event, err := c.next(ctx)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.control(transport.KindClose, transport.Close{Code: transport.CloseShutdown, Reason: "probe finished"})
	return c.conn.Close()
}

func (c *Client) control(kind transport.Kind, v any) error {
	frame, err := transport.ControlFrame(kind, v)
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(frame transport.Frame) error {
	if err := transport.WriteFrame(c.conn, frame); err != nil {
		return fmt.Errorf("probe: writing %s frame: %w", frame.Kind, err)
	}
	return nil
}

// next returns the next event, handling delta and close frames on the
// way.
func (c *Client) next(ctx context.Context) (wire.Message, error) {
	for {
		if c.events.Buffered() > 0 {
			event, err := c.events.Next()
			if err == nil {
				c.observe(event)
				return event, nil
			}
			if !errors.Is(err, wire.ErrIncomplete) {
				return wire.Message{}, fmt.Errorf("probe: decoding event: %w", err)
			}
		}
		if c.closeFrame != nil {
			return wire.Message{}, c.closedErr()
		}

		frame, err := c.readFrame(ctx)
		if err != nil {
			return wire.Message{}, err
		}
		switch frame.Kind {
		case transport.KindMessage:
			c.events.Write(frame.Payload)
		case transport.KindDeltaPart, transport.KindDelta:
			encoded, complete, err := c.deltas.Add(frame)
			if err != nil {
				return wire.Message{}, fmt.Errorf("probe: %w", err)
			}
			if !complete {
				continue
			}
			if err := c.applyDelta(encoded); err != nil {
				return wire.Message{}, err
			}
		case transport.KindClose:
			var closeFrame transport.Close
			if err := transport.ParseControl(frame, transport.KindClose, &closeFrame); err != nil {
				return wire.Message{}, fmt.Errorf("probe: %w", err)
			}
			c.closeFrame = &closeFrame
		default:
			c.logger().Debug("ignoring frame", "kind", frame.Kind.String())
		}
	}
}

func (c *Client) closedErr() error {
	err := fmt.Errorf("%w (code %d: %s)", ErrSessionClosed, c.closeFrame.Code, c.closeFrame.Reason)
	if c.displayError != nil {
		return errors.Join(c.displayError, err)
	}
	return err
}

func (c *Client) eventSignature(objectID uint32, opcode uint16) (wire.Signature, bool) {
	iface, ok := c.objects[objectID]
	if !ok {
		return nil, false
	}
	event, ok := iface.Event(opcode)
	if !ok {
		return nil, false
	}
	return event.Signature, true
}

// observe tracks the object lifecycle events the decoder depends on.
func (c *Client) observe(event wire.Message) {
	if event.ObjectID != protocol.DisplayID {
		return
	}
	switch event.Opcode {
	case protocol.DisplayEventDeleteID:
		if len(event.Args) == 1 {
			delete(c.objects, event.Args[0].Value)
		}
	case protocol.DisplayEventError:
		if len(event.Args) == 3 {
			c.displayError = &DisplayError{
				ObjectID: event.Args[0].Value,
				Code:     event.Args[1].Value,
				Message:  event.Args[2].Text,
			}
		}
	}
}

func (c *Client) applyDelta(payload []byte) error {
	record, err := mirror.DecodeDelta(payload)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if _, err := c.replicas.Apply(record); err != nil {
		if errors.Is(err, mirror.ErrVersionGap) {
			c.logger().Warn("version gap, requesting resync", "buffer", record.BufferID, "error", err)
			return c.Resync(record.BufferID)
		}
		return fmt.Errorf("probe: applying delta: %w", err)
	}
	c.records = append(c.records, Record{
		Buffer:       record.BufferID,
		From:         record.From,
		To:           record.To,
		Full:         record.Full,
		Width:        record.Width,
		Height:       record.Height,
		Regions:      len(record.Regions),
		RawBytes:     record.RawBytes(),
		EncodedBytes: record.EncodedBytes(),
	})
	if c.options.ManualAck {
		return nil
	}
	return c.Ack(record.BufferID, record.To)
}

// readFrame reads one frame, giving up when ctx is done.
func (c *Client) readFrame(ctx context.Context) (transport.Frame, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	frame, err := transport.ReadFrame(c.reader, c.options.MaxFrameSize)
	if err != nil {
		if ctx.Err() != nil {
			return transport.Frame{}, ctx.Err()
		}
		return transport.Frame{}, fmt.Errorf("probe: %w", err)
	}
	return frame, nil
}
