// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/J-x-Z/winpipe/lib/clock"
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

// OutputInfo describes the single virtual output advertised as
// wl_output.
type OutputInfo struct {
	Width, Height int32

	// RefreshMHz is the refresh rate in millihertz.
	RefreshMHz int32

	PhysicalWidthMM  int32
	PhysicalHeightMM int32

	Make  string
	Model string
	Scale int32

	// Name and Description are sent to wl_output version 4 and later.
	Name        string
	Description string
}

// DefaultOutput returns a 1920x1080 60 Hz output.
func DefaultOutput() OutputInfo {
	return OutputInfo{
		Width:            1920,
		Height:           1080,
		RefreshMHz:       60000,
		PhysicalWidthMM:  527,
		PhysicalHeightMM: 296,
		Make:             "Winpipe",
		Model:            "Virtual Display",
		Scale:            1,
		Name:             "WINPIPE-1",
		Description:      "Winpipe virtual output",
	}
}

// SeatInfo describes the advertised wl_seat.
type SeatInfo struct {
	Name string

	// RepeatRate is in characters per second, RepeatDelay in
	// milliseconds. Both are sent in wl_keyboard.repeat_info.
	RepeatRate  int32
	RepeatDelay int32
}

// DefaultSeat returns the seat "seat0" with a 25 Hz, 600 ms key
// repeat.
func DefaultSeat() SeatInfo {
	return SeatInfo{Name: "seat0", RepeatRate: 25, RepeatDelay: 600}
}

// Options configures a Compositor.
type Options struct {
	Output OutputInfo
	Seat   SeatInfo

	// MirroredPools enables wl_shm.create_pool. Pool content then
	// arrives through WritePool. When false create_pool is rejected
	// as unsupported.
	MirroredPools bool

	// Mirror tunes the delta engine.
	Mirror mirror.Options

	// Clock supplies frame callback timestamps. Nil selects the
	// real clock.
	Clock clock.Clock

	// Logger receives per-request debug traces. Nil selects
	// slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns Options with the default output and seat and
// mirrored pools enabled.
func DefaultOptions() Options {
	return Options{
		Output:        DefaultOutput(),
		Seat:          DefaultSeat(),
		MirroredPools: true,
	}
}

// Compositor is the protocol state of one client connection.
type Compositor struct {
	options  Options
	clock    clock.Clock
	registry *Registry
	engine   *mirror.Engine

	// effects collects the consequences of the request being
	// dispatched.
	effects []Effect

	// serial is the last configure serial handed out.
	serial uint32

	// outputs lists bound wl_output ids in bind order.
	outputs []uint32

	terminated bool
}

// New returns a Compositor with only wl_display live.
func New(options Options) *Compositor {
	c := &Compositor{
		options:  options,
		clock:    options.Clock,
		registry: NewRegistry(),
		engine:   mirror.NewEngine(options.Mirror),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	return c
}

func (c *Compositor) logger() *slog.Logger {
	if c.options.Logger != nil {
		return c.options.Logger
	}
	return slog.Default()
}

// Registry returns the connection's object registry.
func (c *Compositor) Registry() *Registry { return c.registry }

// Engine returns the connection's mirror engine.
func (c *Compositor) Engine() *mirror.Engine { return c.engine }

// Terminated reports whether a protocol error has been reported.
func (c *Compositor) Terminated() bool { return c.terminated }

// Signature resolves the argument signature of a request. Its method
// value is the wire.SignatureLookup for this connection's decoder.
func (c *Compositor) Signature(objectID uint32, opcode uint16) (wire.Signature, bool) {
	object, ok := c.registry.Lookup(objectID)
	if !ok {
		return nil, false
	}
	request, ok := object.Interface.Request(opcode)
	if !ok {
		return nil, false
	}
	return request.Signature, true
}

// Dispatch processes one request. On a protocol error the returned
// effects hold only the wl_display.error event and the error is a
// *ProtocolError; the compositor is then terminated.
func (c *Compositor) Dispatch(message wire.Message) ([]Effect, error) {
	if c.terminated {
		return nil, ErrTerminated
	}
	c.effects = nil
	if err := c.dispatch(message); err != nil {
		effects, protocolErr := c.Fail(err)
		return effects, protocolErr
	}
	effects := c.effects
	c.effects = nil
	return effects, nil
}

// Fail terminates the compositor for err, which is converted with
// AsProtocolError. It returns the wl_display.error event, or no
// effects when the compositor had already terminated.
func (c *Compositor) Fail(err error) ([]Effect, *ProtocolError) {
	protocolErr := AsProtocolError(err)
	c.effects = nil
	if c.terminated {
		return nil, protocolErr
	}
	c.terminated = true
	if _, live := c.registry.Lookup(protocolErr.ObjectID); !live {
		protocolErr.ObjectID = protocol.DisplayID
	}
	return []Effect{EmitEvent{Message: protocolErr.event()}}, protocolErr
}

// Close releases every object and mirror buffer. The compositor is
// terminated afterwards.
func (c *Compositor) Close() {
	c.registry.Clear()
	c.engine.Reset()
	c.outputs = nil
	c.effects = nil
	c.terminated = true
}

// Acknowledge records that the renderer applied version of a buffer.
func (c *Compositor) Acknowledge(bufferID uint32, version uint64) error {
	return c.engine.Acknowledge(bufferID, version)
}

// Resync forces the next commit of a buffer to be sent in full.
func (c *Compositor) Resync(bufferID uint32) error {
	return c.engine.Invalidate(bufferID)
}

// call is one request being dispatched.
type call struct {
	object *Object
	opcode uint16
	args   []wire.Argument
}

func (r call) uint32At(index int) uint32 { return r.args[index].Value }

func (r call) int32At(index int) int32 { return r.args[index].Int32() }

func (r call) stringAt(index int) string { return r.args[index].Text }

func (r call) name() string { return r.object.Interface.RequestName(r.opcode) }

func (c *Compositor) dispatch(message wire.Message) error {
	object, ok := c.registry.Lookup(message.ObjectID)
	if !ok {
		return &ProtocolError{
			Kind:     KindUnknownObject,
			ObjectID: protocol.DisplayID,
			Code:     protocol.DisplayErrorInvalidObject,
			Target:   message.ObjectID,
			Opcode:   message.Opcode,
			Message:  fmt.Sprintf("invalid object %d", message.ObjectID),
		}
	}
	r := call{object: object, opcode: message.Opcode, args: message.Args}

	request, ok := object.Interface.Request(message.Opcode)
	if !ok {
		return displayError(r, KindViolation, protocol.DisplayErrorInvalidMethod, "invalid opcode %d", message.Opcode)
	}
	if request.Since > object.Version {
		return displayError(r, KindViolation, protocol.DisplayErrorInvalidMethod,
			"request needs version %d, object is version %d", request.Since, object.Version)
	}
	if len(message.Args) != len(request.Signature) {
		return &ProtocolError{
			Kind:      KindMalformed,
			ObjectID:  protocol.DisplayID,
			Code:      protocol.DisplayErrorInvalidMethod,
			Target:    object.ID,
			Interface: object.Interface.Name,
			Opcode:    message.Opcode,
			Message:   fmt.Sprintf("got %d arguments, signature %q has %d", len(message.Args), request.Signature, len(request.Signature)),
		}
	}

	if logger := c.logger(); logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("request",
			"interface", object.Interface.Name,
			"request", request.Name,
			"message", message.String(),
		)
	}

	switch object.Interface {
	case protocol.Display:
		return c.handleDisplay(r)
	case protocol.Registry:
		return c.handleRegistry(r)
	case protocol.Compositor:
		return c.handleCompositor(r)
	case protocol.Region:
		return c.handleRegion(r)
	case protocol.Shm:
		return c.handleShm(r)
	case protocol.ShmPool:
		return c.handleShmPool(r)
	case protocol.Buffer:
		return c.handleBuffer(r)
	case protocol.Surface:
		return c.handleSurface(r)
	case protocol.Output:
		return c.handleOutput(r)
	case protocol.Seat:
		return c.handleSeat(r)
	case protocol.Pointer:
		return c.handlePointer(r)
	case protocol.Keyboard, protocol.Touch:
		// release is the only request.
		c.destroy(object.ID)
		return nil
	case protocol.WmBase:
		return c.handleWmBase(r)
	case protocol.Positioner:
		return c.handlePositioner(r)
	case protocol.XdgSurface:
		return c.handleXdgSurface(r)
	case protocol.Toplevel:
		return c.handleToplevel(r)
	}
	return displayError(r, KindCapability, protocol.DisplayErrorImplementation, "interface has no request handler")
}

// emit queues an event. Events for objects that are no longer live,
// and events newer than the object's bound version, are dropped.
func (c *Compositor) emit(target uint32, opcode uint16, args ...wire.Argument) {
	object, live := c.registry.Lookup(target)
	if !live {
		c.logger().Debug("dropping event for dead object", "object", target, "opcode", opcode)
		return
	}
	if event, ok := object.Interface.Event(opcode); ok && event.Since > object.Version {
		return
	}
	if args == nil {
		args = []wire.Argument{}
	}
	c.effects = append(c.effects, EmitEvent{Message: wire.Message{ObjectID: target, Opcode: opcode, Args: args}})
}

// checkNewID validates a client-allocated id before anything is
// mutated.
func (c *Compositor) checkNewID(r call, id uint32) error {
	if id == 0 || id >= ServerIDStart {
		return displayError(r, KindIDCollision, protocol.DisplayErrorInvalidObject, "new id %d is outside the client range", id)
	}
	if _, live := c.registry.Lookup(id); live {
		return displayError(r, KindIDCollision, protocol.DisplayErrorInvalidObject, "new id %d is already in use", id)
	}
	return nil
}

// create registers an object whose id has passed checkNewID.
func (c *Compositor) create(id uint32, iface *protocol.Interface, version, parent uint32, state any) *Object {
	object := &Object{ID: id, Interface: iface, Version: version, Parent: parent, state: state}
	c.registry.Insert(object)
	c.effects = append(c.effects, ObjectCreated{ID: id, Interface: iface, Version: version})
	return object
}

// destroy removes an object and its frame callbacks and sends
// wl_display.delete_id for each.
func (c *Compositor) destroy(id uint32) {
	for _, object := range c.registry.Remove(id) {
		switch object.Interface {
		case protocol.Buffer:
			c.engine.Release(object.ID)
		case protocol.Output:
			c.removeOutput(object.ID)
		}
		c.effects = append(c.effects, ObjectDestroyed{ID: object.ID, Interface: object.Interface})
		if object.ID < ServerIDStart {
			c.emit(protocol.DisplayID, protocol.DisplayEventDeleteID, wire.Uint(object.ID))
		}
	}
}

// objectArg resolves an object argument. A null id yields a nil
// object and no error.
func (c *Compositor) objectArg(r call, index int, want *protocol.Interface) (*Object, error) {
	id := r.args[index].Value
	if id == 0 {
		return nil, nil
	}
	object, ok := c.registry.Lookup(id)
	if !ok {
		return nil, displayError(r, KindUnknownObject, protocol.DisplayErrorInvalidObject,
			"argument %d names unknown object %d", index, id)
	}
	if object.Interface != want {
		return nil, displayError(r, KindViolation, protocol.DisplayErrorInvalidObject,
			"argument %d: object %d is %s, want %s", index, id, object.Interface.Name, want.Name)
	}
	return object, nil
}

func (c *Compositor) nextSerial() uint32 {
	c.serial++
	return c.serial
}

// violation is an error posted on the request's own object with a
// code from that object's interface.
func violation(r call, code uint32, format string, args ...any) error {
	return violationOn(r, r.object, code, format, args...)
}

// violationOn posts the error on another object, for codes that
// belong to a related interface.
func violationOn(r call, on *Object, code uint32, format string, args ...any) error {
	return &ProtocolError{
		Kind:      KindViolation,
		ObjectID:  on.ID,
		Code:      code,
		Target:    r.object.ID,
		Interface: r.object.Interface.Name,
		Opcode:    r.opcode,
		Message:   fmt.Sprintf(format, args...),
	}
}

// displayError posts the error on wl_display.
func displayError(r call, kind ErrorKind, code uint32, format string, args ...any) error {
	return &ProtocolError{
		Kind:      kind,
		ObjectID:  protocol.DisplayID,
		Code:      code,
		Target:    r.object.ID,
		Interface: r.object.Interface.Name,
		Opcode:    r.opcode,
		Message:   fmt.Sprintf(format, args...),
	}
}
