// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"encoding/binary"

	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

func (c *Compositor) handleDisplay(r call) error {
	id := r.uint32At(0)
	if err := c.checkNewID(r, id); err != nil {
		return err
	}
	switch r.opcode {
	case protocol.DisplaySync:
		c.create(id, protocol.Callback, 1, protocol.DisplayID, nil)
		c.emit(id, protocol.CallbackEventDone, wire.Uint(c.nextSerial()))
		c.destroy(id)

	case protocol.DisplayGetRegistry:
		c.create(id, protocol.Registry, 1, protocol.DisplayID, nil)
		for _, global := range protocol.Globals {
			c.emit(id, protocol.RegistryEventGlobal,
				wire.Uint(global.Name),
				wire.String(global.Interface.Name),
				wire.Uint(global.Interface.Version),
			)
		}
	}
	return nil
}

// handleRegistry serves wl_registry.bind(name, interface, version, id).
func (c *Compositor) handleRegistry(r call) error {
	name, ifaceName, version, id := r.uint32At(0), r.stringAt(1), r.uint32At(2), r.uint32At(3)

	global, ok := protocol.GlobalByName(name)
	if !ok {
		return displayError(r, KindViolation, protocol.DisplayErrorInvalidObject, "invalid global %s (%d)", ifaceName, name)
	}
	if global.Interface.Name != ifaceName {
		return displayError(r, KindViolation, protocol.DisplayErrorInvalidObject,
			"global %d is %s, not %s", name, global.Interface.Name, ifaceName)
	}
	if version == 0 || version > global.Interface.Version {
		return displayError(r, KindViolation, protocol.DisplayErrorInvalidObject,
			"invalid version %d for %s, 1 to %d supported", version, ifaceName, global.Interface.Version)
	}
	if err := c.checkNewID(r, id); err != nil {
		return err
	}

	var state any
	if global.Interface == protocol.WmBase {
		state = &wmBaseState{}
	}
	c.create(id, global.Interface, version, r.object.ID, state)
	switch global.Interface {
	case protocol.Shm:
		c.emit(id, protocol.ShmEventFormat, wire.Uint(protocol.ShmFormatARGB8888))
		c.emit(id, protocol.ShmEventFormat, wire.Uint(protocol.ShmFormatXRGB8888))
	case protocol.Output:
		c.outputs = append(c.outputs, id)
		c.announceOutput(id)
	case protocol.Seat:
		c.emit(id, protocol.SeatEventCapabilities,
			wire.Uint(protocol.SeatCapabilityPointer|protocol.SeatCapabilityKeyboard))
		c.emit(id, protocol.SeatEventName, wire.String(c.options.Seat.Name))
	}
	return nil
}

func (c *Compositor) announceOutput(id uint32) {
	output := c.options.Output
	c.emit(id, protocol.OutputEventGeometry,
		wire.Int(0), wire.Int(0),
		wire.Int(output.PhysicalWidthMM), wire.Int(output.PhysicalHeightMM),
		wire.Int(protocol.OutputSubpixelUnknown),
		wire.String(output.Make), wire.String(output.Model),
		wire.Int(protocol.OutputTransformNormal),
	)
	c.emit(id, protocol.OutputEventMode,
		wire.Uint(protocol.OutputModeCurrent|protocol.OutputModePreferred),
		wire.Int(output.Width), wire.Int(output.Height), wire.Int(output.RefreshMHz),
	)
	scale := output.Scale
	if scale <= 0 {
		scale = 1
	}
	c.emit(id, protocol.OutputEventScale, wire.Int(scale))
	c.emit(id, protocol.OutputEventName, wire.String(output.Name))
	c.emit(id, protocol.OutputEventDescription, wire.String(output.Description))
	c.emit(id, protocol.OutputEventDone)
}

func (c *Compositor) removeOutput(id uint32) {
	for i, output := range c.outputs {
		if output == id {
			c.outputs = append(c.outputs[:i], c.outputs[i+1:]...)
			return
		}
	}
}

func (c *Compositor) handleOutput(r call) error {
	// release is the only request.
	c.destroy(r.object.ID)
	return nil
}

func (c *Compositor) handleCompositor(r call) error {
	id := r.uint32At(0)
	if err := c.checkNewID(r, id); err != nil {
		return err
	}
	switch r.opcode {
	case protocol.CompositorCreateSurface:
		c.create(id, protocol.Surface, r.object.Version, r.object.ID, &surfaceState{scale: 1})
	case protocol.CompositorCreateRegion:
		c.create(id, protocol.Region, 1, r.object.ID, &regionState{})
	}
	return nil
}

// regionState is the ordered list of add and subtract operations
// applied to a wl_region.
type regionState struct {
	ops []regionOp
}

type regionOp struct {
	subtract bool
	rect     mirror.Rect
}

func (c *Compositor) handleRegion(r call) error {
	region := r.object.state.(*regionState)
	switch r.opcode {
	case protocol.RegionDestroy:
		c.destroy(r.object.ID)
	case protocol.RegionAdd, protocol.RegionSubtract:
		rect := mirror.Rect{X: int(r.int32At(0)), Y: int(r.int32At(1)), Width: int(r.int32At(2)), Height: int(r.int32At(3))}
		region.ops = append(region.ops, regionOp{subtract: r.opcode == protocol.RegionSubtract, rect: rect})
	}
	return nil
}

func (c *Compositor) handleSeat(r call) error {
	switch r.opcode {
	case protocol.SeatRelease:
		c.destroy(r.object.ID)
		return nil
	case protocol.SeatGetTouch:
		return violation(r, protocol.SeatErrorMissingCapability, "seat has no touch capability")
	}

	id := r.uint32At(0)
	if err := c.checkNewID(r, id); err != nil {
		return err
	}
	switch r.opcode {
	case protocol.SeatGetPointer:
		c.create(id, protocol.Pointer, r.object.Version, r.object.ID, nil)
	case protocol.SeatGetKeyboard:
		c.create(id, protocol.Keyboard, r.object.Version, r.object.ID, nil)
		seat := c.options.Seat
		c.emit(id, protocol.KeyboardEventRepeatInfo, wire.Int(seat.RepeatRate), wire.Int(seat.RepeatDelay))
	}
	return nil
}

func (c *Compositor) handlePointer(r call) error {
	switch r.opcode {
	case protocol.PointerRelease:
		c.destroy(r.object.ID)
	case protocol.PointerSetCursor:
		surface, err := c.objectArg(r, 1, protocol.Surface)
		if err != nil {
			return err
		}
		if surface != nil {
			state := surface.state.(*surfaceState)
			if state.role != roleNone && state.role != roleCursor {
				return violation(r, protocol.PointerErrorRole, "surface %d already has another role", surface.ID)
			}
			state.role = roleCursor
		}
	}
	return nil
}

// states encodes a wl_array of uint32 values.
func states(values ...uint32) []byte {
	data := make([]byte, 4*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[4*i:], value)
	}
	return data
}
