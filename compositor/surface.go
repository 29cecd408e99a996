// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"errors"

	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

type surfaceRole uint8

const (
	roleNone surfaceRole = iota
	roleToplevel
	roleCursor
)

// SurfacePhase is the commit state of a surface.
type SurfacePhase uint8

const (
	// PhaseUnconfigured surfaces have not acknowledged a configure.
	PhaseUnconfigured SurfacePhase = iota

	// PhaseConfigured surfaces have acknowledged a configure but
	// not committed a buffer since.
	PhaseConfigured

	// PhaseCommitted surfaces have committed buffer content.
	PhaseCommitted
)

func (p SurfacePhase) String() string {
	switch p {
	case PhaseUnconfigured:
		return "unconfigured"
	case PhaseConfigured:
		return "configured"
	case PhaseCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

type surfaceState struct {
	role       surfaceRole
	xdgSurface uint32
	phase      SurfacePhase

	// attached is set by attach and cleared by commit. pending is
	// the attached buffer, 0 for a detach.
	attached bool
	pending  uint32
	current  uint32

	damage    []mirror.Rect
	callbacks []uint32

	scale     int32
	transform int32
	offsetX   int32
	offsetY   int32
	opaque    []regionOp
	input     []regionOp

	entered bool
	commits uint64
}

// SurfaceInfo is a snapshot of one surface for status reporting.
type SurfaceInfo struct {
	ID      uint32
	Phase   SurfacePhase
	Buffer  uint32
	Commits uint64
	Title   string
	AppID   string
}

// Surfaces returns every live surface in id order.
func (c *Compositor) Surfaces() []SurfaceInfo {
	objects := c.registry.Objects(protocol.Surface)
	infos := make([]SurfaceInfo, 0, len(objects))
	for _, object := range objects {
		state := object.state.(*surfaceState)
		info := SurfaceInfo{ID: object.ID, Phase: state.phase, Buffer: state.current, Commits: state.commits}
		if toplevel := c.toplevelOf(state); toplevel != nil {
			info.Title = toplevel.title
			info.AppID = toplevel.appID
		}
		infos = append(infos, info)
	}
	return infos
}

func (c *Compositor) handleSurface(r call) error {
	surface := r.object.state.(*surfaceState)
	switch r.opcode {
	case protocol.SurfaceDestroy:
		if surface.xdgSurface != 0 {
			// wl_surface has no error for this before version 6.
			return displayError(r, KindViolation, protocol.DisplayErrorInvalidObject,
				"surface destroyed before its xdg_surface %d", surface.xdgSurface)
		}
		c.destroy(r.object.ID)

	case protocol.SurfaceAttach:
		return c.attach(r, surface)

	case protocol.SurfaceDamage, protocol.SurfaceDamageBuffer:
		rect := mirror.Rect{X: int(r.int32At(0)), Y: int(r.int32At(1)), Width: int(r.int32At(2)), Height: int(r.int32At(3))}
		if rect.Width > 0 && rect.Height > 0 {
			surface.damage = append(surface.damage, rect)
		}

	case protocol.SurfaceFrame:
		id := r.uint32At(0)
		if err := c.checkNewID(r, id); err != nil {
			return err
		}
		c.create(id, protocol.Callback, 1, r.object.ID, nil)
		surface.callbacks = append(surface.callbacks, id)

	case protocol.SurfaceSetOpaqueRegion, protocol.SurfaceSetInputRegion:
		region, err := c.objectArg(r, 0, protocol.Region)
		if err != nil {
			return err
		}
		var ops []regionOp
		if region != nil {
			ops = append(ops, region.state.(*regionState).ops...)
		}
		if r.opcode == protocol.SurfaceSetOpaqueRegion {
			surface.opaque = ops
		} else {
			surface.input = ops
		}

	case protocol.SurfaceCommit:
		return c.commit(r, surface)

	case protocol.SurfaceSetBufferTransform:
		transform := r.int32At(0)
		if transform < 0 || transform > 7 {
			return violation(r, protocol.SurfaceErrorInvalidTransform, "invalid transform %d", transform)
		}
		surface.transform = transform

	case protocol.SurfaceSetBufferScale:
		scale := r.int32At(0)
		if scale <= 0 {
			return violation(r, protocol.SurfaceErrorInvalidScale, "invalid scale %d", scale)
		}
		surface.scale = scale

	case protocol.SurfaceOffset:
		surface.offsetX, surface.offsetY = r.int32At(0), r.int32At(1)
	}
	return nil
}

func (c *Compositor) attach(r call, surface *surfaceState) error {
	buffer, err := c.objectArg(r, 0, protocol.Buffer)
	if err != nil {
		return err
	}
	if r.object.Version >= 5 && (r.int32At(1) != 0 || r.int32At(2) != 0) {
		return violation(r, protocol.SurfaceErrorInvalidOffset,
			"attach offset (%d, %d) is not allowed, use wl_surface.offset", r.int32At(1), r.int32At(2))
	}
	if buffer != nil && surface.xdgSurface != 0 {
		xdgObject, xdg := c.xdgSurface(surface)
		if !xdg.acked {
			return violationOn(r, xdgObject, protocol.XdgSurfaceErrorUnconfiguredBuffer,
				"buffer attached before the first configure was acknowledged")
		}
	}
	surface.attached = true
	surface.pending = 0
	if buffer != nil {
		surface.pending = buffer.ID
	}
	return nil
}

func (c *Compositor) commit(r call, surface *surfaceState) error {
	if surface.xdgSurface != 0 {
		xdgObject, xdg := c.xdgSurface(surface)
		switch {
		case !xdg.constructed:
			return violationOn(r, xdgObject, protocol.XdgSurfaceErrorNotConstructed,
				"commit on an xdg_surface without a role object")
		case xdg.toplevel != 0 && !xdg.configured:
			if surface.attached && surface.pending != 0 {
				return violationOn(r, xdgObject, protocol.XdgSurfaceErrorUnconfiguredBuffer,
					"initial commit has a buffer attached")
			}
			c.configure(xdgObject, xdg)
			surface.attached = false
			c.finishCommit(surface)
			return nil
		case xdg.outstanding != 0:
			return violationOn(r, xdgObject, protocol.XdgSurfaceErrorInvalidSerial,
				"commit while configure %d is unacknowledged", xdg.outstanding)
		}
	}

	previous := surface.current
	fresh := false
	if surface.attached {
		surface.current = surface.pending
		fresh = surface.pending != 0
		surface.attached = false
	}

	if surface.current != 0 {
		bufferObject, live := c.registry.Lookup(surface.current)
		if live && bufferObject.Interface == protocol.Buffer {
			if err := c.mirrorBuffer(r, surface, bufferObject, previous); err != nil {
				return err
			}
			if fresh {
				c.emit(bufferObject.ID, protocol.BufferEventRelease)
			}
		} else {
			// The buffer was destroyed while attached.
			surface.current = 0
		}
	}

	c.finishCommit(surface)
	return nil
}

// mirrorBuffer hands the buffer's pool content to the engine. A
// snapshot that does not match the buffer geometry is reported as
// CommitRejected and the surface falls back to its previous buffer; a
// buffer whose first commit is rejected is not mirrored.
func (c *Compositor) mirrorBuffer(r call, surface *surfaceState, bufferObject *Object, previous uint32) error {
	buffer := bufferObject.state.(*bufferState)
	if err := c.engine.Track(bufferObject.ID, buffer.descriptor); err != nil {
		return displayError(r, KindViolation, protocol.DisplayErrorImplementation, "mirroring buffer %d: %v", bufferObject.ID, err)
	}
	snapshot := buffer.memory.snapshot(buffer.offset, buffer.descriptor.Size())
	record, err := c.engine.Commit(bufferObject.ID, snapshot)
	if err != nil {
		if !errors.Is(err, mirror.ErrBufferMismatch) {
			return displayError(r, KindViolation, protocol.DisplayErrorImplementation, "mirroring buffer %d: %v", bufferObject.ID, err)
		}
		if state, _ := c.engine.State(bufferObject.ID); state.Version == 0 {
			c.engine.Release(bufferObject.ID)
		}
		c.effects = append(c.effects, CommitRejected{SurfaceID: r.object.ID, BufferID: bufferObject.ID, Err: err})
		surface.current = previous
		return nil
	}

	c.effects = append(c.effects, BufferCommitted{SurfaceID: r.object.ID, BufferID: bufferObject.ID, Delta: record})
	surface.phase = PhaseCommitted
	if !surface.entered && len(c.outputs) > 0 {
		c.emit(r.object.ID, protocol.SurfaceEventEnter, wire.Object(c.outputs[0]))
		surface.entered = true
	}
	return nil
}

// finishCommit clears pending damage and completes frame callbacks.
func (c *Compositor) finishCommit(surface *surfaceState) {
	surface.damage = nil
	surface.commits++
	if len(surface.callbacks) == 0 {
		return
	}
	now := uint32(c.clock.Now().UnixMilli())
	callbacks := surface.callbacks
	surface.callbacks = nil
	for _, id := range callbacks {
		c.emit(id, protocol.CallbackEventDone, wire.Uint(now))
		c.destroy(id)
	}
}

// xdgSurface returns the live xdg_surface of a role surface.
func (c *Compositor) xdgSurface(surface *surfaceState) (*Object, *xdgSurfaceState) {
	object, _ := c.registry.Lookup(surface.xdgSurface)
	return object, object.state.(*xdgSurfaceState)
}

func (c *Compositor) toplevelOf(surface *surfaceState) *toplevelState {
	if surface.xdgSurface == 0 {
		return nil
	}
	_, xdg := c.xdgSurface(surface)
	if xdg.toplevel == 0 {
		return nil
	}
	object, _ := c.registry.Lookup(xdg.toplevel)
	return object.state.(*toplevelState)
}
