// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

type wmBaseState struct {
	// surfaces counts the live xdg_surfaces created through this
	// wm_base.
	surfaces int
}

type xdgSurfaceState struct {
	surface uint32
	wmBase  uint32

	// toplevel is the live role object, 0 when none. constructed
	// stays set once a role object has been created.
	toplevel    uint32
	constructed bool

	// configured is set once the initial configure has been sent.
	// outstanding is the serial awaiting ack_configure, 0 when none.
	// acked is set by the first acknowledgement.
	configured  bool
	outstanding uint32
	acked       bool

	geometry         mirror.Rect
	sentCapabilities bool
}

type toplevelState struct {
	xdgSurface uint32
	title      string
	appID      string
	parent     uint32

	minWidth, minHeight int32
	maxWidth, maxHeight int32

	maximized  bool
	fullscreen bool
	minimized  bool
}

type positionerState struct {
	width        int32
	height       int32
	anchorRect   mirror.Rect
	anchor       uint32
	gravity      uint32
	constraints  uint32
	offsetX      int32
	offsetY      int32
	reactive     bool
	parentWidth  int32
	parentHeight int32
	parentSerial uint32
}

// The largest xdg_positioner anchor and gravity enum value
// (bottom_right).
const positionerEdgeMax = 8

func (c *Compositor) handleWmBase(r call) error {
	base := r.object.state.(*wmBaseState)
	switch r.opcode {
	case protocol.WmBaseDestroy:
		if base.surfaces > 0 {
			return violation(r, protocol.WmBaseErrorDefunctSurfaces,
				"destroyed while %d xdg_surfaces are alive", base.surfaces)
		}
		c.destroy(r.object.ID)

	case protocol.WmBaseCreatePositioner:
		id := r.uint32At(0)
		if err := c.checkNewID(r, id); err != nil {
			return err
		}
		c.create(id, protocol.Positioner, r.object.Version, r.object.ID, &positionerState{})

	case protocol.WmBaseGetXdgSurface:
		id := r.uint32At(0)
		surfaceObject, err := c.objectArg(r, 1, protocol.Surface)
		if err != nil {
			return err
		}
		if surfaceObject == nil {
			return displayError(r, KindViolation, protocol.DisplayErrorInvalidObject, "get_xdg_surface needs a surface")
		}
		surface := surfaceObject.state.(*surfaceState)
		if surface.xdgSurface != 0 {
			return violation(r, protocol.WmBaseErrorRole, "surface %d already has xdg_surface %d", surfaceObject.ID, surface.xdgSurface)
		}
		if surface.role != roleNone && surface.role != roleToplevel {
			return violation(r, protocol.WmBaseErrorRole, "surface %d already has another role", surfaceObject.ID)
		}
		if err := c.checkNewID(r, id); err != nil {
			return err
		}
		c.create(id, protocol.XdgSurface, r.object.Version, r.object.ID, &xdgSurfaceState{
			surface: surfaceObject.ID,
			wmBase:  r.object.ID,
		})
		surface.xdgSurface = id
		base.surfaces++

	case protocol.WmBasePong:
		// No pings are sent, so any serial is accepted.
	}
	return nil
}

func (c *Compositor) handlePositioner(r call) error {
	positioner := r.object.state.(*positionerState)
	switch r.opcode {
	case protocol.PositionerDestroy:
		c.destroy(r.object.ID)
	case protocol.PositionerSetSize:
		width, height := r.int32At(0), r.int32At(1)
		if width <= 0 || height <= 0 {
			return violation(r, protocol.PositionerErrorInvalidInput, "invalid size %dx%d", width, height)
		}
		positioner.width = width
		positioner.height = height
	case protocol.PositionerSetAnchorRect:
		rect := mirror.Rect{X: int(r.int32At(0)), Y: int(r.int32At(1)), Width: int(r.int32At(2)), Height: int(r.int32At(3))}
		if rect.Width < 0 || rect.Height < 0 {
			return violation(r, protocol.PositionerErrorInvalidInput, "invalid anchor rectangle size %dx%d", rect.Width, rect.Height)
		}
		positioner.anchorRect = rect
	case protocol.PositionerSetAnchor, protocol.PositionerSetGravity:
		value := r.uint32At(0)
		if value > positionerEdgeMax {
			return violation(r, protocol.PositionerErrorInvalidInput, "invalid %s value %d", r.name(), value)
		}
		if r.opcode == protocol.PositionerSetAnchor {
			positioner.anchor = value
		} else {
			positioner.gravity = value
		}
	case protocol.PositionerSetConstraintAdjustment:
		positioner.constraints = r.uint32At(0)
	case protocol.PositionerSetOffset:
		positioner.offsetX, positioner.offsetY = r.int32At(0), r.int32At(1)
	case protocol.PositionerSetReactive:
		positioner.reactive = true
	case protocol.PositionerSetParentSize:
		positioner.parentWidth, positioner.parentHeight = r.int32At(0), r.int32At(1)
	case protocol.PositionerSetParentConfigure:
		positioner.parentSerial = r.uint32At(0)
	}
	return nil
}

func (c *Compositor) handleXdgSurface(r call) error {
	xdg := r.object.state.(*xdgSurfaceState)
	switch r.opcode {
	case protocol.XdgSurfaceDestroy:
		if xdg.toplevel != 0 {
			return violation(r, protocol.XdgSurfaceErrorDefunctRoleObject,
				"destroyed before its xdg_toplevel %d", xdg.toplevel)
		}
		if surfaceObject, ok := c.registry.Lookup(xdg.surface); ok {
			surfaceObject.state.(*surfaceState).xdgSurface = 0
		}
		if baseObject, ok := c.registry.Lookup(xdg.wmBase); ok {
			baseObject.state.(*wmBaseState).surfaces--
		}
		c.destroy(r.object.ID)

	case protocol.XdgSurfaceGetToplevel:
		id := r.uint32At(0)
		if xdg.constructed {
			return violation(r, protocol.XdgSurfaceErrorAlreadyConstructed, "xdg_surface already has a role object")
		}
		if err := c.checkNewID(r, id); err != nil {
			return err
		}
		c.create(id, protocol.Toplevel, r.object.Version, r.object.ID, &toplevelState{xdgSurface: r.object.ID})
		xdg.toplevel = id
		xdg.constructed = true
		surfaceObject, _ := c.registry.Lookup(xdg.surface)
		surfaceObject.state.(*surfaceState).role = roleToplevel

	case protocol.XdgSurfaceGetPopup:
		return displayError(r, KindCapability, protocol.DisplayErrorImplementation, "popups are not supported")

	case protocol.XdgSurfaceSetWindowGeometry:
		geometry := mirror.Rect{X: int(r.int32At(0)), Y: int(r.int32At(1)), Width: int(r.int32At(2)), Height: int(r.int32At(3))}
		if geometry.Width <= 0 || geometry.Height <= 0 {
			return violation(r, protocol.XdgSurfaceErrorInvalidSize, "invalid window geometry %dx%d", geometry.Width, geometry.Height)
		}
		xdg.geometry = geometry

	case protocol.XdgSurfaceAckConfigure:
		serial := r.uint32At(0)
		if xdg.outstanding == 0 || serial != xdg.outstanding {
			return violation(r, protocol.XdgSurfaceErrorInvalidSerial,
				"serial %d does not match the outstanding configure %d", serial, xdg.outstanding)
		}
		xdg.outstanding = 0
		xdg.acked = true
		if surfaceObject, ok := c.registry.Lookup(xdg.surface); ok {
			surface := surfaceObject.state.(*surfaceState)
			if surface.phase == PhaseUnconfigured {
				surface.phase = PhaseConfigured
			}
		}
	}
	return nil
}

// configure sends the configure sequence for a toplevel: its size and
// states, its bounds, the window manager capabilities on the first
// configure, and the xdg_surface serial that must be acknowledged.
func (c *Compositor) configure(xdgObject *Object, xdg *xdgSurfaceState) {
	output := c.options.Output
	c.emit(xdg.toplevel, protocol.ToplevelEventConfigure,
		wire.Int(output.Width), wire.Int(output.Height),
		wire.Array(states(protocol.ToplevelStateActivated)),
	)
	c.emit(xdg.toplevel, protocol.ToplevelEventConfigureBounds, wire.Int(output.Width), wire.Int(output.Height))
	if !xdg.sentCapabilities {
		c.emit(xdg.toplevel, protocol.ToplevelEventWmCapabilities, wire.Array(states(
			protocol.ToplevelCapabilityMaximize,
			protocol.ToplevelCapabilityFullscreen,
			protocol.ToplevelCapabilityMinimize,
		)))
		xdg.sentCapabilities = true
	}
	serial := c.nextSerial()
	xdg.configured = true
	xdg.outstanding = serial
	c.emit(xdgObject.ID, protocol.XdgSurfaceEventConfigure, wire.Uint(serial))
}

func (c *Compositor) handleToplevel(r call) error {
	toplevel := r.object.state.(*toplevelState)
	switch r.opcode {
	case protocol.ToplevelDestroy:
		if xdgObject, ok := c.registry.Lookup(toplevel.xdgSurface); ok {
			xdgObject.state.(*xdgSurfaceState).toplevel = 0
		}
		c.destroy(r.object.ID)

	case protocol.ToplevelSetParent:
		id := r.uint32At(0)
		if id == 0 {
			toplevel.parent = 0
			return nil
		}
		parent, ok := c.registry.Lookup(id)
		if !ok {
			return displayError(r, KindUnknownObject, protocol.DisplayErrorInvalidObject, "parent %d does not exist", id)
		}
		if parent.Interface != protocol.Toplevel || parent.ID == r.object.ID {
			return violation(r, protocol.ToplevelErrorInvalidParent, "object %d is not a valid parent", id)
		}
		toplevel.parent = id

	case protocol.ToplevelSetTitle:
		toplevel.title = r.stringAt(0)

	case protocol.ToplevelSetAppID:
		toplevel.appID = r.stringAt(0)

	case protocol.ToplevelShowWindowMenu, protocol.ToplevelMove:
		if _, err := c.objectArg(r, 0, protocol.Seat); err != nil {
			return err
		}

	case protocol.ToplevelResize:
		if _, err := c.objectArg(r, 0, protocol.Seat); err != nil {
			return err
		}
		if edges := r.uint32At(2); edges > protocol.ToplevelResizeEdgeMax {
			return violation(r, protocol.ToplevelErrorInvalidResizeEdge, "invalid resize edge %d", edges)
		}

	case protocol.ToplevelSetMaxSize, protocol.ToplevelSetMinSize:
		width, height := r.int32At(0), r.int32At(1)
		if width < 0 || height < 0 {
			return violation(r, protocol.ToplevelErrorInvalidSize, "negative size %dx%d", width, height)
		}
		minWidth, minHeight, maxWidth, maxHeight := toplevel.minWidth, toplevel.minHeight, toplevel.maxWidth, toplevel.maxHeight
		if r.opcode == protocol.ToplevelSetMaxSize {
			maxWidth, maxHeight = width, height
		} else {
			minWidth, minHeight = width, height
		}
		if (maxWidth != 0 && minWidth > maxWidth) || (maxHeight != 0 && minHeight > maxHeight) {
			return violation(r, protocol.ToplevelErrorInvalidSize,
				"minimum size %dx%d exceeds maximum %dx%d", minWidth, minHeight, maxWidth, maxHeight)
		}
		toplevel.minWidth, toplevel.minHeight = minWidth, minHeight
		toplevel.maxWidth, toplevel.maxHeight = maxWidth, maxHeight

	case protocol.ToplevelSetMaximized, protocol.ToplevelUnsetMaximized:
		toplevel.maximized = r.opcode == protocol.ToplevelSetMaximized

	case protocol.ToplevelSetFullscreen:
		if _, err := c.objectArg(r, 0, protocol.Output); err != nil {
			return err
		}
		toplevel.fullscreen = true

	case protocol.ToplevelUnsetFullscreen:
		toplevel.fullscreen = false

	case protocol.ToplevelSetMinimized:
		toplevel.minimized = true
	}
	return nil
}
