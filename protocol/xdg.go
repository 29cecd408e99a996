// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// xdg_wm_base

const (
	WmBaseDestroy          uint16 = 0
	WmBaseCreatePositioner uint16 = 1
	WmBaseGetXdgSurface    uint16 = 2
	WmBasePong             uint16 = 3

	WmBaseEventPing uint16 = 0

	WmBaseErrorRole                uint32 = 0
	WmBaseErrorDefunctSurfaces     uint32 = 1
	WmBaseErrorNotTheTopmostPopup  uint32 = 2
	WmBaseErrorInvalidPopupParent  uint32 = 3
	WmBaseErrorInvalidSurfaceState uint32 = 4
	WmBaseErrorInvalidPositioner   uint32 = 5
)

var WmBase = &Interface{
	Name:    "xdg_wm_base",
	Version: 5,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("create_positioner", "n", 0),
		spec("get_xdg_surface", "no", 0),
		spec("pong", "u", 0),
	},
	Events: []MessageSpec{
		spec("ping", "u", 0),
	},
}

// xdg_positioner

const (
	PositionerDestroy                 uint16 = 0
	PositionerSetSize                 uint16 = 1
	PositionerSetAnchorRect           uint16 = 2
	PositionerSetAnchor               uint16 = 3
	PositionerSetGravity              uint16 = 4
	PositionerSetConstraintAdjustment uint16 = 5
	PositionerSetOffset               uint16 = 6
	PositionerSetReactive             uint16 = 7
	PositionerSetParentSize           uint16 = 8
	PositionerSetParentConfigure      uint16 = 9

	PositionerErrorInvalidInput uint32 = 0
)

var Positioner = &Interface{
	Name:    "xdg_positioner",
	Version: 5,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("set_size", "ii", 0),
		spec("set_anchor_rect", "iiii", 0),
		spec("set_anchor", "u", 0),
		spec("set_gravity", "u", 0),
		spec("set_constraint_adjustment", "u", 0),
		spec("set_offset", "ii", 0),
		spec("set_reactive", "", 3),
		spec("set_parent_size", "ii", 3),
		spec("set_parent_configure", "u", 3),
	},
}

// xdg_surface

const (
	XdgSurfaceDestroy           uint16 = 0
	XdgSurfaceGetToplevel       uint16 = 1
	XdgSurfaceGetPopup          uint16 = 2
	XdgSurfaceSetWindowGeometry uint16 = 3
	XdgSurfaceAckConfigure      uint16 = 4

	XdgSurfaceEventConfigure uint16 = 0

	XdgSurfaceErrorNotConstructed     uint32 = 1
	XdgSurfaceErrorAlreadyConstructed uint32 = 2
	XdgSurfaceErrorUnconfiguredBuffer uint32 = 3
	XdgSurfaceErrorInvalidSerial      uint32 = 4
	XdgSurfaceErrorInvalidSize        uint32 = 5
	XdgSurfaceErrorDefunctRoleObject  uint32 = 6
)

var XdgSurface = &Interface{
	Name:    "xdg_surface",
	Version: 5,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("get_toplevel", "n", 0),
		spec("get_popup", "n?oo", 0),
		spec("set_window_geometry", "iiii", 0),
		spec("ack_configure", "u", 0),
	},
	Events: []MessageSpec{
		spec("configure", "u", 0),
	},
}

// xdg_toplevel

const (
	ToplevelDestroy         uint16 = 0
	ToplevelSetParent       uint16 = 1
	ToplevelSetTitle        uint16 = 2
	ToplevelSetAppID        uint16 = 3
	ToplevelShowWindowMenu  uint16 = 4
	ToplevelMove            uint16 = 5
	ToplevelResize          uint16 = 6
	ToplevelSetMaxSize      uint16 = 7
	ToplevelSetMinSize      uint16 = 8
	ToplevelSetMaximized    uint16 = 9
	ToplevelUnsetMaximized  uint16 = 10
	ToplevelSetFullscreen   uint16 = 11
	ToplevelUnsetFullscreen uint16 = 12
	ToplevelSetMinimized    uint16 = 13

	ToplevelEventConfigure       uint16 = 0
	ToplevelEventClose           uint16 = 1
	ToplevelEventConfigureBounds uint16 = 2
	ToplevelEventWmCapabilities  uint16 = 3

	ToplevelErrorInvalidResizeEdge uint32 = 0
	ToplevelErrorInvalidParent     uint32 = 1
	ToplevelErrorInvalidSize       uint32 = 2

	ToplevelStateMaximized  uint32 = 1
	ToplevelStateFullscreen uint32 = 2
	ToplevelStateResizing   uint32 = 3
	ToplevelStateActivated  uint32 = 4

	ToplevelCapabilityWindowMenu uint32 = 1
	ToplevelCapabilityMaximize   uint32 = 2
	ToplevelCapabilityFullscreen uint32 = 3
	ToplevelCapabilityMinimize   uint32 = 4

	// ToplevelResizeEdgeMax is the largest valid resize edge value
	// (bottom_right).
	ToplevelResizeEdgeMax uint32 = 10
)

var Toplevel = &Interface{
	Name:    "xdg_toplevel",
	Version: 5,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("set_parent", "?o", 0),
		spec("set_title", "s", 0),
		spec("set_app_id", "s", 0),
		spec("show_window_menu", "ouii", 0),
		spec("move", "ou", 0),
		spec("resize", "ouu", 0),
		spec("set_max_size", "ii", 0),
		spec("set_min_size", "ii", 0),
		spec("set_maximized", "", 0),
		spec("unset_maximized", "", 0),
		spec("set_fullscreen", "?o", 0),
		spec("unset_fullscreen", "", 0),
		spec("set_minimized", "", 0),
	},
	Events: []MessageSpec{
		spec("configure", "iia", 0),
		spec("close", "", 0),
		spec("configure_bounds", "ii", 4),
		spec("wm_capabilities", "a", 5),
	},
}
