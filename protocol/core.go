// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// wl_display

const (
	DisplaySync        uint16 = 0
	DisplayGetRegistry uint16 = 1

	DisplayEventError    uint16 = 0
	DisplayEventDeleteID uint16 = 1

	DisplayErrorInvalidObject  uint32 = 0
	DisplayErrorInvalidMethod  uint32 = 1
	DisplayErrorNoMemory       uint32 = 2
	DisplayErrorImplementation uint32 = 3
)

// DisplayID is the object id of wl_display, which exists before the
// client sends anything.
const DisplayID uint32 = 1

var Display = &Interface{
	Name:    "wl_display",
	Version: 1,
	Requests: []MessageSpec{
		spec("sync", "n", 0),
		spec("get_registry", "n", 0),
	},
	Events: []MessageSpec{
		spec("error", "ous", 0),
		spec("delete_id", "u", 0),
	},
}

// wl_registry

const (
	RegistryBind uint16 = 0

	RegistryEventGlobal       uint16 = 0
	RegistryEventGlobalRemove uint16 = 1
)

// Registry.bind carries an untyped new_id, which the wire format
// expands to (interface name, version, id).
var Registry = &Interface{
	Name:    "wl_registry",
	Version: 1,
	Requests: []MessageSpec{
		spec("bind", "usun", 0),
	},
	Events: []MessageSpec{
		spec("global", "usu", 0),
		spec("global_remove", "u", 0),
	},
}

// wl_callback

const CallbackEventDone uint16 = 0

var Callback = &Interface{
	Name:    "wl_callback",
	Version: 1,
	Events: []MessageSpec{
		spec("done", "u", 0),
	},
}

// wl_compositor

const (
	CompositorCreateSurface uint16 = 0
	CompositorCreateRegion  uint16 = 1
)

var Compositor = &Interface{
	Name:    "wl_compositor",
	Version: 5,
	Requests: []MessageSpec{
		spec("create_surface", "n", 0),
		spec("create_region", "n", 0),
	},
}

// wl_region

const (
	RegionDestroy  uint16 = 0
	RegionAdd      uint16 = 1
	RegionSubtract uint16 = 2
)

var Region = &Interface{
	Name:    "wl_region",
	Version: 1,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("add", "iiii", 0),
		spec("subtract", "iiii", 0),
	},
}

// wl_shm

const (
	ShmCreatePool uint16 = 0

	ShmEventFormat uint16 = 0

	ShmErrorInvalidFormat uint32 = 0
	ShmErrorInvalidStride uint32 = 1
	ShmErrorInvalidFD     uint32 = 2

	ShmFormatARGB8888 uint32 = 0
	ShmFormatXRGB8888 uint32 = 1
)

var Shm = &Interface{
	Name:    "wl_shm",
	Version: 1,
	Requests: []MessageSpec{
		spec("create_pool", "nhi", 0),
	},
	Events: []MessageSpec{
		spec("format", "u", 0),
	},
}

// wl_shm_pool

const (
	ShmPoolCreateBuffer uint16 = 0
	ShmPoolDestroy      uint16 = 1
	ShmPoolResize       uint16 = 2
)

var ShmPool = &Interface{
	Name:    "wl_shm_pool",
	Version: 1,
	Requests: []MessageSpec{
		spec("create_buffer", "niiiiu", 0),
		destructor("destroy", "", 0),
		spec("resize", "i", 0),
	},
}

// wl_buffer

const (
	BufferDestroy uint16 = 0

	BufferEventRelease uint16 = 0
)

var Buffer = &Interface{
	Name:    "wl_buffer",
	Version: 1,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
	},
	Events: []MessageSpec{
		spec("release", "", 0),
	},
}

// wl_surface

const (
	SurfaceDestroy            uint16 = 0
	SurfaceAttach             uint16 = 1
	SurfaceDamage             uint16 = 2
	SurfaceFrame              uint16 = 3
	SurfaceSetOpaqueRegion    uint16 = 4
	SurfaceSetInputRegion     uint16 = 5
	SurfaceCommit             uint16 = 6
	SurfaceSetBufferTransform uint16 = 7
	SurfaceSetBufferScale     uint16 = 8
	SurfaceDamageBuffer       uint16 = 9
	SurfaceOffset             uint16 = 10

	SurfaceEventEnter uint16 = 0
	SurfaceEventLeave uint16 = 1

	SurfaceErrorInvalidScale     uint32 = 0
	SurfaceErrorInvalidTransform uint32 = 1
	SurfaceErrorInvalidSize      uint32 = 2
	SurfaceErrorInvalidOffset    uint32 = 3
)

var Surface = &Interface{
	Name:    "wl_surface",
	Version: 5,
	Requests: []MessageSpec{
		destructor("destroy", "", 0),
		spec("attach", "?oii", 0),
		spec("damage", "iiii", 0),
		spec("frame", "n", 0),
		spec("set_opaque_region", "?o", 0),
		spec("set_input_region", "?o", 0),
		spec("commit", "", 0),
		spec("set_buffer_transform", "i", 2),
		spec("set_buffer_scale", "i", 3),
		spec("damage_buffer", "iiii", 4),
		spec("offset", "ii", 5),
	},
	Events: []MessageSpec{
		spec("enter", "o", 0),
		spec("leave", "o", 0),
	},
}

// wl_output

const (
	OutputRelease uint16 = 0

	OutputEventGeometry    uint16 = 0
	OutputEventMode        uint16 = 1
	OutputEventDone        uint16 = 2
	OutputEventScale       uint16 = 3
	OutputEventName        uint16 = 4
	OutputEventDescription uint16 = 5

	OutputModeCurrent   uint32 = 0x1
	OutputModePreferred uint32 = 0x2

	OutputSubpixelUnknown int32 = 0
	OutputTransformNormal int32 = 0
)

var Output = &Interface{
	Name:    "wl_output",
	Version: 4,
	Requests: []MessageSpec{
		destructor("release", "", 3),
	},
	Events: []MessageSpec{
		spec("geometry", "iiiiissi", 0),
		spec("mode", "uiii", 0),
		spec("done", "", 2),
		spec("scale", "i", 2),
		spec("name", "s", 4),
		spec("description", "s", 4),
	},
}

// wl_seat

const (
	SeatGetPointer  uint16 = 0
	SeatGetKeyboard uint16 = 1
	SeatGetTouch    uint16 = 2
	SeatRelease     uint16 = 3

	SeatEventCapabilities uint16 = 0
	SeatEventName         uint16 = 1

	SeatErrorMissingCapability uint32 = 0

	SeatCapabilityPointer  uint32 = 1
	SeatCapabilityKeyboard uint32 = 2
	SeatCapabilityTouch    uint32 = 4
)

var Seat = &Interface{
	Name:    "wl_seat",
	Version: 8,
	Requests: []MessageSpec{
		spec("get_pointer", "n", 0),
		spec("get_keyboard", "n", 0),
		spec("get_touch", "n", 0),
		destructor("release", "", 5),
	},
	Events: []MessageSpec{
		spec("capabilities", "u", 0),
		spec("name", "s", 2),
	},
}

// wl_pointer

const (
	PointerSetCursor uint16 = 0
	PointerRelease   uint16 = 1

	PointerErrorRole uint32 = 0
)

var Pointer = &Interface{
	Name:    "wl_pointer",
	Version: 8,
	Requests: []MessageSpec{
		spec("set_cursor", "u?oii", 0),
		destructor("release", "", 3),
	},
	Events: []MessageSpec{
		spec("enter", "uoff", 0),
		spec("leave", "uo", 0),
		spec("motion", "uff", 0),
		spec("button", "uuuu", 0),
		spec("axis", "uuf", 0),
		spec("frame", "", 5),
		spec("axis_source", "u", 5),
		spec("axis_stop", "uu", 5),
		spec("axis_discrete", "ui", 5),
		spec("axis_value120", "ui", 8),
	},
}

// wl_keyboard

const (
	KeyboardRelease uint16 = 0

	KeyboardEventKeymap     uint16 = 0
	KeyboardEventRepeatInfo uint16 = 5
)

var Keyboard = &Interface{
	Name:    "wl_keyboard",
	Version: 8,
	Requests: []MessageSpec{
		destructor("release", "", 3),
	},
	Events: []MessageSpec{
		spec("keymap", "uhu", 0),
		spec("enter", "uoa", 0),
		spec("leave", "uo", 0),
		spec("key", "uuuu", 0),
		spec("modifiers", "uuuuu", 0),
		spec("repeat_info", "ii", 4),
	},
}

// wl_touch

const TouchRelease uint16 = 0

var Touch = &Interface{
	Name:    "wl_touch",
	Version: 8,
	Requests: []MessageSpec{
		destructor("release", "", 3),
	},
	Events: []MessageSpec{
		spec("down", "uuoiff", 0),
		spec("up", "uui", 0),
		spec("motion", "uiff", 0),
		spec("frame", "", 0),
		spec("cancel", "", 0),
		spec("shape", "iff", 6),
		spec("orientation", "if", 6),
	},
}
