// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"strconv"

	"github.com/J-x-Z/winpipe/wire"
)

// MessageSpec describes one request or event.
type MessageSpec struct {
	Name       string
	Signature  wire.Signature
	Since      uint32
	Destructor bool
}

// Interface describes one Wayland interface.
type Interface struct {
	Name     string
	Version  uint32
	Requests []MessageSpec
	Events   []MessageSpec
}

// Request returns the request with the given opcode.
func (i *Interface) Request(opcode uint16) (MessageSpec, bool) {
	if int(opcode) >= len(i.Requests) {
		return MessageSpec{}, false
	}
	return i.Requests[opcode], true
}

// Event returns the event with the given opcode.
func (i *Interface) Event(opcode uint16) (MessageSpec, bool) {
	if int(opcode) >= len(i.Events) {
		return MessageSpec{}, false
	}
	return i.Events[opcode], true
}

// RequestName returns the request name for log and error messages,
// or "opcode N" for an opcode the interface does not define.
func (i *Interface) RequestName(opcode uint16) string {
	if spec, ok := i.Request(opcode); ok {
		return spec.Name
	}
	return "opcode " + strconv.Itoa(int(opcode))
}

// spec builds a MessageSpec. since 0 means version 1.
func spec(name, signature string, since uint32) MessageSpec {
	if since == 0 {
		since = 1
	}
	return MessageSpec{Name: name, Signature: wire.MustSignature(signature), Since: since}
}

// destructor builds a MessageSpec for a request that destroys its
// object.
func destructor(name, signature string, since uint32) MessageSpec {
	message := spec(name, signature, since)
	message.Destructor = true
	return message
}

// Global is one entry advertised through wl_registry.global.
type Global struct {
	Name      uint32
	Interface *Interface
}

// Globals lists the advertised globals in announcement order. Global
// names are 1-based and stable for the lifetime of a connection.
var Globals = []Global{
	{Name: 1, Interface: Compositor},
	{Name: 2, Interface: Shm},
	{Name: 3, Interface: Output},
	{Name: 4, Interface: Seat},
	{Name: 5, Interface: WmBase},
}

// GlobalByName returns the global with the given registry name.
func GlobalByName(name uint32) (Global, bool) {
	for _, global := range Globals {
		if global.Name == name {
			return global, true
		}
	}
	return Global{}, false
}

// All lists every described interface.
var All = []*Interface{
	Display, Registry, Callback, Compositor, Region, Shm, ShmPool,
	Buffer, Surface, Output, Seat, Pointer, Keyboard, Touch,
	WmBase, Positioner, XdgSurface, Toplevel,
}

// ByName returns the interface with the given protocol name.
func ByName(name string) (*Interface, bool) {
	for _, iface := range All {
		if iface.Name == name {
			return iface, true
		}
	}
	return nil, false
}
