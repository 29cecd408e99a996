// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"cmp"
	"slices"

	"github.com/J-x-Z/winpipe/protocol"
)

// ServerIDStart is the first id of the server-allocated range. Client
// new_id arguments must be below it.
const ServerIDStart uint32 = 0xFF000000

// Object is one live protocol object. The per-interface state lives in
// state and is only touched by that interface's handler.
type Object struct {
	ID        uint32
	Interface *protocol.Interface
	Version   uint32

	// Parent is the object whose request created this one, or 0.
	Parent uint32

	state any
}

// Registry is the object arena of one connection, keyed by wire id.
type Registry struct {
	objects map[uint32]*Object
}

// NewRegistry returns a registry holding only wl_display.
func NewRegistry() *Registry {
	registry := &Registry{objects: make(map[uint32]*Object)}
	registry.objects[protocol.DisplayID] = &Object{
		ID:        protocol.DisplayID,
		Interface: protocol.Display,
		Version:   protocol.Display.Version,
	}
	return registry
}

// Lookup returns the live object with the given id.
func (r *Registry) Lookup(id uint32) (*Object, bool) {
	object, ok := r.objects[id]
	return object, ok
}

// Insert adds object. It reports false, and changes nothing, when the
// id is already live.
func (r *Registry) Insert(object *Object) bool {
	if _, live := r.objects[object.ID]; live {
		return false
	}
	r.objects[object.ID] = object
	return true
}

// Remove destroys the object with the given id together with the
// frame callbacks it parents. It returns the removed objects, the
// requested one first and the callbacks in id order, or nil when id
// is not live.
func (r *Registry) Remove(id uint32) []*Object {
	object, ok := r.objects[id]
	if !ok {
		return nil
	}
	delete(r.objects, id)

	removed := []*Object{object}
	var children []*Object
	for _, candidate := range r.objects {
		if candidate.Parent == id && candidate.Interface == protocol.Callback {
			children = append(children, candidate)
		}
	}
	slices.SortFunc(children, func(a, b *Object) int { return cmp.Compare(a.ID, b.ID) })
	for _, child := range children {
		delete(r.objects, child.ID)
		removed = append(removed, child)
	}
	return removed
}

// Len returns the number of live objects, wl_display included.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Count returns the number of live objects of one interface.
func (r *Registry) Count(iface *protocol.Interface) int {
	count := 0
	for _, object := range r.objects {
		if object.Interface == iface {
			count++
		}
	}
	return count
}

// Objects returns the live objects of one interface in id order.
func (r *Registry) Objects(iface *protocol.Interface) []*Object {
	var objects []*Object
	for _, object := range r.objects {
		if object.Interface == iface {
			objects = append(objects, object)
		}
	}
	slices.SortFunc(objects, func(a, b *Object) int { return cmp.Compare(a.ID, b.ID) })
	return objects
}

// Clear removes every object except wl_display.
func (r *Registry) Clear() {
	for id := range r.objects {
		if id != protocol.DisplayID {
			delete(r.objects, id)
		}
	}
}
