// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

// Effect is one consequence of a dispatched request. The concrete
// types are EmitEvent, ObjectCreated, ObjectDestroyed,
// BufferCommitted and CommitRejected.
type Effect interface {
	effect()
}

// EmitEvent is an event to send to the client.
type EmitEvent struct {
	Message wire.Message
}

// ObjectCreated reports a new live object.
type ObjectCreated struct {
	ID        uint32
	Interface *protocol.Interface
	Version   uint32
}

// ObjectDestroyed reports an object leaving the registry.
type ObjectDestroyed struct {
	ID        uint32
	Interface *protocol.Interface
}

// BufferCommitted is a surface commit that advanced the mirror of its
// buffer. Delta carries the transition to forward to the renderer.
type BufferCommitted struct {
	SurfaceID uint32
	BufferID  uint32
	Delta     *mirror.DeltaRecord
}

// CommitRejected is a surface commit whose buffer content could not
// be mirrored. The surface keeps its previous content.
type CommitRejected struct {
	SurfaceID uint32
	BufferID  uint32
	Err       error
}

func (EmitEvent) effect()       {}
func (ObjectCreated) effect()   {}
func (ObjectDestroyed) effect() {}
func (BufferCommitted) effect() {}
func (CommitRejected) effect()  {}
