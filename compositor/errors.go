// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"errors"
	"fmt"

	"github.com/J-x-Z/winpipe/protocol"
	"github.com/J-x-Z/winpipe/wire"
)

// ErrorKind classifies a ProtocolError.
type ErrorKind uint8

const (
	// KindMalformed is input that breaks the wire rules.
	KindMalformed ErrorKind = iota + 1

	// KindViolation is a well-formed request that breaks an
	// interface rule.
	KindViolation

	// KindUnknownObject is a request addressed to, or naming, an id
	// that is not live.
	KindUnknownObject

	// KindIDCollision is a new_id that is already live or outside
	// the client range.
	KindIDCollision

	// KindCapability is a request winpipe does not implement.
	KindCapability
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindViolation:
		return "violation"
	case KindUnknownObject:
		return "unknown_object"
	case KindIDCollision:
		return "id_collision"
	case KindCapability:
		return "capability"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Sentinels matched by errors.Is against a *ProtocolError of the same
// kind.
var (
	ErrMalformed     = errors.New("malformed message")
	ErrViolation     = errors.New("protocol violation")
	ErrUnknownObject = errors.New("unknown object")
	ErrIDCollision   = errors.New("object id collision")
	ErrCapability    = errors.New("unsupported request")
)

// ErrTerminated is returned by Dispatch after a protocol error has
// been reported.
var ErrTerminated = errors.New("compositor: connection terminated by protocol error")

var kindSentinels = map[ErrorKind]error{
	KindMalformed:     ErrMalformed,
	KindViolation:     ErrViolation,
	KindUnknownObject: ErrUnknownObject,
	KindIDCollision:   ErrIDCollision,
	KindCapability:    ErrCapability,
}

// ProtocolError is a fatal error caused by the client. It becomes a
// wl_display.error event posted on ObjectID with Code.
type ProtocolError struct {
	Kind ErrorKind

	// ObjectID is the object the error is posted on. Code is
	// interpreted in the error enum of that object's interface.
	ObjectID uint32
	Code     uint32

	// Target, Interface and Opcode identify the offending request.
	// Interface is empty when Target is not a live object.
	Target    uint32
	Interface string
	Opcode    uint16

	Message string
}

func (e *ProtocolError) Error() string {
	if e.Interface == "" {
		return fmt.Sprintf("%s: object %d opcode %d: %s", e.Kind, e.Target, e.Opcode, e.Message)
	}
	return fmt.Sprintf("%s: %s@%d.%s: %s", e.Kind, e.Interface, e.Target, e.requestName(), e.Message)
}

// Is makes errors.Is match the sentinel for the error's kind.
func (e *ProtocolError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *ProtocolError) requestName() string {
	if iface, ok := protocol.ByName(e.Interface); ok {
		return iface.RequestName(e.Opcode)
	}
	return fmt.Sprintf("opcode %d", e.Opcode)
}

// event returns the wl_display.error event for the error.
func (e *ProtocolError) event() wire.Message {
	return wire.Message{
		ObjectID: protocol.DisplayID,
		Opcode:   protocol.DisplayEventError,
		Args: []wire.Argument{
			wire.Object(e.ObjectID),
			wire.Uint(e.Code),
			wire.String(e.Error()),
		},
	}
}

// AsProtocolError converts err into the ProtocolError reported to the
// client. A *wire.MalformedError becomes KindMalformed; an error that
// is already a *ProtocolError is returned as is; anything else is
// reported as an implementation error.
func AsProtocolError(err error) *ProtocolError {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr
	}
	var malformed *wire.MalformedError
	if errors.As(err, &malformed) {
		return &ProtocolError{
			Kind:     KindMalformed,
			ObjectID: protocol.DisplayID,
			Code:     protocol.DisplayErrorInvalidMethod,
			Target:   malformed.ObjectID,
			Opcode:   malformed.Opcode,
			Message:  malformed.Reason,
		}
	}
	return &ProtocolError{
		Kind:     KindViolation,
		ObjectID: protocol.DisplayID,
		Code:     protocol.DisplayErrorImplementation,
		Message:  err.Error(),
	}
}
