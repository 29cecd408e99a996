// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"math"
	"strings"
)

// ArgType is the wire type of one message argument.
type ArgType uint8

const (
	TypeInt    ArgType = iota + 1 // i: signed 32-bit integer
	TypeUint                      // u: unsigned 32-bit integer
	TypeFixed                     // f: signed 24.8 fixed point
	TypeString                    // s: length-prefixed UTF-8
	TypeObject                    // o: object id
	TypeNewID                     // n: id of an object being created
	TypeArray                     // a: length-prefixed bytes
	TypeFD                        // h: file descriptor, out of band
)

var typeCodes = map[byte]ArgType{
	'i': TypeInt,
	'u': TypeUint,
	'f': TypeFixed,
	's': TypeString,
	'o': TypeObject,
	'n': TypeNewID,
	'a': TypeArray,
	'h': TypeFD,
}

// Code returns the single-letter signature code for the type.
func (t ArgType) Code() byte {
	for code, argType := range typeCodes {
		if argType == t {
			return code
		}
	}
	return '?'
}

func (t ArgType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeFixed:
		return "fixed"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeNewID:
		return "new_id"
	case TypeArray:
		return "array"
	case TypeFD:
		return "fd"
	default:
		return fmt.Sprintf("ArgType(%d)", t)
	}
}

// ArgSpec describes one argument slot of a message. Nullable is only
// meaningful for strings and objects.
type ArgSpec struct {
	Type     ArgType
	Nullable bool
}

// Signature is the ordered argument list of a request or event.
type Signature []ArgSpec

// ParseSignature parses the compact signature notation used in
// protocol descriptions, for example "usun" or "?oi". A leading '?'
// marks the next argument nullable. Digits (the since-version prefix
// some generators emit) are skipped.
func ParseSignature(text string) (Signature, error) {
	var signature Signature
	nullable := false
	for i := 0; i < len(text); i++ {
		character := text[i]
		switch {
		case character == '?':
			nullable = true
			continue
		case character >= '0' && character <= '9':
			continue
		}
		argType, ok := typeCodes[character]
		if !ok {
			return nil, fmt.Errorf("signature %q: unknown type code %q", text, character)
		}
		if nullable && argType != TypeString && argType != TypeObject {
			return nil, fmt.Errorf("signature %q: %s cannot be nullable", text, argType)
		}
		signature = append(signature, ArgSpec{Type: argType, Nullable: nullable})
		nullable = false
	}
	if nullable {
		return nil, fmt.Errorf("signature %q: dangling '?'", text)
	}
	return signature, nil
}

// MustSignature is ParseSignature for package-level tables. It panics
// on a malformed signature.
func MustSignature(text string) Signature {
	signature, err := ParseSignature(text)
	if err != nil {
		panic(err)
	}
	return signature
}

func (s Signature) String() string {
	var builder strings.Builder
	for _, spec := range s {
		if spec.Nullable {
			builder.WriteByte('?')
		}
		builder.WriteByte(spec.Type.Code())
	}
	return builder.String()
}

// Fixed is a signed 24.8 fixed-point number.
type Fixed int32

// FixedFromFloat converts f, rounding to the nearest 1/256.
func FixedFromFloat(f float64) Fixed {
	return Fixed(int32(math.Round(f * 256)))
}

// FixedFromInt converts an integer without loss.
func FixedFromInt(v int32) Fixed {
	return Fixed(v << 8)
}

// Float returns the value as a float64.
func (f Fixed) Float() float64 {
	return float64(f) / 256
}

// Int returns the integer part, truncating toward zero.
func (f Fixed) Int() int32 {
	return int32(f) / 256
}

// Argument is one decoded argument. Scalar types (int, uint, fixed,
// object, new_id) live in Value as their raw 32-bit pattern; strings
// in Text (Null marks a null string); arrays in Data. FD arguments
// carry no value.
type Argument struct {
	Type  ArgType
	Value uint32
	Text  string
	Null  bool
	Data  []byte
}

// Int returns an int argument.
func Int(v int32) Argument { return Argument{Type: TypeInt, Value: uint32(v)} }

// Uint returns a uint argument.
func Uint(v uint32) Argument { return Argument{Type: TypeUint, Value: v} }

// FixedArg returns a fixed argument.
func FixedArg(v Fixed) Argument { return Argument{Type: TypeFixed, Value: uint32(v)} }

// String returns a string argument.
func String(s string) Argument { return Argument{Type: TypeString, Text: s} }

// NullString returns a null string argument.
func NullString() Argument { return Argument{Type: TypeString, Null: true} }

// Object returns an object argument. Id 0 is the null object.
func Object(id uint32) Argument { return Argument{Type: TypeObject, Value: id} }

// NewID returns a new_id argument.
func NewID(id uint32) Argument { return Argument{Type: TypeNewID, Value: id} }

// Array returns an array argument.
func Array(data []byte) Argument { return Argument{Type: TypeArray, Data: data} }

// FD returns the placeholder for a file-descriptor argument.
func FD() Argument { return Argument{Type: TypeFD} }

// Int32 returns Value reinterpreted as a signed integer.
func (a Argument) Int32() int32 { return int32(a.Value) }

// Fixed returns Value reinterpreted as 24.8 fixed point.
func (a Argument) Fixed() Fixed { return Fixed(int32(a.Value)) }

func (a Argument) String() string {
	switch a.Type {
	case TypeInt:
		return fmt.Sprintf("%d", a.Int32())
	case TypeUint:
		return fmt.Sprintf("%d", a.Value)
	case TypeFixed:
		return fmt.Sprintf("%g", a.Fixed().Float())
	case TypeString:
		if a.Null {
			return "nil"
		}
		return fmt.Sprintf("%q", a.Text)
	case TypeObject:
		if a.Value == 0 {
			return "nil"
		}
		return fmt.Sprintf("@%d", a.Value)
	case TypeNewID:
		return fmt.Sprintf("new@%d", a.Value)
	case TypeArray:
		return fmt.Sprintf("array[%d]", len(a.Data))
	case TypeFD:
		return "fd"
	default:
		return "?"
	}
}

// wireSize returns the number of bytes the argument occupies in a
// message body.
func (a Argument) wireSize() int {
	switch a.Type {
	case TypeString:
		if a.Null {
			return 4
		}
		return 4 + padded(len(a.Text)+1)
	case TypeArray:
		return 4 + padded(len(a.Data))
	case TypeFD:
		return 0
	default:
		return 4
	}
}

// padded rounds n up to the next multiple of 4.
func padded(n int) int {
	return (n + 3) &^ 3
}
