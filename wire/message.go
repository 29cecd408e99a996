// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the size of a message header in bytes.
	HeaderSize = 8

	// MaxMessageSize is the largest message the 16-bit size field
	// can describe, rounded down to the word alignment.
	MaxMessageSize = 0xFFFC
)

var (
	// ErrIncomplete means the input ends before the message does.
	// No bytes were consumed; retry with more input.
	ErrIncomplete = errors.New("wire: incomplete message")

	// ErrFDUnsupported is returned when encoding a message that
	// carries a file descriptor. Descriptors cannot cross the TCP
	// transport.
	ErrFDUnsupported = errors.New("wire: file descriptor arguments cannot be encoded")

	// ErrTooLarge is returned when an encoded message would exceed
	// MaxMessageSize.
	ErrTooLarge = errors.New("wire: message exceeds maximum size")
)

// MalformedError describes input that can never become a valid
// message. It is fatal to the connection that produced it.
type MalformedError struct {
	ObjectID uint32
	Opcode   uint16
	Reason   string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("wire: malformed message for object %d opcode %d: %s", e.ObjectID, e.Opcode, e.Reason)
}

// Message is one request or event.
//
// Size is the total wire size including the header. Decode fills it
// in; Encode ignores it and computes the size from the arguments.
//
// When the signature of a decoded message is unknown, Args is nil and
// Payload holds the raw argument bytes. Encoding a message with nil
// Args and a non-nil Payload writes the payload verbatim.
type Message struct {
	ObjectID uint32
	Opcode   uint16
	Size     uint16
	Args     []Argument
	Payload  []byte
}

func (m Message) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "@%d.%d(", m.ObjectID, m.Opcode)
	if m.Args == nil && m.Payload != nil {
		fmt.Fprintf(&builder, "<%d raw bytes>", len(m.Payload))
	}
	for i, argument := range m.Args {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(argument.String())
	}
	builder.WriteByte(')')
	return builder.String()
}

// SignatureLookup resolves the argument signature of the message sent
// to objectID with the given opcode. It reports false when the object
// or the opcode is unknown.
type SignatureLookup func(objectID uint32, opcode uint16) (Signature, bool)

// Header parses the 8-byte header at the start of data without
// validating it. It reports false when fewer than HeaderSize bytes
// are available.
func Header(data []byte) (objectID uint32, opcode, size uint16, ok bool) {
	if len(data) < HeaderSize {
		return 0, 0, 0, false
	}
	objectID = binary.LittleEndian.Uint32(data[0:4])
	word := binary.LittleEndian.Uint32(data[4:8])
	return objectID, uint16(word), uint16(word >> 16), true
}

// Decode parses one message from the start of data. It returns the
// message and the number of bytes it occupied.
//
// ErrIncomplete is returned (and nothing consumed) when data holds
// only part of a message. A *MalformedError is returned for input
// that violates the wire rules.
func Decode(data []byte, lookup SignatureLookup) (Message, int, error) {
	objectID, opcode, size, ok := Header(data)
	if !ok {
		return Message{}, 0, ErrIncomplete
	}
	if size < HeaderSize || size%4 != 0 {
		return Message{}, 0, &MalformedError{
			ObjectID: objectID,
			Opcode:   opcode,
			Reason:   fmt.Sprintf("invalid size %d", size),
		}
	}
	if len(data) < int(size) {
		return Message{}, 0, ErrIncomplete
	}

	message := Message{ObjectID: objectID, Opcode: opcode, Size: size}
	body := data[HeaderSize:size]

	var signature Signature
	if lookup != nil {
		signature, ok = lookup(objectID, opcode)
	}
	if !ok {
		message.Payload = append([]byte{}, body...)
		return message, int(size), nil
	}

	args, err := decodeArgs(body, signature)
	if err != nil {
		return Message{}, 0, &MalformedError{ObjectID: objectID, Opcode: opcode, Reason: err.Error()}
	}
	message.Args = args
	return message, int(size), nil
}

func decodeArgs(body []byte, signature Signature) ([]Argument, error) {
	args := make([]Argument, 0, len(signature))
	offset := 0

	readWord := func(index int) (uint32, error) {
		if len(body)-offset < 4 {
			return 0, fmt.Errorf("argument %d truncated", index)
		}
		word := binary.LittleEndian.Uint32(body[offset:])
		offset += 4
		return word, nil
	}

	for index, spec := range signature {
		switch spec.Type {
		case TypeFD:
			args = append(args, FD())

		case TypeString:
			length, err := readWord(index)
			if err != nil {
				return nil, err
			}
			if length == 0 {
				if !spec.Nullable {
					return nil, fmt.Errorf("argument %d: null string in non-nullable slot", index)
				}
				args = append(args, NullString())
				continue
			}
			span := padded(int(length))
			if int(length) > len(body)-offset || span > len(body)-offset {
				return nil, fmt.Errorf("argument %d: string length %d exceeds message", index, length)
			}
			text := body[offset : offset+int(length)]
			if text[length-1] != 0 {
				return nil, fmt.Errorf("argument %d: string not NUL-terminated", index)
			}
			args = append(args, String(string(text[:length-1])))
			offset += span

		case TypeArray:
			length, err := readWord(index)
			if err != nil {
				return nil, err
			}
			span := padded(int(length))
			if int(length) > len(body)-offset || span > len(body)-offset {
				return nil, fmt.Errorf("argument %d: array length %d exceeds message", index, length)
			}
			args = append(args, Array(append([]byte{}, body[offset:offset+int(length)]...)))
			offset += span

		default:
			word, err := readWord(index)
			if err != nil {
				return nil, err
			}
			if spec.Type == TypeObject && word == 0 && !spec.Nullable {
				return nil, fmt.Errorf("argument %d: null object in non-nullable slot", index)
			}
			if spec.Type == TypeNewID && word == 0 {
				return nil, fmt.Errorf("argument %d: new_id is zero", index)
			}
			args = append(args, Argument{Type: spec.Type, Value: word})
		}
	}

	if offset != len(body) {
		return nil, fmt.Errorf("%d trailing bytes after arguments", len(body)-offset)
	}
	return args, nil
}

// Encode returns the wire bytes of message.
func Encode(message Message) ([]byte, error) {
	return AppendMessage(nil, message)
}

// AppendMessage appends the wire bytes of message to dst. On error dst
// is returned unchanged.
func AppendMessage(dst []byte, message Message) ([]byte, error) {
	bodySize := 0
	if message.Args == nil {
		bodySize = padded(len(message.Payload))
	}
	for _, argument := range message.Args {
		if argument.Type == TypeFD {
			return dst, ErrFDUnsupported
		}
		bodySize += argument.wireSize()
	}
	size := HeaderSize + bodySize
	if size > MaxMessageSize {
		return dst, fmt.Errorf("%w: %d bytes for object %d opcode %d", ErrTooLarge, size, message.ObjectID, message.Opcode)
	}

	start := len(dst)
	dst = append(dst, make([]byte, size)...)
	out := dst[start:]
	binary.LittleEndian.PutUint32(out[0:4], message.ObjectID)
	binary.LittleEndian.PutUint32(out[4:8], uint32(size)<<16|uint32(message.Opcode))

	offset := HeaderSize
	if message.Args == nil {
		copy(out[offset:], message.Payload)
		return dst, nil
	}
	for _, argument := range message.Args {
		switch argument.Type {
		case TypeString:
			if argument.Null {
				offset += 4
				continue
			}
			binary.LittleEndian.PutUint32(out[offset:], uint32(len(argument.Text)+1))
			copy(out[offset+4:], argument.Text)
			offset += argument.wireSize()
		case TypeArray:
			binary.LittleEndian.PutUint32(out[offset:], uint32(len(argument.Data)))
			copy(out[offset+4:], argument.Data)
			offset += argument.wireSize()
		default:
			binary.LittleEndian.PutUint32(out[offset:], argument.Value)
			offset += 4
		}
	}
	return dst, nil
}
