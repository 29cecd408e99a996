// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"fmt"

	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/protocol"
)

// poolMemory is the mirrored content of one wl_shm_pool. Bytes arrive
// through WritePool; data grows up to size as they do. Buffers hold a
// reference, so the memory outlives a destroyed pool.
type poolMemory struct {
	size int
	data []byte
}

// write copies data into the pool at offset.
func (m *poolMemory) write(offset int, data []byte) error {
	if offset < 0 || offset > m.size || len(data) > m.size-offset {
		return fmt.Errorf("write of %d bytes at offset %d exceeds pool size %d", len(data), offset, m.size)
	}
	end := offset + len(data)
	if end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	copy(m.data[offset:end], data)
	return nil
}

// snapshot returns the bytes of [offset, offset+length). It is shorter
// than length when the pool has not received that much content.
func (m *poolMemory) snapshot(offset, length int) []byte {
	if offset >= len(m.data) {
		return nil
	}
	end := min(offset+length, len(m.data))
	return m.data[offset:end]
}

type poolState struct {
	memory *poolMemory
}

type bufferState struct {
	memory     *poolMemory
	offset     int
	descriptor mirror.Descriptor
}

// WritePool copies mirrored pool content into the pool with the given
// id, as carried by a mirror-write frame. A failed write is a protocol
// error and terminates the compositor like one from Dispatch.
func (c *Compositor) WritePool(poolID uint32, offset uint32, data []byte) ([]Effect, error) {
	if c.terminated {
		return nil, ErrTerminated
	}
	object, ok := c.registry.Lookup(poolID)
	if !ok || object.Interface != protocol.ShmPool {
		effects, protocolErr := c.Fail(&ProtocolError{
			Kind:     KindUnknownObject,
			ObjectID: protocol.DisplayID,
			Code:     protocol.DisplayErrorInvalidObject,
			Target:   poolID,
			Message:  fmt.Sprintf("mirror write for %d, which is not a live wl_shm_pool", poolID),
		})
		return effects, protocolErr
	}
	pool := object.state.(*poolState)
	if err := pool.memory.write(int(offset), data); err != nil {
		effects, protocolErr := c.Fail(&ProtocolError{
			Kind:      KindViolation,
			ObjectID:  protocol.DisplayID,
			Code:      protocol.DisplayErrorImplementation,
			Target:    poolID,
			Interface: protocol.ShmPool.Name,
			Message:   "mirror write: " + err.Error(),
		})
		return effects, protocolErr
	}
	return nil, nil
}

func (c *Compositor) handleShm(r call) error {
	// create_pool(id, fd, size) is the only request.
	id, size := r.uint32At(0), r.int32At(2)
	if !c.options.MirroredPools {
		return displayError(r, KindCapability, protocol.DisplayErrorImplementation,
			"shared memory pools need file descriptor passing, which this transport does not carry")
	}
	if size <= 0 {
		return violation(r, protocol.ShmErrorInvalidStride, "invalid pool size %d", size)
	}
	if err := c.checkNewID(r, id); err != nil {
		return err
	}
	c.create(id, protocol.ShmPool, r.object.Version, r.object.ID, &poolState{memory: &poolMemory{size: int(size)}})
	return nil
}

func (c *Compositor) handleShmPool(r call) error {
	pool := r.object.state.(*poolState)
	switch r.opcode {
	case protocol.ShmPoolDestroy:
		c.destroy(r.object.ID)

	case protocol.ShmPoolResize:
		size := r.int32At(0)
		if int(size) < pool.memory.size {
			return violation(r, protocol.ShmErrorInvalidStride, "shrinking pool from %d to %d bytes", pool.memory.size, size)
		}
		pool.memory.size = int(size)

	case protocol.ShmPoolCreateBuffer:
		id := r.uint32At(0)
		offset, width, height, stride := r.int32At(1), r.int32At(2), r.int32At(3), r.int32At(4)
		format := r.uint32At(5)

		if format != protocol.ShmFormatARGB8888 && format != protocol.ShmFormatXRGB8888 {
			return violation(r, protocol.ShmErrorInvalidFormat, "unsupported format 0x%x", format)
		}
		if offset < 0 || width <= 0 || height <= 0 || int64(stride) < int64(width)*mirror.BytesPerPixel {
			return violation(r, protocol.ShmErrorInvalidStride,
				"invalid geometry offset %d, %dx%d, stride %d", offset, width, height, stride)
		}
		if int64(offset)+int64(stride)*int64(height) > int64(pool.memory.size) {
			return violation(r, protocol.ShmErrorInvalidStride,
				"buffer of %d bytes at offset %d exceeds pool size %d", int64(stride)*int64(height), offset, pool.memory.size)
		}
		if err := c.checkNewID(r, id); err != nil {
			return err
		}
		c.create(id, protocol.Buffer, 1, r.object.ID, &bufferState{
			memory: pool.memory,
			offset: int(offset),
			descriptor: mirror.Descriptor{
				Width:  int(width),
				Height: int(height),
				Stride: int(stride),
				Format: format,
			},
		})
	}
	return nil
}

func (c *Compositor) handleBuffer(r call) error {
	// destroy is the only request.
	c.destroy(r.object.ID)
	return nil
}
