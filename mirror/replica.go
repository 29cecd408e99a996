// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionGap is returned when a non-full record does not
	// start at the replica's current version. The receiver should
	// request a resync.
	ErrVersionGap = errors.New("mirror: delta does not follow the replica version")

	// ErrDigestMismatch is returned when the reconstructed content
	// does not hash to the record's digest.
	ErrDigestMismatch = errors.New("mirror: reconstructed content does not match digest")
)

// Replica reconstructs one buffer from its delta records. Pixels are
// stored packed: Width * BytesPerPixel bytes per row.
type Replica struct {
	bufferID uint32
	width    int
	height   int
	format   uint32
	version  uint64
	pixels   []byte
}

// NewReplica returns an empty replica for bufferID. Its first record
// must be full.
func NewReplica(bufferID uint32) *Replica {
	return &Replica{bufferID: bufferID}
}

// Version returns the version of the content the replica holds, or 0
// before the first record.
func (r *Replica) Version() uint64 { return r.version }

// Width returns the buffer width in pixels.
func (r *Replica) Width() int { return r.width }

// Height returns the buffer height in pixels.
func (r *Replica) Height() int { return r.height }

// Format returns the buffer's wl_shm format code.
func (r *Replica) Format() uint32 { return r.format }

// Pixels returns the reconstructed content. The slice is owned by the
// replica and changes on the next Apply.
func (r *Replica) Pixels() []byte { return r.pixels }

// Apply applies record to the replica. On any error the replica keeps
// its previous content and version.
func (r *Replica) Apply(record *DeltaRecord) error {
	if record.BufferID != r.bufferID {
		return fmt.Errorf("mirror: record for buffer %d applied to replica of %d", record.BufferID, r.bufferID)
	}
	if !record.Full {
		if r.version == 0 || record.From != r.version {
			return fmt.Errorf("%w: buffer %d at version %d, record is %d to %d",
				ErrVersionGap, r.bufferID, r.version, record.From, record.To)
		}
		if record.Width != r.width || record.Height != r.height {
			return fmt.Errorf("%w: buffer %d geometry changed without a full record", ErrVersionGap, r.bufferID)
		}
	}

	rowBytes := record.Width * BytesPerPixel
	var next []byte
	if record.Full {
		next = make([]byte, rowBytes*record.Height)
	} else {
		next = append([]byte(nil), r.pixels...)
	}

	for i, region := range record.Regions {
		if !region.Rect.Within(record.Width, record.Height) {
			return fmt.Errorf("mirror: region %d %+v outside %dx%d buffer", i, region.Rect, record.Width, record.Height)
		}
		packed, err := unpackRegion(region)
		if err != nil {
			return fmt.Errorf("mirror: buffer %d region %d: %w", r.bufferID, i, err)
		}
		regionRow := region.Rect.Width * BytesPerPixel
		for row := 0; row < region.Rect.Height; row++ {
			destination := (region.Rect.Y+row)*rowBytes + region.Rect.X*BytesPerPixel
			copy(next[destination:destination+regionRow], packed[row*regionRow:(row+1)*regionRow])
		}
	}

	if digestRows(next, rowBytes, rowBytes, record.Height) != record.Digest {
		return fmt.Errorf("%w: buffer %d version %d", ErrDigestMismatch, r.bufferID, record.To)
	}

	r.width = record.Width
	r.height = record.Height
	r.format = record.Format
	r.version = record.To
	r.pixels = next
	return nil
}

// ReplicaSet holds the replicas of every buffer seen on one stream.
type ReplicaSet struct {
	replicas map[uint32]*Replica
}

// NewReplicaSet returns an empty set.
func NewReplicaSet() *ReplicaSet {
	return &ReplicaSet{replicas: make(map[uint32]*Replica)}
}

// Apply routes record to the replica of its buffer, creating the
// replica on first sight.
func (s *ReplicaSet) Apply(record *DeltaRecord) (*Replica, error) {
	replica, ok := s.replicas[record.BufferID]
	if !ok {
		replica = NewReplica(record.BufferID)
	}
	if err := replica.Apply(record); err != nil {
		return nil, err
	}
	s.replicas[record.BufferID] = replica
	return replica, nil
}

// Get returns the replica for bufferID.
func (s *ReplicaSet) Get(bufferID uint32) (*Replica, bool) {
	replica, ok := s.replicas[bufferID]
	return replica, ok
}

// Drop forgets a buffer.
func (s *ReplicaSet) Drop(bufferID uint32) {
	delete(s.replicas, bufferID)
}
