// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"errors"
	"testing"
)

// commitSequence returns a 1-based list of records for a small buffer
// whose content changes on every commit.
func commitSequence(t *testing.T, count int) []*DeltaRecord {
	t.Helper()
	descriptor := Descriptor{Width: 8, Height: 8, Stride: 32}
	engine := NewEngine(Options{})
	mustTrack(t, engine, 4, descriptor)
	snapshot := newSnapshot(descriptor, 0)
	records := make([]*DeltaRecord, 0, count)
	for i := 0; i < count; i++ {
		setPixel(snapshot, descriptor, i%8, i/8, 0xFF000000|uint32(i))
		records = append(records, mustCommit(t, engine, 4, snapshot))
	}
	return records
}

func TestReplicaRejectsGap(t *testing.T) {
	records := commitSequence(t, 3)
	replica := NewReplica(4)

	if err := replica.Apply(records[1]); !errors.Is(err, ErrVersionGap) {
		t.Fatalf("applying 1->2 to an empty replica: error = %v, want ErrVersionGap", err)
	}
	if err := replica.Apply(records[0]); err != nil {
		t.Fatalf("Apply(0->1): %v", err)
	}
	if err := replica.Apply(records[2]); !errors.Is(err, ErrVersionGap) {
		t.Fatalf("applying 2->3 at version 1: error = %v, want ErrVersionGap", err)
	}
	if replica.Version() != 1 {
		t.Errorf("version after rejected record = %d, want 1", replica.Version())
	}
	if err := replica.Apply(records[1]); err != nil {
		t.Fatalf("Apply(1->2): %v", err)
	}
	if err := replica.Apply(records[2]); err != nil {
		t.Fatalf("Apply(2->3): %v", err)
	}
}

func TestReplicaDigestMismatch(t *testing.T) {
	records := commitSequence(t, 1)
	record := *records[0]
	record.Digest[0] ^= 0xFF

	replica := NewReplica(4)
	if err := replica.Apply(&record); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("error = %v, want ErrDigestMismatch", err)
	}
	if replica.Version() != 0 || replica.Pixels() != nil {
		t.Error("failed Apply modified the replica")
	}
}

func TestReplicaWrongBuffer(t *testing.T) {
	records := commitSequence(t, 1)
	if err := NewReplica(5).Apply(records[0]); err == nil {
		t.Error("applying a record for another buffer should fail")
	}
}

func TestReplicaSet(t *testing.T) {
	records := commitSequence(t, 2)
	set := NewReplicaSet()

	if _, err := set.Apply(records[1]); !errors.Is(err, ErrVersionGap) {
		t.Fatalf("error = %v, want ErrVersionGap", err)
	}
	if _, ok := set.Get(4); ok {
		t.Error("a rejected first record should not create a replica")
	}

	for _, record := range records {
		if _, err := set.Apply(record); err != nil {
			t.Fatalf("Apply(%d->%d): %v", record.From, record.To, err)
		}
	}
	replica, ok := set.Get(4)
	if !ok || replica.Version() != 2 {
		t.Fatalf("Get(4) = %v, %v", replica, ok)
	}
	if replica.Width() != 8 || replica.Height() != 8 {
		t.Errorf("geometry = %dx%d, want 8x8", replica.Width(), replica.Height())
	}

	set.Drop(4)
	if _, ok := set.Get(4); ok {
		t.Error("Drop should remove the replica")
	}
}
