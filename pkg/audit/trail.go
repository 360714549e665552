/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Trail is the append-only audit log keyed by event id. Append never
// rewrites history; Query returns entries in non-decreasing timestamp
// order with ties broken by append order. The evaluator only ever writes
// to the trail, it never reads it back to decide state.
type Trail interface {
	// Append stores an entry, assigning its ID and Seq if unset.
	Append(ctx context.Context, entry *Entry) error

	// Query returns all entries for the event in trail order.
	Query(ctx context.Context, eventID string) ([]Entry, error)
}

// MemoryTrail is an in-process Trail, the test and single-node default.
type MemoryTrail struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	seq     uint64
}

// NewMemoryTrail creates an empty in-memory trail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{entries: make(map[string][]Entry)}
}

// Append stores a copy of the entry under its event id.
func (t *MemoryTrail) Append(_ context.Context, entry *Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Seq = t.seq
	entry.ID = stored.ID
	entry.Seq = stored.Seq
	t.entries[stored.EventID] = append(t.entries[stored.EventID], stored)
	return nil
}

// Query returns copies of the event's entries ordered by timestamp, append
// order breaking ties.
func (t *MemoryTrail) Query(_ context.Context, eventID string) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored := t.entries[eventID]
	out := make([]Entry, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Len returns the total number of entries across all events.
func (t *MemoryTrail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entries {
		n += len(e)
	}
	return n
}
