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

package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

// MemoryChainStore keeps chain definitions in memory. Definition order
// is preserved across upserts so matching stays deterministic.
type MemoryChainStore struct {
	mu     sync.RWMutex
	chains map[string]*escalation.ChainDefinition
	order  []string
}

func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{chains: map[string]*escalation.ChainDefinition{}}
}

func (s *MemoryChainStore) Save(_ context.Context, chain *escalation.ChainDefinition) error {
	if chain == nil || chain.ID == "" {
		return errors.New("chain with id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chains[chain.ID]; !exists {
		s.order = append(s.order, chain.ID)
	}
	c := *chain
	s.chains[chain.ID] = &c
	return nil
}

func (s *MemoryChainStore) Get(_ context.Context, id string) (*escalation.ChainDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, ok := s.chains[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "chain %s", id)
	}
	c := *chain
	return &c, nil
}

func (s *MemoryChainStore) List(_ context.Context) ([]*escalation.ChainDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*escalation.ChainDefinition, 0, len(s.order))
	for _, id := range s.order {
		c := *s.chains[id]
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryChainStore) ListActive(ctx context.Context) ([]*escalation.ChainDefinition, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, c := range all {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// MemoryInstanceStore keeps escalation instances in memory keyed by event id.
type MemoryInstanceStore struct {
	mu        sync.RWMutex
	instances map[string]*escalation.Instance
}

func NewMemoryInstanceStore() *MemoryInstanceStore {
	return &MemoryInstanceStore{instances: map[string]*escalation.Instance{}}
}

func (s *MemoryInstanceStore) Put(_ context.Context, inst *escalation.Instance) error {
	if inst == nil || inst.EventID == "" {
		return errors.New("instance with event id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.EventID] = inst.Clone()
	return nil
}

func (s *MemoryInstanceStore) GetByEvent(_ context.Context, eventID string) (*escalation.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[eventID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "instance for event %s", eventID)
	}
	return inst.Clone(), nil
}

func (s *MemoryInstanceStore) List(_ context.Context) ([]*escalation.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*escalation.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst.Clone())
	}
	return out, nil
}

// MemoryEventStore keeps deadline events in memory.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]*escalation.DeadlineEvent
	order  []string
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: map[string]*escalation.DeadlineEvent{}}
}

func (s *MemoryEventStore) Put(_ context.Context, event *escalation.DeadlineEvent) error {
	if event == nil || event.ID == "" {
		return errors.New("event with id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; !exists {
		s.order = append(s.order, event.ID)
	}
	e := *event
	s.events[event.ID] = &e
	return nil
}

func (s *MemoryEventStore) Get(_ context.Context, id string) (*escalation.DeadlineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "event %s", id)
	}
	e := *event
	return &e, nil
}

func (s *MemoryEventStore) List(_ context.Context) ([]*escalation.DeadlineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*escalation.DeadlineEvent, 0, len(s.order))
	for _, id := range s.order {
		e := *s.events[id]
		out = append(out, &e)
	}
	return out, nil
}

func (s *MemoryEventStore) ListOpen(ctx context.Context) ([]*escalation.DeadlineEvent, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	open := all[:0]
	for _, e := range all {
		if e.Status == "open" {
			open = append(open, e)
		}
	}
	return open, nil
}

// MemoryAssigneeDirectory keeps assignee contact details in memory.
type MemoryAssigneeDirectory struct {
	mu        sync.RWMutex
	assignees map[string]*escalation.AssigneeRef
	order     []string
}

func NewMemoryAssigneeDirectory() *MemoryAssigneeDirectory {
	return &MemoryAssigneeDirectory{assignees: map[string]*escalation.AssigneeRef{}}
}

func (s *MemoryAssigneeDirectory) Put(_ context.Context, assignee *escalation.AssigneeRef) error {
	if assignee == nil || assignee.ID == "" {
		return errors.New("assignee with id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assignees[assignee.ID]; !exists {
		s.order = append(s.order, assignee.ID)
	}
	a := *assignee
	s.assignees[assignee.ID] = &a
	return nil
}

func (s *MemoryAssigneeDirectory) Get(_ context.Context, id string) (*escalation.AssigneeRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignee, ok := s.assignees[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "assignee %s", id)
	}
	a := *assignee
	return &a, nil
}

func (s *MemoryAssigneeDirectory) List(_ context.Context) ([]*escalation.AssigneeRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*escalation.AssigneeRef, 0, len(s.order))
	for _, id := range s.order {
		a := *s.assignees[id]
		out = append(out, &a)
	}
	return out, nil
}

var (
	_ ChainStore        = (*MemoryChainStore)(nil)
	_ InstanceStore     = (*MemoryInstanceStore)(nil)
	_ EventStore        = (*MemoryEventStore)(nil)
	_ AssigneeDirectory = (*MemoryAssigneeDirectory)(nil)
)
