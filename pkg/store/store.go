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

// Package store defines the persistence interfaces for chains, escalation
// instances, deadline events and the assignee directory, with in-memory
// and SQLite backed implementations.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ChainStore persists escalation chain definitions. Save is an upsert;
// List returns chains in definition order, which is the tie-break order
// used when several active chains match the same event.
type ChainStore interface {
	Save(ctx context.Context, chain *escalation.ChainDefinition) error
	Get(ctx context.Context, id string) (*escalation.ChainDefinition, error)
	List(ctx context.Context) ([]*escalation.ChainDefinition, error)
	ListActive(ctx context.Context) ([]*escalation.ChainDefinition, error)
}

// InstanceStore persists escalation instances. There is at most one
// instance per event id.
type InstanceStore interface {
	Put(ctx context.Context, inst *escalation.Instance) error
	GetByEvent(ctx context.Context, eventID string) (*escalation.Instance, error)
	List(ctx context.Context) ([]*escalation.Instance, error)
}

// EventStore persists the deadline events the engine evaluates.
type EventStore interface {
	Put(ctx context.Context, event *escalation.DeadlineEvent) error
	Get(ctx context.Context, id string) (*escalation.DeadlineEvent, error)
	ListOpen(ctx context.Context) ([]*escalation.DeadlineEvent, error)
	List(ctx context.Context) ([]*escalation.DeadlineEvent, error)
}

// AssigneeDirectory resolves assignee ids to contact details.
type AssigneeDirectory interface {
	Put(ctx context.Context, assignee *escalation.AssigneeRef) error
	Get(ctx context.Context, id string) (*escalation.AssigneeRef, error)
	List(ctx context.Context) ([]*escalation.AssigneeRef, error)
}
