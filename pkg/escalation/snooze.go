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

package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/complianceops/escalation-engine/pkg/audit"
)

// SnoozeInstance pauses auto-escalation for a bounded window. The instance
// must currently be at a Level1..Level4 state and the reason must be
// non-empty; violations are precondition errors and leave the instance
// untouched. Snoozing keeps the current level, so escalation resumes from
// it rather than restarting at level 1.
func SnoozeInstance(now time.Time, inst *Instance, byUser, byUserName string, hours int, reason string) (*Instance, *audit.Entry, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, nil, &PreconditionError{Op: "snooze", Reason: "a non-empty justification is required"}
	}
	if hours <= 0 {
		return nil, nil, &PreconditionError{Op: "snooze", Reason: fmt.Sprintf("duration must be positive, got %dh", hours)}
	}
	if inst == nil {
		return nil, nil, &PreconditionError{Op: "snooze", Reason: "no escalation instance exists for this event"}
	}
	switch inst.Status {
	case StatusLevel1, StatusLevel2, StatusLevel3, StatusLevel4:
	case StatusSnoozed:
		return nil, nil, &PreconditionError{Op: "snooze", Reason: "instance is already snoozed"}
	default:
		return nil, nil, &PreconditionError{Op: "snooze", Reason: fmt.Sprintf("cannot snooze an instance in state %q", inst.Status)}
	}

	next := inst.Clone()
	s := Snooze{
		ID:          uuid.New().String(),
		EventID:     next.EventID,
		SnoozedBy:   byUser,
		SnoozedAt:   now,
		SnoozeUntil: now.Add(time.Duration(hours) * time.Hour),
		Reason:      reason,
		IsActive:    true,
	}
	next.Snoozes = append(next.Snoozes, s)
	next.Status = StatusSnoozed

	entry := &audit.Entry{
		EscalationID:        next.ID,
		EventID:             next.EventID,
		Action:              audit.ActionSnoozed,
		PerformedBy:         byUser,
		PerformedByName:     byUserName,
		Timestamp:           now,
		PreviousLevel:       intPtr(next.CurrentLevel),
		SnoozeReason:        reason,
		SnoozeDurationHours: hours,
		Details:             fmt.Sprintf("escalation paused until %s", s.SnoozeUntil.UTC().Format(time.RFC3339)),
	}
	return next, entry, nil
}

// CancelSnooze ends an active snooze before its window expires. The
// instance returns to the level state it held when snoozed.
func CancelSnooze(now time.Time, inst *Instance, byUser, byUserName string) (*Instance, *audit.Entry, error) {
	if inst == nil || inst.Status != StatusSnoozed {
		return nil, nil, &PreconditionError{Op: "cancel snooze", Reason: "instance is not snoozed"}
	}

	next := inst.Clone()
	s := next.ActiveSnooze()
	if s == nil {
		return nil, nil, &PreconditionError{Op: "cancel snooze", Reason: "no active snooze on instance"}
	}
	s.IsActive = false
	next.Status = LevelStatus(next.CurrentLevel)

	entry := &audit.Entry{
		EscalationID:    next.ID,
		EventID:         next.EventID,
		Action:          audit.ActionSnoozeCancelled,
		PerformedBy:     byUser,
		PerformedByName: byUserName,
		Timestamp:       now,
		PreviousLevel:   intPtr(next.CurrentLevel),
		NewLevel:        intPtr(next.CurrentLevel),
		SnoozeReason:    s.Reason,
		Details:         fmt.Sprintf("snooze cancelled before its %s expiry, escalation resumed at level %d", s.SnoozeUntil.UTC().Format(time.RFC3339), next.CurrentLevel),
	}
	return next, entry, nil
}

// ResolveInstance closes an escalation. Resolved is terminal: no further
// transitions are evaluated. Resolving a snoozed instance deactivates its
// snooze along the way.
func ResolveInstance(now time.Time, inst *Instance, byUser, byUserName, notes string) (*Instance, *audit.Entry, error) {
	if inst == nil {
		return nil, nil, &PreconditionError{Op: "resolve", Reason: "no escalation instance exists for this event"}
	}
	if inst.Status == StatusResolved {
		return nil, nil, &PreconditionError{Op: "resolve", Reason: "instance is already resolved"}
	}

	next := inst.Clone()
	details := "escalation resolved"
	if s := next.ActiveSnooze(); s != nil {
		s.IsActive = false
		details = "escalation resolved while snoozed, snooze deactivated"
	}
	t := now
	next.Status = StatusResolved
	next.ResolvedAt = &t
	next.ResolutionNotes = notes

	entry := &audit.Entry{
		EscalationID:    next.ID,
		EventID:         next.EventID,
		Action:          audit.ActionResolved,
		PerformedBy:     byUser,
		PerformedByName: byUserName,
		Timestamp:       now,
		PreviousLevel:   intPtr(inst.CurrentLevel),
		Details:         details,
	}
	if notes != "" {
		entry.Details = fmt.Sprintf("%s: %s", details, notes)
	}
	return next, entry, nil
}
