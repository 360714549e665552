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
	"time"

	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/audit"
)

// Notification is a fire-and-forget request to the delivery collaborator.
// The evaluator never consumes a return value from delivery.
type Notification struct {
	EventID   string        `json:"eventId"`
	Level     int           `json:"level"`
	Assignees []AssigneeRef `json:"assignees"`
	Channels  []Channel     `json:"channels"`
	Message   string        `json:"message"`
}

// Result is the outcome of one evaluation: the next instance state plus the
// side effects the caller must execute exactly once. Audit entries appear in
// the order they must be appended; notification_sent entries directly follow
// the transition entry they belong to.
type Result struct {
	// Instance is the next state. Nil when no instance exists and none was
	// created (event not overdue, or no chain matched).
	Instance *Instance

	Entries       []audit.Entry
	Notifications []Notification

	// Changed reports whether Instance differs from the prior state.
	Changed bool
}

// Evaluator computes escalation state transitions. It is a pure function of
// its inputs: given identical (now, event, chain, prior) it is deterministic
// and produces the same result. It holds no mutable state and is safe for
// concurrent use across different events; the caller serializes evaluations
// of the same event.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an evaluator computing overdue days in the given
// location. A nil location means UTC.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// Evaluate implements the escalation state machine:
//
//	NotEscalated -> Level1 -> Level2 -> Level3 -> Level4 -> Resolved
//
// with Snoozed reachable from any level state and returning to the level
// held when snoozed. Resolved is terminal. A malformed chain is a
// programming error on the caller's side (chains are validated at save
// time); Evaluate rejects it immediately rather than guessing.
func (e *Evaluator) Evaluate(now time.Time, event DeadlineEvent, chain *ChainDefinition, prior *Instance) (Result, error) {
	if chain != nil {
		if err := chain.Validate(); err != nil {
			return Result{}, errors.Wrap(err, "evaluate called with unvalidated chain")
		}
	}

	// Resolved is terminal.
	if prior != nil && prior.Status == StatusResolved {
		return Result{Instance: prior.Clone()}, nil
	}

	days := DaysOverdue(now, event.DueDate, e.loc)

	// An event that is not yet overdue never starts an escalation, and no
	// instance is created for it.
	if days <= 0 && (prior == nil || prior.CurrentLevel == 0) {
		return Result{Instance: prior.Clone()}, nil
	}

	// No applicable chain and no prior state: the event is never
	// auto-escalated. With a prior instance the snooze bookkeeping below
	// still runs even if its chain has since been deactivated.
	if chain == nil && prior == nil {
		return Result{}, nil
	}

	next := prior.Clone()
	var entries []audit.Entry
	var notifications []Notification
	changed := false

	// Snooze handling: an unexpired snooze pauses everything, an expired
	// one is deactivated and evaluation resumes from the paused level.
	if next != nil {
		if s := next.ActiveSnooze(); s != nil {
			if now.Before(s.SnoozeUntil) {
				return Result{Instance: next}, nil
			}
			s.IsActive = false
			next.Status = LevelStatus(next.CurrentLevel)
			changed = true
			prevLevel := next.CurrentLevel
			entries = append(entries, audit.Entry{
				EscalationID:  next.ID,
				EventID:       next.EventID,
				Action:        audit.ActionSnoozeExpired,
				Timestamp:     now,
				PreviousLevel: intPtr(prevLevel),
				NewLevel:      intPtr(prevLevel),
				SnoozeReason:  s.Reason,
				Details:       fmt.Sprintf("snooze window ended at %s, escalation resumed at level %d", s.SnoozeUntil.UTC().Format(time.RFC3339), prevLevel),
			})
		}
	}

	if chain == nil {
		return Result{Instance: next, Entries: entries, Changed: changed}, nil
	}

	// Highest step whose threshold has been reached. Equality activates a
	// level on its threshold day.
	target := 0
	for _, step := range chain.Steps {
		if step.TriggerDaysOverdue <= days {
			target = step.Level
		}
	}

	currentLevel := 0
	if next != nil {
		currentLevel = next.CurrentLevel
	}

	if target > currentLevel {
		if next == nil {
			next = &Instance{
				ID:        InstanceID(event.ID),
				EventID:   event.ID,
				ChainID:   chain.ID,
				Status:    StatusNotEscalated,
				StartedAt: now,
			}
		}
		// One transition per crossed level, in level order, so the trail
		// preserves full history even when a long-idle batch evaluation
		// crosses several thresholds at once.
		for level := currentLevel + 1; level <= target; level++ {
			step := chain.StepForLevel(level)
			prevLevel := next.CurrentLevel
			prevAssignee := next.CurrentAssignee

			next.CurrentLevel = level
			assignee := step.Assignees[0]
			next.CurrentAssignee = &assignee
			t := now
			next.LastEscalatedAt = &t
			next.Status = LevelStatus(level)

			action := audit.ActionLevelIncreased
			if prevLevel == 0 {
				action = audit.ActionEscalationStarted
			}
			entries = append(entries, audit.Entry{
				EscalationID:     next.ID,
				EventID:          next.EventID,
				Action:           action,
				Timestamp:        now,
				PreviousLevel:    intPtr(prevLevel),
				NewLevel:         intPtr(level),
				PreviousAssignee: snapshot(prevAssignee),
				NewAssignee:      snapshot(next.CurrentAssignee),
				Details:          fmt.Sprintf("%d days overdue reached level %d threshold (%d days)", days, level, step.TriggerDaysOverdue),
			})

			targets := notificationTargets(chain, step)
			n := Notification{
				EventID:   event.ID,
				Level:     level,
				Assignees: targets,
				Channels:  append([]Channel(nil), step.Channels...),
				Message:   fmt.Sprintf("Compliance deadline %s is %d days overdue, escalated to level %d", eventLabel(event), days, level),
			}
			notifications = append(notifications, n)
			entries = append(entries, audit.Entry{
				EscalationID:         next.ID,
				EventID:              next.EventID,
				Action:               audit.ActionNotificationSent,
				Timestamp:            now,
				NewLevel:             intPtr(level),
				NotificationChannels: channelNames(step.Channels),
				Details:              fmt.Sprintf("notified %d assignees for level %d", len(targets), level),
			})
		}
		changed = true
	}

	return Result{
		Instance:      next,
		Entries:       entries,
		Notifications: notifications,
		Changed:       changed,
	}, nil
}

// notificationTargets returns the step's assignees, plus the assignees of
// all lower steps when the step requests it, deduplicated by id with
// assignee-list order preserved.
func notificationTargets(chain *ChainDefinition, step *EscalationStep) []AssigneeRef {
	var out []AssigneeRef
	seen := make(map[string]struct{})
	add := func(refs []AssigneeRef) {
		for _, a := range refs {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	add(step.Assignees)
	if step.NotifyPreviousLevels {
		for level := step.Level - 1; level >= MinLevel; level-- {
			if prev := chain.StepForLevel(level); prev != nil {
				add(prev.Assignees)
			}
		}
	}
	return out
}

func eventLabel(event DeadlineEvent) string {
	if event.Title != "" {
		return fmt.Sprintf("%q (%s)", event.Title, event.ID)
	}
	return event.ID
}

func channelNames(channels []Channel) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		out = append(out, string(ch))
	}
	return out
}

func snapshot(a *AssigneeRef) *audit.AssigneeSnapshot {
	if a == nil {
		return nil
	}
	return &audit.AssigneeSnapshot{ID: a.ID, Name: a.Name, Role: a.Role}
}

func intPtr(v int) *int { return &v }
