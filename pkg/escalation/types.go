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
	"time"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSlack    Channel = "slack"
	ChannelInApp    Channel = "in-app"
	ChannelCalendar Channel = "calendar"
)

// EventType classifies a compliance deadline event, e.g. "covenant-deadline"
// or "permit-renewal". Chains declare which event types they apply to.
type EventType string

// MinLevel and MaxLevel bound the severity levels a chain step may use.
const (
	MinLevel = 1
	MaxLevel = 4
)

// AssigneeRef is an immutable reference to a person eligible to be an
// escalation target. Chains hold it by value; the id is the weak reference
// into the assignee directory, name and role are denormalized so audit
// entries stay readable even if the directory changes later.
type AssigneeRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// EscalationStep is one severity tier within a chain.
type EscalationStep struct {
	// Level is the severity level (1..4) this step activates.
	Level int `json:"level"`

	// TriggerDaysOverdue is the number of calendar days an event must be
	// overdue before this step activates.
	TriggerDaysOverdue int `json:"triggerDaysOverdue"`

	// Assignees receive notifications when this step activates. Order is
	// significant: the first assignee becomes the instance's current owner.
	Assignees []AssigneeRef `json:"assignees"`

	// Channels the notification is delivered on.
	Channels []Channel `json:"channels"`

	// NotifyPreviousLevels additionally notifies the assignees of all lower
	// steps when this step activates.
	NotifyPreviousLevels bool `json:"notifyPreviousLevels"`
}

// ChainDefinition is a named, ordered escalation policy.
type ChainDefinition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`

	// AppliesToEventTypes lists the event types this chain handles.
	AppliesToEventTypes []EventType `json:"appliesToEventTypes"`

	// AppliesToFacilityIDs restricts the chain to specific facilities.
	// Empty means all facilities.
	AppliesToFacilityIDs []string `json:"appliesToFacilityIds,omitempty"`

	// Steps are ordered by level, contiguous starting at 1.
	Steps []EscalationStep `json:"steps"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

// StepForLevel returns the step with the given level, or nil.
func (c *ChainDefinition) StepForLevel(level int) *EscalationStep {
	for i := range c.Steps {
		if c.Steps[i].Level == level {
			return &c.Steps[i]
		}
	}
	return nil
}

// Status is the lifecycle state of an escalation instance.
type Status string

const (
	StatusNotEscalated Status = "not_escalated"
	StatusLevel1       Status = "level_1"
	StatusLevel2       Status = "level_2"
	StatusLevel3       Status = "level_3"
	StatusLevel4       Status = "level_4"
	StatusSnoozed      Status = "snoozed"
	StatusResolved     Status = "resolved"
)

// LevelStatus maps a numeric level to its Status value. Level 0 maps to
// StatusNotEscalated.
func LevelStatus(level int) Status {
	switch level {
	case 1:
		return StatusLevel1
	case 2:
		return StatusLevel2
	case 3:
		return StatusLevel3
	case 4:
		return StatusLevel4
	default:
		return StatusNotEscalated
	}
}

// Snooze is a human-authorized, time-bounded pause of auto-escalation.
type Snooze struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	SnoozedBy   string    `json:"snoozedBy"`
	SnoozedAt   time.Time `json:"snoozedAt"`
	SnoozeUntil time.Time `json:"snoozeUntil"`
	Reason      string    `json:"reason"`
	IsActive    bool      `json:"isActive"`
}

// Instance is the live escalation state for one overdue deadline event.
// Exactly one instance exists per event id while the event is open.
type Instance struct {
	ID              string       `json:"id"`
	EventID         string       `json:"eventId"`
	ChainID         string       `json:"chainId"`
	Status          Status       `json:"status"`
	CurrentLevel    int          `json:"currentLevel"`
	CurrentAssignee *AssigneeRef `json:"currentAssignee,omitempty"`
	StartedAt       time.Time    `json:"startedAt"`
	LastEscalatedAt *time.Time   `json:"lastEscalatedAt,omitempty"`
	Snoozes         []Snooze     `json:"snoozes,omitempty"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
	ResolutionNotes string       `json:"resolutionNotes,omitempty"`
}

// InstanceID derives the deterministic instance id for an event. One
// instance per open event means the id can be a pure function of the
// event id, which keeps Evaluate free of random input.
func InstanceID(eventID string) string {
	return "esc-" + eventID
}

// ActiveSnooze returns the instance's active snooze, or nil. At most one
// snooze is active at a time.
func (i *Instance) ActiveSnooze() *Snooze {
	for idx := range i.Snoozes {
		if i.Snoozes[idx].IsActive {
			return &i.Snoozes[idx]
		}
	}
	return nil
}

// Clone returns a deep copy so Evaluate never mutates its input.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	if i.CurrentAssignee != nil {
		a := *i.CurrentAssignee
		out.CurrentAssignee = &a
	}
	if i.LastEscalatedAt != nil {
		t := *i.LastEscalatedAt
		out.LastEscalatedAt = &t
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		out.ResolvedAt = &t
	}
	if len(i.Snoozes) > 0 {
		out.Snoozes = make([]Snooze, len(i.Snoozes))
		copy(out.Snoozes, i.Snoozes)
	}
	return &out
}

// DeadlineEvent is the input record produced by the external calendar/event
// generator. The engine only reads these fields.
type DeadlineEvent struct {
	ID         string    `json:"id"`
	EventType  EventType `json:"eventType"`
	FacilityID string    `json:"facilityId"`
	DueDate    time.Time `json:"dueDate"`
	Status     string    `json:"status"`
	Title      string    `json:"title,omitempty"`
}

// DaysOverdue computes whole calendar days between the due date and now in
// the given location, clamped at zero. Both instants are truncated to their
// calendar dates first, so any time on the due date itself yields 0.
func DaysOverdue(now, due time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	d := due.In(loc)
	nDate := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	dDate := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	days := int(nDate.Sub(dDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
