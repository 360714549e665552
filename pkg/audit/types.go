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
	"time"
)

// Action identifies the kind of state change an audit entry records.
type Action string

const (
	// Escalation lifecycle actions.
	ActionEscalationStarted Action = "escalation_started"
	ActionLevelIncreased    Action = "escalation_level_increased"
	ActionResolved          Action = "escalation_resolved"

	// Snooze actions.
	ActionSnoozed         Action = "escalation_snoozed"
	ActionSnoozeExpired   Action = "snooze_expired"
	ActionSnoozeCancelled Action = "snooze_cancelled"

	// Notification actions.
	ActionNotificationSent Action = "notification_sent"

	// Chain administration actions.
	ActionChainCreated     Action = "chain_created"
	ActionChainUpdated     Action = "chain_updated"
	ActionChainDeactivated Action = "chain_deactivated"
)

// Severity indicates the importance of an audit entry when exported to
// downstream sinks.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityForAction returns the default export severity for an action.
func SeverityForAction(action Action) Severity {
	switch action {
	case ActionLevelIncreased, ActionChainDeactivated:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AssigneeSnapshot is a denormalized assignee reference captured at entry
// time so the trail stays readable even if the directory changes later.
type AssigneeSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Entry is one immutable record in the audit trail. Entries are never
// mutated or deleted; corrections are represented as new entries that
// reference the old state via PreviousLevel/PreviousAssignee.
type Entry struct {
	// ID is a unique identifier, assigned on append if empty.
	ID string `json:"id"`

	// EscalationID is the instance this entry belongs to.
	EscalationID string `json:"escalationId"`

	// EventID is the deadline event the instance tracks.
	EventID string `json:"eventId"`

	Action Action `json:"action"`

	// PerformedBy is the acting user id; empty means the system acted.
	PerformedBy     string `json:"performedBy,omitempty"`
	PerformedByName string `json:"performedByName,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Seq is the append-order tiebreaker for entries sharing a timestamp.
	// Assigned by the trail on append.
	Seq uint64 `json:"seq"`

	PreviousLevel *int `json:"previousLevel,omitempty"`
	NewLevel      *int `json:"newLevel,omitempty"`

	PreviousAssignee *AssigneeSnapshot `json:"previousAssignee,omitempty"`
	NewAssignee      *AssigneeSnapshot `json:"newAssignee,omitempty"`

	Details string `json:"details,omitempty"`

	SnoozeReason        string `json:"snoozeReason,omitempty"`
	SnoozeDurationHours int    `json:"snoozeDurationHours,omitempty"`

	NotificationChannels []string `json:"notificationChannels,omitempty"`

	// Severity is used by export sinks; assigned on emit if empty.
	Severity Severity `json:"severity,omitempty"`
}
