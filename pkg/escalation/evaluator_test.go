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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/escalation-engine/pkg/audit"
)

func testChain() *ChainDefinition {
	return &ChainDefinition{
		ID:                  "chain-1",
		Name:                "Covenant deadlines",
		IsActive:            true,
		AppliesToEventTypes: []EventType{"covenant_deadline"},
		Steps: []EscalationStep{
			{
				Level:              1,
				TriggerDaysOverdue: 1,
				Assignees:          []AssigneeRef{{ID: "u-officer", Name: "Dana", Role: "officer"}},
				Channels:           []Channel{ChannelEmail},
			},
			{
				Level:              2,
				TriggerDaysOverdue: 3,
				Assignees:          []AssigneeRef{{ID: "u-manager", Name: "Femi", Role: "manager"}},
				Channels:           []Channel{ChannelEmail, ChannelSlack},
			},
			{
				Level:                3,
				TriggerDaysOverdue:   7,
				Assignees:            []AssigneeRef{{ID: "u-director", Name: "Ines", Role: "director"}},
				Channels:             []Channel{ChannelEmail, ChannelSlack, ChannelInApp},
				NotifyPreviousLevels: true,
			},
		},
	}
}

func testEvent(due time.Time) DeadlineEvent {
	return DeadlineEvent{
		ID:         "evt-1",
		EventType:  "covenant_deadline",
		FacilityID: "fac-1",
		DueDate:    due,
		Status:     "open",
		Title:      "Quarterly covenant report",
	}
}

func TestEvaluateNotOverdueProducesNothing(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	res, err := ev.Evaluate(now, testEvent(now.Add(48*time.Hour)), testChain(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Instance)
	assert.Empty(t, res.Entries)
	assert.False(t, res.Changed)
}

func TestEvaluateDueTodayIsDayZero(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	res, err := ev.Evaluate(now, testEvent(due), testChain(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Instance)
}

func TestEvaluateStartsAtMatchingLevel(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 4)

	res, err := ev.Evaluate(now, testEvent(due), testChain(), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Instance)
	assert.True(t, res.Changed)

	inst := res.Instance
	assert.Equal(t, "esc-evt-1", inst.ID)
	assert.Equal(t, StatusLevel2, inst.Status)
	assert.Equal(t, 2, inst.CurrentLevel)
	require.NotNil(t, inst.CurrentAssignee)
	assert.Equal(t, "u-manager", inst.CurrentAssignee.ID)

	// One transition entry per crossed level, each followed by its
	// notification entry.
	require.Len(t, res.Entries, 4)
	assert.Equal(t, audit.ActionEscalationStarted, res.Entries[0].Action)
	assert.Equal(t, audit.ActionNotificationSent, res.Entries[1].Action)
	assert.Equal(t, audit.ActionLevelIncreased, res.Entries[2].Action)
	assert.Equal(t, audit.ActionNotificationSent, res.Entries[3].Action)
	require.NotNil(t, res.Entries[2].NewLevel)
	assert.Equal(t, 2, *res.Entries[2].NewLevel)

	require.Len(t, res.Notifications, 2)
	assert.Equal(t, 1, res.Notifications[0].Level)
	assert.Equal(t, 2, res.Notifications[1].Level)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 2)
	event := testEvent(due)
	chain := testChain()

	first, err := ev.Evaluate(now, event, chain, nil)
	require.NoError(t, err)
	second, err := ev.Evaluate(now, event, chain, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Instance, second.Instance)
	assert.Equal(t, first.Entries, second.Entries)
}

func TestEvaluateNoChangeWithinLevelWindow(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := testEvent(due)
	chain := testChain()

	res, err := ev.Evaluate(due.AddDate(0, 0, 1), event, chain, nil)
	require.NoError(t, err)
	prior := res.Instance

	res, err = ev.Evaluate(due.AddDate(0, 0, 2), event, chain, prior)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 1, res.Instance.CurrentLevel)
}

func TestEvaluateDoesNotMutatePrior(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := testEvent(due)
	chain := testChain()

	res, err := ev.Evaluate(due.AddDate(0, 0, 1), event, chain, nil)
	require.NoError(t, err)
	prior := res.Instance

	_, err = ev.Evaluate(due.AddDate(0, 0, 8), event, chain, prior)
	require.NoError(t, err)
	assert.Equal(t, 1, prior.CurrentLevel)
	assert.Equal(t, StatusLevel1, prior.Status)
}

func TestEvaluateResolvedIsTerminal(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resolvedAt := due.AddDate(0, 0, 2)
	prior := &Instance{
		ID:           "esc-evt-1",
		EventID:      "evt-1",
		ChainID:      "chain-1",
		Status:       StatusResolved,
		CurrentLevel: 1,
		ResolvedAt:   &resolvedAt,
	}

	res, err := ev.Evaluate(due.AddDate(0, 0, 30), testEvent(due), testChain(), prior)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, res.Instance.Status)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Entries)
}

func TestEvaluateActiveSnoozePausesEverything(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 10)
	prior := &Instance{
		ID:           "esc-evt-1",
		EventID:      "evt-1",
		ChainID:      "chain-1",
		Status:       StatusSnoozed,
		CurrentLevel: 2,
		Snoozes: []Snooze{{
			ID:          "sn-1",
			EventID:     "evt-1",
			SnoozeUntil: now.Add(time.Hour),
			IsActive:    true,
		}},
	}

	res, err := ev.Evaluate(now, testEvent(due), testChain(), prior)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, StatusSnoozed, res.Instance.Status)
	assert.Equal(t, 2, res.Instance.CurrentLevel)
}

func TestEvaluateExpiredSnoozeResumesAndAdvances(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 8)
	prior := &Instance{
		ID:           "esc-evt-1",
		EventID:      "evt-1",
		ChainID:      "chain-1",
		Status:       StatusSnoozed,
		CurrentLevel: 2,
		Snoozes: []Snooze{{
			ID:          "sn-1",
			EventID:     "evt-1",
			SnoozeUntil: now.Add(-time.Hour),
			IsActive:    true,
		}},
	}

	res, err := ev.Evaluate(now, testEvent(due), testChain(), prior)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, StatusLevel3, res.Instance.Status)
	assert.Equal(t, 3, res.Instance.CurrentLevel)
	assert.Nil(t, res.Instance.ActiveSnooze())

	require.NotEmpty(t, res.Entries)
	assert.Equal(t, audit.ActionSnoozeExpired, res.Entries[0].Action)
}

func TestEvaluateNoChainNoPrior(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res, err := ev.Evaluate(due.AddDate(0, 0, 5), testEvent(due), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Instance)
	assert.False(t, res.Changed)
}

func TestEvaluateNoChainKeepsSnoozeBookkeeping(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 10)
	prior := &Instance{
		ID:           "esc-evt-1",
		EventID:      "evt-1",
		ChainID:      "chain-gone",
		Status:       StatusSnoozed,
		CurrentLevel: 1,
		Snoozes: []Snooze{{
			ID:          "sn-1",
			EventID:     "evt-1",
			SnoozeUntil: now.Add(-time.Hour),
			IsActive:    true,
		}},
	}

	res, err := ev.Evaluate(now, testEvent(due), nil, prior)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, StatusLevel1, res.Instance.Status)
	assert.Nil(t, res.Instance.ActiveSnooze())
}

func TestEvaluateRejectsInvalidChain(t *testing.T) {
	ev := NewEvaluator(time.UTC)
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chain := testChain()
	chain.Steps[1].Level = 9

	_, err := ev.Evaluate(due.AddDate(0, 0, 5), testEvent(due), chain, nil)
	assert.Error(t, err)
}

func TestNotificationTargetsIncludesPreviousLevels(t *testing.T) {
	chain := testChain()
	step := chain.StepForLevel(3)
	require.NotNil(t, step)

	targets := notificationTargets(chain, step)
	require.Len(t, targets, 3)
	assert.Equal(t, "u-director", targets[0].ID)
	assert.Equal(t, "u-manager", targets[1].ID)
	assert.Equal(t, "u-officer", targets[2].ID)
}

func TestNotificationTargetsDeduplicates(t *testing.T) {
	chain := testChain()
	chain.Steps[2].Assignees = append(chain.Steps[2].Assignees, AssigneeRef{ID: "u-officer", Name: "Dana"})
	step := chain.StepForLevel(3)

	targets := notificationTargets(chain, step)
	assert.Len(t, targets, 3)
}

func TestDaysOverdue(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		due  time.Time
		loc  *time.Location
		want int
	}{
		{
			name: "not yet due",
			now:  time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC),
			due:  time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 0,
		},
		{
			name: "due date itself is day zero",
			now:  time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
			due:  time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 0,
		},
		{
			name: "next calendar day is day one",
			now:  time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC),
			due:  time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 1,
		},
		{
			name: "dst transition does not lose a day",
			now:  time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC),
			due:  time.Date(2026, 3, 27, 12, 0, 0, 0, time.UTC),
			loc:  berlin,
			want: 4,
		},
		{
			name: "nil location falls back to utc",
			now:  time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			due:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			loc:  nil,
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysOverdue(tt.now, tt.due, tt.loc))
		})
	}
}
