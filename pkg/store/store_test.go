package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/store"
)

func sampleChain(id string, active bool) *escalation.ChainDefinition {
	return &escalation.ChainDefinition{
		ID:                  id,
		Name:                "Permit renewals " + id,
		IsActive:            active,
		AppliesToEventTypes: []escalation.EventType{"permit_renewal"},
		Steps: []escalation.EscalationStep{
			{
				Level:              1,
				TriggerDaysOverdue: 0,
				Assignees:          []escalation.AssigneeRef{{ID: "u-1", Name: "Dana", Email: "dana@example.com"}},
				Channels:           []escalation.Channel{escalation.ChannelEmail},
			},
			{
				Level:              2,
				TriggerDaysOverdue: 3,
				Assignees:          []escalation.AssigneeRef{{ID: "u-2", Name: "Femi", Email: "femi@example.com"}},
				Channels:           []escalation.Channel{escalation.ChannelEmail, escalation.ChannelSlack},
			},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

type fixture struct {
	chains    store.ChainStore
	instances store.InstanceStore
	events    store.EventStore
	assignees store.AssigneeDirectory
}

func fixtures(t *testing.T) map[string]fixture {
	t.Helper()

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]fixture{
		"memory": {
			chains:    store.NewMemoryChainStore(),
			instances: store.NewMemoryInstanceStore(),
			events:    store.NewMemoryEventStore(),
			assignees: store.NewMemoryAssigneeDirectory(),
		},
		"sqlite": {
			chains:    store.NewSQLiteChainStore(db),
			instances: store.NewSQLiteInstanceStore(db),
			events:    store.NewSQLiteEventStore(db),
			assignees: store.NewSQLiteAssigneeDirectory(db),
		},
	}
}

func TestChainStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.chains.Save(ctx, sampleChain("chain-a", true)))
			require.NoError(t, fx.chains.Save(ctx, sampleChain("chain-b", false)))

			got, err := fx.chains.Get(ctx, "chain-a")
			require.NoError(t, err)
			assert.Equal(t, "chain-a", got.ID)
			require.Len(t, got.Steps, 2)
			assert.Equal(t, 3, got.Steps[1].TriggerDaysOverdue)
			assert.Equal(t, []escalation.Channel{escalation.ChannelEmail, escalation.ChannelSlack}, got.Steps[1].Channels)

			_, err = fx.chains.Get(ctx, "chain-missing")
			assert.True(t, store.IsNotFound(err))

			active, err := fx.chains.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "chain-a", active[0].ID)
		})
	}
}

func TestChainStorePreservesDefinitionOrder(t *testing.T) {
	ctx := context.Background()
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"chain-z", "chain-m", "chain-a"} {
				require.NoError(t, fx.chains.Save(ctx, sampleChain(id, true)))
			}

			// Upserting an existing chain must not move it to the back.
			updated := sampleChain("chain-z", true)
			updated.Name = "renamed"
			require.NoError(t, fx.chains.Save(ctx, updated))

			all, err := fx.chains.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "chain-z", all[0].ID)
			assert.Equal(t, "renamed", all[0].Name)
			assert.Equal(t, "chain-m", all[1].ID)
			assert.Equal(t, "chain-a", all[2].ID)
		})
	}
}

func TestInstanceStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC().Truncate(time.Second)
			inst := &escalation.Instance{
				ID:           escalation.InstanceID("evt-1"),
				EventID:      "evt-1",
				ChainID:      "chain-a",
				Status:       escalation.StatusLevel2,
				CurrentLevel: 2,
				CurrentAssignee: &escalation.AssigneeRef{
					ID: "u-2", Name: "Femi", Email: "femi@example.com",
				},
				StartedAt: now,
				Snoozes: []escalation.Snooze{{
					ID:          "snz-1",
					EventID:     "evt-1",
					SnoozedBy:   "u-9",
					SnoozedAt:   now,
					SnoozeUntil: now.Add(48 * time.Hour),
					Reason:      "vendor confirmed delivery Friday",
					IsActive:    false,
				}},
			}
			require.NoError(t, fx.instances.Put(ctx, inst))

			got, err := fx.instances.GetByEvent(ctx, "evt-1")
			require.NoError(t, err)
			assert.Equal(t, "esc-evt-1", got.ID)
			assert.Equal(t, escalation.StatusLevel2, got.Status)
			require.NotNil(t, got.CurrentAssignee)
			assert.Equal(t, "u-2", got.CurrentAssignee.ID)
			require.Len(t, got.Snoozes, 1)
			assert.Equal(t, "vendor confirmed delivery Friday", got.Snoozes[0].Reason)

			// Upsert replaces the prior state.
			inst.Status = escalation.StatusResolved
			inst.ResolutionNotes = "permit renewed"
			require.NoError(t, fx.instances.Put(ctx, inst))

			got, err = fx.instances.GetByEvent(ctx, "evt-1")
			require.NoError(t, err)
			assert.Equal(t, escalation.StatusResolved, got.Status)

			all, err := fx.instances.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			_, err = fx.instances.GetByEvent(ctx, "evt-missing")
			assert.True(t, store.IsNotFound(err))
		})
	}
}

func TestEventStoreListOpen(t *testing.T) {
	ctx := context.Background()
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, fx.events.Put(ctx, &escalation.DeadlineEvent{
				ID: "evt-open", EventType: "permit_renewal", FacilityID: "fac-1",
				DueDate: due, Status: "open", Title: "Operating permit renewal",
			}))
			require.NoError(t, fx.events.Put(ctx, &escalation.DeadlineEvent{
				ID: "evt-done", EventType: "permit_renewal", FacilityID: "fac-1",
				DueDate: due, Status: "completed",
			}))

			open, err := fx.events.ListOpen(ctx)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, "evt-open", open[0].ID)
			assert.True(t, open[0].DueDate.Equal(due))
		})
	}
}

func TestAssigneeDirectory(t *testing.T) {
	ctx := context.Background()
	for name, fx := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.assignees.Put(ctx, &escalation.AssigneeRef{
				ID: "u-1", Name: "Dana", Role: "compliance_manager", Email: "dana@example.com",
			}))

			got, err := fx.assignees.Get(ctx, "u-1")
			require.NoError(t, err)
			assert.Equal(t, "compliance_manager", got.Role)

			// Upsert updates contact details in place.
			require.NoError(t, fx.assignees.Put(ctx, &escalation.AssigneeRef{
				ID: "u-1", Name: "Dana", Role: "compliance_manager", Email: "dana@corp.example.com",
			}))
			got, err = fx.assignees.Get(ctx, "u-1")
			require.NoError(t, err)
			assert.Equal(t, "dana@corp.example.com", got.Email)

			all, err := fx.assignees.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			_, err = fx.assignees.Get(ctx, "u-missing")
			assert.True(t, store.IsNotFound(err))
		})
	}
}
