package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/notify"
	"github.com/complianceops/escalation-engine/pkg/store"
)

type capturedMessage struct {
	msg notify.Message
}

type captureSender struct {
	mu      sync.Mutex
	channel escalation.Channel
	sent    []capturedMessage
}

func (c *captureSender) Channel() escalation.Channel { return c.channel }

func (c *captureSender) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedMessage{msg: msg})
	return nil
}

func (c *captureSender) messages() []capturedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// forLevel returns the captured message for the given level. Dispatch
// delivers each message on its own goroutine, so capture order is
// unspecified and tests must select by level instead of position.
func (c *captureSender) forLevel(t *testing.T, level int) notify.Message {
	t.Helper()
	for _, m := range c.messages() {
		if m.msg.Level == level {
			return m.msg
		}
	}
	t.Fatalf("no captured message for level %d", level)
	return notify.Message{}
}

type testHarness struct {
	engine    *Engine
	chains    *store.MemoryChainStore
	instances *store.MemoryInstanceStore
	events    *store.MemoryEventStore
	assignees *store.MemoryAssigneeDirectory
	trail     *audit.MemoryTrail
	emails    *captureSender
	clock     time.Time
}

func (h *testHarness) setNow(t time.Time) {
	h.clock = t
	h.engine.now = func() time.Time { return h.clock }
}

func (h *testHarness) advanceDays(days int) {
	h.setNow(h.clock.AddDate(0, 0, days))
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		chains:    store.NewMemoryChainStore(),
		instances: store.NewMemoryInstanceStore(),
		events:    store.NewMemoryEventStore(),
		assignees: store.NewMemoryAssigneeDirectory(),
		trail:     audit.NewMemoryTrail(),
		emails:    &captureSender{channel: escalation.ChannelEmail},
	}
	h.engine = New(Config{
		Logger:    zap.NewNop().Sugar(),
		Chains:    h.chains,
		Instances: h.instances,
		Events:    h.events,
		Trail:     h.trail,
		Notifier:  notify.NewDispatcher(zap.NewNop().Sugar(), h.emails),
	})
	h.setNow(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC))
	return h
}

func permitChain() *escalation.ChainDefinition {
	return &escalation.ChainDefinition{
		ID:                  "chain-permits",
		Name:                "Permit renewals",
		IsActive:            true,
		AppliesToEventTypes: []escalation.EventType{"permit_renewal"},
		Steps: []escalation.EscalationStep{
			{Level: 1, TriggerDaysOverdue: 0,
				Assignees: []escalation.AssigneeRef{{ID: "u-officer", Name: "Dana", Email: "dana@example.com"}},
				Channels:  []escalation.Channel{escalation.ChannelEmail}},
			{Level: 2, TriggerDaysOverdue: 3,
				Assignees: []escalation.AssigneeRef{{ID: "u-manager", Name: "Femi", Email: "femi@example.com"}},
				Channels:  []escalation.Channel{escalation.ChannelEmail}},
			{Level: 3, TriggerDaysOverdue: 7,
				Assignees: []escalation.AssigneeRef{{ID: "u-director", Name: "Ines", Email: "ines@example.com"}},
				Channels:  []escalation.Channel{escalation.ChannelEmail}},
			{Level: 4, TriggerDaysOverdue: 14,
				Assignees:            []escalation.AssigneeRef{{ID: "u-vp", Name: "Rory", Email: "rory@example.com"}},
				Channels:             []escalation.Channel{escalation.ChannelEmail},
				NotifyPreviousLevels: true},
		},
	}
}

// seed stores the chain and an open permit event due the given number of
// days before the harness clock.
func (h *testHarness) seed(t *testing.T, daysOverdue int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.chains.Save(ctx, permitChain()))
	require.NoError(t, h.events.Put(ctx, &escalation.DeadlineEvent{
		ID:        "evt-permit",
		EventType: "permit_renewal",
		DueDate:   h.clock.AddDate(0, 0, -daysOverdue),
		Status:    "open",
		Title:     "Operating permit renewal",
	}))
}

func actionsOf(entries []audit.Entry) []audit.Action {
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestEvaluateCreatesInstanceAtCorrectLevel(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	require.NotNil(t, inst)

	// 10 days overdue crosses the 0, 3 and 7 day thresholds.
	assert.Equal(t, escalation.StatusLevel3, inst.Status)
	assert.Equal(t, 3, inst.CurrentLevel)
	assert.Equal(t, "esc-evt-permit", inst.ID)
	require.NotNil(t, inst.CurrentAssignee)
	assert.Equal(t, "u-director", inst.CurrentAssignee.ID)

	entries, err := h.engine.AuditLog(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, []audit.Action{
		audit.ActionEscalationStarted,
		audit.ActionNotificationSent,
		audit.ActionLevelIncreased,
		audit.ActionNotificationSent,
		audit.ActionLevelIncreased,
		audit.ActionNotificationSent,
	}, actionsOf(entries))

	h.engine.notifier.Wait()
	require.Len(t, h.emails.messages(), 3)
	for level := 1; level <= 3; level++ {
		msg := h.emails.forLevel(t, level)
		assert.Equal(t, "Permit renewals", msg.ChainName)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	before := h.trail.Len()

	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel3, inst.Status)
	assert.Equal(t, before, h.trail.Len(), "re-evaluation must not append entries")
}

func TestEvaluateAdvancesWithTime(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)

	h.advanceDays(4) // 14 days overdue, level 4 threshold reached exactly
	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel4, inst.Status)
	assert.Equal(t, "u-vp", inst.CurrentAssignee.ID)

	// Level 4 notifies previous levels too.
	h.engine.notifier.Wait()
	msg := h.emails.forLevel(t, 4)
	ids := make([]string, 0, len(msg.Assignees))
	for _, a := range msg.Assignees {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"u-vp", "u-director", "u-manager", "u-officer"}, ids)
}

func TestEvaluateNotOverdueCreatesNothing(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 0) // due today

	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Nil(t, inst)

	_, err = h.instances.GetByEvent(ctx, "evt-permit")
	assert.True(t, store.IsNotFound(err))
	assert.Zero(t, h.trail.Len())
}

func TestEvaluateNoMatchingChain(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, h.events.Put(ctx, &escalation.DeadlineEvent{
		ID:        "evt-other",
		EventType: "waste_manifest",
		DueDate:   h.clock.AddDate(0, 0, -5),
		Status:    "open",
	}))

	inst, err := h.engine.EvaluateEvent(ctx, "evt-other")
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestSnoozePausesEscalation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)

	inst, err := h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "vendor confirmed delivery Friday")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusSnoozed, inst.Status)
	assert.Equal(t, 3, inst.CurrentLevel)

	// 24h later, still inside the window: nothing happens.
	h.setNow(h.clock.Add(24 * time.Hour))
	inst, err = h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusSnoozed, inst.Status)

	entries, err := h.engine.AuditLog(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionSnoozed, entries[len(entries)-1].Action)
}

func TestSnoozeExpiryResumesAtPausedLevel(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "vendor confirmed delivery Friday")
	require.NoError(t, err)

	// 49 hours later the snooze has lapsed; 12 days overdue is still below
	// the level 4 threshold, so only the expiry is recorded.
	h.setNow(h.clock.Add(49 * time.Hour))
	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel3, inst.Status)
	assert.Equal(t, 3, inst.CurrentLevel)

	entries, err := h.engine.AuditLog(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionSnoozeExpired, entries[len(entries)-1].Action)
	assert.Nil(t, inst.ActiveSnooze())
}

func TestSnoozeExpiryThenFurtherEscalation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "vendor confirmed delivery Friday")
	require.NoError(t, err)

	// Five days later the snooze has lapsed and 15 days overdue crosses
	// the level 4 threshold in the same evaluation.
	h.advanceDays(5)
	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel4, inst.Status)

	entries, err := h.engine.AuditLog(ctx, "evt-permit")
	require.NoError(t, err)
	acts := actionsOf(entries)
	// Expiry bookkeeping precedes the resumed transition.
	assert.Equal(t, audit.ActionSnoozeExpired, acts[len(acts)-3])
	assert.Equal(t, audit.ActionLevelIncreased, acts[len(acts)-2])
	assert.Equal(t, audit.ActionNotificationSent, acts[len(acts)-1])
}

func TestSnoozePreconditions(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	// No instance yet.
	_, err := h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "reason")
	var pre *escalation.PreconditionError
	require.ErrorAs(t, err, &pre)

	_, err = h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)

	// Empty reason.
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "   ")
	require.ErrorAs(t, err, &pre)

	// Non-positive duration.
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 0, "reason")
	require.ErrorAs(t, err, &pre)

	// Double snooze.
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "reason")
	require.NoError(t, err)
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 24, "again")
	require.ErrorAs(t, err, &pre)
}

func TestCancelSnooze(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "vendor confirmed delivery Friday")
	require.NoError(t, err)

	inst, err := h.engine.CancelSnooze(ctx, "evt-permit", "u-manager", "Femi")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel3, inst.Status)
	assert.Nil(t, inst.ActiveSnooze())

	entries, err := h.engine.AuditLog(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionSnoozeCancelled, entries[len(entries)-1].Action)
}

func TestResolveIsTerminal(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)

	inst, err := h.engine.Resolve(ctx, "evt-permit", "u-officer", "Dana", "permit renewed")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusResolved, inst.Status)
	require.NotNil(t, inst.ResolvedAt)

	// Even far beyond the level 4 threshold, a resolved instance stays put.
	h.advanceDays(30)
	inst, err = h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusResolved, inst.Status)

	// Resolving again is rejected.
	var pre *escalation.PreconditionError
	_, err = h.engine.Resolve(ctx, "evt-permit", "u-officer", "Dana", "")
	require.ErrorAs(t, err, &pre)
}

func TestResolveWhileSnoozed(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	_, err = h.engine.Snooze(ctx, "evt-permit", "u-officer", "Dana", 48, "vendor confirmed delivery Friday")
	require.NoError(t, err)

	inst, err := h.engine.Resolve(ctx, "evt-permit", "u-officer", "Dana", "")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusResolved, inst.Status)
	assert.Nil(t, inst.ActiveSnooze())
}

func TestDeactivatedChainStopsNewEscalations(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	require.NoError(t, h.engine.DeactivateChain(ctx, "chain-permits", "u-admin"))

	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Nil(t, inst)

	entries, err := h.engine.AuditLog(ctx, "chain:chain-permits")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionChainDeactivated, entries[0].Action)
}

func TestInFlightInstanceSurvivesChainDeactivation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seed(t, 10)

	_, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	require.NoError(t, h.engine.DeactivateChain(ctx, "chain-permits", "u-admin"))

	// The instance stays pinned to its chain and keeps escalating.
	h.advanceDays(4)
	inst, err := h.engine.EvaluateEvent(ctx, "evt-permit")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel4, inst.Status)
}

func TestSaveChainValidatesAndAudits(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	bad := permitChain()
	bad.Steps[1].TriggerDaysOverdue = 0 // not strictly increasing
	_, err := h.engine.SaveChain(ctx, bad, "u-admin")
	var verr *escalation.ValidationError
	require.ErrorAs(t, err, &verr)

	good := permitChain()
	good.ID = ""
	saved, err := h.engine.SaveChain(ctx, good, "u-admin")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "u-admin", saved.CreatedBy)
	assert.False(t, saved.CreatedAt.IsZero())

	entries, err := h.engine.AuditLog(ctx, "chain:"+saved.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionChainCreated, entries[0].Action)

	// Saving again with the same id is an update.
	saved.Name = "Permit renewals v2"
	_, err = h.engine.SaveChain(ctx, saved, "u-admin")
	require.NoError(t, err)
	entries, err = h.engine.AuditLog(ctx, "chain:"+saved.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionChainUpdated, entries[1].Action)
}

func TestEvaluateAll(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, h.chains.Save(ctx, permitChain()))

	for _, e := range []*escalation.DeadlineEvent{
		{ID: "evt-a", EventType: "permit_renewal", DueDate: h.clock.AddDate(0, 0, -5), Status: "open"},
		{ID: "evt-b", EventType: "permit_renewal", DueDate: h.clock.AddDate(0, 0, -1), Status: "open"},
		{ID: "evt-c", EventType: "permit_renewal", DueDate: h.clock.AddDate(0, 0, -20), Status: "completed"},
	} {
		require.NoError(t, h.events.Put(ctx, e))
	}

	require.NoError(t, h.engine.EvaluateAll(ctx))

	a, err := h.instances.GetByEvent(ctx, "evt-a")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel2, a.Status)

	b, err := h.instances.GetByEvent(ctx, "evt-b")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusLevel1, b.Status)

	// Completed events are not evaluated.
	_, err = h.instances.GetByEvent(ctx, "evt-c")
	assert.True(t, store.IsNotFound(err))
}

func TestFacilityScopedChainMatch(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	scoped := permitChain()
	scoped.ID = "chain-north"
	scoped.AppliesToFacilityIDs = []string{"fac-north"}
	require.NoError(t, h.chains.Save(ctx, scoped))

	require.NoError(t, h.events.Put(ctx, &escalation.DeadlineEvent{
		ID: "evt-south", EventType: "permit_renewal", FacilityID: "fac-south",
		DueDate: h.clock.AddDate(0, 0, -5), Status: "open",
	}))
	require.NoError(t, h.events.Put(ctx, &escalation.DeadlineEvent{
		ID: "evt-north", EventType: "permit_renewal", FacilityID: "fac-north",
		DueDate: h.clock.AddDate(0, 0, -5), Status: "open",
	}))

	inst, err := h.engine.EvaluateEvent(ctx, "evt-south")
	require.NoError(t, err)
	assert.Nil(t, inst, "facility outside the chain scope must not escalate")

	inst, err = h.engine.EvaluateEvent(ctx, "evt-north")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "chain-north", inst.ChainID)
}
