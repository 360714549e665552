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

// Package engine orchestrates escalation evaluation: it matches deadline
// events to chains, runs the evaluator, persists the resulting state and
// executes the side effects (audit entries, notifications) exactly once.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/metrics"
	"github.com/complianceops/escalation-engine/pkg/notify"
	"github.com/complianceops/escalation-engine/pkg/store"
)

// Exporter streams audit entries to external sinks. Export is best
// effort and decoupled from the trail itself.
type Exporter interface {
	Emit(ctx context.Context, entry *audit.Entry)
}

// Engine serializes all writes for one event behind a per-event lock, so
// concurrent evaluation, snooze and resolve calls for the same event
// never interleave. Different events proceed in parallel.
type Engine struct {
	log       *zap.SugaredLogger
	evaluator *escalation.Evaluator
	chains    store.ChainStore
	instances store.InstanceStore
	events    store.EventStore
	trail     audit.Trail
	exporter  Exporter
	notifier  *notify.Dispatcher
	loc       *time.Location

	locks sync.Map // event id -> *sync.Mutex

	// now is replaceable in tests.
	now func() time.Time

	parallelism int
}

// Config wires an Engine's collaborators.
type Config struct {
	Logger    *zap.SugaredLogger
	Chains    store.ChainStore
	Instances store.InstanceStore
	Events    store.EventStore
	Trail     audit.Trail
	Exporter  Exporter
	Notifier  *notify.Dispatcher

	// Location for calendar-day overdue math; nil means UTC.
	Location *time.Location

	// Parallelism bounds concurrent evaluations in EvaluateAll.
	Parallelism int
}

func New(cfg Config) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Engine{
		log:         cfg.Logger,
		evaluator:   escalation.NewEvaluator(loc),
		chains:      cfg.Chains,
		instances:   cfg.Instances,
		events:      cfg.Events,
		trail:       cfg.Trail,
		exporter:    cfg.Exporter,
		notifier:    cfg.Notifier,
		loc:         loc,
		now:         time.Now,
		parallelism: parallelism,
	}
}

func (e *Engine) lockFor(eventID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(eventID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// EvaluateEvent runs one evaluation for the event and executes its
// effects. It is idempotent: re-running with unchanged inputs is a no-op.
func (e *Engine) EvaluateEvent(ctx context.Context, eventID string) (*escalation.Instance, error) {
	mu := e.lockFor(eventID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	}()

	event, err := e.events.Get(ctx, eventID)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	prior, err := e.instances.GetByEvent(ctx, eventID)
	if err != nil && !store.IsNotFound(err) {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	chain, err := e.chainFor(ctx, event, prior)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	now := e.now()
	result, err := e.evaluator.Evaluate(now, *event, chain, prior)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrapf(err, "evaluation of event %s failed", eventID)
	}

	if !result.Changed {
		metrics.EvaluationsTotal.WithLabelValues("unchanged").Inc()
		return result.Instance, nil
	}

	if err := e.instances.Put(ctx, result.Instance); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrapf(err, "failed to persist instance for event %s", eventID)
	}

	e.appendEntries(ctx, result.Entries)
	e.recordTransitions(result.Entries)
	e.dispatchNotifications(*event, chain, result, now)

	metrics.EvaluationsTotal.WithLabelValues("changed").Inc()
	e.log.Infow("Escalation state updated",
		"event", eventID,
		"status", result.Instance.Status,
		"level", result.Instance.CurrentLevel,
		"auditEntries", len(result.Entries),
		"notifications", len(result.Notifications))
	return result.Instance, nil
}

// chainFor resolves the chain an evaluation should use. An in-flight
// instance stays pinned to the chain it started on, even if that chain
// was deactivated since; new escalations only consider active chains.
func (e *Engine) chainFor(ctx context.Context, event *escalation.DeadlineEvent, prior *escalation.Instance) (*escalation.ChainDefinition, error) {
	if prior != nil && prior.ChainID != "" {
		chain, err := e.chains.Get(ctx, prior.ChainID)
		if err != nil {
			if store.IsNotFound(err) {
				e.log.Warnw("Chain for in-flight instance no longer exists",
					"event", event.ID, "chain", prior.ChainID)
				return nil, nil
			}
			return nil, err
		}
		return chain, nil
	}

	active, err := e.chains.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return escalation.Match(*event, active), nil
}

// EvaluateAll runs an evaluation pass over every open deadline event,
// bounded by the configured parallelism. Per-event failures are logged
// and do not stop the pass.
func (e *Engine) EvaluateAll(ctx context.Context) error {
	events, err := e.events.ListOpen(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list open events")
	}
	metrics.EvaluationPassEvents.Observe(float64(len(events)))

	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := e.EvaluateEvent(ctx, id); err != nil {
				e.log.Errorw("Evaluation failed", "event", id, "error", err)
			}
		}(event.ID)
	}
	wg.Wait()

	e.log.Infow("Evaluation pass complete", "events", len(events))
	return ctx.Err()
}

// Snooze pauses auto-escalation for the event for the given number of
// hours. It requires an existing instance at a level state and a
// non-empty reason.
func (e *Engine) Snooze(ctx context.Context, eventID, byUser, byUserName string, hours int, reason string) (*escalation.Instance, error) {
	mu := e.lockFor(eventID)
	mu.Lock()
	defer mu.Unlock()

	prior, err := e.instances.GetByEvent(ctx, eventID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &escalation.PreconditionError{Op: "snooze", Reason: "no escalation instance exists for this event"}
		}
		return nil, err
	}

	next, entry, err := escalation.SnoozeInstance(e.now(), prior, byUser, byUserName, hours, reason)
	if err != nil {
		return nil, err
	}

	if err := e.instances.Put(ctx, next); err != nil {
		return nil, errors.Wrapf(err, "failed to persist snooze for event %s", eventID)
	}
	e.appendEntries(ctx, []audit.Entry{*entry})
	metrics.SnoozesStarted.Inc()

	e.log.Infow("Escalation snoozed",
		"event", eventID,
		"by", byUser,
		"hours", hours,
		"level", next.CurrentLevel)
	return next, nil
}

// CancelSnooze ends an active snooze early; the instance returns to the
// level it held when snoozed.
func (e *Engine) CancelSnooze(ctx context.Context, eventID, byUser, byUserName string) (*escalation.Instance, error) {
	mu := e.lockFor(eventID)
	mu.Lock()
	defer mu.Unlock()

	prior, err := e.instances.GetByEvent(ctx, eventID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &escalation.PreconditionError{Op: "cancel snooze", Reason: "no escalation instance exists for this event"}
		}
		return nil, err
	}

	next, entry, err := escalation.CancelSnooze(e.now(), prior, byUser, byUserName)
	if err != nil {
		return nil, err
	}

	if err := e.instances.Put(ctx, next); err != nil {
		return nil, errors.Wrapf(err, "failed to persist snooze cancellation for event %s", eventID)
	}
	e.appendEntries(ctx, []audit.Entry{*entry})
	metrics.SnoozesCancelled.Inc()

	e.log.Infow("Snooze cancelled", "event", eventID, "by", byUser)
	return next, nil
}

// Resolve closes the escalation for the event. Resolved is terminal.
func (e *Engine) Resolve(ctx context.Context, eventID, byUser, byUserName, notes string) (*escalation.Instance, error) {
	mu := e.lockFor(eventID)
	mu.Lock()
	defer mu.Unlock()

	prior, err := e.instances.GetByEvent(ctx, eventID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &escalation.PreconditionError{Op: "resolve", Reason: "no escalation instance exists for this event"}
		}
		return nil, err
	}

	next, entry, err := escalation.ResolveInstance(e.now(), prior, byUser, byUserName, notes)
	if err != nil {
		return nil, err
	}

	if err := e.instances.Put(ctx, next); err != nil {
		return nil, errors.Wrapf(err, "failed to persist resolution for event %s", eventID)
	}
	e.appendEntries(ctx, []audit.Entry{*entry})
	metrics.InstancesResolved.WithLabelValues(string(prior.Status)).Inc()

	e.log.Infow("Escalation resolved", "event", eventID, "by", byUser)
	return next, nil
}

// SaveChain validates and persists a chain definition, stamping ids and
// timestamps for new chains.
func (e *Engine) SaveChain(ctx context.Context, chain *escalation.ChainDefinition, byUser string) (*escalation.ChainDefinition, error) {
	if chain == nil {
		return nil, errors.New("chain required")
	}
	if err := chain.Validate(); err != nil {
		metrics.ChainSaves.WithLabelValues("invalid").Inc()
		return nil, err
	}

	now := e.now()
	action := audit.ActionChainUpdated
	if chain.ID == "" {
		chain.ID = uuid.New().String()
		chain.CreatedAt = now
		chain.CreatedBy = byUser
		action = audit.ActionChainCreated
	} else if _, err := e.chains.Get(ctx, chain.ID); store.IsNotFound(err) {
		chain.CreatedAt = now
		chain.CreatedBy = byUser
		action = audit.ActionChainCreated
	}
	chain.UpdatedAt = now

	if err := e.chains.Save(ctx, chain); err != nil {
		metrics.ChainSaves.WithLabelValues("error").Inc()
		return nil, errors.Wrapf(err, "failed to save chain %s", chain.ID)
	}
	metrics.ChainSaves.WithLabelValues("ok").Inc()

	e.appendEntries(ctx, []audit.Entry{{
		EventID:     chainAuditKey(chain.ID),
		Action:      action,
		PerformedBy: byUser,
		Timestamp:   now,
		Details:     fmt.Sprintf("chain %q with %d steps", chain.Name, len(chain.Steps)),
	}})

	e.log.Infow("Chain saved", "chain", chain.ID, "name", chain.Name, "action", action)
	return chain, nil
}

// DeactivateChain soft-deletes a chain: it stops matching new events but
// stays resolvable for in-flight instances and the audit history.
func (e *Engine) DeactivateChain(ctx context.Context, id, byUser string) error {
	chain, err := e.chains.Get(ctx, id)
	if err != nil {
		return err
	}
	if !chain.IsActive {
		return nil
	}

	now := e.now()
	chain.IsActive = false
	chain.UpdatedAt = now
	if err := e.chains.Save(ctx, chain); err != nil {
		return errors.Wrapf(err, "failed to deactivate chain %s", id)
	}

	e.appendEntries(ctx, []audit.Entry{{
		EventID:     chainAuditKey(id),
		Action:      audit.ActionChainDeactivated,
		PerformedBy: byUser,
		Timestamp:   now,
		Details:     fmt.Sprintf("chain %q deactivated", chain.Name),
	}})

	e.log.Infow("Chain deactivated", "chain", id, "by", byUser)
	return nil
}

// AuditLog returns the full audit history for an event in trail order.
func (e *Engine) AuditLog(ctx context.Context, eventID string) ([]audit.Entry, error) {
	return e.trail.Query(ctx, eventID)
}

// chainAuditKey namespaces chain lifecycle entries in the event-keyed
// trail so they never collide with deadline event ids.
func chainAuditKey(chainID string) string {
	return "chain:" + chainID
}

// appendEntries writes entries to the trail and streams them to the
// exporter. Trail append failures are logged, never fatal: losing an
// export is preferable to failing the state transition that already
// happened.
func (e *Engine) appendEntries(ctx context.Context, entries []audit.Entry) {
	for i := range entries {
		entry := entries[i]
		if err := e.trail.Append(ctx, &entry); err != nil {
			e.log.Errorw("Failed to append audit entry",
				"event", entry.EventID,
				"action", entry.Action,
				"error", err)
			continue
		}
		metrics.AuditEntriesAppended.Inc()
		if e.exporter != nil {
			e.exporter.Emit(ctx, &entry)
		}
	}
}

func (e *Engine) recordTransitions(entries []audit.Entry) {
	for _, entry := range entries {
		if entry.Action == audit.ActionEscalationStarted || entry.Action == audit.ActionLevelIncreased {
			if entry.NewLevel != nil {
				metrics.LevelTransitions.WithLabelValues(fmt.Sprintf("%d", *entry.NewLevel)).Inc()
			}
		}
		if entry.Action == audit.ActionSnoozeExpired {
			metrics.SnoozesExpired.Inc()
		}
	}
}

// dispatchNotifications hands the evaluator's notifications to the
// delivery channels. Previous-assignee names are pulled from the
// matching transition entries so level-increase mails can mention them.
func (e *Engine) dispatchNotifications(event escalation.DeadlineEvent, chain *escalation.ChainDefinition, result escalation.Result, now time.Time) {
	if e.notifier == nil || len(result.Notifications) == 0 {
		return
	}

	prevNames := make(map[int]string)
	for _, entry := range result.Entries {
		if entry.NewLevel != nil && entry.PreviousAssignee != nil {
			prevNames[*entry.NewLevel] = entry.PreviousAssignee.Name
		}
	}

	chainName := ""
	if chain != nil {
		chainName = chain.Name
	}
	days := escalation.DaysOverdue(now, event.DueDate, e.loc)

	for _, n := range result.Notifications {
		e.notifier.Dispatch(notify.Message{
			Event:                event,
			ChainName:            chainName,
			Level:                n.Level,
			DaysOverdue:          days,
			Assignees:            n.Assignees,
			PreviousAssigneeName: prevNames[n.Level],
			Text:                 n.Message,
		}, n.Channels)
	}
}
