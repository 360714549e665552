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

package engine

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/apiresponses"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/ical"
	"github.com/complianceops/escalation-engine/pkg/store"
)

// EventAPIController provides REST API endpoints for deadline events
type EventAPIController struct {
	log    *zap.SugaredLogger
	engine *Engine
	events store.EventStore
	chains store.ChainStore
}

// NewEventAPIController creates a new event API controller
func NewEventAPIController(log *zap.SugaredLogger, engine *Engine, events store.EventStore, chains store.ChainStore) *EventAPIController {
	return &EventAPIController{
		log:    log,
		engine: engine,
		events: events,
		chains: chains,
	}
}

// BasePath returns the base path for event routes
func (c *EventAPIController) BasePath() string {
	return "events"
}

// Handlers returns middleware to apply to all routes
func (c *EventAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the event routes
func (c *EventAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("", instrumentedHandler("handleListEvents", c.handleListEvents))
	rg.GET(":id", instrumentedHandler("handleGetEvent", c.handleGetEvent))
	rg.POST("", instrumentedHandler("handleCreateEvent", c.handleCreateEvent))
	rg.PUT(":id", instrumentedHandler("handleUpsertEvent", c.handleUpsertEvent))
	rg.POST(":id/evaluate", instrumentedHandler("handleEvaluateEvent", c.handleEvaluateEvent))
	rg.GET(":id/calendar", instrumentedHandler("handleEventCalendar", c.handleEventCalendar))
	return nil
}

// handleListEvents returns deadline events. Pass ?open=true to restrict
// the list to events that are still open.
func (c *EventAPIController) handleListEvents(ctx *gin.Context) {
	var (
		events []*escalation.DeadlineEvent
		err    error
	)
	if ctx.Query("open") == "true" {
		events, err = c.events.ListOpen(ctx)
	} else {
		events, err = c.events.List(ctx)
	}
	if err != nil {
		apiresponses.RespondInternalError(ctx, "list events", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, events)
}

// handleGetEvent returns a single deadline event by id
func (c *EventAPIController) handleGetEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	event, err := c.events.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "event", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "get event", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, event)
}

// handleCreateEvent registers a new deadline event
func (c *EventAPIController) handleCreateEvent(ctx *gin.Context) {
	var event escalation.DeadlineEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid event payload: "+err.Error())
		return
	}
	if event.ID == "" {
		apiresponses.RespondBadRequest(ctx, "event id must not be empty")
		return
	}
	if err := c.events.Put(ctx, &event); err != nil {
		apiresponses.RespondInternalError(ctx, "save event", err, c.log)
		return
	}
	apiresponses.RespondCreated(ctx, &event)
}

// handleUpsertEvent creates or replaces a deadline event under the given id
func (c *EventAPIController) handleUpsertEvent(ctx *gin.Context) {
	var event escalation.DeadlineEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid event payload: "+err.Error())
		return
	}
	event.ID = ctx.Param("id")
	if err := c.events.Put(ctx, &event); err != nil {
		apiresponses.RespondInternalError(ctx, "save event", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, &event)
}

// handleEvaluateEvent runs a single on-demand evaluation for an event,
// outside the scheduled pass. Returns the resulting instance, or 204 if
// the event has no instance and is not overdue.
func (c *EventAPIController) handleEvaluateEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	inst, err := c.engine.EvaluateEvent(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "event", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "evaluate event", err, c.log)
		return
	}
	if inst == nil {
		apiresponses.RespondNoContent(ctx)
		return
	}
	apiresponses.RespondOK(ctx, inst)
}

// handleEventCalendar renders the event's deadline as an iCalendar feed,
// suitable for subscribing a compliance calendar to the due date.
func (c *EventAPIController) handleEventCalendar(ctx *gin.Context) {
	id := ctx.Param("id")
	event, err := c.events.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "event", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "get event", err, c.log)
		return
	}

	chain := c.chainForCalendar(ctx, event)
	body := ical.Calendar(c.engine.now(), []ical.Event{ical.FromDeadline(*event, chain)})

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", event.ID+".ics"))
	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// chainForCalendar resolves the chain to annotate the calendar entry with.
// Resolution failures only degrade the annotation, so they are logged and
// swallowed.
func (c *EventAPIController) chainForCalendar(ctx *gin.Context, event *escalation.DeadlineEvent) *escalation.ChainDefinition {
	active, err := c.chains.ListActive(ctx)
	if err != nil {
		c.log.Warnw("Failed to list chains for calendar annotation", "event", event.ID, "error", err)
		return nil
	}
	return escalation.Match(*event, active)
}
