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
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/apiresponses"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/store"
)

// InstanceAPIController provides REST API endpoints for escalation instances.
// Instances are addressed by the event they belong to, since there is at
// most one instance per event.
type InstanceAPIController struct {
	log       *zap.SugaredLogger
	engine    *Engine
	instances store.InstanceStore
}

// NewInstanceAPIController creates a new instance API controller
func NewInstanceAPIController(log *zap.SugaredLogger, engine *Engine, instances store.InstanceStore) *InstanceAPIController {
	return &InstanceAPIController{
		log:       log,
		engine:    engine,
		instances: instances,
	}
}

// BasePath returns the base path for instance routes
func (c *InstanceAPIController) BasePath() string {
	return "instances"
}

// Handlers returns middleware to apply to all routes
func (c *InstanceAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the instance routes
func (c *InstanceAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("", instrumentedHandler("handleListInstances", c.handleListInstances))
	rg.GET(":eventID", instrumentedHandler("handleGetInstance", c.handleGetInstance))
	rg.POST(":eventID/snooze", instrumentedHandler("handleSnooze", c.handleSnooze))
	rg.POST(":eventID/cancel-snooze", instrumentedHandler("handleCancelSnooze", c.handleCancelSnooze))
	rg.POST(":eventID/resolve", instrumentedHandler("handleResolve", c.handleResolve))
	return nil
}

// SnoozeRequest is the payload for snoozing an instance
type SnoozeRequest struct {
	Hours  int    `json:"hours"`
	Reason string `json:"reason"`
}

// ResolveRequest is the payload for resolving an instance
type ResolveRequest struct {
	Notes string `json:"notes"`
}

// handleListInstances returns all escalation instances
func (c *InstanceAPIController) handleListInstances(ctx *gin.Context) {
	instances, err := c.instances.List(ctx)
	if err != nil {
		apiresponses.RespondInternalError(ctx, "list instances", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, instances)
}

// handleGetInstance returns the instance for an event
func (c *InstanceAPIController) handleGetInstance(ctx *gin.Context) {
	eventID := ctx.Param("eventID")
	inst, err := c.instances.GetByEvent(ctx, eventID)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "instance for event", eventID)
			return
		}
		apiresponses.RespondInternalError(ctx, "get instance", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, inst)
}

// handleSnooze pauses escalation for an event for a number of hours
func (c *InstanceAPIController) handleSnooze(ctx *gin.Context) {
	eventID := ctx.Param("eventID")
	var req SnoozeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid snooze payload: "+err.Error())
		return
	}
	user, userName := requestUser(ctx)

	inst, err := c.engine.Snooze(ctx, eventID, user, userName, req.Hours, req.Reason)
	if err != nil {
		c.respondInstanceError(ctx, "snooze instance", eventID, err)
		return
	}
	apiresponses.RespondOK(ctx, inst)
}

// handleCancelSnooze cancels an active snooze and resumes escalation
func (c *InstanceAPIController) handleCancelSnooze(ctx *gin.Context) {
	eventID := ctx.Param("eventID")
	user, userName := requestUser(ctx)

	inst, err := c.engine.CancelSnooze(ctx, eventID, user, userName)
	if err != nil {
		c.respondInstanceError(ctx, "cancel snooze", eventID, err)
		return
	}
	apiresponses.RespondOK(ctx, inst)
}

// handleResolve marks an instance resolved. Resolution is terminal.
func (c *InstanceAPIController) handleResolve(ctx *gin.Context) {
	eventID := ctx.Param("eventID")
	var req ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid resolve payload: "+err.Error())
		return
	}
	user, userName := requestUser(ctx)

	inst, err := c.engine.Resolve(ctx, eventID, user, userName, req.Notes)
	if err != nil {
		c.respondInstanceError(ctx, "resolve instance", eventID, err)
		return
	}
	apiresponses.RespondOK(ctx, inst)
}

func (c *InstanceAPIController) respondInstanceError(ctx *gin.Context, operation, eventID string, err error) {
	var pErr *escalation.PreconditionError
	if errors.As(err, &pErr) {
		apiresponses.RespondConflict(ctx, pErr.Error())
		return
	}
	if store.IsNotFound(err) {
		apiresponses.RespondNotFound(ctx, "instance for event", eventID)
		return
	}
	apiresponses.RespondInternalError(ctx, operation, err, c.log)
}
