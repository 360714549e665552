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
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/apiresponses"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/store"
)

// AssigneeAPIController provides REST API endpoints for the assignee directory
type AssigneeAPIController struct {
	log       *zap.SugaredLogger
	assignees store.AssigneeDirectory
}

// NewAssigneeAPIController creates a new assignee API controller
func NewAssigneeAPIController(log *zap.SugaredLogger, assignees store.AssigneeDirectory) *AssigneeAPIController {
	return &AssigneeAPIController{
		log:       log,
		assignees: assignees,
	}
}

// BasePath returns the base path for assignee routes
func (c *AssigneeAPIController) BasePath() string {
	return "assignees"
}

// Handlers returns middleware to apply to all routes
func (c *AssigneeAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the assignee routes
func (c *AssigneeAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("", instrumentedHandler("handleListAssignees", c.handleListAssignees))
	rg.GET(":id", instrumentedHandler("handleGetAssignee", c.handleGetAssignee))
	rg.POST("", instrumentedHandler("handleCreateAssignee", c.handleCreateAssignee))
	rg.PUT(":id", instrumentedHandler("handleUpsertAssignee", c.handleUpsertAssignee))
	return nil
}

func (c *AssigneeAPIController) handleListAssignees(ctx *gin.Context) {
	assignees, err := c.assignees.List(ctx)
	if err != nil {
		apiresponses.RespondInternalError(ctx, "list assignees", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, assignees)
}

func (c *AssigneeAPIController) handleGetAssignee(ctx *gin.Context) {
	id := ctx.Param("id")
	assignee, err := c.assignees.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "assignee", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "get assignee", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, assignee)
}

func (c *AssigneeAPIController) handleCreateAssignee(ctx *gin.Context) {
	var assignee escalation.AssigneeRef
	if err := ctx.ShouldBindJSON(&assignee); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid assignee payload: "+err.Error())
		return
	}
	if assignee.ID == "" {
		apiresponses.RespondBadRequest(ctx, "assignee id must not be empty")
		return
	}
	if err := c.assignees.Put(ctx, &assignee); err != nil {
		apiresponses.RespondInternalError(ctx, "save assignee", err, c.log)
		return
	}
	apiresponses.RespondCreated(ctx, &assignee)
}

func (c *AssigneeAPIController) handleUpsertAssignee(ctx *gin.Context) {
	var assignee escalation.AssigneeRef
	if err := ctx.ShouldBindJSON(&assignee); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid assignee payload: "+err.Error())
		return
	}
	assignee.ID = ctx.Param("id")
	if err := c.assignees.Put(ctx, &assignee); err != nil {
		apiresponses.RespondInternalError(ctx, "save assignee", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, &assignee)
}
