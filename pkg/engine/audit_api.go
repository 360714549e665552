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
)

// AuditAPIController provides read-only REST API endpoints for the audit trail
type AuditAPIController struct {
	log    *zap.SugaredLogger
	engine *Engine
}

// NewAuditAPIController creates a new audit API controller
func NewAuditAPIController(log *zap.SugaredLogger, engine *Engine) *AuditAPIController {
	return &AuditAPIController{
		log:    log,
		engine: engine,
	}
}

// BasePath returns the base path for audit routes
func (c *AuditAPIController) BasePath() string {
	return "audit"
}

// Handlers returns middleware to apply to all routes
func (c *AuditAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the audit routes
func (c *AuditAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("events/:eventID", instrumentedHandler("handleEventAudit", c.handleEventAudit))
	rg.GET("chains/:chainID", instrumentedHandler("handleChainAudit", c.handleChainAudit))
	return nil
}

// handleEventAudit returns the audit trail for an event in append order.
// An event with no history yields an empty list, not a 404: the trail is
// the source of truth and absence of entries is a valid answer.
func (c *AuditAPIController) handleEventAudit(ctx *gin.Context) {
	entries, err := c.engine.AuditLog(ctx, ctx.Param("eventID"))
	if err != nil {
		apiresponses.RespondInternalError(ctx, "query audit trail", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, entries)
}

// handleChainAudit returns the administrative audit trail for a chain
// (create, update, deactivate).
func (c *AuditAPIController) handleChainAudit(ctx *gin.Context) {
	entries, err := c.engine.AuditLog(ctx, chainAuditKey(ctx.Param("chainID")))
	if err != nil {
		apiresponses.RespondInternalError(ctx, "query audit trail", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, entries)
}
