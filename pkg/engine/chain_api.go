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
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/apiresponses"
	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/store"
)

// ChainAPIController provides REST API endpoints for escalation chain administration
type ChainAPIController struct {
	log    *zap.SugaredLogger
	engine *Engine
	chains store.ChainStore
}

// NewChainAPIController creates a new chain API controller
func NewChainAPIController(log *zap.SugaredLogger, engine *Engine, chains store.ChainStore) *ChainAPIController {
	return &ChainAPIController{
		log:    log,
		engine: engine,
		chains: chains,
	}
}

// BasePath returns the base path for chain routes
func (c *ChainAPIController) BasePath() string {
	return "chains"
}

// Handlers returns middleware to apply to all routes
func (c *ChainAPIController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register registers the chain routes
func (c *ChainAPIController) Register(rg *gin.RouterGroup) error {
	rg.GET("", instrumentedHandler("handleListChains", c.handleListChains))
	rg.GET(":id", instrumentedHandler("handleGetChain", c.handleGetChain))
	rg.POST("", instrumentedHandler("handleCreateChain", c.handleCreateChain))
	rg.PUT(":id", instrumentedHandler("handleUpdateChain", c.handleUpdateChain))
	rg.DELETE(":id", instrumentedHandler("handleDeactivateChain", c.handleDeactivateChain))
	return nil
}

// handleListChains returns all chain definitions in definition order.
// Pass ?active=true to restrict the list to active chains.
func (c *ChainAPIController) handleListChains(ctx *gin.Context) {
	var (
		chains []*escalation.ChainDefinition
		err    error
	)
	if ctx.Query("active") == "true" {
		chains, err = c.chains.ListActive(ctx)
	} else {
		chains, err = c.chains.List(ctx)
	}
	if err != nil {
		apiresponses.RespondInternalError(ctx, "list chains", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, chains)
}

// handleGetChain returns a single chain definition by id
func (c *ChainAPIController) handleGetChain(ctx *gin.Context) {
	id := ctx.Param("id")
	chain, err := c.chains.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "chain", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "get chain", err, c.log)
		return
	}
	apiresponses.RespondOK(ctx, chain)
}

// handleCreateChain validates and persists a new chain definition
func (c *ChainAPIController) handleCreateChain(ctx *gin.Context) {
	var chain escalation.ChainDefinition
	if err := ctx.ShouldBindJSON(&chain); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid chain payload: "+err.Error())
		return
	}
	user, _ := requestUser(ctx)

	saved, err := c.engine.SaveChain(ctx, &chain, user)
	if err != nil {
		c.respondSaveError(ctx, err)
		return
	}
	apiresponses.RespondCreated(ctx, saved)
}

// handleUpdateChain validates and persists an existing chain definition
func (c *ChainAPIController) handleUpdateChain(ctx *gin.Context) {
	var chain escalation.ChainDefinition
	if err := ctx.ShouldBindJSON(&chain); err != nil {
		apiresponses.RespondBadRequest(ctx, "invalid chain payload: "+err.Error())
		return
	}
	chain.ID = ctx.Param("id")
	user, _ := requestUser(ctx)

	saved, err := c.engine.SaveChain(ctx, &chain, user)
	if err != nil {
		c.respondSaveError(ctx, err)
		return
	}
	apiresponses.RespondOK(ctx, saved)
}

// handleDeactivateChain deactivates a chain. In-flight instances pinned to
// the chain keep escalating; only new matches stop.
func (c *ChainAPIController) handleDeactivateChain(ctx *gin.Context) {
	id := ctx.Param("id")
	user, _ := requestUser(ctx)

	if err := c.engine.DeactivateChain(ctx, id, user); err != nil {
		if store.IsNotFound(err) {
			apiresponses.RespondNotFound(ctx, "chain", id)
			return
		}
		apiresponses.RespondInternalError(ctx, "deactivate chain", err, c.log)
		return
	}
	apiresponses.RespondNoContent(ctx)
}

func (c *ChainAPIController) respondSaveError(ctx *gin.Context, err error) {
	var vErr *escalation.ValidationError
	if errors.As(err, &vErr) {
		apiresponses.RespondBadRequestWithDetails(ctx, "chain definition is invalid", strings.Join(vErr.Problems, "; "))
		return
	}
	apiresponses.RespondInternalError(ctx, "save chain", err, c.log)
}
