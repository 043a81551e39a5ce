// Package handler exposes orchestrator intents and projections over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/eomhub/internal/api/response"
	"github.com/kiranshivaraju/eomhub/internal/orchestrator"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// Orchestrator is the controller surface the handlers depend on.
type Orchestrator interface {
	View() orchestrator.View
	Tool(toolID string) (models.Tool, bool)
	RunTool(ctx context.Context, toolID string) error
	Cancel(ctx context.Context) error
	Confirm(confirmed bool) bool
	ResetSavings(ctx context.Context) error
	Refresh(ctx context.Context)
	SetActiveCategory(categoryID string)
	SetResultTab(tab orchestrator.ResultTab)
	ToggleConnectionHelp()
}

// Reconnector clears a sticky transport failover.
type Reconnector interface {
	Reconnect()
}

// Intents serves the user intents. Intents that may wait on a confirmation
// run in the background under the daemon's lifetime context and are
// acknowledged with 202; their outcome shows up in the state projection.
type Intents struct {
	orch      Orchestrator
	transport Reconnector
	ctx       context.Context
}

// NewIntents creates the intent handlers. ctx bounds background intents;
// transport may be nil.
func NewIntents(ctx context.Context, orch Orchestrator, transport Reconnector) *Intents {
	return &Intents{orch: orch, transport: transport, ctx: ctx}
}

// State handles GET /api/v1/state.
func (h *Intents) State(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, h.orch.View())
}

// Run handles POST /api/v1/tools/{toolID}/run.
func (h *Intents) Run(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	if _, ok := h.orch.Tool(toolID); !ok {
		response.Error(w, http.StatusNotFound, "TOOL_NOT_FOUND", "Unknown tool", map[string]string{"tool_id": toolID})
		return
	}

	h.background("run_tool", func(ctx context.Context) error {
		return h.orch.RunTool(ctx, toolID)
	})
	response.Accepted(w, map[string]string{"tool_id": toolID})
}

// Cancel handles POST /api/v1/jobs/current/cancel.
func (h *Intents) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Cancel(r.Context()); err != nil {
		response.Error(w, http.StatusBadGateway, "CANCEL_FAILED", "Cancellation did not reach Revit", h.orch.View().UxError)
		return
	}
	response.JSON(w, h.orch.View())
}

// Confirm handles POST /api/v1/confirm.
func (h *Intents) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed *bool `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.Confirmed == nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "confirmed is required", nil)
		return
	}

	if !h.orch.Confirm(*req.Confirmed) {
		response.Error(w, http.StatusConflict, "NO_PENDING_CONFIRMATION", "Nothing is waiting for confirmation", nil)
		return
	}
	response.JSON(w, map[string]bool{"confirmed": *req.Confirmed})
}

// ResetSavings handles POST /api/v1/savings/reset.
func (h *Intents) ResetSavings(w http.ResponseWriter, r *http.Request) {
	h.background("reset_savings", h.orch.ResetSavings)
	response.Accepted(w, map[string]string{"status": "awaiting_confirmation"})
}

// SetCategory handles PUT /api/v1/category {categoryId}. An empty
// categoryId shows all.
func (h *Intents) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID *string `json:"categoryId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.CategoryID == nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "categoryId is required", nil)
		return
	}
	h.orch.SetActiveCategory(*req.CategoryID)
	response.JSON(w, h.orch.View())
}

// SetResultTab handles PUT /api/v1/result-tab.
func (h *Intents) SetResultTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab orchestrator.ResultTab `json:"tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if req.Tab != orchestrator.ResultTabResult && req.Tab != orchestrator.ResultTabLogs {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tab must be result or logs", nil)
		return
	}
	h.orch.SetResultTab(req.Tab)
	response.JSON(w, h.orch.View())
}

// ToggleConnectionHelp handles POST /api/v1/connection-help/toggle.
func (h *Intents) ToggleConnectionHelp(w http.ResponseWriter, r *http.Request) {
	h.orch.ToggleConnectionHelp()
	response.JSON(w, h.orch.View())
}

// Reconnect handles POST /api/v1/reconnect. The bridge gets another chance
// and the status is refreshed right away.
func (h *Intents) Reconnect(w http.ResponseWriter, r *http.Request) {
	if h.transport != nil {
		h.transport.Reconnect()
	}
	h.orch.Refresh(r.Context())
	response.JSON(w, h.orch.View())
}

func (h *Intents) background(name string, fn func(context.Context) error) {
	go func() {
		err := fn(h.ctx)
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrDeclined), errors.Is(err, context.Canceled):
			slog.Debug("intent not carried out", "intent", name, "error", err)
		default:
			slog.Warn("intent failed", "intent", name, "error", err)
		}
	}()
}
