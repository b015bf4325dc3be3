package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/registry"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// RegistryHandler exposes the delete-ID reconciliation engine.
type RegistryHandler struct {
	*BaseHandler
	engine *registry.Engine
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(base *BaseHandler, engine *registry.Engine) *RegistryHandler {
	return &RegistryHandler{BaseHandler: base, engine: engine}
}

// Status returns the derived registry counters.
// GET /registry/status
func (h *RegistryHandler) Status(c *gin.Context) {
	h.OK(c, dto.RegistryStatusResponse{
		Stats:     h.engine.Stats(),
		QueueSize: len(h.engine.Queue()),
	})
}

// Duplicates lists duplicate groups in first-encounter order.
// GET /registry/duplicates
func (h *RegistryHandler) Duplicates(c *gin.Context) {
	groups := h.engine.Duplicates()
	out := make([]dto.DuplicateGroupResponse, 0, len(groups))
	for _, g := range groups {
		resp := dto.DuplicateGroupResponse{DeleteViewID: g.DeleteViewID, Count: g.Count}
		for _, r := range h.engine.GroupRecords(g.DeleteViewID) {
			resp.Records = append(resp.Records, dto.FromRecord(r))
		}
		out = append(out, resp)
	}
	h.OK(c, out)
}

// Issues runs the integrity check over the current snapshot.
// GET /registry/issues
func (h *RegistryHandler) Issues(c *gin.Context) {
	h.OK(c, h.engine.CheckIntegrity())
}

// Queue returns the pending remediation plan.
// GET /registry/queue
func (h *RegistryHandler) Queue(c *gin.Context) {
	h.OK(c, h.engine.Queue())
}

// FixRecord remediates a single record.
// POST /registry/records/:docId/fix
func (h *RegistryHandler) FixRecord(c *gin.Context) {
	var req dto.FixRequest
	if !h.BindJSON(c, &req) {
		return
	}

	report, err := h.engine.FixRecord(c.Request.Context(), c.Param("docId"), req.Confirm)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// FixGroup remediates every duplicate of one delete-view ID.
// POST /registry/duplicates/:deleteViewId/fix
func (h *RegistryHandler) FixGroup(c *gin.Context) {
	var req dto.FixRequest
	if !h.BindJSON(c, &req) {
		return
	}

	report, err := h.engine.FixGroup(c.Request.Context(), c.Param("deleteViewId"), req.Confirm)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// FixAll remediates the whole queue.
// POST /registry/fix
func (h *RegistryHandler) FixAll(c *gin.Context) {
	var req dto.FixRequest
	if !h.BindJSON(c, &req) {
		return
	}

	report, err := h.engine.FixAll(c.Request.Context(), req.Confirm)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Rollback restores a record's pre-fix delete-view ID.
// POST /registry/rollback
func (h *RegistryHandler) Rollback(c *gin.Context) {
	var req dto.RollbackRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.engine.Rollback(c.Request.Context(), req.Key); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "rollback applied")
}
