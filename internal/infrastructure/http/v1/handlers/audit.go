package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/audit"
)

// AuditHandler serves the admin audit trail.
type AuditHandler struct {
	*BaseHandler
	service *audit.Service
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *audit.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, service: service}
}

// History returns recent audit entries, newest first.
// GET /audit?limit=50
func (h *AuditHandler) History(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)

	docs, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, docs)
}
