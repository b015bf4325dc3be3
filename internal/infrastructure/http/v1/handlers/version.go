package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/version"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// VersionHandler manages the dashboard version document.
type VersionHandler struct {
	*BaseHandler
	service *version.Service
}

// NewVersionHandler creates a new version handler.
func NewVersionHandler(base *BaseHandler, service *version.Service) *VersionHandler {
	return &VersionHandler{BaseHandler: base, service: service}
}

// Current returns the live version.
// GET /version
func (h *VersionHandler) Current(c *gin.Context) {
	info, err := h.service.Current(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, info)
}

// Publish snapshots the live version and bumps the patch number.
// POST /version/publish
func (h *VersionHandler) Publish(c *gin.Context) {
	var req dto.PublishVersionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	info, err := h.service.Publish(c.Request.Context(), req.Changelog)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, info)
}

// History lists non-deleted version snapshots.
// GET /version/history
func (h *VersionHandler) History(c *gin.Context) {
	docs, err := h.service.History(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, docs)
}

// Restore sets the live version back to a snapshot.
// POST /version/history/:id/restore
func (h *VersionHandler) Restore(c *gin.Context) {
	info, err := h.service.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, info)
}

// DeleteHistory soft-deletes a snapshot.
// DELETE /version/history/:id
func (h *VersionHandler) DeleteHistory(c *gin.Context) {
	if err := h.service.DeleteHistory(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
