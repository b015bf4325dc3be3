package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/templink"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// TempLinkHandler manages temp access links.
type TempLinkHandler struct {
	*BaseHandler
	service *templink.Service
}

// NewTempLinkHandler creates a new temp link handler.
func NewTempLinkHandler(base *BaseHandler, service *templink.Service) *TempLinkHandler {
	return &TempLinkHandler{BaseHandler: base, service: service}
}

// Create issues a new link.
// POST /temp-links
func (h *TempLinkHandler) Create(c *gin.Context) {
	var req dto.CreateTempLinkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, err := h.service.Create(c.Request.Context(), req.Fingerprint)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CreateTempLinkResponse{Token: token})
}

// Access validates a presented token and records the access.
// POST /temp-links/:token/access
func (h *TempLinkHandler) Access(c *gin.Context) {
	var req dto.AccessTempLinkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Access(c.Request.Context(), c.Param("token"), req.Fingerprint, req.ReloadCount, req.ClientInfo)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Heartbeat marks a link as still in use.
// POST /temp-links/:token/heartbeat
func (h *TempLinkHandler) Heartbeat(c *gin.Context) {
	if err := h.service.Heartbeat(c.Request.Context(), c.Param("token")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Revoke locks a link.
// POST /temp-links/:token/revoke
func (h *TempLinkHandler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("token")); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "link revoked")
}

// List returns all links for the monitor view.
// GET /temp-links
func (h *TempLinkHandler) List(c *gin.Context) {
	links, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, links)
}
