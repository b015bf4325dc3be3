package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// PacHandler administers live PAC entries.
type PacHandler struct {
	*BaseHandler
	service *pac.Service
}

// NewPacHandler creates a new PAC handler.
func NewPacHandler(base *BaseHandler, service *pac.Service) *PacHandler {
	return &PacHandler{BaseHandler: base, service: service}
}

// List returns all live PAC entries.
// GET /pac
func (h *PacHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, docs)
}

// LastCopied returns the most recently copied entry.
// GET /pac/last-copied
func (h *PacHandler) LastCopied(c *gin.Context) {
	doc, err := h.service.LastCopied(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Get returns one live PAC entry.
// GET /pac/:docId
func (h *PacHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("docId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// EditAmount corrects an entry's amount.
// POST /pac/:docId/amount
func (h *PacHandler) EditAmount(c *gin.Context) {
	var req dto.EditAmountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid amount").WithDetail("amount", req.Amount))
		return
	}

	if err := h.service.EditAmount(c.Request.Context(), c.Param("docId"), amount, req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "amount corrected")
}

// Archive moves an entry to the delete archive.
// POST /pac/:docId/archive
func (h *PacHandler) Archive(c *gin.Context) {
	var req dto.ArchiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	deleteViewID, err := h.service.Archive(c.Request.Context(), c.Param("docId"), req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ArchiveResponse{DeleteViewID: deleteViewID})
}
