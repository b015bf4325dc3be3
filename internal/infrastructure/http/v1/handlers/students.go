package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/students"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// StudentsHandler administers student records.
type StudentsHandler struct {
	*BaseHandler
	service *students.Service
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(base *BaseHandler, service *students.Service) *StudentsHandler {
	return &StudentsHandler{BaseHandler: base, service: service}
}

// List returns student summaries, most recent admission first.
// GET /students
func (h *StudentsHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, list)
}

// Get returns one full student record.
// GET /students/:docId
func (h *StudentsHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("docId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// PreviewUIDs shows the IDs a generate run would assign, without writing.
// GET /students/uid-preview
func (h *StudentsHandler) PreviewUIDs(c *gin.Context) {
	preview, err := h.service.PreviewUIDs(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.UIDPreviewResponse{Assignments: preview, Pending: len(preview)})
}

// GenerateUIDs assigns UIDs to every student missing one.
// POST /students/generate-uids
func (h *StudentsHandler) GenerateUIDs(c *gin.Context) {
	generated, err := h.service.GenerateUIDs(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.BulkUpdateResponse{Updated: generated})
}

// NormalizeDOBs rewrites unformatted DOB fields to DD-MM-YYYY.
// POST /students/normalize-dob
func (h *StudentsHandler) NormalizeDOBs(c *gin.Context) {
	updated, err := h.service.NormalizeDOBs(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.BulkUpdateResponse{Updated: updated})
}

// Trash moves a student record to the trash collection.
// POST /students/:docId/trash
func (h *StudentsHandler) Trash(c *gin.Context) {
	if err := h.service.Trash(c.Request.Context(), c.Param("docId")); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "student moved to trash")
}

// Restore moves a trashed record back to the live collection.
// POST /students/:docId/restore
func (h *StudentsHandler) Restore(c *gin.Context) {
	if err := h.service.Restore(c.Request.Context(), c.Param("docId")); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "student restored")
}

// ListTrash returns trashed records, newest deletion first.
// GET /students/trash
func (h *StudentsHandler) ListTrash(c *gin.Context) {
	docs, err := h.service.ListTrash(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, docs)
}
