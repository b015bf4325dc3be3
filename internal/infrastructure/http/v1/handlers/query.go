package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/query"
)

// QueryHandler runs the cross-collection search.
type QueryHandler struct {
	*BaseHandler
	service *query.Service
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(base *BaseHandler, service *query.Service) *QueryHandler {
	return &QueryHandler{BaseHandler: base, service: service}
}

// Search looks up a key in the selected collection.
// GET /query?type=students&q=000104
func (h *QueryHandler) Search(c *gin.Context) {
	results, err := h.service.Search(
		c.Request.Context(),
		query.Kind(c.Query("type")),
		c.Query("q"),
	)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"count": len(results), "results": results})
}
