package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/server/dto"
)

// QueryHandler serves natural-language queries.
type QueryHandler struct {
	engine ontoreason.QueryEngine
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(engine ontoreason.QueryEngine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// Query handles POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.engine.ProcessQuery(c.Request.Context(), req.Query)
	if err != nil {
		writeDomainError(c, "query_failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
