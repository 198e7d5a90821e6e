package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
)

// GraphHandler exposes graph maintenance.
type GraphHandler struct {
	admin ontoreason.GraphAdmin
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(admin ontoreason.GraphAdmin) *GraphHandler {
	return &GraphHandler{admin: admin}
}

// Rebuild handles POST /api/v1/rebuild
func (h *GraphHandler) Rebuild(c *gin.Context) {
	report, err := h.admin.Rebuild(c.Request.Context())
	if err != nil {
		writeDomainError(c, "rebuild_failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Stats handles GET /api/v1/graph/stats
func (h *GraphHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Stats())
}
