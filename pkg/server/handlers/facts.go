package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/server/dto"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// FactsHandler reads and writes facts.
type FactsHandler struct {
	store ontoreason.FactStore
}

// NewFactsHandler creates a new facts handler
func NewFactsHandler(store ontoreason.FactStore) *FactsHandler {
	return &FactsHandler{store: store}
}

// InsertFact handles POST /api/v1/facts. A new fact answers 201, a known
// one 200.
func (h *FactsHandler) InsertFact(c *gin.Context) {
	var req dto.FactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	inserted, err := h.store.InsertFact(c.Request.Context(), req.Subject, req.Predicate, req.Object)
	if err != nil {
		writeDomainError(c, "insert_failed", err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	c.JSON(status, dto.FactResponse{Inserted: inserted})
}

// QueryFacts handles POST /api/v1/facts/query
func (h *FactsHandler) QueryFacts(c *gin.Context) {
	var req dto.FactQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	bindings := h.store.QueryAll(c.Request.Context(), req.TypesPatterns()...)
	if bindings == nil {
		bindings = []types.Binding{}
	}
	c.JSON(http.StatusOK, dto.FactQueryResponse{Bindings: bindings, Count: len(bindings)})
}

// UpdateStatus handles PUT /api/v1/entities/:id/status
func (h *FactsHandler) UpdateStatus(c *gin.Context) {
	entity := c.Param("id")
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), entity, req.Status); err != nil {
		writeDomainError(c, "update_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity": entity, "status": req.Status})
}
