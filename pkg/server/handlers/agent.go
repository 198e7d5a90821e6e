package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/server/dto"
)

// AgentHandler feeds beliefs to the BDI agent.
type AgentHandler struct {
	agent *bdi.Agent
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agent *bdi.Agent) *AgentHandler {
	return &AgentHandler{agent: agent}
}

// UpdateBeliefs handles POST /api/v1/agent/beliefs. Beliefs are merged,
// then desires and intentions are regenerated from them.
func (h *AgentHandler) UpdateBeliefs(c *gin.Context) {
	var req dto.BeliefsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	plans, err := h.agent.Onboard(c.Request.Context(), req.User, req.Payload)
	if err != nil {
		writeDomainError(c, "beliefs_failed", err)
		return
	}
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Name)
	}
	c.JSON(http.StatusOK, dto.BeliefsResponse{User: req.User, Plans: names})
}
