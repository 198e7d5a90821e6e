package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/server/dto"
)

// ReasonService runs reasoning and reports graph staleness.
type ReasonService interface {
	ontoreason.Reasoner
	Stale() bool
}

// ReasonHandler dispatches reasoning strategies.
type ReasonHandler struct {
	service ReasonService
}

// NewReasonHandler creates a new reason handler
func NewReasonHandler(service ReasonService) *ReasonHandler {
	return &ReasonHandler{service: service}
}

// Reason handles POST /api/v1/reason
func (h *ReasonHandler) Reason(c *gin.Context) {
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	plan, task, action, err := decisionPoint(req)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	report, err := h.service.Reason(c.Request.Context(), plan, task, action)
	if err != nil {
		writeDomainError(c, "reason_failed", err)
		return
	}

	resp := dto.ReasonResponse{
		Selected:   report.Selected,
		Ran:        report.Ran,
		Skipped:    report.Skipped,
		DurationMS: report.Duration.Milliseconds(),
		Stale:      h.service.Stale(),
	}
	if resp.Selected == nil {
		resp.Selected = []string{}
	}
	if resp.Ran == nil {
		resp.Ran = []string{}
	}
	if len(report.Failed) > 0 {
		resp.Failed = make(map[string]string, len(report.Failed))
		for name, ferr := range report.Failed {
			resp.Failed[name] = ferr.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// decisionPoint builds the plan, task and action named by req.
func decisionPoint(req dto.ReasonRequest) (*bdi.Plan, *bdi.Task, *bdi.Action, error) {
	goalName := req.Goal
	if goalName == "" {
		goalName = req.Plan
	}
	goal := bdi.NewGoal(goalName, "", bdi.DefaultGoalPriority)
	plan := bdi.NewPlan(req.Plan, goal)

	var task *bdi.Task
	if req.Task != "" {
		task = goal.CreateTask(req.Task)
		plan.Tasks = append(plan.Tasks, task)
	}

	var action *bdi.Action
	if req.Action != "" {
		action = bdi.NewAction(req.Action, req.Parameters)
		if req.ActionStatus != "" {
			status := bdi.Status(req.ActionStatus)
			switch status {
			case bdi.StatusPending, bdi.StatusInProgress, bdi.StatusCompleted, bdi.StatusFailed:
				action.Status = status
			default:
				return nil, nil, nil, fmt.Errorf("invalid action_status %q", req.ActionStatus)
			}
		}
		if task != nil {
			if err := goal.AddAction(task, action); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return plan, task, action, nil
}
