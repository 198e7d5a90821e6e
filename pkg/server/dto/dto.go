package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/ontoreason/pkg/types"
)

// Validation errors
var (
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrQueryTooLong  = errors.New("query exceeds maximum length (4096)")
	ErrEmptyPatterns = errors.New("patterns cannot be empty")
	ErrTooManyTerms  = errors.New("too many patterns (max 16)")
	ErrEmptyPlan     = errors.New("plan cannot be empty")
	ErrEmptyUser     = errors.New("user cannot be empty")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxQueryLength = 4096
	MaxPatterns    = 16
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate performs validation on QueryRequest
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}

// FactRequest is the body of POST /api/v1/facts.
type FactRequest struct {
	Subject   string `json:"subject" binding:"required"`
	Predicate string `json:"predicate" binding:"required"`
	Object    string `json:"object" binding:"required"`
}

// FactResponse reports whether the fact was new.
type FactResponse struct {
	Inserted bool `json:"inserted"`
}

// Pattern is a triple pattern. Terms starting with "?" are variables and
// empty terms match anything.
type Pattern struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// FactQueryRequest is the body of POST /api/v1/facts/query. Several
// patterns are joined on shared variables.
type FactQueryRequest struct {
	Patterns []Pattern `json:"patterns"`
}

// Validate performs validation on FactQueryRequest
func (r *FactQueryRequest) Validate() error {
	if len(r.Patterns) == 0 {
		return ErrEmptyPatterns
	}
	if len(r.Patterns) > MaxPatterns {
		return ErrTooManyTerms
	}
	return nil
}

// TypesPatterns converts the request patterns.
func (r *FactQueryRequest) TypesPatterns() []types.Pattern {
	out := make([]types.Pattern, len(r.Patterns))
	for i, p := range r.Patterns {
		out[i] = types.Pattern{Subject: p.Subject, Predicate: p.Predicate, Object: p.Object}
	}
	return out
}

// FactQueryResponse lists variable bindings.
type FactQueryResponse struct {
	Bindings []types.Binding `json:"bindings"`
	Count    int             `json:"count"`
}

// StatusRequest is the body of PUT /api/v1/entities/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReasonRequest describes a decision point. Goal defaults to the plan
// name; Task and Action are optional.
type ReasonRequest struct {
	Plan         string            `json:"plan"`
	Goal         string            `json:"goal,omitempty"`
	Task         string            `json:"task,omitempty"`
	Action       string            `json:"action,omitempty"`
	ActionStatus string            `json:"action_status,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// Validate performs validation on ReasonRequest
func (r *ReasonRequest) Validate() error {
	if strings.TrimSpace(r.Plan) == "" {
		return ErrEmptyPlan
	}
	return nil
}

// ReasonResponse reports one dispatch.
type ReasonResponse struct {
	Selected   []string          `json:"selected"`
	Ran        []string          `json:"ran"`
	Failed     map[string]string `json:"failed,omitempty"`
	Skipped    []string          `json:"skipped,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Stale      bool              `json:"stale"`
}

// BeliefsRequest is the body of POST /api/v1/agent/beliefs.
type BeliefsRequest struct {
	User    string         `json:"user"`
	Payload map[string]any `json:"payload"`
}

// Validate performs validation on BeliefsRequest
func (r *BeliefsRequest) Validate() error {
	if strings.TrimSpace(r.User) == "" {
		return ErrEmptyUser
	}
	return nil
}

// BeliefsResponse lists the plans the agent holds after onboarding.
type BeliefsResponse struct {
	User  string   `json:"user"`
	Plans []string `json:"plans"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
