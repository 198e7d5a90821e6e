package types

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrInvalidKind  = errors.New("invalid node kind")
	ErrEmptyType    = errors.New("edge type cannot be empty")
	ErrEmptyTerm    = errors.New("triple term cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// ContextKey is the type used for request-scoped values stored in a context.
type ContextKey string

const (
	// ContextKeyUserID carries the caller's user id.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID carries the caller's session id.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource identifies the entry point (server, cli).
	ContextKeyRequestSource ContextKey = "request_source"
)

// ResultSource records which search stage produced a result.
type ResultSource string

const (
	SourceLocal  ResultSource = "local"
	SourceGlobal ResultSource = "global"
	SourceBoth   ResultSource = "both"
)

// ScoredNode is a single ranked retrieval hit.
type ScoredNode struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Score       float64      `json:"score"`
	Source      ResultSource `json:"source,omitempty"`
}

// QueryResult is the answer returned by ProcessQuery.
type QueryResult struct {
	Results []ScoredNode `json:"results"`
	Summary string       `json:"summary"`
}

// EmptyQueryResult returns a result with no hits and an empty summary.
func EmptyQueryResult() *QueryResult {
	return &QueryResult{Results: []ScoredNode{}, Summary: ""}
}

// IDs returns the result ids in rank order.
func (r *QueryResult) IDs() []string {
	ids := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		ids = append(ids, res.ID)
	}
	return ids
}

// Triple is a single subject-predicate-object fact.
type Triple struct {
	Subject   string `json:"subject" yaml:"subject"`
	Predicate string `json:"predicate" yaml:"predicate"`
	Object    string `json:"object" yaml:"object"`
}

// Validate checks that every term is set.
func (t Triple) Validate() error {
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return fmt.Errorf("%w: (%q, %q, %q)", ErrEmptyTerm, t.Subject, t.Predicate, t.Object)
	}
	return nil
}

func (t Triple) String() string {
	return fmt.Sprintf("(%s %s %s)", t.Subject, t.Predicate, t.Object)
}

// Pattern matches triples. Each term is a constant, "" for an unbound
// wildcard, or "?name" for a variable captured in the resulting Binding.
type Pattern struct {
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Object    string `json:"object,omitempty"`
}

// Binding maps variable names (without the leading '?') to matched values.
type Binding map[string]string

// IsVariable reports whether a pattern term is a named variable.
func IsVariable(term string) bool {
	return len(term) > 1 && term[0] == '?'
}
