package types

import "fmt"

// Built-in ontology edge types. Relation edges use their own label.
const (
	EdgeSubclassOf = "subclass_of"
	EdgeDomain     = "domain"
	EdgeRange      = "range"
)

// Edge is a directed, typed link between two graph symbols. Edge
// embeddings belong to the type label, not to the instance.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Validate checks if the Edge has all required fields set.
func (e Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return ErrEmptyID
	}
	if e.Type == "" {
		return ErrEmptyType
	}
	return nil
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Type, e.Target)
}

// Neighbor is an undirected adjacency entry weighted by the number of
// edges between two nodes.
type Neighbor struct {
	NodeID    string `json:"node_id"`
	EdgeCount int    `json:"edge_count"`
}
