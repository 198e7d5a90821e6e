package types

import "fmt"

// NodeKind represents the kind of a graph node.
type NodeKind string

const (
	// KindClass represents an ontology class.
	KindClass NodeKind = "class"
	// KindProperty represents an ontology property.
	KindProperty NodeKind = "property"
	// KindRelation represents a labelled relation instance.
	KindRelation NodeKind = "relation"
	// KindCase represents a retained case-based reasoning record.
	KindCase NodeKind = "case"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindClass, KindProperty, KindRelation, KindCase:
		return true
	}
	return false
}

// Node represents a node in the knowledge graph.
type Node struct {
	ID          string    `json:"id"`
	Kind        NodeKind  `json:"kind"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Community   *int      `json:"community,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Validate checks if the Node has all required fields set.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, n.Kind)
	}
	return nil
}

// HasEmbedding reports whether an embedding has been assigned.
func (n *Node) HasEmbedding() bool {
	return len(n.Embedding) > 0
}

// CommunityID returns the assigned community and whether one is set.
func (n *Node) CommunityID() (int, bool) {
	if n.Community == nil {
		return 0, false
	}
	return *n.Community, true
}

// Clone returns a deep copy so callers can read a node without holding
// the graph lock.
func (n *Node) Clone() *Node {
	c := *n
	if n.Embedding != nil {
		c.Embedding = append([]float32(nil), n.Embedding...)
	}
	if n.Community != nil {
		id := *n.Community
		c.Community = &id
	}
	return &c
}
