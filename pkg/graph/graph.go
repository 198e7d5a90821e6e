// Package graph holds the in-memory typed multigraph built from an
// ontology.
//
// A KnowledgeGraph is shared process state: any number of readers may use
// it concurrently and writers are serialized by an internal RWMutex. Node
// reads return copies, so callers never observe a half-written embedding.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/soundprediction/ontoreason/pkg/types"
)

var (
	// ErrNodeNotFound is returned when a node is not found.
	ErrNodeNotFound = errors.New("node not found")
	// ErrDuplicateNode is returned when a node id is added twice.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// KnowledgeGraph is a directed multigraph of ontology symbols. Edge
// endpoints do not have to be nodes: a domain or range that names an
// undeclared class is kept as a dangling symbol.
type KnowledgeGraph struct {
	mu        sync.RWMutex
	nodes     map[string]*types.Node
	order     []string
	edges     []types.Edge
	edgeSet   map[types.Edge]struct{}
	out       map[string][]int
	in        map[string][]int
	edgeTypes []string
	typeSet   map[string]struct{}
	version   uint64
	logger    *slog.Logger
}

// Stats summarizes the graph size.
type Stats struct {
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	EdgeTypes   int            `json:"edge_types"`
	NodesByKind map[string]int `json:"nodes_by_kind"`
	Embedded    int            `json:"embedded"`
	Communities int            `json:"communities"`
	Version     uint64         `json:"version"`
}

// New creates an empty graph.
func New(logger *slog.Logger) *KnowledgeGraph {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeGraph{
		nodes:   make(map[string]*types.Node),
		edgeSet: make(map[types.Edge]struct{}),
		out:     make(map[string][]int),
		in:      make(map[string][]int),
		typeSet: make(map[string]struct{}),
		logger:  logger.With("component", "graph"),
	}
}

// AddNode inserts a node. Node ids are unique for the life of the graph.
func (g *KnowledgeGraph) AddNode(kind types.NodeKind, id, description string) error {
	node := &types.Node{ID: id, Kind: kind, Description: description}
	if err := node.Validate(); err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	g.nodes[id] = node
	g.order = append(g.order, id)
	g.version++
	g.logger.Debug("Node added", "id", id, "kind", kind)
	return nil
}

// AddEdge inserts a typed edge. An exact duplicate is ignored and reported
// as false.
func (g *KnowledgeGraph) AddEdge(source, target, edgeType string) (bool, error) {
	edge := types.Edge{Source: source, Target: target, Type: edgeType}
	if err := edge.Validate(); err != nil {
		return false, fmt.Errorf("invalid edge: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edgeSet[edge]; exists {
		return false, nil
	}
	idx := len(g.edges)
	g.edges = append(g.edges, edge)
	g.edgeSet[edge] = struct{}{}
	g.out[source] = append(g.out[source], idx)
	g.in[target] = append(g.in[target], idx)
	if _, ok := g.typeSet[edgeType]; !ok {
		g.typeSet[edgeType] = struct{}{}
		g.edgeTypes = append(g.edgeTypes, edgeType)
	}
	g.version++
	return true, nil
}

// HasNode reports whether id is a node.
func (g *KnowledgeGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (g *KnowledgeGraph) Node(id string) (*types.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node.Clone(), nil
}

// Nodes returns copies of all nodes in insertion order.
func (g *KnowledgeGraph) Nodes() []*types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id].Clone())
	}
	return nodes
}

// NodeIDs returns all node ids in insertion order.
func (g *KnowledgeGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Edges returns all edges in insertion order.
func (g *KnowledgeGraph) Edges() []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]types.Edge(nil), g.edges...)
}

// EdgesFrom returns the outgoing edges of a symbol.
func (g *KnowledgeGraph) EdgesFrom(id string) []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.out[id])
}

// EdgesTo returns the incoming edges of a symbol.
func (g *KnowledgeGraph) EdgesTo(id string) []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.in[id])
}

func (g *KnowledgeGraph) collect(indexes []int) []types.Edge {
	edges := make([]types.Edge, 0, len(indexes))
	for _, i := range indexes {
		edges = append(edges, g.edges[i])
	}
	return edges
}

// EdgeTypes returns the distinct edge labels in first-seen order.
func (g *KnowledgeGraph) EdgeTypes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edgeTypes...)
}

// NodeCount returns the number of nodes.
func (g *KnowledgeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *KnowledgeGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Version increases on every structural change (nodes or edges). Derived
// state built at an older version is stale.
func (g *KnowledgeGraph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Projection returns the undirected, weighted adjacency restricted to
// nodes. Parallel edges add weight and self loops are dropped. Every node
// appears as a key, including isolated ones.
func (g *KnowledgeGraph) Projection() map[string][]types.Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	weights := make(map[string]map[string]int, len(g.nodes))
	for id := range g.nodes {
		weights[id] = make(map[string]int)
	}
	for _, e := range g.edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := g.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := g.nodes[e.Target]; !ok {
			continue
		}
		weights[e.Source][e.Target]++
		weights[e.Target][e.Source]++
	}

	projection := make(map[string][]types.Neighbor, len(weights))
	for id, nbrs := range weights {
		list := make([]types.Neighbor, 0, len(nbrs))
		for nbr, count := range nbrs {
			list = append(list, types.Neighbor{NodeID: nbr, EdgeCount: count})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].NodeID < list[j].NodeID })
		projection[id] = list
	}
	return projection
}

// SetDescription replaces a node's description.
func (g *KnowledgeGraph) SetDescription(id, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Description = description
	return nil
}

// AssignEmbeddings replaces node embeddings in one write. Nodes missing
// from vectors lose their embedding.
func (g *KnowledgeGraph) AssignEmbeddings(vectors map[string][]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, node := range g.nodes {
		if v, ok := vectors[id]; ok {
			node.Embedding = append([]float32(nil), v...)
		} else {
			node.Embedding = nil
		}
	}
}

// AssignCommunities replaces the whole community mapping in one write.
// Nodes missing from the mapping become unassigned.
func (g *KnowledgeGraph) AssignCommunities(mapping map[string]int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, node := range g.nodes {
		if c, ok := mapping[id]; ok {
			node.Community = &c
		} else {
			node.Community = nil
		}
	}
}

// SetCommunity assigns one node to community. It leaves the version alone.
func (g *KnowledgeGraph) SetCommunity(id string, community int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Community = &community
	return nil
}

// Stats returns a snapshot of the graph size.
func (g *KnowledgeGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		EdgeTypes:   len(g.edgeTypes),
		NodesByKind: make(map[string]int),
		Version:     g.version,
	}
	communities := make(map[int]struct{})
	for _, node := range g.nodes {
		stats.NodesByKind[string(node.Kind)]++
		if node.HasEmbedding() {
			stats.Embedded++
		}
		if c, ok := node.CommunityID(); ok {
			communities[c] = struct{}{}
		}
	}
	stats.Communities = len(communities)
	return stats
}
