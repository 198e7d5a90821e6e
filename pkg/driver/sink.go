package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/soundprediction/ontoreason/pkg/utils"
)

// Sink receives a graph snapshot.
type Sink interface {
	WriteNodes(ctx context.Context, nodes []*types.Node) error
	WriteEdges(ctx context.Context, edges []types.Edge) error
	WriteFacts(ctx context.Context, facts []types.Triple) error
}

var (
	_ Sink = (*utils.ParquetGraphWriter)(nil)
	_ Sink = (*Neo4jSink)(nil)
	_ Sink = (*PostgresSink)(nil)
)

// Snapshot is everything a Sink is given.
type Snapshot struct {
	Nodes []*types.Node
	Edges []types.Edge
	Facts []types.Triple
}

// Write sends s to every sink in order and stops at the first failure.
func Write(ctx context.Context, s Snapshot, sinks ...Sink) error {
	for _, sink := range sinks {
		if err := sink.WriteNodes(ctx, s.Nodes); err != nil {
			return fmt.Errorf("failed to export nodes: %w", err)
		}
		if err := sink.WriteEdges(ctx, s.Edges); err != nil {
			return fmt.Errorf("failed to export edges: %w", err)
		}
		if err := sink.WriteFacts(ctx, s.Facts); err != nil {
			return fmt.Errorf("failed to export facts: %w", err)
		}
	}
	return nil
}

// NodeLabel maps a node kind to its Neo4j label.
func NodeLabel(kind types.NodeKind) string {
	switch kind {
	case types.KindClass:
		return "Class"
	case types.KindProperty:
		return "Property"
	case types.KindRelation:
		return "Relation"
	case types.KindCase:
		return "Case"
	}
	return "Symbol"
}

// RelationshipType turns an edge label into an upper snake case Cypher
// relationship type, e.g. "subclass_of" -> SUBCLASS_OF, "eats meat" ->
// EATS_MEAT. Labels without letters or digits map to RELATED_TO.
func RelationshipType(label string) string {
	var b strings.Builder
	underscore := false
	for _, r := range label {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if underscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			underscore = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		underscore = true
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		out = "R_" + out
	}
	return out
}

// groupEdges buckets edges by relationship type, keys sorted.
func groupEdges(edges []types.Edge) ([]string, map[string][]map[string]any) {
	groups := make(map[string][]map[string]any)
	for _, e := range edges {
		rel := RelationshipType(e.Type)
		groups[rel] = append(groups[rel], map[string]any{
			"source": e.Source,
			"target": e.Target,
			"label":  e.Type,
		})
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

// groupNodes buckets node property maps by label, keys sorted.
func groupNodes(nodes []*types.Node) ([]string, map[string][]map[string]any) {
	groups := make(map[string][]map[string]any)
	for _, n := range nodes {
		label := NodeLabel(n.Kind)
		groups[label] = append(groups[label], nodeProperties(n))
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

func nodeProperties(n *types.Node) map[string]any {
	props := map[string]any{
		"id":          n.ID,
		"kind":        string(n.Kind),
		"description": n.Description,
	}
	if c, ok := n.CommunityID(); ok {
		props["community"] = int64(c)
	}
	if n.HasEmbedding() {
		emb := make([]float64, len(n.Embedding))
		for i, v := range n.Embedding {
			emb[i] = float64(v)
		}
		props["embedding"] = emb
	}
	return props
}
