package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// ParquetGraphWriter handles writing graph snapshots to Parquet files
type ParquetGraphWriter struct {
	baseDir string
}

// NewParquetGraphWriter creates a new Parquet writer
// baseDir should be the directory where parquet files will be stored
func NewParquetGraphWriter(baseDir string) (*ParquetGraphWriter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
	}
	return &ParquetGraphWriter{baseDir: baseDir}, nil
}

// ParquetNode represents the schema for a graph node in Parquet
type ParquetNode struct {
	ID          string    `parquet:"id"`
	Kind        string    `parquet:"kind"`
	Community   *int64    `parquet:"community,optional"`
	Description string    `parquet:"description"`
	Embedding   []float32 `parquet:"embedding"`
}

// ParquetEdge represents the schema for a graph edge in Parquet
type ParquetEdge struct {
	Source string `parquet:"source"`
	Target string `parquet:"target"`
	Type   string `parquet:"type"`
}

// ParquetFact represents the schema for a stored triple in Parquet
type ParquetFact struct {
	Subject   string `parquet:"subject"`
	Predicate string `parquet:"predicate"`
	Object    string `parquet:"object"`
}

// NodesPath returns the file the nodes are written to.
func (w *ParquetGraphWriter) NodesPath() string { return filepath.Join(w.baseDir, "nodes.parquet") }

// EdgesPath returns the file the edges are written to.
func (w *ParquetGraphWriter) EdgesPath() string { return filepath.Join(w.baseDir, "edges.parquet") }

// FactsPath returns the file the facts are written to.
func (w *ParquetGraphWriter) FactsPath() string { return filepath.Join(w.baseDir, "facts.parquet") }

// WriteNodes writes graph nodes to nodes.parquet, replacing earlier output.
func (w *ParquetGraphWriter) WriteNodes(ctx context.Context, nodes []*types.Node) error {
	rows := make([]ParquetNode, 0, len(nodes))
	for _, node := range nodes {
		pn := ParquetNode{
			ID:          node.ID,
			Kind:        string(node.Kind),
			Description: node.Description,
			Embedding:   node.Embedding,
		}
		if id, ok := node.CommunityID(); ok {
			c := int64(id)
			pn.Community = &c
		}
		rows = append(rows, pn)
	}
	if err := parquet.WriteFile(w.NodesPath(), rows); err != nil {
		return fmt.Errorf("failed to write nodes parquet: %w", err)
	}
	return nil
}

// WriteEdges writes graph edges to edges.parquet, replacing earlier output.
func (w *ParquetGraphWriter) WriteEdges(ctx context.Context, edges []types.Edge) error {
	rows := make([]ParquetEdge, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, ParquetEdge{Source: e.Source, Target: e.Target, Type: e.Type})
	}
	if err := parquet.WriteFile(w.EdgesPath(), rows); err != nil {
		return fmt.Errorf("failed to write edges parquet: %w", err)
	}
	return nil
}

// WriteFacts writes triples to facts.parquet, replacing earlier output.
func (w *ParquetGraphWriter) WriteFacts(ctx context.Context, facts []types.Triple) error {
	rows := make([]ParquetFact, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, ParquetFact{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object})
	}
	if err := parquet.WriteFile(w.FactsPath(), rows); err != nil {
		return fmt.Errorf("failed to write facts parquet: %w", err)
	}
	return nil
}

// ReadNodes reads nodes.parquet back, mainly for inspection and tests.
func (w *ParquetGraphWriter) ReadNodes() ([]ParquetNode, error) {
	rows, err := parquet.ReadFile[ParquetNode](w.NodesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes parquet: %w", err)
	}
	return rows, nil
}
